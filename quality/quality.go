// Package quality accumulates per (exchange, symbol, UTC day) validation
// outcomes into quality records.
package quality

import (
	"sort"
	"time"

	"github.com/rustyeddy/candlestream/market"
)

// Outcome is what happened to a record on its way through the pipeline.
type Outcome int

const (
	Accepted Outcome = iota
	Rejected
	Duplicate
	Late
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Duplicate:
		return "duplicate"
	case Late:
		return "late"
	}
	return "unknown"
}

type dayKey struct {
	exchange string
	symbol   string
	date     time.Time
}

// Scorer holds running counters. Records are bucketed by the UTC day
// they were received. Not safe for concurrent use.
type Scorer struct {
	days map[dayKey]*market.QualityRecord
}

func NewScorer() *Scorer {
	return &Scorer{days: make(map[dayKey]*market.QualityRecord)}
}

// Record counts a validator verdict.
func (s *Scorer) Record(t market.ValidatedTrade) {
	if t.IsValid {
		s.RecordOutcome(t, Accepted)
		return
	}
	s.RecordOutcome(t, Rejected)
}

// RecordOutcome counts t under o. Duplicates count towards the total only;
// late drops count as invalid.
func (s *Scorer) RecordOutcome(t market.ValidatedTrade, o Outcome) {
	q := s.get(t.Exchange, t.Symbol, market.Day(t.ReceivedAt))
	q.TotalRecords++
	switch o {
	case Accepted:
		q.ValidRecords++
	case Rejected:
		q.InvalidRecords++
	case Duplicate:
		q.DuplicateRecords++
	case Late:
		q.InvalidRecords++
		q.LateRecords++
	}
}

func (s *Scorer) get(exchange, symbol string, date time.Time) *market.QualityRecord {
	k := dayKey{exchange: exchange, symbol: symbol, date: date}
	q, ok := s.days[k]
	if !ok {
		q = &market.QualityRecord{Exchange: exchange, Symbol: symbol, Date: date}
		s.days[k] = q
	}
	return q
}

// Score is valid/total, defined as 1.0 for an empty record.
func Score(q market.QualityRecord) float64 {
	if q.TotalRecords == 0 {
		return 1.0
	}
	return float64(q.ValidRecords) / float64(q.TotalRecords)
}

func scored(q market.QualityRecord) market.QualityRecord {
	q.QualityScore = Score(q)
	return q
}

// Finalize returns the record for the given key marked final. A key with
// no records finalizes to an empty record scored 1.0.
func (s *Scorer) Finalize(exchange, symbol string, date time.Time) market.QualityRecord {
	date = market.Day(date)
	k := dayKey{exchange: exchange, symbol: symbol, date: date}
	q, ok := s.days[k]
	if !ok {
		return scored(market.QualityRecord{Exchange: exchange, Symbol: symbol, Date: date, Final: true})
	}
	q.Final = true
	return scored(*q)
}

// Snapshot returns running records for every key, ordered by exchange,
// symbol and date.
func (s *Scorer) Snapshot() []market.QualityRecord {
	out := make([]market.QualityRecord, 0, len(s.days))
	for _, q := range s.days {
		out = append(out, scored(*q))
	}
	sortRecords(out)
	return out
}

// Rollover finalizes and forgets every day before now's UTC day.
func (s *Scorer) Rollover(now time.Time) []market.QualityRecord {
	today := market.Day(now)
	var out []market.QualityRecord
	for k := range s.days {
		if k.date.Before(today) {
			out = append(out, s.Finalize(k.exchange, k.symbol, k.date))
			delete(s.days, k)
		}
	}
	sortRecords(out)
	return out
}

// Restore replaces the running counters with records, as returned by
// Snapshot.
func (s *Scorer) Restore(records []market.QualityRecord) {
	s.days = make(map[dayKey]*market.QualityRecord, len(records))
	for _, q := range records {
		q := q
		q.Date = market.Day(q.Date)
		s.days[dayKey{exchange: q.Exchange, symbol: q.Symbol, date: q.Date}] = &q
	}
}

// Clone returns an independent copy.
func (s *Scorer) Clone() *Scorer {
	c := &Scorer{days: make(map[dayKey]*market.QualityRecord, len(s.days))}
	for k, q := range s.days {
		cp := *q
		c.days[k] = &cp
	}
	return c
}

func sortRecords(rs []market.QualityRecord) {
	sort.Slice(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		if a.Exchange != b.Exchange {
			return a.Exchange < b.Exchange
		}
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		return a.Date.Before(b.Date)
	})
}
