package sink

import (
	"context"
	"sort"
	"sync"

	"github.com/rustyeddy/candlestream/market"
)

type candleKey struct {
	series string
	start  int64
}

type qualityKey struct {
	exchange string
	symbol   string
	date     int64
}

// Memory keeps the latest row per natural key. Writes counts every
// WriteCandles row so tests can tell an upsert from a skipped write.
type Memory struct {
	mu      sync.Mutex
	candles map[candleKey]market.EnrichedCandle
	quality map[qualityKey]market.QualityRecord
	Writes  int
}

func NewMemory() *Memory {
	return &Memory{
		candles: make(map[candleKey]market.EnrichedCandle),
		quality: make(map[qualityKey]market.QualityRecord),
	}
}

func (m *Memory) WriteCandles(_ context.Context, candles []market.EnrichedCandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range candles {
		m.candles[candleKey{series: c.Key().String(), start: c.IntervalStart.Unix()}] = c
		m.Writes++
	}
	return nil
}

func (m *Memory) WriteQuality(_ context.Context, records []market.QualityRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range records {
		m.quality[qualityKey{exchange: q.Exchange, symbol: q.Symbol, date: q.Date.Unix()}] = q
	}
	return nil
}

func (m *Memory) Close() error { return nil }

// Candles returns the rows of one series ordered by interval_start.
func (m *Memory) Candles(key market.SeriesKey) []market.EnrichedCandle {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []market.EnrichedCandle
	for k, c := range m.candles {
		if k.series == key.String() {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IntervalStart.Before(out[j].IntervalStart) })
	return out
}

// AllCandles returns every row ordered by series then interval_start.
func (m *Memory) AllCandles() []market.EnrichedCandle {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]market.EnrichedCandle, 0, len(m.candles))
	for _, c := range m.candles {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key().String(), out[j].Key().String()
		if a != b {
			return a < b
		}
		return out[i].IntervalStart.Before(out[j].IntervalStart)
	})
	return out
}

// Quality returns every quality row ordered by exchange, symbol, date.
func (m *Memory) Quality() []market.QualityRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]market.QualityRecord, 0, len(m.quality))
	for _, q := range m.quality {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Exchange != b.Exchange {
			return a.Exchange < b.Exchange
		}
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		return a.Date.Before(b.Date)
	})
	return out
}
