// Package dedup drops trades already seen within a bounded recency window.
package dedup

import (
	"time"

	"github.com/rustyeddy/candlestream/market"
)

// Key identifies a trade for deduplication. Seq is used when the exchange
// assigned one; otherwise the composite fields are.
type Key struct {
	Exchange string `json:"exchange"`
	Symbol   string `json:"symbol"`
	Seq      string `json:"seq,omitempty"`
	TS       int64  `json:"ts,omitempty"`
	Price    string `json:"price,omitempty"`
	Quantity string `json:"quantity,omitempty"`
}

// KeyOf derives the dedup key of a trade.
func KeyOf(t market.ValidatedTrade) Key {
	k := Key{Exchange: t.Exchange, Symbol: t.Symbol}
	if t.SequenceID != "" {
		k.Seq = t.SequenceID
		return k
	}
	k.TS = t.TradeTimestamp.UnixNano()
	k.Price = t.Price.Decimal.String()
	k.Quantity = t.Quantity.Decimal.String()
	return k
}

type entry struct {
	key  Key
	seen time.Time
}

// Deduplicator is a time-bounded set of recently seen keys. It is not
// safe for concurrent use; the engine gives each partition its own.
type Deduplicator struct {
	window time.Duration
	seen   map[Key]time.Time
	fifo   []entry
}

// New returns a deduplicator that remembers keys for window, measured on
// the trades' ReceivedAt.
func New(window time.Duration) *Deduplicator {
	return &Deduplicator{
		window: window,
		seen:   make(map[Key]time.Time),
	}
}

// IsDuplicate reports whether t's key was already seen within the window
// and records it if not.
func (d *Deduplicator) IsDuplicate(t market.ValidatedTrade) bool {
	now := t.ReceivedAt
	d.evict(now)

	k := KeyOf(t)
	if at, ok := d.seen[k]; ok && now.Sub(at) <= d.window {
		return true
	}
	d.seen[k] = now
	d.fifo = append(d.fifo, entry{key: k, seen: now})
	return false
}

// evict drops entries older than the window from the head of the FIFO.
func (d *Deduplicator) evict(now time.Time) {
	cutoff := now.Add(-d.window)
	n := 0
	for n < len(d.fifo) && d.fifo[n].seen.Before(cutoff) {
		e := d.fifo[n]
		// a re-insert after expiry leaves a newer timestamp in the map
		if at, ok := d.seen[e.key]; ok && at.Equal(e.seen) {
			delete(d.seen, e.key)
		}
		n++
	}
	if n > 0 {
		d.fifo = append(d.fifo[:0:0], d.fifo[n:]...)
	}
}

// Len is the number of keys currently remembered.
func (d *Deduplicator) Len() int {
	return len(d.seen)
}

// Seen is a remembered key and the ReceivedAt it was recorded at.
type Seen struct {
	Key Key       `json:"key"`
	At  time.Time `json:"at"`
}

// Snapshot returns the remembered keys oldest first.
func (d *Deduplicator) Snapshot() []Seen {
	out := make([]Seen, 0, len(d.fifo))
	for _, e := range d.fifo {
		out = append(out, Seen{Key: e.key, At: e.seen})
	}
	return out
}

// Restore replaces the remembered keys with seen, oldest first.
func (d *Deduplicator) Restore(seen []Seen) {
	d.seen = make(map[Key]time.Time, len(seen))
	d.fifo = make([]entry, 0, len(seen))
	for _, s := range seen {
		d.seen[s.Key] = s.At
		d.fifo = append(d.fifo, entry{key: s.Key, seen: s.At})
	}
}

// Clone returns an independent copy.
func (d *Deduplicator) Clone() *Deduplicator {
	c := &Deduplicator{
		window: d.window,
		seen:   make(map[Key]time.Time, len(d.seen)),
		fifo:   make([]entry, len(d.fifo)),
	}
	for k, v := range d.seen {
		c.seen[k] = v
	}
	copy(c.fifo, d.fifo)
	return c
}
