// Package candles folds validated trades into fixed-resolution OHLCV
// candles, one independent series per (exchange, symbol, resolution).
package candles

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rustyeddy/candlestream/market"
)

var (
	// ErrLateTrade is returned for a trade whose interval closed longer
	// than the grace period ago. The trade is dropped and should be
	// counted as a quality penalty.
	ErrLateTrade = errors.New("trade later than grace period")

	// ErrInvalidTrade is returned when a rejected trade reaches the builder.
	ErrInvalidTrade = errors.New("trade failed validation")
)

// Config controls when candles close and how long they stay correctable.
type Config struct {
	// GracePeriod is how far behind the series watermark a closed candle
	// still accepts late trades.
	GracePeriod time.Duration
	// FlushDelay is how long past interval_end Flush waits before closing
	// a candle that no later trade has closed.
	FlushDelay time.Duration
}

func DefaultConfig() Config {
	return Config{GracePeriod: 5 * time.Minute, FlushDelay: 5 * time.Second}
}

// Event is a candle leaving the builder. Corrected marks a candle that was
// already emitted as closed and has been recomputed by a late trade, or a
// late first emission for an interval older than the series head.
type Event struct {
	Candle    market.Candle
	Corrected bool
}

type bucket struct {
	c       market.Candle
	openAt  time.Time
	closeAt time.Time
}

func newBucket(key market.SeriesKey, t market.ValidatedTrade, price, qty float64) *bucket {
	start, end := key.Resolution.Bounds(t.TradeTimestamp)
	return &bucket{
		c: market.Candle{
			Symbol:        key.Symbol,
			Exchange:      key.Exchange,
			Resolution:    key.Resolution,
			IntervalStart: start,
			IntervalEnd:   end,
			Open:          price,
			High:          price,
			Low:           price,
			Close:         price,
			Volume:        qty,
			TradeCount:    1,
			VWAP:          price,
		},
		openAt:  t.TradeTimestamp,
		closeAt: t.TradeTimestamp,
	}
}

func (b *bucket) add(ts time.Time, price, qty float64) {
	c := &b.c
	if price > c.High {
		c.High = price
	}
	if price < c.Low {
		c.Low = price
	}
	// equal timestamps: first arrival keeps open, last arrival takes close
	if ts.Before(b.openAt) {
		c.Open = price
		b.openAt = ts
	}
	if !ts.Before(b.closeAt) {
		c.Close = price
		b.closeAt = ts
	}

	prev := c.Volume
	c.Volume = prev + qty
	if c.Volume == 0 {
		c.VWAP = price
	} else {
		c.VWAP = (c.VWAP*prev + price*qty) / c.Volume
	}
	c.TradeCount++
}

func (b *bucket) clone() *bucket {
	cp := *b
	return &cp
}

type series struct {
	key       market.SeriesKey
	open      *bucket
	closed    map[int64]*bucket
	head      time.Time // newest interval_start ever opened
	watermark time.Time
}

func (s *series) clone() *series {
	c := &series{
		key:       s.key,
		closed:    make(map[int64]*bucket, len(s.closed)),
		head:      s.head,
		watermark: s.watermark,
	}
	if s.open != nil {
		c.open = s.open.clone()
	}
	for k, b := range s.closed {
		c.closed[k] = b.clone()
	}
	return c
}

type pendingKey struct {
	series string
	start  int64
}

// Builder holds the open and recently closed candles of any number of
// series. It is not safe for concurrent use; the engine owns one builder
// per partition.
type Builder struct {
	cfg     Config
	series  map[market.SeriesKey]*series
	pending map[pendingKey]*Event
}

func NewBuilder(cfg Config) *Builder {
	return &Builder{
		cfg:     cfg,
		series:  make(map[market.SeriesKey]*series),
		pending: make(map[pendingKey]*Event),
	}
}

// Ingest folds t into the res candle of its series and returns that
// candle's state after the update. Candles closed as a side effect are
// queued and returned by Drain or Flush.
func (b *Builder) Ingest(t market.ValidatedTrade, res market.Resolution) (market.Candle, error) {
	if !t.IsValid {
		return market.Candle{}, ErrInvalidTrade
	}
	if !res.Valid() {
		return market.Candle{}, fmt.Errorf("ingest: unsupported resolution %q", res)
	}

	key := t.Partition().Series(res)
	s, ok := b.series[key]
	if !ok {
		s = &series{key: key, closed: make(map[int64]*bucket)}
		b.series[key] = s
	}

	price, qty := t.PriceFloat(), t.QuantityFloat()
	ts := t.TradeTimestamp
	start := res.Floor(ts)

	switch {
	case s.open != nil && start.Equal(s.open.c.IntervalStart):
		s.open.add(ts, price, qty)
		b.advance(s, ts)
		return s.open.c, nil

	case s.head.IsZero() || start.After(s.head):
		if s.open != nil {
			b.close(s)
		}
		s.open = newBucket(key, t, price, qty)
		s.head = start
		b.advance(s, ts)
		return s.open.c, nil
	}

	// start is at or before the newest interval and is not the open candle
	end := start.Add(res.Duration())
	if !end.Add(b.cfg.GracePeriod).After(s.watermark) {
		return market.Candle{}, fmt.Errorf("%w: %s at %s", ErrLateTrade, key, ts.Format(time.RFC3339Nano))
	}

	b.advance(s, ts)

	if cb, ok := s.closed[start.Unix()]; ok {
		cb.add(ts, price, qty)
		b.emit(key, cb.c, true)
		return cb.c, nil
	}

	// a gap interval that was never opened
	cb := newBucket(key, t, price, qty)
	s.closed[start.Unix()] = cb
	b.emit(key, cb.c, true)
	return cb.c, nil
}

// advance moves the watermark and forgets closed candles that fell out
// of the grace period.
func (b *Builder) advance(s *series, ts time.Time) {
	if !ts.After(s.watermark) {
		return
	}
	s.watermark = ts
	for k, cb := range s.closed {
		if !cb.c.IntervalEnd.Add(b.cfg.GracePeriod).After(s.watermark) {
			delete(s.closed, k)
		}
	}
}

func (b *Builder) close(s *series) {
	cb := s.open
	s.open = nil
	s.closed[cb.c.IntervalStart.Unix()] = cb
	b.emit(s.key, cb.c, false)
}

func (b *Builder) emit(key market.SeriesKey, c market.Candle, corrected bool) {
	pk := pendingKey{series: key.String(), start: c.IntervalStart.Unix()}
	if ev, ok := b.pending[pk]; ok {
		// not yet handed out, so the first emission still stands
		ev.Candle = c
		return
	}
	b.pending[pk] = &Event{Candle: c, Corrected: corrected}
}

// Drain returns queued events ordered by series then interval_start and
// clears the queue.
func (b *Builder) Drain() []Event {
	if len(b.pending) == 0 {
		return nil
	}
	keys := make([]pendingKey, 0, len(b.pending))
	for k := range b.pending {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].series != keys[j].series {
			return keys[i].series < keys[j].series
		}
		return keys[i].start < keys[j].start
	})

	out := make([]Event, 0, len(keys))
	for _, k := range keys {
		out = append(out, *b.pending[k])
	}
	b.pending = make(map[pendingKey]*Event)
	return out
}

// Flush closes every open candle with interval_end + FlushDelay <= now
// and returns all queued events.
func (b *Builder) Flush(now time.Time) []Event {
	for _, s := range b.series {
		if s.open == nil {
			continue
		}
		if !s.open.c.IntervalEnd.Add(b.cfg.FlushDelay).After(now) {
			b.close(s)
		}
	}
	return b.Drain()
}

// Current returns the open candle of key, if any.
func (b *Builder) Current(key market.SeriesKey) (market.Candle, bool) {
	s, ok := b.series[key]
	if !ok || s.open == nil {
		return market.Candle{}, false
	}
	return s.open.c, true
}

// OpenCandles returns all open candles.
func (b *Builder) OpenCandles() []market.Candle {
	var out []market.Candle
	for _, s := range b.series {
		if s.open != nil {
			out = append(out, s.open.c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key().String() < out[j].Key().String()
	})
	return out
}

// Clone returns an independent deep copy.
func (b *Builder) Clone() *Builder {
	c := &Builder{
		cfg:     b.cfg,
		series:  make(map[market.SeriesKey]*series, len(b.series)),
		pending: make(map[pendingKey]*Event, len(b.pending)),
	}
	for k, s := range b.series {
		c.series[k] = s.clone()
	}
	for k, ev := range b.pending {
		cp := *ev
		c.pending[k] = &cp
	}
	return c
}
