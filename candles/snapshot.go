package candles

import (
	"fmt"
	"sort"
	"time"

	"github.com/rustyeddy/candlestream/market"
)

// Snapshot is the persistent form of a Builder: for every series its open
// candle, the closed candles still inside the grace period, the newest
// interval opened and the watermark. Restoring it after a restart lets
// trades extend the candles they belong to instead of starting empty
// ones.
type Snapshot struct {
	Series []SeriesSnapshot `json:"series"`
}

type SeriesSnapshot struct {
	Key       string           `json:"key"`
	Open      *BucketSnapshot  `json:"open,omitempty"`
	Closed    []BucketSnapshot `json:"closed,omitempty"`
	Head      time.Time        `json:"head"`
	Watermark time.Time        `json:"watermark"`
}

type BucketSnapshot struct {
	Candle  market.Candle `json:"candle"`
	OpenAt  time.Time     `json:"open_at"`
	CloseAt time.Time     `json:"close_at"`
}

func (b *bucket) snapshot() BucketSnapshot {
	return BucketSnapshot{Candle: b.c, OpenAt: b.openAt, CloseAt: b.closeAt}
}

func restoreBucket(bs BucketSnapshot) *bucket {
	return &bucket{c: bs.Candle, openAt: bs.OpenAt, closeAt: bs.CloseAt}
}

// Snapshot captures the series state. Queued events are not part of it;
// take snapshots after Flush or Drain.
func (b *Builder) Snapshot() Snapshot {
	keys := make([]market.SeriesKey, 0, len(b.series))
	for k := range b.series {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	out := Snapshot{Series: make([]SeriesSnapshot, 0, len(keys))}
	for _, k := range keys {
		s := b.series[k]
		ss := SeriesSnapshot{Key: k.String(), Head: s.head, Watermark: s.watermark}
		if s.open != nil {
			bs := s.open.snapshot()
			ss.Open = &bs
		}
		starts := make([]int64, 0, len(s.closed))
		for start := range s.closed {
			starts = append(starts, start)
		}
		sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })
		for _, start := range starts {
			ss.Closed = append(ss.Closed, s.closed[start].snapshot())
		}
		out.Series = append(out.Series, ss)
	}
	return out
}

// Restore replaces the series state with snap and clears queued events.
func (b *Builder) Restore(snap Snapshot) error {
	restored := make(map[market.SeriesKey]*series, len(snap.Series))
	for _, ss := range snap.Series {
		key, err := market.ParseSeriesKey(ss.Key)
		if err != nil {
			return fmt.Errorf("restore: %w", err)
		}
		s := &series{
			key:       key,
			closed:    make(map[int64]*bucket, len(ss.Closed)),
			head:      ss.Head,
			watermark: ss.Watermark,
		}
		if ss.Open != nil {
			s.open = restoreBucket(*ss.Open)
		}
		for _, bs := range ss.Closed {
			s.closed[bs.Candle.IntervalStart.Unix()] = restoreBucket(bs)
		}
		restored[key] = s
	}
	b.series = restored
	b.pending = make(map[pendingKey]*Event)
	return nil
}
