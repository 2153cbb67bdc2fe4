package indicators

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rustyeddy/candlestream/market"
)

// Result is the outcome of handing a closed candle to the Machine.
type Result struct {
	// Enriched holds the candles to upsert: one for a normal close, the
	// corrected candle and every later one after a rollback.
	Enriched []market.EnrichedCandle
	// Unchanged is set when the candle was already applied as is. Enriched
	// then holds the recomputed row, which is identical to the stored one,
	// and nothing was written.
	Unchanged bool
	// Replayed counts candles recomputed after a rollback.
	Replayed int
}

// Machine drives per-series indicator state through a StateStore.
// It holds no per-series state itself, so any number of machines may
// share one store.
type Machine struct {
	store   StateStore
	params  Params
	retries int
	log     *zap.Logger
}

func NewMachine(store StateStore, params Params, conflictRetries int, log *zap.Logger) *Machine {
	if log == nil {
		log = zap.NewNop()
	}
	if conflictRetries < 0 {
		conflictRetries = 0
	}
	return &Machine{store: store, params: params, retries: conflictRetries, log: log}
}

func (m *Machine) Params() Params { return m.params }

// OnCandleClosed applies c to its series. Candles must arrive in
// interval order; an older one fails with *SequenceError. A candle for the
// last applied interval is either a no-op resubmission or a correction.
func (m *Machine) OnCandleClosed(ctx context.Context, c market.Candle) (Result, error) {
	key := c.Key()
	for attempt := 0; attempt <= m.retries; attempt++ {
		st, err := m.store.GetState(ctx, key)
		if err != nil {
			return Result{}, fmt.Errorf("get state %s: %w", key, err)
		}

		if st != nil && st.Count > 0 {
			switch {
			case c.IntervalStart.Before(st.LastIntervalStart):
				return Result{}, &SequenceError{Key: key, Got: c.IntervalStart, Last: st.LastIntervalStart}
			case c.IntervalStart.Equal(st.LastIntervalStart):
				return m.Correct(ctx, c)
			}
		}

		base, version := NewState(m.params), int64(0)
		if st != nil {
			base, version = *st, st.Version
		}

		enriched, next := Apply(base, c, m.params)
		next.Version = version + 1
		ok, err := m.store.PutState(ctx, key, Checkpoint{Candle: c, State: next}, version)
		if err != nil {
			return Result{}, fmt.Errorf("put state %s: %w", key, err)
		}
		if ok {
			return Result{Enriched: []market.EnrichedCandle{enriched}}, nil
		}
		m.log.Debug("state conflict, reloading",
			zap.String("series", key.String()),
			zap.Int("attempt", attempt+1))
	}
	return Result{}, fmt.Errorf("%s: %w", key, ErrStateConflict)
}

// Correct replaces or inserts the candle for an interval that was already
// passed. State is rolled back to the checkpoint before c, the corrected
// history is replayed and swapped in with one ReplaceFrom. A candle newer
// than the head is simply applied.
func (m *Machine) Correct(ctx context.Context, c market.Candle) (Result, error) {
	key := c.Key()
	for attempt := 0; attempt <= m.retries; attempt++ {
		st, err := m.store.GetState(ctx, key)
		if err != nil {
			return Result{}, fmt.Errorf("get state %s: %w", key, err)
		}
		if st == nil || st.Count == 0 || c.IntervalStart.After(st.LastIntervalStart) {
			return m.OnCandleClosed(ctx, c)
		}

		res, ok, err := m.correct(ctx, key, *st, c)
		if err != nil || ok {
			return res, err
		}
		m.log.Debug("state conflict during correction, reloading",
			zap.String("series", key.String()),
			zap.Int("attempt", attempt+1))
	}
	return Result{}, fmt.Errorf("%s: %w", key, ErrStateConflict)
}

func (m *Machine) correct(ctx context.Context, key market.SeriesKey, head State, c market.Candle) (Result, bool, error) {
	prior, err := m.store.CheckpointBefore(ctx, key, c.IntervalStart)
	if err != nil {
		return Result{}, false, fmt.Errorf("checkpoint before %s: %w", key, err)
	}
	later, err := m.store.CheckpointsFrom(ctx, key, c.IntervalStart)
	if err != nil {
		return Result{}, false, fmt.Errorf("checkpoints from %s: %w", key, err)
	}

	base := NewState(m.params)
	if prior != nil {
		base = prior.State.Clone()
	} else if len(later) == 0 || later[0].State.Count != 1 {
		// history before c was trimmed away
		return Result{}, false, fmt.Errorf("%s at %s: %w", key, c.IntervalStart, ErrCheckpointMissing)
	}

	candles := make([]market.Candle, 0, len(later)+1)
	candles = append(candles, c)
	replacing := len(later) > 0 && later[0].Candle.IntervalStart.Equal(c.IntervalStart)
	unchanged := replacing && later[0].Candle.Equal(c)
	if replacing {
		later = later[1:]
	}
	for _, cp := range later {
		candles = append(candles, cp.Candle)
	}

	if unchanged {
		e, _ := Apply(base, c, m.params)
		return Result{Enriched: []market.EnrichedCandle{e}, Unchanged: true}, true, nil
	}

	enriched, cps := Replay(base, candles, m.params)

	version := head.Version + 1
	for i := range cps {
		cps[i].State.Version = version
	}
	ok, err := m.store.ReplaceFrom(ctx, key, c.IntervalStart, cps, head.Version)
	if err != nil {
		return Result{}, false, fmt.Errorf("replace from %s: %w", key, err)
	}
	if !ok {
		return Result{}, false, nil
	}

	m.log.Info("series corrected",
		zap.String("series", key.String()),
		zap.Time("interval_start", c.IntervalStart),
		zap.Int("replayed", len(cps)))
	return Result{Enriched: enriched, Replayed: len(cps)}, true, nil
}

// Applied reports whether c is already in its series exactly as given.
// If so, the result carries its recomputed row. Nothing is written.
// Redelivered candles older than the head are detected this way before
// any sequence policy applies.
func (m *Machine) Applied(ctx context.Context, c market.Candle) (Result, bool, error) {
	key := c.Key()
	later, err := m.store.CheckpointsFrom(ctx, key, c.IntervalStart)
	if err != nil {
		return Result{}, false, fmt.Errorf("checkpoints from %s: %w", key, err)
	}
	if len(later) == 0 || !later[0].Candle.Equal(c) {
		return Result{}, false, nil
	}

	base := NewState(m.params)
	if later[0].State.Count > 1 {
		prior, err := m.store.CheckpointBefore(ctx, key, c.IntervalStart)
		if err != nil {
			return Result{}, false, fmt.Errorf("checkpoint before %s: %w", key, err)
		}
		if prior == nil {
			// applied, but the state it was applied to is gone
			return Result{Unchanged: true}, true, nil
		}
		base = prior.State.Clone()
	}
	e, _ := Apply(base, c, m.params)
	return Result{Enriched: []market.EnrichedCandle{e}, Unchanged: true}, true, nil
}

// Stored returns the candle held in the series for the interval of c.
func (m *Machine) Stored(ctx context.Context, c market.Candle) (market.Candle, bool, error) {
	key := c.Key()
	later, err := m.store.CheckpointsFrom(ctx, key, c.IntervalStart)
	if err != nil {
		return market.Candle{}, false, fmt.Errorf("checkpoints from %s: %w", key, err)
	}
	if len(later) == 0 || !later[0].Candle.IntervalStart.Equal(c.IntervalStart) {
		return market.Candle{}, false, nil
	}
	return later[0].Candle, true, nil
}
