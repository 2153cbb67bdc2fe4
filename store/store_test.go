package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/candlestream/indicators"
	"github.com/rustyeddy/candlestream/market"
)

var (
	t0  = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	key = market.SeriesKey{Exchange: "binance", Symbol: "BTCUSDT", Resolution: market.Resolution5m}
)

func candleAt(i int, closeV float64) market.Candle {
	start := t0.Add(time.Duration(i) * 5 * time.Minute)
	return market.Candle{
		Symbol: key.Symbol, Exchange: key.Exchange, Resolution: key.Resolution,
		IntervalStart: start, IntervalEnd: start.Add(5 * time.Minute),
		Open: closeV, High: closeV, Low: closeV, Close: closeV, Volume: 1, TradeCount: 1, VWAP: closeV,
	}
}

func checkpoints(n int) []indicators.Checkpoint {
	p := indicators.DefaultParams()
	candles := make([]market.Candle, n)
	for i := range candles {
		candles[i] = candleAt(i, float64(i+1))
	}
	_, cps := indicators.Replay(indicators.NewState(p), candles, p)
	return cps
}

type backend interface {
	indicators.StateStore
	LoadSnapshot(ctx context.Context, p market.PartitionKey) ([]byte, bool, error)
	SaveSnapshot(ctx context.Context, p market.PartitionKey, data []byte) error
}

// runStateStoreTests exercises the StateStore contract and partition
// snapshots against any backend.
func runStateStoreTests(t *testing.T, newStore func(t *testing.T, retention int) backend) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		s := newStore(t, 10)
		st, err := s.GetState(ctx, key)
		require.NoError(t, err)
		assert.Nil(t, st)

		cp, err := s.CheckpointBefore(ctx, key, t0)
		require.NoError(t, err)
		assert.Nil(t, cp)
	})

	t.Run("put and version conflict", func(t *testing.T) {
		s := newStore(t, 10)
		cps := checkpoints(3)

		ok, err := s.PutState(ctx, key, cps[0], 0)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.PutState(ctx, key, cps[1], 0)
		require.NoError(t, err)
		assert.False(t, ok, "stale version must lose")

		ok, err = s.PutState(ctx, key, cps[1], 1)
		require.NoError(t, err)
		assert.True(t, ok)

		st, err := s.GetState(ctx, key)
		require.NoError(t, err)
		require.NotNil(t, st)
		assert.Equal(t, int64(2), st.Version)
		assert.Equal(t, int64(2), st.Count)
		assert.True(t, st.LastIntervalStart.Equal(cps[1].Candle.IntervalStart))
		assert.Equal(t, cps[1].State.Closes.Values, st.Closes.Values)
	})

	t.Run("checkpoint lookups", func(t *testing.T) {
		s := newStore(t, 10)
		cps := checkpoints(4)
		for i, cp := range cps {
			ok, err := s.PutState(ctx, key, cp, int64(i))
			require.NoError(t, err)
			require.True(t, ok)
		}

		before, err := s.CheckpointBefore(ctx, key, cps[2].Candle.IntervalStart)
		require.NoError(t, err)
		require.NotNil(t, before)
		assert.True(t, before.Candle.Equal(cps[1].Candle))

		from, err := s.CheckpointsFrom(ctx, key, cps[2].Candle.IntervalStart)
		require.NoError(t, err)
		require.Len(t, from, 2)
		assert.True(t, from[0].Candle.Equal(cps[2].Candle))
		assert.True(t, from[1].Candle.Equal(cps[3].Candle))
	})

	t.Run("replace from", func(t *testing.T) {
		s := newStore(t, 10)
		cps := checkpoints(4)
		for i, cp := range cps {
			ok, err := s.PutState(ctx, key, cp, int64(i))
			require.NoError(t, err)
			require.True(t, ok)
		}

		p := indicators.DefaultParams()
		replaced := []market.Candle{candleAt(2, 30), candleAt(3, 40)}
		_, newCps := indicators.Replay(cps[1].State, replaced, p)

		ok, err := s.ReplaceFrom(ctx, key, replaced[0].IntervalStart, newCps, 3)
		require.NoError(t, err)
		assert.False(t, ok, "stale version must lose")

		ok, err = s.ReplaceFrom(ctx, key, replaced[0].IntervalStart, newCps, 4)
		require.NoError(t, err)
		assert.True(t, ok)

		st, err := s.GetState(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, int64(5), st.Version)
		assert.Equal(t, []float64{1, 2, 30, 40}, st.Closes.Values)

		from, err := s.CheckpointsFrom(ctx, key, t0)
		require.NoError(t, err)
		assert.Len(t, from, 4)
	})

	t.Run("retention", func(t *testing.T) {
		s := newStore(t, 3)
		for i, cp := range checkpoints(6) {
			ok, err := s.PutState(ctx, key, cp, int64(i))
			require.NoError(t, err)
			require.True(t, ok)
		}
		from, err := s.CheckpointsFrom(ctx, key, t0)
		require.NoError(t, err)
		require.Len(t, from, 3)
		assert.Equal(t, 4.0, from[0].Candle.Close)
	})

	t.Run("concurrent writers keep state and version paired", func(t *testing.T) {
		s := newStore(t, 100)
		p := indicators.DefaultParams()
		const writers, each = 4, 5

		var g errgroup.Group
		for w := 0; w < writers; w++ {
			g.Go(func() error {
				for done := 0; done < each; {
					st, err := s.GetState(ctx, key)
					if err != nil {
						return err
					}
					base, version, i := indicators.NewState(p), int64(0), 0
					if st != nil {
						base, version = *st, st.Version
						i = int(st.LastIntervalStart.Sub(t0)/(5*time.Minute)) + 1
					}
					c := candleAt(i, float64(i+1))
					_, next := indicators.Apply(base, c, p)
					ok, err := s.PutState(ctx, key, indicators.Checkpoint{Candle: c, State: next}, version)
					if err != nil {
						return err
					}
					if ok {
						done++
					}
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())

		st, err := s.GetState(ctx, key)
		require.NoError(t, err)
		require.NotNil(t, st)
		assert.Equal(t, int64(writers*each), st.Version)
		assert.Equal(t, st.Version, st.Count, "every write built on the state of its version")
	})

	t.Run("partition snapshots", func(t *testing.T) {
		s := newStore(t, 10)
		part := key.Partition()

		_, ok, err := s.LoadSnapshot(ctx, part)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.SaveSnapshot(ctx, part, []byte(`{"builder":{}}`)))
		data, ok, err := s.LoadSnapshot(ctx, part)
		require.NoError(t, err)
		require.True(t, ok)
		assert.JSONEq(t, `{"builder":{}}`, string(data))

		require.NoError(t, s.SaveSnapshot(ctx, part, []byte(`{}`)))
		data, ok, err = s.LoadSnapshot(ctx, part)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "{}", string(data), "save replaces")

		_, ok, err = s.LoadSnapshot(ctx, market.PartitionKey{Exchange: "kraken", Symbol: "XBT/USD"})
		require.NoError(t, err)
		assert.False(t, ok, "snapshots are per partition")
	})
}

func TestMemoryStore(t *testing.T) {
	runStateStoreTests(t, func(t *testing.T, retention int) backend {
		return NewMemory(retention)
	})
}

func TestSQLiteStore(t *testing.T) {
	runStateStoreTests(t, func(t *testing.T, retention int) backend {
		s, err := NewSQLite(filepath.Join(t.TempDir(), "state.db"), retention)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("CANDLESTREAM_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CANDLESTREAM_TEST_REDIS_ADDR not set")
	}

	runStateStoreTests(t, func(t *testing.T, retention int) backend {
		prefix := "test:" + t.Name() + ":" + time.Now().Format("150405.000000000") + ":"
		s, err := NewRedis(context.Background(), RedisConfig{Addr: addr, Prefix: prefix}, retention)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestMemoryStoreIsolatesCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(0)
	cps := checkpoints(1)

	ok, err := s.PutState(ctx, key, cps[0], 0)
	require.NoError(t, err)
	require.True(t, ok)

	st, err := s.GetState(ctx, key)
	require.NoError(t, err)
	st.Closes.Values[0] = 999

	again, err := s.GetState(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 1.0, again.Closes.Values[0])
	assert.Equal(t, []market.SeriesKey{key}, s.Keys())
}
