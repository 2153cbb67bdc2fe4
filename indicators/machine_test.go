package indicators_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/rustyeddy/candlestream/indicators"
	"github.com/rustyeddy/candlestream/internal/mocks"
	"github.com/rustyeddy/candlestream/market"
	"github.com/rustyeddy/candlestream/store"
)

var t0 = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func candleAt(i int, closeV float64) market.Candle {
	start := t0.Add(time.Duration(i) * 5 * time.Minute)
	open := closeV - 0.5
	return market.Candle{
		Symbol: "BTCUSDT", Exchange: "binance", Resolution: market.Resolution5m,
		IntervalStart: start, IntervalEnd: start.Add(5 * time.Minute),
		Open: open, High: closeV + 1, Low: open - 1, Close: closeV,
		Volume: 2, TradeCount: 2, VWAP: closeV - 0.25,
	}
}

func history(n int) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		out[i] = candleAt(i, 100+float64((i*37)%23)-float64(i%4))
	}
	return out
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func feed(t *testing.T, m *indicators.Machine, candles []market.Candle) []market.EnrichedCandle {
	t.Helper()
	var out []market.EnrichedCandle
	for _, c := range candles {
		res, err := m.OnCandleClosed(context.Background(), c)
		require.NoError(t, err)
		require.Len(t, res.Enriched, 1)
		out = append(out, res.Enriched[0])
	}
	return out
}

func TestMachineOneToTwenty(t *testing.T) {
	m := indicators.NewMachine(store.NewMemory(0), indicators.DefaultParams(), 3, nil)

	var candles []market.Candle
	for i := 0; i < 20; i++ {
		c := candleAt(i, float64(i+1))
		c.Open, c.Low, c.High = c.Close, c.Close, c.Close
		candles = append(candles, c)
	}
	out := feed(t, m, candles)

	last := out[19]
	require.NotNil(t, last.SMA20)
	assert.InDelta(t, 10.5, *last.SMA20, 1e-12)
	assert.InDelta(t, 10.5, *last.BBMiddle, 1e-12)
	assert.InDelta(t, 5.766, *last.BBStd, 1e-3)
	assert.Nil(t, out[18].SMA20)
}

func TestMachineMatchesDirectComputation(t *testing.T) {
	p := indicators.DefaultParams()
	m := indicators.NewMachine(store.NewMemory(0), p, 3, nil)
	candles := history(60)

	got := feed(t, m, candles)
	want, _ := indicators.Replay(indicators.NewState(p), candles, p)
	assert.Equal(t, mustJSON(t, want), mustJSON(t, got))
}

func TestMachineSequenceError(t *testing.T) {
	m := indicators.NewMachine(store.NewMemory(0), indicators.DefaultParams(), 3, nil)
	candles := history(6)
	feed(t, m, candles)

	_, err := m.OnCandleClosed(context.Background(), candles[3])
	var seqErr *indicators.SequenceError
	require.True(t, errors.As(err, &seqErr))
	assert.True(t, seqErr.Got.Equal(candles[3].IntervalStart))
	assert.True(t, seqErr.Last.Equal(candles[5].IntervalStart))
	assert.Contains(t, err.Error(), "binance:BTCUSDT:5m")
}

func TestMachineIdempotentResubmission(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory(0)
	m := indicators.NewMachine(st, indicators.DefaultParams(), 3, nil)
	candles := history(30)
	out := feed(t, m, candles)

	key := candles[0].Key()
	before, err := st.GetState(ctx, key)
	require.NoError(t, err)

	res, err := m.OnCandleClosed(ctx, candles[29])
	require.NoError(t, err)
	assert.True(t, res.Unchanged)
	require.Len(t, res.Enriched, 1)
	assert.Equal(t, mustJSON(t, out[29]), mustJSON(t, res.Enriched[0]))

	after, err := st.GetState(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version, "no write on resubmission")

	// resubmitting an older unchanged candle through Correct is also a no-op
	res, err = m.Correct(ctx, candles[20])
	require.NoError(t, err)
	assert.True(t, res.Unchanged)
	assert.Equal(t, mustJSON(t, out[20]), mustJSON(t, res.Enriched[0]))
}

func TestMachineApplied(t *testing.T) {
	ctx := context.Background()
	m := indicators.NewMachine(store.NewMemory(0), indicators.DefaultParams(), 3, nil)
	candles := history(10)
	out := feed(t, m, candles)

	res, ok, err := m.Applied(ctx, candles[4])
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, res.Unchanged)
	assert.Equal(t, mustJSON(t, out[4]), mustJSON(t, res.Enriched[0]))

	changed := candles[4]
	changed.Close += 1
	_, ok, err = m.Applied(ctx, changed)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = m.Applied(ctx, candleAt(40, 1))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMachineStored(t *testing.T) {
	ctx := context.Background()
	m := indicators.NewMachine(store.NewMemory(0), indicators.DefaultParams(), 3, nil)
	candles := history(6)
	feed(t, m, candles)

	partial := candles[2]
	partial.Volume = 1
	got, ok, err := m.Stored(ctx, partial)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Equal(candles[2]))

	gap := candleAt(2, 1)
	gap.IntervalStart = gap.IntervalStart.Add(time.Minute)
	_, ok, err = m.Stored(ctx, gap)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = m.Stored(ctx, candleAt(40, 1))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMachineRollbackReplay(t *testing.T) {
	ctx := context.Background()
	p := indicators.DefaultParams()
	st := store.NewMemory(0)
	m := indicators.NewMachine(st, p, 3, nil)

	candles := history(40)
	feed(t, m, candles)

	for _, k := range []int{1, 5, 12, 39} {
		t.Run("", func(t *testing.T) {
			pos := len(candles) - k
			corrected := candles[pos]
			corrected.Close += 7.25
			corrected.High += 7.25
			corrected.TradeCount++

			res, err := m.Correct(ctx, corrected)
			require.NoError(t, err)
			assert.False(t, res.Unchanged)
			assert.Equal(t, k, res.Replayed)
			require.Len(t, res.Enriched, k)

			candles[pos] = corrected
			want, cps := indicators.Replay(indicators.NewState(p), candles, p)
			assert.Equal(t, mustJSON(t, want[pos:]), mustJSON(t, res.Enriched))

			head, err := st.GetState(ctx, corrected.Key())
			require.NoError(t, err)
			wantHead := cps[len(cps)-1].State
			wantHead.Version = head.Version
			assert.Equal(t, mustJSON(t, wantHead), mustJSON(t, *head))
		})
	}

	// the series keeps advancing from the corrected head
	next := candleAt(40, 111)
	res, err := m.OnCandleClosed(ctx, next)
	require.NoError(t, err)
	want, _ := indicators.Replay(indicators.NewState(p), append(candles, next), p)
	assert.Equal(t, mustJSON(t, want[40]), mustJSON(t, res.Enriched[0]))
}

func TestMachineCorrectionOfHeadViaOnCandleClosed(t *testing.T) {
	p := indicators.DefaultParams()
	m := indicators.NewMachine(store.NewMemory(0), p, 3, nil)
	candles := history(10)
	feed(t, m, candles)

	changed := candles[9]
	changed.Close = changed.High
	res, err := m.OnCandleClosed(context.Background(), changed)
	require.NoError(t, err)
	assert.False(t, res.Unchanged)
	assert.Equal(t, 1, res.Replayed)

	candles[9] = changed
	want, _ := indicators.Replay(indicators.NewState(p), candles, p)
	assert.Equal(t, mustJSON(t, want[9]), mustJSON(t, res.Enriched[0]))
}

func TestMachineInsertsGapInterval(t *testing.T) {
	p := indicators.DefaultParams()
	m := indicators.NewMachine(store.NewMemory(0), p, 3, nil)
	candles := history(8)

	feed(t, m, append(append([]market.Candle{}, candles[:3]...), candles[4:]...))

	res, err := m.Correct(context.Background(), candles[3])
	require.NoError(t, err)
	assert.Equal(t, 5, res.Replayed)

	want, _ := indicators.Replay(indicators.NewState(p), candles, p)
	assert.Equal(t, mustJSON(t, want[3:]), mustJSON(t, res.Enriched))
}

func TestMachineCheckpointMissing(t *testing.T) {
	m := indicators.NewMachine(store.NewMemory(3), indicators.DefaultParams(), 3, nil)
	candles := history(10)
	feed(t, m, candles)

	c := candles[2]
	c.Close = c.High
	_, err := m.Correct(context.Background(), c)
	assert.ErrorIs(t, err, indicators.ErrCheckpointMissing)
}

func TestMachineStateConflict(t *testing.T) {
	ctrl := gomock.NewController(t)
	ms := mocks.NewMockStateStore(ctrl)

	c := candleAt(0, 100)
	ms.EXPECT().GetState(gomock.Any(), c.Key()).Return(nil, nil).Times(3)
	ms.EXPECT().PutState(gomock.Any(), c.Key(), gomock.Any(), int64(0)).Return(false, nil).Times(3)

	m := indicators.NewMachine(ms, indicators.DefaultParams(), 2, nil)
	_, err := m.OnCandleClosed(context.Background(), c)
	assert.ErrorIs(t, err, indicators.ErrStateConflict)
}

func TestMachineConflictReloads(t *testing.T) {
	ctrl := gomock.NewController(t)
	ms := mocks.NewMockStateStore(ctrl)
	p := indicators.DefaultParams()

	c0, c1 := candleAt(0, 100), candleAt(1, 101)
	_, cps := indicators.Replay(indicators.NewState(p), []market.Candle{c0}, p)
	winner := cps[0].State
	winner.Version = 1

	gomock.InOrder(
		ms.EXPECT().GetState(gomock.Any(), c1.Key()).Return(nil, nil),
		ms.EXPECT().PutState(gomock.Any(), c1.Key(), gomock.Any(), int64(0)).Return(false, nil),
		ms.EXPECT().GetState(gomock.Any(), c1.Key()).Return(&winner, nil),
		ms.EXPECT().PutState(gomock.Any(), c1.Key(), gomock.Any(), int64(1)).
			DoAndReturn(func(_ context.Context, _ market.SeriesKey, cp indicators.Checkpoint, _ int64) (bool, error) {
				assert.Equal(t, int64(2), cp.State.Version)
				assert.Equal(t, int64(2), cp.State.Count)
				return true, nil
			}),
	)

	m := indicators.NewMachine(ms, p, 3, nil)
	res, err := m.OnCandleClosed(context.Background(), c1)
	require.NoError(t, err)
	require.Len(t, res.Enriched, 1)
}

func TestMachineStoreError(t *testing.T) {
	ctrl := gomock.NewController(t)
	ms := mocks.NewMockStateStore(ctrl)
	boom := errors.New("boom")

	c := candleAt(0, 100)
	ms.EXPECT().GetState(gomock.Any(), c.Key()).Return(nil, boom)

	m := indicators.NewMachine(ms, indicators.DefaultParams(), 3, nil)
	_, err := m.OnCandleClosed(context.Background(), c)
	assert.ErrorIs(t, err, boom)
}
