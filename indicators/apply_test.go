package indicators

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/candlestream/market"
)

var t0 = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func candle(i int, open, closeV float64) market.Candle {
	start := t0.Add(time.Duration(i) * 5 * time.Minute)
	hi, lo := math.Max(open, closeV), math.Min(open, closeV)
	return market.Candle{
		Symbol: "BTCUSDT", Exchange: "binance", Resolution: market.Resolution5m,
		IntervalStart: start, IntervalEnd: start.Add(5 * time.Minute),
		Open: open, High: hi, Low: lo, Close: closeV, Volume: 1, TradeCount: 1, VWAP: closeV,
	}
}

func series(closes ...float64) []market.Candle {
	out := make([]market.Candle, len(closes))
	for i, c := range closes {
		out[i] = candle(i, c, c)
	}
	return out
}

func oneToN(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i + 1)
	}
	return out
}

func TestApplyOneToTwenty(t *testing.T) {
	p := DefaultParams()
	enriched, _ := Replay(NewState(p), series(oneToN(20)...), p)
	last := enriched[19]

	require.NotNil(t, last.SMA20)
	assert.InDelta(t, 10.5, *last.SMA20, 1e-12)
	require.NotNil(t, last.BBMiddle)
	assert.InDelta(t, 10.5, *last.BBMiddle, 1e-12)
	require.NotNil(t, last.BBStd)
	assert.InDelta(t, math.Sqrt(399.0/12.0), *last.BBStd, 1e-12)
	assert.InDelta(t, 5.766, *last.BBStd, 1e-3)
	assert.InDelta(t, 10.5+2*(*last.BBStd), *last.BBUpper, 1e-12)
	assert.InDelta(t, 10.5-2*(*last.BBStd), *last.BBLower, 1e-12)

	assert.InDelta(t, 18.0, *last.SMA5, 1e-12)
	assert.InDelta(t, 15.5, *last.SMA10, 1e-12)

	// price change against the open of the oldest candle in the window
	assert.InDelta(t, 19.0, *last.PriceChange, 1e-12)
	assert.InDelta(t, 1900.0, *last.PriceChangePercentage, 1e-9)

	assert.NotNil(t, last.Volatility)
	assert.NotNil(t, last.EMA12)
	assert.Nil(t, last.EMA26)
	assert.Nil(t, last.MACD)
	require.NotNil(t, last.RSI)
	assert.Equal(t, 100.0, *last.RSI)
}

func TestApplyWarmupNulls(t *testing.T) {
	p := DefaultParams()
	enriched, _ := Replay(NewState(p), series(oneToN(40)...), p)

	for i, e := range enriched {
		n := i + 1
		assert.Equal(t, n >= 5, e.SMA5 != nil, "sma5 at %d", n)
		assert.Equal(t, n >= 10, e.SMA10 != nil, "sma10 at %d", n)
		assert.Equal(t, n >= 20, e.SMA20 != nil, "sma20 at %d", n)
		assert.Equal(t, n >= 12, e.EMA12 != nil, "ema12 at %d", n)
		assert.Equal(t, n >= 26, e.EMA26 != nil, "ema26 at %d", n)
		assert.Equal(t, n >= 26, e.MACD != nil, "macd at %d", n)
		assert.Equal(t, n >= 34, e.MACDSignal != nil, "signal at %d", n)
		assert.Equal(t, n >= 34, e.MACDHistogram != nil, "histogram at %d", n)
		assert.Equal(t, n >= 15, e.RSI != nil, "rsi at %d", n)
		assert.Equal(t, n >= 20, e.Volatility != nil, "volatility at %d", n)
		assert.NotNil(t, e.PriceChange)
	}
}

func TestApplyMACD(t *testing.T) {
	p := DefaultParams()
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + 5*math.Sin(float64(i)/4)
	}
	enriched, _ := Replay(NewState(p), series(closes...), p)

	var macds []float64
	for n := 26; n <= len(closes); n++ {
		e := enriched[n-1]
		fast, err := EMAClosedForm(closes[:n], 12)
		require.NoError(t, err)
		slow, err := EMAClosedForm(closes[:n], 26)
		require.NoError(t, err)
		assert.InDelta(t, fast-slow, *e.MACD, 1e-9)
		macds = append(macds, *e.MACD)

		if len(macds) >= 9 {
			sig, err := EMAClosedForm(macds, 9)
			require.NoError(t, err)
			assert.InDelta(t, sig, *e.MACDSignal, 1e-9)
			assert.InDelta(t, *e.MACD-sig, *e.MACDHistogram, 1e-9)
		}
	}
}

func TestApplyVolatility(t *testing.T) {
	p := DefaultParams()
	closes := []float64{100, 102, 101, 105, 103, 104, 108, 107, 110, 109,
		111, 115, 112, 113, 118, 116, 119, 121, 120, 125, 123}
	enriched, _ := Replay(NewState(p), series(closes...), p)

	rets, err := PctReturns(closes[1:])
	require.NoError(t, err)
	want := popStd(rets)
	assert.InDelta(t, want, *enriched[20].Volatility, 1e-12)
}

func TestApplyIsPure(t *testing.T) {
	p := DefaultParams()
	_, cps := Replay(NewState(p), series(oneToN(25)...), p)
	st := cps[len(cps)-1].State
	before, err := json.Marshal(st)
	require.NoError(t, err)

	c := candle(25, 30, 31)
	e1, _ := Apply(st, c, p)
	e2, _ := Apply(st, c, p)

	after, err := json.Marshal(st)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))

	b1, _ := json.Marshal(e1)
	b2, _ := json.Marshal(e2)
	assert.Equal(t, string(b1), string(b2))
}

func TestStateJSONRoundTripResumes(t *testing.T) {
	p := DefaultParams()
	all := series(oneToN(50)...)

	direct, _ := Replay(NewState(p), all, p)

	_, mid := Replay(NewState(p), all[:30], p)
	raw, err := json.Marshal(mid[len(mid)-1].State)
	require.NoError(t, err)
	var restored State
	require.NoError(t, json.Unmarshal(raw, &restored))

	resumed, _ := Replay(restored, all[30:], p)
	for i, e := range resumed {
		want, _ := json.Marshal(direct[30+i])
		got, _ := json.Marshal(e)
		assert.JSONEq(t, string(want), string(got))
	}
}

func TestParamsValidate(t *testing.T) {
	assert.NoError(t, DefaultParams().Validate())

	p := DefaultParams()
	p.EMAFast = 30
	assert.Error(t, p.Validate())

	p = DefaultParams()
	p.SMAShort = 0
	assert.Error(t, p.Validate())

	p = DefaultParams()
	p.VolatilityWindow = 1
	assert.Error(t, p.Validate())
}
