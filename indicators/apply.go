package indicators

import "github.com/rustyeddy/candlestream/market"

// Apply advances s by the closed candle c and returns the enriched candle
// with the new state. It is pure: s is not modified and equal inputs give
// bit-identical outputs.
func Apply(s State, c market.Candle, p Params) (market.EnrichedCandle, State) {
	next := s.Clone()
	next.Closes.Push(c.Close)
	next.Opens.Push(c.Open)
	next.Count++
	next.LastIntervalStart = c.IntervalStart

	out := market.EnrichedCandle{Candle: c}
	closes := &next.Closes

	out.SMA5 = smaOf(closes, p.SMAShort)
	out.SMA10 = smaOf(closes, p.SMAMid)
	out.SMA20 = smaOf(closes, p.SMALong)

	out.EMA12 = advance(&next.EMAFast, c.Close)
	out.EMA26 = advance(&next.EMASlow, c.Close)

	if out.EMA12 != nil && out.EMA26 != nil {
		macd := *out.EMA12 - *out.EMA26
		out.MACD = market.Float(macd)
		if sig := advance(&next.Signal, macd); sig != nil {
			out.MACDSignal = sig
			out.MACDHistogram = market.Float(macd - *sig)
		}
	}

	if mid, err := MA(closes.Values, p.BollingerPeriod); err == nil {
		std, _ := StdDev(closes.Values, p.BollingerPeriod)
		out.BBMiddle = market.Float(mid)
		out.BBStd = market.Float(std)
		out.BBUpper = market.Float(mid + p.BollingerK*std)
		out.BBLower = market.Float(mid - p.BollingerK*std)
	}

	out.RSI = advance(&next.RSI, c.Close)

	if vs := closes.Last(p.VolatilityWindow); vs != nil {
		if rets, err := PctReturns(vs); err == nil && len(rets) > 0 {
			vol, _ := StdDev(rets, len(rets))
			out.Volatility = market.Float(vol)
		}
	}

	if first, ok := next.Opens.Oldest(); ok {
		change := c.Close - first
		out.PriceChange = market.Float(change)
		if first != 0 {
			out.PriceChangePercentage = market.Float(change / first * 100)
		}
	}

	return out, next
}

func smaOf(w *Window, n int) *float64 {
	v, err := MA(w.Values, n)
	if err != nil {
		return nil
	}
	return market.Float(v)
}

// Replay applies candles in order starting from s. It is the reference
// computation that rollback and replay must agree with.
func Replay(s State, candles []market.Candle, p Params) ([]market.EnrichedCandle, []Checkpoint) {
	out := make([]market.EnrichedCandle, 0, len(candles))
	cps := make([]Checkpoint, 0, len(candles))
	for _, c := range candles {
		var e market.EnrichedCandle
		e, s = Apply(s, c, p)
		out = append(out, e)
		cps = append(cps, Checkpoint{Candle: c, State: s})
	}
	return out, cps
}
