package market

import (
	"fmt"
	"time"
)

// Candle is an OHLCV bar for one series and interval. It is mutable only
// inside the candle builder while its interval is open.
type Candle struct {
	Symbol        string     `json:"symbol"`
	Exchange      string     `json:"exchange"`
	Resolution    Resolution `json:"resolution"`
	IntervalStart time.Time  `json:"interval_start"`
	IntervalEnd   time.Time  `json:"interval_end"`
	Open          float64    `json:"open"`
	High          float64    `json:"high"`
	Low           float64    `json:"low"`
	Close         float64    `json:"close"`
	Volume        float64    `json:"volume"`
	TradeCount    int64      `json:"trade_count"`
	VWAP          float64    `json:"vwap"`
}

// Key returns the series the candle belongs to.
func (c Candle) Key() SeriesKey {
	return SeriesKey{Exchange: c.Exchange, Symbol: c.Symbol, Resolution: c.Resolution}
}

// Equal reports whether two candles carry the same values. Times are
// compared with time.Equal so location differences do not matter.
func (c Candle) Equal(o Candle) bool {
	return c.Symbol == o.Symbol &&
		c.Exchange == o.Exchange &&
		c.Resolution == o.Resolution &&
		c.IntervalStart.Equal(o.IntervalStart) &&
		c.IntervalEnd.Equal(o.IntervalEnd) &&
		c.Open == o.Open &&
		c.High == o.High &&
		c.Low == o.Low &&
		c.Close == o.Close &&
		c.Volume == o.Volume &&
		c.TradeCount == o.TradeCount &&
		c.VWAP == o.VWAP
}

// Validate checks the OHLC and interval invariants.
func (c Candle) Validate() error {
	if !c.IntervalStart.Before(c.IntervalEnd) {
		return fmt.Errorf("candle %s: interval_start %s not before interval_end %s",
			c.Key(), c.IntervalStart.Format(time.RFC3339), c.IntervalEnd.Format(time.RFC3339))
	}
	if c.High < c.Open || c.High < c.Close {
		return fmt.Errorf("candle %s: high %v below open/close", c.Key(), c.High)
	}
	if c.Low > c.Open || c.Low > c.Close {
		return fmt.Errorf("candle %s: low %v above open/close", c.Key(), c.Low)
	}
	if c.Volume < 0 {
		return fmt.Errorf("candle %s: negative volume %v", c.Key(), c.Volume)
	}
	return nil
}

// EnrichedCandle is a closed candle plus its indicator values. Nil fields
// are undefined because the rolling window is not yet full.
type EnrichedCandle struct {
	Candle

	SMA5                  *float64 `json:"sma_5"`
	SMA10                 *float64 `json:"sma_10"`
	SMA20                 *float64 `json:"sma_20"`
	EMA12                 *float64 `json:"ema_12"`
	EMA26                 *float64 `json:"ema_26"`
	MACD                  *float64 `json:"macd"`
	MACDSignal            *float64 `json:"macd_signal"`
	MACDHistogram         *float64 `json:"macd_histogram"`
	BBUpper               *float64 `json:"bb_upper"`
	BBMiddle              *float64 `json:"bb_middle"`
	BBLower               *float64 `json:"bb_lower"`
	BBStd                 *float64 `json:"bb_std"`
	RSI                   *float64 `json:"rsi"`
	Volatility            *float64 `json:"volatility"`
	PriceChange           *float64 `json:"price_change"`
	PriceChangePercentage *float64 `json:"price_change_percentage"`
}

// Float returns a pointer to v, for filling nullable indicator fields.
func Float(v float64) *float64 {
	return &v
}
