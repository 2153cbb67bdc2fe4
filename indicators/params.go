package indicators

import "fmt"

// Params are the window lengths of every indicator. The enriched candle
// columns are named after the defaults.
type Params struct {
	SMAShort          int     `json:"sma_short" yaml:"sma_short"`
	SMAMid            int     `json:"sma_mid" yaml:"sma_mid"`
	SMALong           int     `json:"sma_long" yaml:"sma_long"`
	EMAFast           int     `json:"ema_fast" yaml:"ema_fast"`
	EMASlow           int     `json:"ema_slow" yaml:"ema_slow"`
	Signal            int     `json:"signal" yaml:"signal"`
	BollingerPeriod   int     `json:"bollinger_period" yaml:"bollinger_period"`
	BollingerK        float64 `json:"bollinger_k" yaml:"bollinger_k"`
	RSIPeriod         int     `json:"rsi_period" yaml:"rsi_period"`
	VolatilityWindow  int     `json:"volatility_window" yaml:"volatility_window"`
	PriceChangeWindow int     `json:"price_change_window" yaml:"price_change_window"`
}

func DefaultParams() Params {
	return Params{
		SMAShort:          5,
		SMAMid:            10,
		SMALong:           20,
		EMAFast:           12,
		EMASlow:           26,
		Signal:            9,
		BollingerPeriod:   20,
		BollingerK:        2,
		RSIPeriod:         14,
		VolatilityWindow:  20,
		PriceChangeWindow: 20,
	}
}

func (p Params) Validate() error {
	for name, v := range map[string]int{
		"sma_short":           p.SMAShort,
		"sma_mid":             p.SMAMid,
		"sma_long":            p.SMALong,
		"ema_fast":            p.EMAFast,
		"ema_slow":            p.EMASlow,
		"signal":              p.Signal,
		"bollinger_period":    p.BollingerPeriod,
		"rsi_period":          p.RSIPeriod,
		"price_change_window": p.PriceChangeWindow,
	} {
		if v <= 0 {
			return fmt.Errorf("indicators.%s must be positive, got %d", name, v)
		}
	}
	if p.VolatilityWindow < 2 {
		return fmt.Errorf("indicators.volatility_window must be at least 2, got %d", p.VolatilityWindow)
	}
	if p.EMAFast >= p.EMASlow {
		return fmt.Errorf("indicators.ema_fast (%d) must be shorter than ema_slow (%d)", p.EMAFast, p.EMASlow)
	}
	if p.BollingerK <= 0 {
		return fmt.Errorf("indicators.bollinger_k must be positive, got %v", p.BollingerK)
	}
	return nil
}

// closeCap is the longest close history any indicator looks at.
func (p Params) closeCap() int {
	n := p.SMAShort
	for _, v := range []int{p.SMAMid, p.SMALong, p.BollingerPeriod, p.VolatilityWindow} {
		if v > n {
			n = v
		}
	}
	return n
}
