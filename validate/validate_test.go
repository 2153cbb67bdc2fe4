package validate

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/rustyeddy/candlestream/market"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestValidator() *Validator {
	return New(DefaultThresholds(), market.NewRegistry(market.DefaultSymbols...),
		WithClock(func() time.Time { return testNow }))
}

func trade(price, qty string, ts time.Time) market.RawTrade {
	return market.RawTrade{
		Exchange:       "binance",
		Symbol:         "BTCUSDT",
		Price:          decimal.NewNullDecimal(decimal.RequireFromString(price)),
		Quantity:       decimal.NewNullDecimal(decimal.RequireFromString(qty)),
		TradeTimestamp: ts,
		SequenceID:     "1",
	}
}

func TestValidate(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name   string
		trade  func() market.RawTrade
		reason market.RejectionReason
	}{
		{"valid", func() market.RawTrade { return trade("100", "1", testNow) }, market.RejectNone},
		{"zero quantity is boundary valid", func() market.RawTrade { return trade("100", "0", testNow) }, market.RejectNone},
		{"min price inclusive", func() market.RawTrade { return trade("0.01", "1", testNow) }, market.RejectNone},
		{"max price inclusive", func() market.RawTrade { return trade("1000000", "1", testNow) }, market.RejectNone},
		{"missing price", func() market.RawTrade {
			rt := trade("100", "1", testNow)
			rt.Price = decimal.NullDecimal{}
			return rt
		}, market.RejectMissingField},
		{"missing symbol", func() market.RawTrade {
			rt := trade("100", "1", testNow)
			rt.Symbol = ""
			return rt
		}, market.RejectMissingField},
		{"missing timestamp", func() market.RawTrade { return trade("100", "1", time.Time{}) }, market.RejectMissingField},
		{"price too low", func() market.RawTrade { return trade("0.009", "1", testNow) }, market.RejectPriceOutOfRange},
		{"price too high", func() market.RawTrade { return trade("1000000.01", "1", testNow) }, market.RejectPriceOutOfRange},
		{"negative volume", func() market.RawTrade { return trade("100", "-1", testNow) }, market.RejectVolumeBelowMinimum},
		{"400s in the future", func() market.RawTrade { return trade("100", "1", testNow.Add(400*time.Second)) }, market.RejectTimestampOutOfTolerance},
		{"400s in the past", func() market.RawTrade { return trade("100", "1", testNow.Add(-400*time.Second)) }, market.RejectTimestampOutOfTolerance},
		{"exactly at tolerance", func() market.RawTrade { return trade("100", "1", testNow.Add(300*time.Second)) }, market.RejectNone},
		{"unknown symbol", func() market.RawTrade {
			rt := trade("100", "1", testNow)
			rt.Symbol = "DOGEUSDT"
			return rt
		}, market.RejectUnknownSymbol},
		{"price checked before clock", func() market.RawTrade { return trade("0", "1", testNow.Add(time.Hour)) }, market.RejectPriceOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vt := v.Validate(tt.trade())
			assert.Equal(t, tt.reason, vt.RejectionReason)
			assert.Equal(t, tt.reason == market.RejectNone, vt.IsValid)
			assert.Equal(t, testNow, vt.ReceivedAt)
		})
	}
}

func TestValidatePriceOutOfRangeProperty(t *testing.T) {
	v := newTestValidator()
	for _, p := range []string{"0", "0.001", "0.0099999", "1000000.0001", "5000000", "-3"} {
		vt := v.Validate(trade(p, "1", testNow))
		assert.False(t, vt.IsValid, p)
		assert.Equal(t, market.RejectPriceOutOfRange, vt.RejectionReason, p)
	}
}
