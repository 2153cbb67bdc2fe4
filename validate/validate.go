// Package validate applies per-record schema, range and clock checks to
// normalized trades. Rejections are data: the validator never fails,
// logs or emits metrics.
package validate

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/candlestream/market"
)

// Thresholds bound the accepted price, volume and clock skew.
type Thresholds struct {
	MinPrice           decimal.Decimal
	MaxPrice           decimal.Decimal
	MinVolume          decimal.Decimal
	TimestampTolerance time.Duration
}

// DefaultThresholds matches the production deployment.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinPrice:           decimal.RequireFromString("0.01"),
		MaxPrice:           decimal.NewFromInt(1_000_000),
		MinVolume:          decimal.Zero,
		TimestampTolerance: 300 * time.Second,
	}
}

// Validator checks RawTrades against thresholds and a symbol registry.
type Validator struct {
	thresholds Thresholds
	registry   *market.Registry
	now        func() time.Time
}

// Option customises a Validator.
type Option func(*Validator)

// WithClock replaces time.Now, for tests and replays.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

func New(t Thresholds, registry *market.Registry, opts ...Option) *Validator {
	v := &Validator{thresholds: t, registry: registry, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs the checks in order and stops at the first failure.
// ReceivedAt is stamped from the validator's clock.
func (v *Validator) Validate(rt market.RawTrade) market.ValidatedTrade {
	now := v.now().UTC()
	vt := market.ValidatedTrade{RawTrade: rt, ReceivedAt: now}
	vt.RejectionReason = v.check(rt, now)
	vt.IsValid = vt.RejectionReason == market.RejectNone
	return vt
}

func (v *Validator) check(rt market.RawTrade, now time.Time) market.RejectionReason {
	if rt.Exchange == "" || rt.Symbol == "" || !rt.Price.Valid || !rt.Quantity.Valid || rt.TradeTimestamp.IsZero() {
		return market.RejectMissingField
	}

	price := rt.Price.Decimal
	if price.LessThan(v.thresholds.MinPrice) || price.GreaterThan(v.thresholds.MaxPrice) {
		return market.RejectPriceOutOfRange
	}

	if rt.Quantity.Decimal.LessThan(v.thresholds.MinVolume) {
		return market.RejectVolumeBelowMinimum
	}

	skew := now.Sub(rt.TradeTimestamp)
	if skew < 0 {
		skew = -skew
	}
	if skew > v.thresholds.TimestampTolerance {
		return market.RejectTimestampOutOfTolerance
	}

	if !v.registry.Contains(rt.Exchange, rt.Symbol) {
		return market.RejectUnknownSymbol
	}
	return market.RejectNone
}
