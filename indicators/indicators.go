// Package indicators computes rolling technical indicators over closed
// candles and keeps their per-series state checkpointed in a StateStore.
package indicators

import "github.com/rustyeddy/candlestream/market"

// Indicator consumes one value at a time.
// Implementations are plain structs with exported fields so that a whole
// indicator state can be checkpointed as JSON and restored bit for bit.
type Indicator interface {
	// Update consumes the next value.
	Update(v float64)

	// Ready reports whether Value() is meaningful.
	Ready() bool

	// Value returns the current value, or 0 when not Ready.
	Value() float64
}

var (
	_ Indicator = (*EMA)(nil)
	_ Indicator = (*RSI)(nil)
)

// advance feeds v to ind and returns its value once it is ready.
func advance(ind Indicator, v float64) *float64 {
	ind.Update(v)
	if !ind.Ready() {
		return nil
	}
	return market.Float(ind.Value())
}
