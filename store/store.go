// Package store implements indicators.StateStore over memory, SQLite and
// Redis. Every backend keeps one checkpoint per closed interval and trims
// each series to the newest Retention checkpoints. Each backend also
// keeps one opaque snapshot per partition for the engine.
package store

import "github.com/rustyeddy/candlestream/indicators"

// DefaultRetention is the number of checkpoints kept per series.
const DefaultRetention = 500

var (
	_ indicators.StateStore = (*Memory)(nil)
	_ indicators.StateStore = (*SQLite)(nil)
	_ indicators.StateStore = (*Redis)(nil)
)

func retentionOrDefault(n int) int {
	if n <= 0 {
		return DefaultRetention
	}
	return n
}
