// Package sink persists enriched candles and quality records. Every
// implementation upserts on the natural key, so rewriting a row is safe.
package sink

import (
	"context"

	"github.com/rustyeddy/candlestream/market"
)

//go:generate mockgen -source=sink.go -destination=../internal/mocks/sink_mock.go -package=mocks

// Sink receives engine output. Candle rows are keyed by (symbol,
// exchange, resolution, interval_start); quality rows by (exchange,
// symbol, date).
type Sink interface {
	WriteCandles(ctx context.Context, candles []market.EnrichedCandle) error
	WriteQuality(ctx context.Context, records []market.QualityRecord) error
	Close() error
}

var (
	_ Sink = (*Memory)(nil)
	_ Sink = (*SQLite)(nil)
	_ Sink = (*Postgres)(nil)
	_ Sink = Multi(nil)
)

// Multi fans writes out to several sinks in order and stops at the
// first error.
type Multi []Sink

func (m Multi) WriteCandles(ctx context.Context, candles []market.EnrichedCandle) error {
	for _, s := range m {
		if err := s.WriteCandles(ctx, candles); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) WriteQuality(ctx context.Context, records []market.QualityRecord) error {
	for _, s := range m {
		if err := s.WriteQuality(ctx, records); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) Close() error {
	var first error
	for _, s := range m {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
