package indicators

import (
	"context"
	"time"

	"github.com/rustyeddy/candlestream/market"
)

//go:generate mockgen -source=store.go -destination=../internal/mocks/state_store_mock.go -package=mocks

// StateStore persists versioned indicator state and its per-interval
// checkpoints. Writes are optimistic: they succeed only when the series'
// current version equals expectedVersion (0 for a series never written)
// and report false, not an error, on a version conflict.
type StateStore interface {
	// GetState returns the newest state of key, or nil if there is none.
	GetState(ctx context.Context, key market.SeriesKey) (*State, error)

	// PutState appends cp as the new head of key.
	PutState(ctx context.Context, key market.SeriesKey, cp Checkpoint, expectedVersion int64) (bool, error)

	// CheckpointBefore returns the newest checkpoint whose candle starts
	// strictly before t, or nil.
	CheckpointBefore(ctx context.Context, key market.SeriesKey, t time.Time) (*Checkpoint, error)

	// CheckpointsFrom returns every checkpoint whose candle starts at or
	// after t, oldest first.
	CheckpointsFrom(ctx context.Context, key market.SeriesKey, t time.Time) ([]Checkpoint, error)

	// ReplaceFrom atomically drops every checkpoint starting at or after t
	// and appends cps. The last of cps becomes the head.
	ReplaceFrom(ctx context.Context, key market.SeriesKey, t time.Time, cps []Checkpoint, expectedVersion int64) (bool, error)
}
