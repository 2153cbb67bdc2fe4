// Package source delivers batches of raw trades from an upstream
// transport. Delivery is at least once: a batch that is not committed may
// be delivered again.
package source

import (
	"context"
	"errors"
	"time"

	"github.com/rustyeddy/candlestream/market"
)

// ErrExhausted is returned by Next when a finite source has no more data.
var ErrExhausted = errors.New("source exhausted")

// Batch is one unit of engine work.
type Batch struct {
	ID         string
	Trades     []market.RawTrade
	ReceivedAt time.Time

	// token is what Commit acknowledges; its type is source specific.
	token any
}

// Source yields batches in transport order.
type Source interface {
	// Next blocks until a batch is available, ctx is done, or the source
	// is exhausted.
	Next(ctx context.Context) (Batch, error)
	// Commit acknowledges b so it is not delivered again.
	Commit(ctx context.Context, b Batch) error
	Close() error
}

var (
	_ Source = (*Kafka)(nil)
	_ Source = (*CSV)(nil)
	_ Source = (*Static)(nil)
)

// Static replays a fixed list of batches. Commit records the IDs it saw.
type Static struct {
	batches   []Batch
	Committed []string
}

func NewStatic(batches ...Batch) *Static {
	return &Static{batches: batches}
}

func (s *Static) Next(ctx context.Context) (Batch, error) {
	if err := ctx.Err(); err != nil {
		return Batch{}, err
	}
	if len(s.batches) == 0 {
		return Batch{}, ErrExhausted
	}
	b := s.batches[0]
	s.batches = s.batches[1:]
	return b, nil
}

func (s *Static) Commit(_ context.Context, b Batch) error {
	s.Committed = append(s.Committed, b.ID)
	return nil
}

func (s *Static) Close() error { return nil }
