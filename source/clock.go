package source

import (
	"context"
	"sync"
	"time"
)

// Clocked wraps a Source and keeps a clock that follows the data: after
// each Next it reads as the newest trade timestamp seen so far. Replays
// use it as the engine clock so historical trades pass the timestamp
// tolerance check.
type Clocked struct {
	Source

	mu  sync.Mutex
	now time.Time
}

func NewClocked(src Source) *Clocked {
	return &Clocked{Source: src}
}

func (c *Clocked) Next(ctx context.Context) (Batch, error) {
	b, err := c.Source.Next(ctx)
	if err != nil {
		return b, err
	}
	c.mu.Lock()
	for _, t := range b.Trades {
		if t.TradeTimestamp.After(c.now) {
			c.now = t.TradeTimestamp
		}
	}
	c.mu.Unlock()
	return b, nil
}

// Now returns the newest trade timestamp, or the zero time before the
// first batch.
func (c *Clocked) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}
