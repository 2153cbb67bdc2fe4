package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/candlestream/indicators"
)

// withRetry runs fn with exponential backoff and jitter. Each attempt gets
// its own timeout. Errors that a retry cannot fix are returned at once.
func (e *Engine) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	cfg := e.opts.Retry
	backoff := cfg.InitialBackoff

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			wait := backoff
			if backoff > 0 {
				wait = backoff/2 + time.Duration(rand.Int63n(int64(backoff)))
			}
			e.log.Debug("retrying",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", wait),
				zap.Error(lastErr))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			backoff = min(backoff*2, cfg.MaxBackoff)
		}

		err := e.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !retryable(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("%s: %d attempts: %w", op, cfg.MaxAttempts, lastErr)
}

func (e *Engine) attempt(ctx context.Context, fn func(context.Context) error) error {
	if e.opts.Retry.AttemptTimeout <= 0 {
		return fn(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, e.opts.Retry.AttemptTimeout)
	defer cancel()
	return fn(actx)
}

func retryable(err error) bool {
	var seq *indicators.SequenceError
	switch {
	case errors.As(err, &seq):
		return false
	case errors.Is(err, indicators.ErrCheckpointMissing):
		return false
	case errors.Is(err, context.Canceled):
		return false
	}
	return true
}
