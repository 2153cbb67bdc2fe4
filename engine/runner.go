package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/candlestream/source"
)

// RunnerOptions controls how a Runner drives the engine.
type RunnerOptions struct {
	// FlushInterval closes due candles on idle partitions; zero disables.
	FlushInterval time.Duration
	// BatchRetries is how many times a failed batch is reprocessed before
	// Run gives up and returns, leaving it uncommitted for redelivery.
	BatchRetries int
	// FlushAtEnd closes all open candles when a finite source is exhausted.
	FlushAtEnd bool
}

// Summary totals the batches a Runner processed.
type Summary struct {
	Batches          int
	RecordsProcessed int64
	ValidRecords     int64
	InvalidRecords   int64
	DuplicateRecords int64
	CandlesEmitted   int64
	CandlesCorrected int64
	Alerts           int
	Start            time.Time
	End              time.Time
}

func (s *Summary) add(r Report) {
	s.RecordsProcessed += r.RecordsProcessed
	s.ValidRecords += r.ValidRecords
	s.InvalidRecords += r.InvalidRecords
	s.DuplicateRecords += r.DuplicateRecords
	s.CandlesEmitted += r.CandlesEmitted
	s.CandlesCorrected += r.CandlesCorrected
	s.Alerts += len(r.Alerts)
}

// Runner pulls batches from a source, processes them and commits them.
type Runner struct {
	Engine  *Engine
	Source  source.Source
	Options RunnerOptions
	Log     *zap.Logger
}

// Run loops until the source is exhausted, ctx is done, or a batch keeps
// failing. A failed batch is never committed.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	if r.Engine == nil {
		return Summary{}, fmt.Errorf("runner: Engine is required")
	}
	if r.Source == nil {
		return Summary{}, fmt.Errorf("runner: Source is required")
	}
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}

	summary := Summary{Start: time.Now()}

	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	if r.Options.FlushInterval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(r.Options.FlushInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-done:
					return nil
				case <-ticker.C:
					if _, err := r.Engine.Flush(gctx); err != nil && gctx.Err() == nil {
						log.Warn("flush failed", zap.Error(err))
					}
				}
			}
		})
	}

	g.Go(func() error {
		defer close(done)
		for {
			b, err := r.Source.Next(gctx)
			switch {
			case errors.Is(err, source.ErrExhausted):
				if r.Options.FlushAtEnd {
					report, err := r.Engine.FlushAll(gctx)
					summary.add(report)
					if err != nil {
						return fmt.Errorf("final flush: %w", err)
					}
				}
				return nil
			case err != nil:
				if gctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("next batch: %w", err)
			}

			report, err := r.process(gctx, b, log)
			if err != nil {
				return err
			}
			summary.Batches++
			summary.add(report)

			if err := r.Source.Commit(gctx, b); err != nil {
				return fmt.Errorf("commit batch %s: %w", b.ID, err)
			}
		}
	})

	err := g.Wait()
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	summary.End = time.Now()
	return summary, err
}

func (r *Runner) process(ctx context.Context, b source.Batch, log *zap.Logger) (Report, error) {
	var lastErr error
	for attempt := 0; attempt <= r.Options.BatchRetries; attempt++ {
		report, err := r.Engine.Process(ctx, b)
		if err == nil {
			return report, nil
		}
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		lastErr = err
		log.Warn("batch failed",
			zap.String("batch", b.ID),
			zap.Int("attempt", attempt+1),
			zap.Int("failures", len(report.Failures)),
			zap.Error(err))
	}
	return Report{}, fmt.Errorf("batch %s not committed: %w", b.ID, lastErr)
}
