package cmd

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/candlestream/config"
	"github.com/rustyeddy/candlestream/engine"
	"github.com/rustyeddy/candlestream/indicators"
	"github.com/rustyeddy/candlestream/internal/logger"
	"github.com/rustyeddy/candlestream/metrics"
	"github.com/rustyeddy/candlestream/sink"
	"github.com/rustyeddy/candlestream/store"
)

// pipeline is an engine wired to the backends named in the config.
type pipeline struct {
	cfg     *config.Config
	log     *zap.Logger
	engine  *engine.Engine
	metrics *metrics.Memory
	closers []func() error
}

// newPipeline opens the state store and sink and builds the engine.
// clock may be nil for wall time.
func newPipeline(ctx context.Context, cfg *config.Config, clock func() time.Time) (*pipeline, error) {
	log, err := logger.NewWithOptions(cfg.LoggerOptions())
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	p := &pipeline{cfg: cfg, log: log, metrics: metrics.NewMemory(0)}

	states, err := p.openStateStore(ctx)
	if err != nil {
		p.Close()
		return nil, err
	}
	out, err := p.openSink(ctx)
	if err != nil {
		p.Close()
		return nil, err
	}

	opts, err := cfg.EngineOptions()
	if err != nil {
		p.Close()
		return nil, err
	}
	opts.Clock = clock

	rec := metrics.Multi{metrics.NewLog(log), p.metrics}
	if p.engine, err = engine.New(opts, states, out, rec, log); err != nil {
		p.Close()
		return nil, err
	}

	log.Info("pipeline ready",
		zap.Strings("resolutions", cfg.Resolutions),
		zap.Int("symbols", len(cfg.Symbols)),
		zap.String("state_store", cfg.StateStore.Backend),
		zap.String("sink", cfg.Sink.Backend))
	return p, nil
}

func (p *pipeline) openStateStore(ctx context.Context) (indicators.StateStore, error) {
	c := p.cfg.StateStore
	switch c.Backend {
	case "sqlite":
		s, err := store.NewSQLite(c.Path, c.Retention)
		if err != nil {
			return nil, fmt.Errorf("open state store: %w", err)
		}
		p.closers = append(p.closers, s.Close)
		return s, nil
	case "redis":
		ro, err := p.cfg.RedisOptions()
		if err != nil {
			return nil, err
		}
		s, err := store.NewRedis(ctx, ro, c.Retention)
		if err != nil {
			return nil, fmt.Errorf("open state store: %w", err)
		}
		p.closers = append(p.closers, s.Close)
		return s, nil
	default:
		return store.NewMemory(c.Retention), nil
	}
}

func (p *pipeline) openSink(ctx context.Context) (sink.Sink, error) {
	c := p.cfg.Sink
	var (
		out sink.Sink
		err error
	)
	switch c.Backend {
	case "sqlite":
		out, err = sink.NewSQLite(c.Path)
	case "postgres":
		out, err = sink.NewPostgres(ctx, c.Postgres)
	default:
		out = sink.NewMemory()
	}
	if err != nil {
		return nil, fmt.Errorf("open sink: %w", err)
	}
	p.closers = append(p.closers, out.Close)
	return out, nil
}

// Close releases backends in reverse order of opening.
func (p *pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			p.log.Warn("close", zap.Error(err))
		}
	}
	_ = p.log.Sync()
}

func printSummary(s engine.Summary) {
	fmt.Println()
	fmt.Println("Summary")
	fmt.Println("--------------------------------------------------")
	fmt.Printf("Batches:       %d\n", s.Batches)
	fmt.Printf("Records:       %d\n", s.RecordsProcessed)
	fmt.Printf("Valid:         %d\n", s.ValidRecords)
	fmt.Printf("Invalid:       %d\n", s.InvalidRecords)
	fmt.Printf("Duplicates:    %d\n", s.DuplicateRecords)
	fmt.Printf("Candles:       %d (%d corrected)\n", s.CandlesEmitted, s.CandlesCorrected)
	fmt.Printf("Alerts:        %d\n", s.Alerts)
	fmt.Printf("Elapsed:       %s\n", s.End.Sub(s.Start).Round(time.Millisecond))
}
