package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/candlestream/config"
	"github.com/rustyeddy/candlestream/engine"
	"github.com/rustyeddy/candlestream/internal/status"
	"github.com/rustyeddy/candlestream/market"
	"github.com/rustyeddy/candlestream/source"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Consume the raw trade topic",
	Long: `Consume raw trades from Kafka until interrupted.

Each fetched batch is validated, deduplicated, aggregated and enriched, and
the Kafka offsets are committed only after every write for the batch
succeeded. A batch that keeps failing stops the process without committing,
so it is redelivered on restart.

Example:
  candlestream run -c candlestream.yaml`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Source.Type != "kafka" {
		return fmt.Errorf("run needs source.type kafka, got %q; use replay for csv", cfg.Source.Type)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := newPipeline(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer p.Close()

	kc, err := cfg.KafkaOptions()
	if err != nil {
		return err
	}
	src, err := source.NewKafka(kc, market.NewNormalizer(market.DefaultFieldMaps), p.log)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	ro, err := cfg.RunnerOptions(false)
	if err != nil {
		return err
	}
	runner := &engine.Runner{Engine: p.engine, Source: src, Options: ro, Log: p.log}

	g, gctx := errgroup.WithContext(ctx)
	var summary engine.Summary
	g.Go(func() error {
		// a finished runner also stops the status server
		defer stop()
		var err error
		summary, err = runner.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if cfg.Status.Addr != "" {
		srv := status.New(p.engine, p.log)
		g.Go(func() error {
			return srv.ListenAndServe(gctx, cfg.Status.Addr)
		})
	}

	err = g.Wait()
	printSummary(summary)
	if err != nil {
		p.log.Error("run stopped", zap.Error(err))
	}
	return err
}
