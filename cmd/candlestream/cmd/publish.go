package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/candlestream/config"
	"github.com/rustyeddy/candlestream/source"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish a CSV file of raw trades to Kafka",
	Long: `Read raw trades from a CSV file and publish them to the configured topic
as canonical JSON, keyed by exchange:symbol.

Example:
  candlestream publish -c candlestream.yaml -f data/trades.csv`,
	RunE: runPublish,
}

var publishFile string

func init() {
	rootCmd.AddCommand(publishCmd)

	publishCmd.Flags().StringVarP(&publishFile, "file", "f", "", "CSV file of raw trades (required)")
	publishCmd.MarkFlagRequired("file")
}

func runPublish(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	kc, err := cfg.KafkaOptions()
	if err != nil {
		return err
	}

	src, err := source.NewCSV(publishFile, cfg.Source.BatchSize)
	if err != nil {
		return fmt.Errorf("open %s: %w", publishFile, err)
	}
	defer src.Close()

	pub, err := source.NewPublisher(kc)
	if err != nil {
		return fmt.Errorf("create publisher: %w", err)
	}
	defer pub.Close()

	ctx := cmd.Context()
	total := 0
	for {
		b, err := src.Next(ctx)
		if errors.Is(err, source.ErrExhausted) {
			break
		}
		if err != nil {
			return err
		}
		if err := pub.Publish(ctx, b.Trades); err != nil {
			return fmt.Errorf("publish: %w", err)
		}
		total += len(b.Trades)
	}

	fmt.Printf("✓ Published %d trades to %s\n", total, kc.Topic)
	return nil
}
