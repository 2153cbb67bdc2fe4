package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "candlestream",
	Short: "Streaming trade validation, OHLCV candles and indicators",
	Long: `Candlestream consumes raw crypto trades, validates and deduplicates them,
aggregates them into OHLCV candles at several resolutions and enriches every
closed candle with technical indicators.

It provides:
  - A long running consumer for the raw trade topic (run)
  - Deterministic replays of CSV trade files (replay)
  - A CSV to Kafka publisher for backfills and tests (publish)
  - Configuration generation and validation (config)`,
	SilenceUsage: true,
}

var configPath string

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (YAML or JSON); defaults and CANDLESTREAM_* variables apply without one")
}
