package sink

import (
	"fmt"
	"strings"

	"github.com/rustyeddy/candlestream/market"
)

var candleColumns = []string{
	"symbol", "exchange", "resolution", "interval_start", "interval_end",
	"open", "high", "low", "close", "volume", "trade_count", "vwap",
	"sma_5", "sma_10", "sma_20", "ema_12", "ema_26",
	"macd", "macd_signal", "macd_histogram",
	"bb_upper", "bb_middle", "bb_lower", "bb_std",
	"rsi", "volatility", "price_change", "price_change_percentage",
}

var qualityColumns = []string{
	"exchange", "symbol", "date",
	"total_records", "valid_records", "invalid_records", "duplicate_records", "late_records",
	"quality_score", "final",
}

// Leading columns that form the conflict key of each table.
const (
	candleKeyColumns  = 4
	qualityKeyColumns = 3
)

// indicatorArgs lists the nullable indicator values in column order.
func indicatorArgs(c market.EnrichedCandle) []any {
	return []any{
		c.SMA5, c.SMA10, c.SMA20, c.EMA12, c.EMA26,
		c.MACD, c.MACDSignal, c.MACDHistogram,
		c.BBUpper, c.BBMiddle, c.BBLower, c.BBStd,
		c.RSI, c.Volatility, c.PriceChange, c.PriceChangePercentage,
	}
}

// upsertSQL builds an INSERT ... ON CONFLICT DO UPDATE statement. Both
// SQLite and Postgres accept this form; only the placeholders differ.
func upsertSQL(table string, cols []string, keyCols int, placeholder func(i int) string) string {
	ph := make([]string, len(cols))
	for i := range cols {
		ph[i] = placeholder(i + 1)
	}
	set := make([]string, 0, len(cols)-keyCols)
	for _, c := range cols[keyCols:] {
		set = append(set, fmt.Sprintf("%s = excluded.%s", c, c))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		table,
		strings.Join(cols, ", "),
		strings.Join(ph, ", "),
		strings.Join(cols[:keyCols], ", "),
		strings.Join(set, ", "))
}

func questionMark(int) string { return "?" }

func dollar(i int) string { return fmt.Sprintf("$%d", i) }
