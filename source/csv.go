package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rustyeddy/candlestream/internal/id"
	"github.com/rustyeddy/candlestream/market"
)

// CSVColumns is the header of a trade file. A header row is optional.
//
//	exchange,symbol,price,quantity,timestamp,sequence_id
//
// timestamp is unix milliseconds or RFC 3339; sequence_id may be empty.
var CSVColumns = []string{"exchange", "symbol", "price", "quantity", "timestamp", "sequence_id"}

// CSV reads trades from a file in fixed-size batches. Short or malformed
// rows become trades with null fields so the validator rejects them.
type CSV struct {
	f         *os.File
	r         *csv.Reader
	norm      *market.Normalizer
	batchSize int
	sawFirst  bool
	now       func() time.Time
}

func NewCSV(path string, batchSize int) (*CSV, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return newCSV(f, batchSize), nil
}

func newCSV(f *os.File, batchSize int) *CSV {
	if batchSize <= 0 {
		batchSize = 500
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	return &CSV{
		f:         f,
		r:         r,
		norm:      market.NewNormalizer(nil),
		batchSize: batchSize,
		now:       time.Now,
	}
}

func (c *CSV) Next(ctx context.Context) (Batch, error) {
	now := c.now().UTC()
	b := Batch{ID: id.At(now), ReceivedAt: now}
	for len(b.Trades) < c.batchSize {
		if err := ctx.Err(); err != nil {
			return Batch{}, err
		}
		row, err := c.r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Batch{}, fmt.Errorf("read csv: %w", err)
		}
		if len(row) == 0 {
			continue
		}
		if !c.sawFirst {
			c.sawFirst = true
			if strings.EqualFold(strings.TrimSpace(row[0]), CSVColumns[0]) {
				continue
			}
		}
		b.Trades = append(b.Trades, c.parse(row))
	}
	if len(b.Trades) == 0 {
		return Batch{}, ErrExhausted
	}
	return b, nil
}

func (c *CSV) parse(row []string) market.RawTrade {
	field := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	rt := c.norm.Normalize(market.CanonicalExchange, map[string]any{
		"symbol":      field(1),
		"price":       field(2),
		"volume":      field(3),
		"sequence_id": field(5),
	})
	rt.Exchange = strings.ToLower(field(0))
	rt.TradeTimestamp = market.ParseTimestamp(field(4))
	return rt
}

// Commit is a no-op; a file has no consumer offsets.
func (c *CSV) Commit(context.Context, Batch) error { return nil }

func (c *CSV) Close() error {
	if c.f != nil {
		return c.f.Close()
	}
	return nil
}

// WriteCSV writes trades in the CSV source layout.
func WriteCSV(w io.Writer, trades []market.RawTrade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVColumns); err != nil {
		return err
	}
	for _, t := range trades {
		row := []string{
			t.Exchange,
			t.Symbol,
			nullString(t.Price.Valid, t.Price.Decimal.String()),
			nullString(t.Quantity.Valid, t.Quantity.Decimal.String()),
			t.TradeTimestamp.UTC().Format(time.RFC3339Nano),
			t.SequenceID,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func nullString(valid bool, s string) string {
	if !valid {
		return ""
	}
	return s
}
