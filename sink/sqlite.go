package sink

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/candlestream/market"
)

// SQLite upserts rows into a local SQLite file.
type SQLite struct {
	db            *sql.DB
	candleUpsert  string
	qualityUpsert string
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLite{
		db:            db,
		candleUpsert:  upsertSQL("enriched_candles", candleColumns, candleKeyColumns, questionMark),
		qualityUpsert: upsertSQL("data_quality", qualityColumns, qualityKeyColumns, questionMark),
	}, nil
}

// DB exposes the handle for read-side tooling.
func (s *SQLite) DB() *sql.DB { return s.db }

func (s *SQLite) WriteCandles(ctx context.Context, candles []market.EnrichedCandle) error {
	if len(candles) == 0 {
		return nil
	}
	return s.inTx(ctx, s.candleUpsert, len(candles), func(i int) []any {
		c := candles[i]
		args := []any{
			c.Symbol, c.Exchange, string(c.Resolution),
			c.IntervalStart.Unix(), c.IntervalEnd.Unix(),
			c.Open, c.High, c.Low, c.Close, c.Volume, c.TradeCount, c.VWAP,
		}
		return append(args, indicatorArgs(c)...)
	})
}

func (s *SQLite) WriteQuality(ctx context.Context, records []market.QualityRecord) error {
	if len(records) == 0 {
		return nil
	}
	return s.inTx(ctx, s.qualityUpsert, len(records), func(i int) []any {
		q := records[i]
		return []any{
			q.Exchange, q.Symbol, q.Date.UTC().Format("2006-01-02"),
			q.TotalRecords, q.ValidRecords, q.InvalidRecords, q.DuplicateRecords, q.LateRecords,
			q.QualityScore, q.Final,
		}
	})
}

func (s *SQLite) inTx(ctx context.Context, query string, n int, args func(i int) []any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert row %d: %w", i, err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
