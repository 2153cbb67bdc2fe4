package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/candlestream/indicators"
	"github.com/rustyeddy/candlestream/market"
)

// SQLite is a StateStore in a single SQLite file. Optimistic versioning
// rides on a conditional update of the series head row inside the same
// transaction as the checkpoint writes.
type SQLite struct {
	db        *sql.DB
	retention int
}

func NewSQLite(path string, retention int) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	// one writer keeps the version check and the writes serialised
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db, retention: retentionOrDefault(retention)}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// GetState reads the head version and the newest checkpoint in one
// statement so the pair is always consistent.
func (s *SQLite) GetState(ctx context.Context, key market.SeriesKey) (*indicators.State, error) {
	var (
		version int64
		raw     string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT h.version, c.state
		FROM indicator_heads h
		JOIN indicator_checkpoints c ON c.series = h.series
		WHERE h.series = ?
		ORDER BY c.interval_start DESC LIMIT 1`, key.String()).Scan(&version, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var st indicators.State
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", key, err)
	}
	st.Version = version
	return &st, nil
}

func (s *SQLite) PutState(ctx context.Context, key market.SeriesKey, cp indicators.Checkpoint, expectedVersion int64) (bool, error) {
	return s.write(ctx, key, cp.Candle.IntervalStart, []indicators.Checkpoint{cp}, expectedVersion)
}

func (s *SQLite) ReplaceFrom(ctx context.Context, key market.SeriesKey, t time.Time, cps []indicators.Checkpoint, expectedVersion int64) (bool, error) {
	return s.write(ctx, key, t, cps, expectedVersion)
}

func (s *SQLite) write(ctx context.Context, key market.SeriesKey, from time.Time, cps []indicators.Checkpoint, expectedVersion int64) (ok bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() {
		if !ok || err != nil {
			_ = tx.Rollback()
		}
	}()

	series := key.String()
	next := expectedVersion + 1

	var res sql.Result
	if expectedVersion == 0 {
		res, err = tx.ExecContext(ctx, `
			INSERT INTO indicator_heads (series, version) VALUES (?, ?)
			ON CONFLICT(series) DO NOTHING`, series, next)
	} else {
		res, err = tx.ExecContext(ctx, `
			UPDATE indicator_heads SET version = ? WHERE series = ? AND version = ?`,
			next, series, expectedVersion)
	}
	if err != nil {
		return false, err
	}
	if n, err := res.RowsAffected(); err != nil || n != 1 {
		return false, err
	}

	if _, err = tx.ExecContext(ctx, `
		DELETE FROM indicator_checkpoints WHERE series = ? AND interval_start >= ?`,
		series, from.Unix()); err != nil {
		return false, err
	}

	for _, cp := range cps {
		cp.State.Version = next
		candle, err := json.Marshal(cp.Candle)
		if err != nil {
			return false, err
		}
		state, err := json.Marshal(cp.State)
		if err != nil {
			return false, err
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO indicator_checkpoints (series, interval_start, candle, state)
			VALUES (?, ?, ?, ?)`,
			series, cp.Candle.IntervalStart.Unix(), string(candle), string(state)); err != nil {
			return false, err
		}
	}

	if _, err = tx.ExecContext(ctx, `
		DELETE FROM indicator_checkpoints
		WHERE series = ? AND interval_start NOT IN (
			SELECT interval_start FROM indicator_checkpoints
			WHERE series = ? ORDER BY interval_start DESC LIMIT ?)`,
		series, series, s.retention); err != nil {
		return false, err
	}

	if err = tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLite) CheckpointBefore(ctx context.Context, key market.SeriesKey, t time.Time) (*indicators.Checkpoint, error) {
	cps, err := s.query(ctx, `
		SELECT candle, state FROM indicator_checkpoints
		WHERE series = ? AND interval_start < ?
		ORDER BY interval_start DESC LIMIT 1`, key.String(), t.Unix())
	if err != nil || len(cps) == 0 {
		return nil, err
	}
	return &cps[0], nil
}

func (s *SQLite) CheckpointsFrom(ctx context.Context, key market.SeriesKey, t time.Time) ([]indicators.Checkpoint, error) {
	return s.query(ctx, `
		SELECT candle, state FROM indicator_checkpoints
		WHERE series = ? AND interval_start >= ?
		ORDER BY interval_start ASC`, key.String(), t.Unix())
}

func (s *SQLite) query(ctx context.Context, q string, args ...any) ([]indicators.Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []indicators.Checkpoint
	for rows.Next() {
		var candle, state string
		if err := rows.Scan(&candle, &state); err != nil {
			return nil, err
		}
		var cp indicators.Checkpoint
		if err := json.Unmarshal([]byte(candle), &cp.Candle); err != nil {
			return nil, fmt.Errorf("decode checkpoint candle: %w", err)
		}
		if err := json.Unmarshal([]byte(state), &cp.State); err != nil {
			return nil, fmt.Errorf("decode checkpoint state: %w", err)
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

// LoadSnapshot returns the partition snapshot saved for p.
func (s *SQLite) LoadSnapshot(ctx context.Context, p market.PartitionKey) ([]byte, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT snapshot FROM partition_snapshots WHERE partition_key = ?`, p.String()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (s *SQLite) SaveSnapshot(ctx context.Context, p market.PartitionKey, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO partition_snapshots (partition_key, snapshot) VALUES (?, ?)
		ON CONFLICT(partition_key) DO UPDATE SET snapshot = excluded.snapshot`,
		p.String(), data)
	return err
}
