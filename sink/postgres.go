package sink

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rustyeddy/candlestream/market"
)

// PostgresConfig locates the warehouse. DSN wins over the discrete fields.
type PostgresConfig struct {
	DSN      string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	Name     string `json:"name" yaml:"name"`
	SSLMode  string `json:"ssl_mode,omitempty" yaml:"ssl_mode,omitempty"`
	MinConns int    `json:"min_conns" yaml:"min_conns"`
	MaxConns int    `json:"max_conns" yaml:"max_conns"`
	// CreateSchema runs PostgresSchema on connect.
	CreateSchema bool `json:"create_schema" yaml:"create_schema"`
}

// ConnString builds a postgres URL from cfg.
func (cfg PostgresConfig) ConnString() string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, url.QueryEscape(cfg.Password), cfg.Host, cfg.Port, cfg.Name, sslMode)
}

// Postgres upserts rows into the warehouse with one pgx batch per write.
type Postgres struct {
	pool          *pgxpool.Pool
	candleUpsert  string
	qualityUpsert string
}

func NewPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if cfg.CreateSchema {
		if _, err := pool.Exec(ctx, PostgresSchema); err != nil {
			pool.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return NewPostgresFromPool(pool), nil
}

// NewPostgresFromPool wraps an existing pool.
func NewPostgresFromPool(pool *pgxpool.Pool) *Postgres {
	return &Postgres{
		pool:          pool,
		candleUpsert:  upsertSQL("enriched_candles", candleColumns, candleKeyColumns, dollar),
		qualityUpsert: upsertSQL("data_quality", qualityColumns, qualityKeyColumns, dollar),
	}
}

func (p *Postgres) WriteCandles(ctx context.Context, candles []market.EnrichedCandle) error {
	if len(candles) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, c := range candles {
		args := []any{
			c.Symbol, c.Exchange, string(c.Resolution),
			c.IntervalStart.UTC(), c.IntervalEnd.UTC(),
			c.Open, c.High, c.Low, c.Close, c.Volume, c.TradeCount, c.VWAP,
		}
		batch.Queue(p.candleUpsert, append(args, indicatorArgs(c)...)...)
	}
	return p.send(ctx, batch)
}

func (p *Postgres) WriteQuality(ctx context.Context, records []market.QualityRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, q := range records {
		batch.Queue(p.qualityUpsert,
			q.Exchange, q.Symbol, q.Date.UTC(),
			q.TotalRecords, q.ValidRecords, q.InvalidRecords, q.DuplicateRecords, q.LateRecords,
			q.QualityScore, q.Final)
	}
	return p.send(ctx, batch)
}

// send runs the batch in one transaction so a failed write leaves no rows.
func (p *Postgres) send(ctx context.Context, batch *pgx.Batch) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	results := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("upsert row %d: %w", i, err)
		}
	}
	if err := results.Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
