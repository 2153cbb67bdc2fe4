package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/candlestream/engine"
	"github.com/rustyeddy/candlestream/internal/logger"
	"github.com/rustyeddy/candlestream/market"
)

// Validate checks that the configuration is usable. It reports the first
// problem found.
func (c *Config) Validate() error {
	switch logger.Level(strings.ToLower(c.Log.Level)) {
	case logger.DebugLevel, logger.InfoLevel, logger.WarnLevel, logger.ErrorLevel:
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}

	if len(c.Symbols) == 0 {
		return fmt.Errorf("symbols is required")
	}
	for i, s := range c.Symbols {
		if s.Exchange == "" || s.Symbol == "" {
			return fmt.Errorf("symbols[%d]: exchange and symbol are required", i)
		}
	}

	if len(c.Resolutions) == 0 {
		return fmt.Errorf("resolutions is required")
	}
	for _, r := range c.Resolutions {
		if _, err := market.ParseResolution(r); err != nil {
			return fmt.Errorf("resolutions: %w", err)
		}
	}

	if err := c.Validation.validate(); err != nil {
		return err
	}

	for field, v := range map[string]string{
		"builder.grace_period":              c.Builder.GracePeriod,
		"builder.flush_delay":               c.Builder.FlushDelay,
		"builder.flush_interval":            c.Builder.FlushInterval,
		"dedup.window":                      c.Dedup.Window,
		"engine.retry.initial_backoff":      c.Engine.Retry.InitialBackoff,
		"engine.retry.max_backoff":          c.Engine.Retry.MaxBackoff,
		"engine.retry.attempt_timeout":      c.Engine.Retry.AttemptTimeout,
		"state_store.redis.connect_timeout": c.StateStore.Redis.ConnectTimeout,
		"source.kafka.max_wait":             c.Source.Kafka.MaxWait,
	} {
		if _, err := parseDuration(field, v); err != nil {
			return err
		}
	}

	if err := c.Indicators.Validate(); err != nil {
		return err
	}

	if c.Quality.AlertThreshold < 0 || c.Quality.AlertThreshold > 1 {
		return fmt.Errorf("quality.alert_threshold must be between 0 and 1")
	}

	if c.Engine.Workers <= 0 {
		return fmt.Errorf("engine.workers must be positive")
	}
	if _, err := engine.ParseSequencePolicy(c.Engine.SequencePolicy); err != nil {
		return fmt.Errorf("engine.sequence_policy: %w", err)
	}
	if c.Engine.ConflictRetries < 0 || c.Engine.BatchRetries < 0 {
		return fmt.Errorf("engine.conflict_retries and engine.batch_retries must not be negative")
	}
	if c.Engine.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("engine.retry.max_attempts must be positive")
	}

	if err := c.StateStore.validate(); err != nil {
		return err
	}
	if err := c.Sink.validate(); err != nil {
		return err
	}
	return c.Source.validate()
}

func (v ValidationConfig) validate() error {
	values := make(map[string]decimal.Decimal, 3)
	for field, s := range map[string]string{
		"min_price":  v.MinPrice,
		"max_price":  v.MaxPrice,
		"min_volume": v.MinVolume,
	} {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return fmt.Errorf("validation.%s: invalid decimal %q", field, s)
		}
		values[field] = d
	}
	if !values["min_price"].LessThan(values["max_price"]) {
		return fmt.Errorf("validation.min_price must be less than validation.max_price")
	}
	if values["min_volume"].IsNegative() {
		return fmt.Errorf("validation.min_volume must not be negative")
	}
	d, err := parseDuration("validation.timestamp_tolerance", v.TimestampTolerance)
	if err != nil {
		return err
	}
	if d == 0 {
		return fmt.Errorf("validation.timestamp_tolerance must be positive")
	}
	return nil
}

func (s StateStoreConfig) validate() error {
	switch s.Backend {
	case "memory":
	case "sqlite":
		if s.Path == "" {
			return fmt.Errorf("state_store.path is required for the sqlite backend")
		}
	case "redis":
		if s.Redis.Addr == "" {
			return fmt.Errorf("state_store.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("state_store.backend must be 'memory', 'sqlite' or 'redis'")
	}
	if s.Retention <= 0 {
		return fmt.Errorf("state_store.retention must be positive")
	}
	return nil
}

func (s SinkConfig) validate() error {
	switch s.Backend {
	case "memory":
	case "sqlite":
		if s.Path == "" {
			return fmt.Errorf("sink.path is required for the sqlite backend")
		}
	case "postgres":
		if s.Postgres.DSN == "" && (s.Postgres.Host == "" || s.Postgres.Name == "") {
			return fmt.Errorf("sink.postgres needs dsn, or host and name")
		}
	default:
		return fmt.Errorf("sink.backend must be 'memory', 'sqlite' or 'postgres'")
	}
	return nil
}

func (s SourceConfig) validate() error {
	if s.BatchSize <= 0 {
		return fmt.Errorf("source.batch_size must be positive")
	}
	switch s.Type {
	case "kafka":
		if len(s.Kafka.Brokers) == 0 {
			return fmt.Errorf("source.kafka.brokers is required")
		}
		if s.Kafka.Topic == "" {
			return fmt.Errorf("source.kafka.topic is required")
		}
		if s.Kafka.GroupID == "" {
			return fmt.Errorf("source.kafka.group_id is required")
		}
		if s.Kafka.MaxBatch <= 0 {
			return fmt.Errorf("source.kafka.max_batch must be positive")
		}
	case "csv":
	default:
		return fmt.Errorf("source.type must be 'kafka' or 'csv'")
	}
	return nil
}
