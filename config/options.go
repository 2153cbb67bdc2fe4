package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/candlestream/candles"
	"github.com/rustyeddy/candlestream/engine"
	"github.com/rustyeddy/candlestream/internal/logger"
	"github.com/rustyeddy/candlestream/market"
	"github.com/rustyeddy/candlestream/source"
	"github.com/rustyeddy/candlestream/store"
	"github.com/rustyeddy/candlestream/validate"
)

// The methods below convert a validated Config into the option types of
// the packages it configures.

func (c *Config) LoggerOptions() logger.Options {
	return logger.Options{
		Level:       logger.Level(strings.ToLower(c.Log.Level)),
		Development: c.Log.Development,
	}
}

func (c *Config) Thresholds() (validate.Thresholds, error) {
	var t validate.Thresholds
	var err error
	if t.MinPrice, err = decimal.NewFromString(c.Validation.MinPrice); err != nil {
		return t, fmt.Errorf("validation.min_price: %w", err)
	}
	if t.MaxPrice, err = decimal.NewFromString(c.Validation.MaxPrice); err != nil {
		return t, fmt.Errorf("validation.max_price: %w", err)
	}
	if t.MinVolume, err = decimal.NewFromString(c.Validation.MinVolume); err != nil {
		return t, fmt.Errorf("validation.min_volume: %w", err)
	}
	if t.TimestampTolerance, err = parseDuration("validation.timestamp_tolerance", c.Validation.TimestampTolerance); err != nil {
		return t, err
	}
	return t, nil
}

func (c *Config) ParsedResolutions() ([]market.Resolution, error) {
	out := make([]market.Resolution, 0, len(c.Resolutions))
	for _, s := range c.Resolutions {
		r, err := market.ParseResolution(s)
		if err != nil {
			return nil, fmt.Errorf("resolutions: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}

// EngineOptions builds engine.Options from c.
func (c *Config) EngineOptions() (engine.Options, error) {
	opts := engine.DefaultOptions()
	var err error

	if opts.Thresholds, err = c.Thresholds(); err != nil {
		return opts, err
	}
	if opts.Resolutions, err = c.ParsedResolutions(); err != nil {
		return opts, err
	}
	opts.Symbols = market.NewRegistry(c.Symbols...)

	var b candles.Config
	if b.GracePeriod, err = parseDuration("builder.grace_period", c.Builder.GracePeriod); err != nil {
		return opts, err
	}
	if b.FlushDelay, err = parseDuration("builder.flush_delay", c.Builder.FlushDelay); err != nil {
		return opts, err
	}
	opts.Builder = b

	if opts.DedupWindow, err = parseDuration("dedup.window", c.Dedup.Window); err != nil {
		return opts, err
	}
	opts.Params = c.Indicators
	opts.AlertThreshold = c.Quality.AlertThreshold

	opts.Workers = c.Engine.Workers
	opts.ConflictRetries = c.Engine.ConflictRetries
	if opts.SequencePolicy, err = engine.ParseSequencePolicy(c.Engine.SequencePolicy); err != nil {
		return opts, err
	}
	if opts.Retry, err = c.retry(); err != nil {
		return opts, err
	}
	return opts, nil
}

func (c *Config) retry() (engine.RetryConfig, error) {
	r := engine.RetryConfig{MaxAttempts: c.Engine.Retry.MaxAttempts}
	var err error
	if r.InitialBackoff, err = parseDuration("engine.retry.initial_backoff", c.Engine.Retry.InitialBackoff); err != nil {
		return r, err
	}
	if r.MaxBackoff, err = parseDuration("engine.retry.max_backoff", c.Engine.Retry.MaxBackoff); err != nil {
		return r, err
	}
	if r.AttemptTimeout, err = parseDuration("engine.retry.attempt_timeout", c.Engine.Retry.AttemptTimeout); err != nil {
		return r, err
	}
	return r, nil
}

func (c *Config) RunnerOptions(flushAtEnd bool) (engine.RunnerOptions, error) {
	d, err := parseDuration("builder.flush_interval", c.Builder.FlushInterval)
	if err != nil {
		return engine.RunnerOptions{}, err
	}
	return engine.RunnerOptions{
		FlushInterval: d,
		BatchRetries:  c.Engine.BatchRetries,
		FlushAtEnd:    flushAtEnd,
	}, nil
}

func (c *Config) RedisOptions() (store.RedisConfig, error) {
	r := c.StateStore.Redis
	timeout, err := parseDuration("state_store.redis.connect_timeout", r.ConnectTimeout)
	if err != nil {
		return store.RedisConfig{}, err
	}
	return store.RedisConfig{
		Addr:           r.Addr,
		Username:       r.Username,
		Password:       r.Password,
		DB:             r.DB,
		Prefix:         r.Prefix,
		ConnectTimeout: timeout,
		PoolSize:       r.PoolSize,
	}, nil
}

func (c *Config) KafkaOptions() (source.KafkaConfig, error) {
	k := c.Source.Kafka
	wait, err := parseDuration("source.kafka.max_wait", k.MaxWait)
	if err != nil {
		return source.KafkaConfig{}, err
	}
	if wait == 0 {
		wait = time.Second
	}
	return source.KafkaConfig{
		Brokers:  k.Brokers,
		Topic:    k.Topic,
		GroupID:  k.GroupID,
		MaxBatch: k.MaxBatch,
		MaxWait:  wait,
	}, nil
}
