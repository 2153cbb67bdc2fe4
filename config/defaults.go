package config

import (
	"github.com/rustyeddy/candlestream/indicators"
	"github.com/rustyeddy/candlestream/market"
)

// Default values for optional configuration fields.
const (
	DefaultLogLevel           = "info"
	DefaultMinPrice           = "0.01"
	DefaultMaxPrice           = "1000000"
	DefaultMinVolume          = "0"
	DefaultTimestampTolerance = "300s"
	DefaultGracePeriod        = "5m"
	DefaultFlushDelay         = "5s"
	DefaultFlushInterval      = "10s"
	DefaultAlertThreshold     = 0.10
	DefaultWorkers            = 4
	DefaultSequencePolicy     = "replay"
	DefaultConflictRetries    = 3
	DefaultBatchRetries       = 2
	DefaultMaxAttempts        = 3
	DefaultInitialBackoff     = "100ms"
	DefaultMaxBackoff         = "5s"
	DefaultAttemptTimeout     = "10s"
	DefaultStateBackend       = "memory"
	DefaultRetention          = 500
	DefaultRedisAddr          = "localhost:6379"
	DefaultRedisPrefix        = "candlestream:"
	DefaultRedisTimeout       = "5s"
	DefaultSinkBackend        = "memory"
	DefaultPostgresPort       = 5432
	DefaultPostgresSSLMode    = "prefer"
	DefaultPostgresMinConns   = 1
	DefaultPostgresMaxConns   = 10
	DefaultSourceType         = "kafka"
	DefaultBatchSize          = 500
	DefaultKafkaTopic         = "raw-trades"
	DefaultKafkaGroupID       = "candlestream"
	DefaultKafkaMaxBatch      = 500
	DefaultKafkaMaxWait       = "1s"
)

var DefaultKafkaBrokers = []string{"localhost:9092"}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if len(c.Symbols) == 0 {
		c.Symbols = append([]market.SymbolMeta(nil), market.DefaultSymbols...)
	}
	if len(c.Resolutions) == 0 {
		for _, r := range market.AllResolutions {
			c.Resolutions = append(c.Resolutions, string(r))
		}
	}

	// Validation defaults
	if c.Validation.MinPrice == "" {
		c.Validation.MinPrice = DefaultMinPrice
	}
	if c.Validation.MaxPrice == "" {
		c.Validation.MaxPrice = DefaultMaxPrice
	}
	if c.Validation.MinVolume == "" {
		c.Validation.MinVolume = DefaultMinVolume
	}
	if c.Validation.TimestampTolerance == "" {
		c.Validation.TimestampTolerance = DefaultTimestampTolerance
	}

	// Builder and dedup defaults
	if c.Builder.GracePeriod == "" {
		c.Builder.GracePeriod = DefaultGracePeriod
	}
	if c.Builder.FlushDelay == "" {
		c.Builder.FlushDelay = DefaultFlushDelay
	}
	if c.Builder.FlushInterval == "" {
		c.Builder.FlushInterval = DefaultFlushInterval
	}
	if c.Dedup.Window == "" {
		c.Dedup.Window = c.Validation.TimestampTolerance
	}

	applyIndicatorDefaults(&c.Indicators)

	if c.Quality.AlertThreshold == 0 {
		c.Quality.AlertThreshold = DefaultAlertThreshold
	}

	// Engine defaults
	if c.Engine.Workers == 0 {
		c.Engine.Workers = DefaultWorkers
	}
	if c.Engine.SequencePolicy == "" {
		c.Engine.SequencePolicy = DefaultSequencePolicy
	}
	if c.Engine.ConflictRetries == 0 {
		c.Engine.ConflictRetries = DefaultConflictRetries
	}
	if c.Engine.BatchRetries == 0 {
		c.Engine.BatchRetries = DefaultBatchRetries
	}
	if c.Engine.Retry.MaxAttempts == 0 {
		c.Engine.Retry.MaxAttempts = DefaultMaxAttempts
	}
	if c.Engine.Retry.InitialBackoff == "" {
		c.Engine.Retry.InitialBackoff = DefaultInitialBackoff
	}
	if c.Engine.Retry.MaxBackoff == "" {
		c.Engine.Retry.MaxBackoff = DefaultMaxBackoff
	}
	if c.Engine.Retry.AttemptTimeout == "" {
		c.Engine.Retry.AttemptTimeout = DefaultAttemptTimeout
	}

	// State store defaults
	if c.StateStore.Backend == "" {
		c.StateStore.Backend = DefaultStateBackend
	}
	if c.StateStore.Retention == 0 {
		c.StateStore.Retention = DefaultRetention
	}
	if c.StateStore.Redis.Addr == "" {
		c.StateStore.Redis.Addr = DefaultRedisAddr
	}
	if c.StateStore.Redis.Prefix == "" {
		c.StateStore.Redis.Prefix = DefaultRedisPrefix
	}
	if c.StateStore.Redis.ConnectTimeout == "" {
		c.StateStore.Redis.ConnectTimeout = DefaultRedisTimeout
	}

	// Sink defaults
	if c.Sink.Backend == "" {
		c.Sink.Backend = DefaultSinkBackend
	}
	pg := &c.Sink.Postgres
	if pg.Port == 0 {
		pg.Port = DefaultPostgresPort
	}
	if pg.SSLMode == "" {
		pg.SSLMode = DefaultPostgresSSLMode
	}
	if pg.MinConns == 0 {
		pg.MinConns = DefaultPostgresMinConns
	}
	if pg.MaxConns == 0 {
		pg.MaxConns = DefaultPostgresMaxConns
	}

	// Source defaults
	if c.Source.Type == "" {
		c.Source.Type = DefaultSourceType
	}
	if c.Source.BatchSize == 0 {
		c.Source.BatchSize = DefaultBatchSize
	}
	if len(c.Source.Kafka.Brokers) == 0 {
		c.Source.Kafka.Brokers = append([]string(nil), DefaultKafkaBrokers...)
	}
	if c.Source.Kafka.Topic == "" {
		c.Source.Kafka.Topic = DefaultKafkaTopic
	}
	if c.Source.Kafka.GroupID == "" {
		c.Source.Kafka.GroupID = DefaultKafkaGroupID
	}
	if c.Source.Kafka.MaxBatch == 0 {
		c.Source.Kafka.MaxBatch = DefaultKafkaMaxBatch
	}
	if c.Source.Kafka.MaxWait == "" {
		c.Source.Kafka.MaxWait = DefaultKafkaMaxWait
	}
}

// applyIndicatorDefaults fills each unset period from indicators.DefaultParams.
func applyIndicatorDefaults(p *indicators.Params) {
	d := indicators.DefaultParams()
	for _, f := range []struct {
		v   *int
		def int
	}{
		{&p.SMAShort, d.SMAShort},
		{&p.SMAMid, d.SMAMid},
		{&p.SMALong, d.SMALong},
		{&p.EMAFast, d.EMAFast},
		{&p.EMASlow, d.EMASlow},
		{&p.Signal, d.Signal},
		{&p.BollingerPeriod, d.BollingerPeriod},
		{&p.RSIPeriod, d.RSIPeriod},
		{&p.VolatilityWindow, d.VolatilityWindow},
		{&p.PriceChangeWindow, d.PriceChangeWindow},
	} {
		if *f.v == 0 {
			*f.v = f.def
		}
	}
	if p.BollingerK == 0 {
		p.BollingerK = d.BollingerK
	}
}
