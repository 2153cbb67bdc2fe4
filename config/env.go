package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CANDLESTREAM_"

// envOverrides are the settings that may come from the environment,
// mostly endpoints and secrets that do not belong in a checked in file.
type envOverrides struct {
	LogLevel          string   `env:"LOG_LEVEL"`
	KafkaBrokers      []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic        string   `env:"KAFKA_TOPIC"`
	KafkaGroupID      string   `env:"KAFKA_GROUP_ID"`
	StateStoreBackend string   `env:"STATE_STORE_BACKEND"`
	StateStorePath    string   `env:"STATE_STORE_PATH"`
	RedisAddr         string   `env:"REDIS_ADDR"`
	RedisPassword     string   `env:"REDIS_PASSWORD"`
	SinkBackend       string   `env:"SINK_BACKEND"`
	SinkPath          string   `env:"SINK_PATH"`
	PostgresDSN       string   `env:"POSTGRES_DSN"`
	PostgresPassword  string   `env:"POSTGRES_PASSWORD"`
	StatusAddr        string   `env:"STATUS_ADDR"`
	Workers           int      `env:"WORKERS"`
}

// ApplyEnv overrides c from CANDLESTREAM_* variables. environ replaces
// the process environment when non-nil.
func (c *Config) ApplyEnv(environ map[string]string) error {
	var o envOverrides
	if err := env.ParseWithOptions(&o, env.Options{Prefix: EnvPrefix, Environment: environ}); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}

	set(&c.Log.Level, o.LogLevel)
	if len(o.KafkaBrokers) > 0 {
		c.Source.Kafka.Brokers = o.KafkaBrokers
	}
	set(&c.Source.Kafka.Topic, o.KafkaTopic)
	set(&c.Source.Kafka.GroupID, o.KafkaGroupID)
	set(&c.StateStore.Backend, o.StateStoreBackend)
	set(&c.StateStore.Path, o.StateStorePath)
	set(&c.StateStore.Redis.Addr, o.RedisAddr)
	set(&c.StateStore.Redis.Password, o.RedisPassword)
	set(&c.Sink.Backend, o.SinkBackend)
	set(&c.Sink.Path, o.SinkPath)
	set(&c.Sink.Postgres.DSN, o.PostgresDSN)
	set(&c.Sink.Postgres.Password, o.PostgresPassword)
	set(&c.Status.Addr, o.StatusAddr)
	if o.Workers > 0 {
		c.Engine.Workers = o.Workers
	}
	return nil
}

func set(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
