package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/candlestream/indicators"
	"github.com/rustyeddy/candlestream/market"
	"github.com/rustyeddy/candlestream/sink"
)

// Config is the complete process configuration. It is loaded once at
// startup and not changed afterwards. Durations are strings such as
// "300s" or "5m".
type Config struct {
	Log         LogConfig           `json:"log" yaml:"log"`
	Symbols     []market.SymbolMeta `json:"symbols" yaml:"symbols"`
	Resolutions []string            `json:"resolutions" yaml:"resolutions"`
	Validation  ValidationConfig    `json:"validation" yaml:"validation"`
	Builder     BuilderConfig       `json:"builder" yaml:"builder"`
	Dedup       DedupConfig         `json:"dedup" yaml:"dedup"`
	Indicators  indicators.Params   `json:"indicators" yaml:"indicators"`
	Quality     QualityConfig       `json:"quality" yaml:"quality"`
	Engine      EngineConfig        `json:"engine" yaml:"engine"`
	StateStore  StateStoreConfig    `json:"state_store" yaml:"state_store"`
	Sink        SinkConfig          `json:"sink" yaml:"sink"`
	Source      SourceConfig        `json:"source" yaml:"source"`
	Status      StatusConfig        `json:"status" yaml:"status"`
}

type LogConfig struct {
	Level       string `json:"level" yaml:"level"`
	Development bool   `json:"development,omitempty" yaml:"development,omitempty"`
}

// ValidationConfig holds the record validator thresholds. Prices and
// volumes are decimal strings.
type ValidationConfig struct {
	MinPrice           string `json:"min_price" yaml:"min_price"`
	MaxPrice           string `json:"max_price" yaml:"max_price"`
	MinVolume          string `json:"min_volume" yaml:"min_volume"`
	TimestampTolerance string `json:"timestamp_tolerance" yaml:"timestamp_tolerance"`
}

type BuilderConfig struct {
	GracePeriod string `json:"grace_period" yaml:"grace_period"`
	FlushDelay  string `json:"flush_delay" yaml:"flush_delay"`
	// FlushInterval is how often idle partitions are checked for due
	// candles.
	FlushInterval string `json:"flush_interval" yaml:"flush_interval"`
}

type DedupConfig struct {
	Window string `json:"window" yaml:"window"`
}

type QualityConfig struct {
	AlertThreshold float64 `json:"alert_threshold" yaml:"alert_threshold"`
}

type EngineConfig struct {
	Workers         int         `json:"workers" yaml:"workers"`
	SequencePolicy  string      `json:"sequence_policy" yaml:"sequence_policy"`
	ConflictRetries int         `json:"conflict_retries" yaml:"conflict_retries"`
	BatchRetries    int         `json:"batch_retries" yaml:"batch_retries"`
	Retry           RetryConfig `json:"retry" yaml:"retry"`
}

type RetryConfig struct {
	MaxAttempts    int    `json:"max_attempts" yaml:"max_attempts"`
	InitialBackoff string `json:"initial_backoff" yaml:"initial_backoff"`
	MaxBackoff     string `json:"max_backoff" yaml:"max_backoff"`
	AttemptTimeout string `json:"attempt_timeout" yaml:"attempt_timeout"`
}

// StateStoreConfig selects where indicator state lives: "memory",
// "sqlite" or "redis".
type StateStoreConfig struct {
	Backend   string      `json:"backend" yaml:"backend"`
	Path      string      `json:"path,omitempty" yaml:"path,omitempty"`
	Retention int         `json:"retention" yaml:"retention"`
	Redis     RedisConfig `json:"redis" yaml:"redis"`
}

type RedisConfig struct {
	Addr           string `json:"addr" yaml:"addr"`
	Username       string `json:"username,omitempty" yaml:"username,omitempty"`
	Password       string `json:"password,omitempty" yaml:"password,omitempty"`
	DB             int    `json:"db" yaml:"db"`
	Prefix         string `json:"prefix" yaml:"prefix"`
	ConnectTimeout string `json:"connect_timeout" yaml:"connect_timeout"`
	PoolSize       int    `json:"pool_size" yaml:"pool_size"`
}

// SinkConfig selects where enriched candles and quality records go:
// "memory", "sqlite" or "postgres".
type SinkConfig struct {
	Backend  string              `json:"backend" yaml:"backend"`
	Path     string              `json:"path,omitempty" yaml:"path,omitempty"`
	Postgres sink.PostgresConfig `json:"postgres" yaml:"postgres"`
}

// SourceConfig selects the input: "kafka" for the live stream, "csv" for
// replays.
type SourceConfig struct {
	Type      string      `json:"type" yaml:"type"`
	CSVPath   string      `json:"csv_path,omitempty" yaml:"csv_path,omitempty"`
	BatchSize int         `json:"batch_size" yaml:"batch_size"`
	Kafka     KafkaConfig `json:"kafka" yaml:"kafka"`
}

type KafkaConfig struct {
	Brokers  []string `json:"brokers" yaml:"brokers"`
	Topic    string   `json:"topic" yaml:"topic"`
	GroupID  string   `json:"group_id" yaml:"group_id"`
	MaxBatch int      `json:"max_batch" yaml:"max_batch"`
	MaxWait  string   `json:"max_wait" yaml:"max_wait"`
}

// StatusConfig configures the HTTP status endpoint; an empty Addr
// disables it.
type StatusConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// Load builds the process configuration: defaults, then the file at path
// if one is given, then CANDLESTREAM_* environment variables (a .env file
// in the working directory is read first if present).
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = read(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(nil); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a file (YAML, or JSON)
func LoadFromFile(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = &Config{}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

// SaveToFile writes YAML for .yaml/.yml paths and JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", field, s)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", field)
	}
	return d, nil
}
