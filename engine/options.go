package engine

import (
	"fmt"
	"time"

	"github.com/rustyeddy/candlestream/candles"
	"github.com/rustyeddy/candlestream/indicators"
	"github.com/rustyeddy/candlestream/market"
	"github.com/rustyeddy/candlestream/validate"
)

// SequencePolicy decides what happens to a closed candle that is older
// than the last one applied to its series.
type SequencePolicy string

const (
	// PolicyReplay treats it as a correction and rolls the series back.
	PolicyReplay SequencePolicy = "replay"
	// PolicyDiscard logs and drops it.
	PolicyDiscard SequencePolicy = "discard"
	// PolicyFail fails the partition so the batch is redelivered.
	PolicyFail SequencePolicy = "fail"
)

func ParseSequencePolicy(s string) (SequencePolicy, error) {
	switch p := SequencePolicy(s); p {
	case PolicyReplay, PolicyDiscard, PolicyFail:
		return p, nil
	case "":
		return PolicyReplay, nil
	}
	return "", fmt.Errorf("unknown sequence policy %q", s)
}

// RetryConfig bounds calls to the state store and the sink.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// AttemptTimeout caps a single call; zero means no cap.
	AttemptTimeout time.Duration
}

func DefaultRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		AttemptTimeout: 10 * time.Second,
	}
}

// Options configures an Engine.
type Options struct {
	Thresholds      validate.Thresholds
	Symbols         *market.Registry
	Resolutions     []market.Resolution
	Builder         candles.Config
	// DedupWindow defaults to the timestamp tolerance.
	DedupWindow     time.Duration
	Params          indicators.Params
	ConflictRetries int
	Workers         int
	SequencePolicy  SequencePolicy
	Retry           RetryConfig
	// AlertThreshold is the invalid ratio above which a quality alert
	// is raised for an (exchange, symbol, day).
	AlertThreshold float64
	// Clock replaces time.Now.
	Clock func() time.Time
}

const (
	DefaultWorkers         = 4
	DefaultConflictRetries = 3
	DefaultAlertThreshold  = 0.10
)

func DefaultOptions() Options {
	th := validate.DefaultThresholds()
	return Options{
		Thresholds:      th,
		Symbols:         market.NewRegistry(market.DefaultSymbols...),
		Resolutions:     append([]market.Resolution(nil), market.AllResolutions...),
		Builder:         candles.DefaultConfig(),
		DedupWindow:     th.TimestampTolerance,
		Params:          indicators.DefaultParams(),
		ConflictRetries: DefaultConflictRetries,
		Workers:         DefaultWorkers,
		SequencePolicy:  PolicyReplay,
		Retry:           DefaultRetry(),
		AlertThreshold:  DefaultAlertThreshold,
	}
}

func (o *Options) normalize() error {
	if len(o.Resolutions) == 0 {
		return fmt.Errorf("engine: at least one resolution is required")
	}
	for _, r := range o.Resolutions {
		if !r.Valid() {
			return fmt.Errorf("engine: unsupported resolution %q", r)
		}
	}
	if err := o.Params.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if o.DedupWindow <= 0 {
		o.DedupWindow = o.Thresholds.TimestampTolerance
	}
	if o.Symbols == nil {
		o.Symbols = market.NewRegistry(market.DefaultSymbols...)
	}
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.SequencePolicy == "" {
		o.SequencePolicy = PolicyReplay
	}
	if _, err := ParseSequencePolicy(string(o.SequencePolicy)); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if o.Retry.MaxAttempts <= 0 {
		o.Retry.MaxAttempts = 1
	}
	if o.Retry.MaxBackoff < o.Retry.InitialBackoff {
		o.Retry.MaxBackoff = o.Retry.InitialBackoff
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return nil
}
