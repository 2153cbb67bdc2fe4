// Package metrics reports per-batch processing figures and quality alerts
// to an observability backend.
package metrics

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/candlestream/market"
)

// BatchStats summarises one engine batch.
type BatchStats struct {
	BatchID          string
	RecordsProcessed int64
	ValidRecords     int64
	InvalidRecords   int64
	DuplicateRecords int64
	LateRecords      int64
	Rejections       map[market.RejectionReason]int64
	CandlesEmitted   int64
	CandlesCorrected int64
	FailedKeys       int
	ProcessingTime   time.Duration
}

// QualityScore is the batch-level share of valid records, 1.0 when empty.
func (s BatchStats) QualityScore() float64 {
	if s.RecordsProcessed == 0 {
		return 1.0
	}
	return float64(s.ValidRecords) / float64(s.RecordsProcessed)
}

// Alert is raised when a quality record's invalid ratio crosses the
// configured threshold.
type Alert struct {
	Record    market.QualityRecord
	ErrorRate float64
	Threshold float64
	At        time.Time
}

// Recorder receives metrics. Implementations must be safe for concurrent use.
type Recorder interface {
	RecordBatch(BatchStats)
	RecordQuality(market.QualityRecord)
	RecordAlert(Alert)
}

var (
	_ Recorder = Nop{}
	_ Recorder = (*Log)(nil)
	_ Recorder = (*Memory)(nil)
	_ Recorder = Multi(nil)
)

// Nop drops everything.
type Nop struct{}

func (Nop) RecordBatch(BatchStats)             {}
func (Nop) RecordQuality(market.QualityRecord) {}
func (Nop) RecordAlert(Alert)                  {}

// Log writes metrics as structured log lines.
type Log struct {
	log *zap.Logger
}

func NewLog(log *zap.Logger) *Log {
	if log == nil {
		log = zap.NewNop()
	}
	return &Log{log: log.Named("metrics")}
}

func (l *Log) RecordBatch(s BatchStats) {
	fields := []zap.Field{
		zap.String("batch", s.BatchID),
		zap.Int64("records_processed", s.RecordsProcessed),
		zap.Int64("valid_records", s.ValidRecords),
		zap.Int64("invalid_records", s.InvalidRecords),
		zap.Int64("duplicate_records", s.DuplicateRecords),
		zap.Int64("late_records", s.LateRecords),
		zap.Float64("data_quality_score", s.QualityScore()),
		zap.Int64("candles_emitted", s.CandlesEmitted),
		zap.Int64("candles_corrected", s.CandlesCorrected),
		zap.Int("failed_keys", s.FailedKeys),
		zap.Duration("processing_time", s.ProcessingTime),
	}
	for reason, n := range s.Rejections {
		fields = append(fields, zap.Int64("invalid_"+string(reason), n))
	}
	l.log.Info("batch metrics", fields...)
}

func (l *Log) RecordQuality(q market.QualityRecord) {
	l.log.Debug("quality",
		zap.String("exchange", q.Exchange),
		zap.String("symbol", q.Symbol),
		zap.String("date", q.Date.Format("2006-01-02")),
		zap.Float64("quality_score", q.QualityScore),
		zap.Int64("total_records", q.TotalRecords),
		zap.Bool("final", q.Final))
}

func (l *Log) RecordAlert(a Alert) {
	l.log.Warn("high error rate",
		zap.String("exchange", a.Record.Exchange),
		zap.String("symbol", a.Record.Symbol),
		zap.String("date", a.Record.Date.Format("2006-01-02")),
		zap.Float64("error_rate", a.ErrorRate),
		zap.Float64("threshold", a.Threshold),
		zap.Int64("invalid_records", a.Record.InvalidRecords),
		zap.Int64("total_records", a.Record.TotalRecords))
}

// Memory keeps everything it is given; the status endpoint and tests
// read from it.
type Memory struct {
	mu      sync.Mutex
	batches []BatchStats
	quality map[string]market.QualityRecord
	alerts  []Alert
	limit   int
}

// NewMemory keeps at most limit batches and alerts (0 means 100).
func NewMemory(limit int) *Memory {
	if limit <= 0 {
		limit = 100
	}
	return &Memory{quality: make(map[string]market.QualityRecord), limit: limit}
}

func (m *Memory) RecordBatch(s BatchStats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = appendBounded(m.batches, s, m.limit)
}

func (m *Memory) RecordQuality(q market.QualityRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quality[q.Exchange+":"+q.Symbol+":"+q.Date.Format("2006-01-02")] = q
}

func (m *Memory) RecordAlert(a Alert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = appendBounded(m.alerts, a, m.limit)
}

// Batches returns recorded batches, oldest first.
func (m *Memory) Batches() []BatchStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]BatchStats(nil), m.batches...)
}

// Latest returns the most recent batch.
func (m *Memory) Latest() (BatchStats, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.batches) == 0 {
		return BatchStats{}, false
	}
	return m.batches[len(m.batches)-1], true
}

func (m *Memory) Alerts() []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Alert(nil), m.alerts...)
}

func (m *Memory) Quality() []market.QualityRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]market.QualityRecord, 0, len(m.quality))
	for _, q := range m.quality {
		out = append(out, q)
	}
	return out
}

func appendBounded[T any](s []T, v T, limit int) []T {
	s = append(s, v)
	if len(s) > limit {
		s = append(s[:0:0], s[len(s)-limit:]...)
	}
	return s
}

// Multi forwards to several recorders.
type Multi []Recorder

func (m Multi) RecordBatch(s BatchStats) {
	for _, r := range m {
		r.RecordBatch(s)
	}
}

func (m Multi) RecordQuality(q market.QualityRecord) {
	for _, r := range m {
		r.RecordQuality(q)
	}
}

func (m Multi) RecordAlert(a Alert) {
	for _, r := range m {
		r.RecordAlert(a)
	}
}
