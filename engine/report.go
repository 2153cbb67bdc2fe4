package engine

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/rustyeddy/candlestream/market"
	"github.com/rustyeddy/candlestream/metrics"
)

// ErrBatchFailed is returned by Process when any partition or series
// failed. The batch must not be committed.
var ErrBatchFailed = errors.New("batch failed")

// Stage names where a key failed.
type Stage string

const (
	StageState    Stage = "state"
	StageSequence Stage = "sequence"
	StageSink     Stage = "sink"
)

// KeyFailure is one failed series or partition.
type KeyFailure struct {
	Key    string `json:"key"`
	Stage  Stage  `json:"stage"`
	Reason string `json:"reason"`
}

// SinkWriteError wraps a sink failure that survived every retry.
type SinkWriteError struct {
	Op      string
	Records int
	Err     error
}

func (e *SinkWriteError) Error() string {
	return fmt.Sprintf("sink %s (%d records): %v", e.Op, e.Records, e.Err)
}

func (e *SinkWriteError) Unwrap() error { return e.Err }

// Report describes one processed batch.
type Report struct {
	BatchID          string                            `json:"batch_id"`
	StartedAt        time.Time                         `json:"started_at"`
	ProcessingTime   time.Duration                     `json:"processing_time_ns"`
	RecordsProcessed int64                             `json:"records_processed"`
	ValidRecords     int64                             `json:"valid_records"`
	InvalidRecords   int64                             `json:"invalid_records"`
	DuplicateRecords int64                             `json:"duplicate_records"`
	LateRecords      int64                             `json:"late_records"`
	Rejections       map[market.RejectionReason]int64 `json:"rejections,omitempty"`
	CandlesEmitted   int64                             `json:"candles_emitted"`
	CandlesCorrected int64                             `json:"candles_corrected"`
	CandlesDropped   int64                             `json:"candles_dropped"`
	Quality          []market.QualityRecord            `json:"quality,omitempty"`
	Alerts           []metrics.Alert                   `json:"alerts,omitempty"`
	Failures         []KeyFailure                      `json:"failures,omitempty"`
}

func (r Report) Failed() bool { return len(r.Failures) > 0 }

// DataQualityScore is valid/total over the batch, 1.0 when empty.
func (r Report) DataQualityScore() float64 {
	return r.Stats().QualityScore()
}

// Stats converts r for a metrics.Recorder.
func (r Report) Stats() metrics.BatchStats {
	return metrics.BatchStats{
		BatchID:          r.BatchID,
		RecordsProcessed: r.RecordsProcessed,
		ValidRecords:     r.ValidRecords,
		InvalidRecords:   r.InvalidRecords,
		DuplicateRecords: r.DuplicateRecords,
		LateRecords:      r.LateRecords,
		Rejections:       r.Rejections,
		CandlesEmitted:   r.CandlesEmitted,
		CandlesCorrected: r.CandlesCorrected,
		FailedKeys:       len(r.Failures),
		ProcessingTime:   r.ProcessingTime,
	}
}

// partResult is what one partition contributes to a Report.
type partResult struct {
	records, valid, invalid, duplicates, late int64
	rejections                                map[market.RejectionReason]int64
	emitted, corrected, dropped               int64
	quality                                   []market.QualityRecord
	alerts                                    []metrics.Alert
	failures                                  []KeyFailure
}

func (r *Report) add(p partResult) {
	r.RecordsProcessed += p.records
	r.ValidRecords += p.valid
	r.InvalidRecords += p.invalid
	r.DuplicateRecords += p.duplicates
	r.LateRecords += p.late
	for reason, n := range p.rejections {
		if r.Rejections == nil {
			r.Rejections = make(map[market.RejectionReason]int64)
		}
		r.Rejections[reason] += n
	}
	r.CandlesEmitted += p.emitted
	r.CandlesCorrected += p.corrected
	r.CandlesDropped += p.dropped
	r.Quality = append(r.Quality, p.quality...)
	r.Alerts = append(r.Alerts, p.alerts...)
	r.Failures = append(r.Failures, p.failures...)
}

// PrintReport writes a human readable summary of r.
func PrintReport(w io.Writer, r Report) {
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Batch Report")
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintf(w, "Batch:         %s\n", r.BatchID)
	fmt.Fprintf(w, "Started:       %s\n", r.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Elapsed:       %s\n", r.ProcessingTime)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Records")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Processed:     %d\n", r.RecordsProcessed)
	fmt.Fprintf(w, "Valid:         %d\n", r.ValidRecords)
	fmt.Fprintf(w, "Invalid:       %d\n", r.InvalidRecords)
	fmt.Fprintf(w, "Duplicates:    %d\n", r.DuplicateRecords)
	fmt.Fprintf(w, "Late:          %d\n", r.LateRecords)
	fmt.Fprintf(w, "Quality Score: %.4f\n", r.DataQualityScore())

	if len(r.Rejections) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Rejections")
		fmt.Fprintln(w, "--------------------------------------------------")
		for _, reason := range market.RejectionReasons {
			if n := r.Rejections[reason]; n > 0 {
				fmt.Fprintf(w, "%-28s %d\n", reason+":", n)
			}
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Candles")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Emitted:       %d\n", r.CandlesEmitted)
	fmt.Fprintf(w, "Corrected:     %d\n", r.CandlesCorrected)
	if r.CandlesDropped > 0 {
		fmt.Fprintf(w, "Dropped:       %d\n", r.CandlesDropped)
	}

	if len(r.Alerts) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Alerts")
		fmt.Fprintln(w, "--------------------------------------------------")
		for _, a := range r.Alerts {
			fmt.Fprintf(w, "%s %s %s error rate %.2f%%\n",
				a.Record.Exchange, a.Record.Symbol, a.Record.Date.Format("2006-01-02"), a.ErrorRate*100)
		}
	}

	if len(r.Failures) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Failures")
		fmt.Fprintln(w, "--------------------------------------------------")
		fs := append([]KeyFailure(nil), r.Failures...)
		sort.Slice(fs, func(i, j int) bool { return fs[i].Key < fs[j].Key })
		for _, f := range fs {
			fmt.Fprintf(w, "%s [%s] %s\n", f.Key, f.Stage, f.Reason)
		}
	}
}
