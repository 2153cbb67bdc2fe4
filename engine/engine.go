// Package engine runs batches of raw trades through validation,
// deduplication, candle building and indicator enrichment, and writes
// the results to a sink.
//
// Work is partitioned by (exchange, symbol). A partition's in-memory
// state is cloned at the start of a batch and swapped in only after its
// state store and sink writes succeed, so a failed batch can be
// redelivered and reprocessed as if it had never been seen. When the
// state store also implements SnapshotStore the committed partition
// state is saved with every batch and restored on first use.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/candlestream/candles"
	"github.com/rustyeddy/candlestream/dedup"
	"github.com/rustyeddy/candlestream/indicators"
	"github.com/rustyeddy/candlestream/internal/id"
	"github.com/rustyeddy/candlestream/market"
	"github.com/rustyeddy/candlestream/metrics"
	"github.com/rustyeddy/candlestream/quality"
	"github.com/rustyeddy/candlestream/sink"
	"github.com/rustyeddy/candlestream/source"
	"github.com/rustyeddy/candlestream/validate"
)

// errDropped marks a closed candle the sequence policy chose to skip.
var errDropped = errors.New("candle dropped")

type partition struct {
	mu      sync.Mutex
	loaded  bool
	dedup   *dedup.Deduplicator
	builder *candles.Builder
	scorer  *quality.Scorer
}

func (p *partition) clone() *partition {
	return &partition{
		dedup:   p.dedup.Clone(),
		builder: p.builder.Clone(),
		scorer:  p.scorer.Clone(),
	}
}

func (p *partition) commit(w *partition) {
	p.dedup, p.builder, p.scorer = w.dedup, w.builder, w.scorer
}

type Engine struct {
	opts      Options
	validator *validate.Validator
	machine   *indicators.Machine
	snapshots SnapshotStore
	sink      sink.Sink
	metrics   metrics.Recorder
	log       *zap.Logger

	mu         sync.Mutex
	partitions map[market.PartitionKey]*partition
	warm       sync.Once

	reportMu sync.RWMutex
	last     *Report
}

func New(opts Options, states indicators.StateStore, out sink.Sink, rec metrics.Recorder, log *zap.Logger) (*Engine, error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}
	if states == nil {
		return nil, fmt.Errorf("engine: state store is required")
	}
	if out == nil {
		return nil, fmt.Errorf("engine: sink is required")
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("engine")
	snapshots, _ := states.(SnapshotStore)
	return &Engine{
		opts:       opts,
		validator:  validate.New(opts.Thresholds, opts.Symbols, validate.WithClock(opts.Clock)),
		machine:    indicators.NewMachine(states, opts.Params, opts.ConflictRetries, log),
		snapshots:  snapshots,
		sink:       out,
		metrics:    rec,
		log:        log,
		partitions: make(map[market.PartitionKey]*partition),
	}, nil
}

func (e *Engine) partition(key market.PartitionKey) *partition {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.partitions[key]
	if !ok {
		p = &partition{
			dedup:   dedup.New(e.opts.DedupWindow),
			builder: candles.NewBuilder(e.opts.Builder),
			scorer:  quality.NewScorer(),
		}
		e.partitions[key] = p
	}
	return p
}

func (e *Engine) knownPartitions() []market.PartitionKey {
	e.mu.Lock()
	defer e.mu.Unlock()
	keys := make([]market.PartitionKey, 0, len(e.partitions))
	for k := range e.partitions {
		keys = append(keys, k)
	}
	return keys
}

// Process runs one batch. Per-record problems are counted in the Report.
// A non-nil error means the batch must not be committed: ErrBatchFailed
// when some keys failed (listed in Report.Failures), or the context error.
func (e *Engine) Process(ctx context.Context, b source.Batch) (Report, error) {
	return e.process(ctx, b, e.opts.Clock().UTC())
}

// Flush closes candles that are due on partitions with no new trades.
func (e *Engine) Flush(ctx context.Context) (Report, error) {
	return e.process(ctx, source.Batch{ID: id.New()}, e.opts.Clock().UTC())
}

// FlushAll closes every open candle and finalizes every quality day,
// as at the end of a finite replay.
func (e *Engine) FlushAll(ctx context.Context) (Report, error) {
	return e.process(ctx, source.Batch{ID: id.New()}, time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC))
}

func (e *Engine) process(ctx context.Context, b source.Batch, now time.Time) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}
	began := time.Now()
	batchID := b.ID
	if batchID == "" {
		batchID = id.At(began)
	}
	report := Report{BatchID: batchID, StartedAt: now}

	groups := make(map[market.PartitionKey][]market.ValidatedTrade)
	for _, rt := range b.Trades {
		vt := e.validator.Validate(rt)
		k := rt.Partition()
		groups[k] = append(groups[k], vt)
	}
	if e.snapshots != nil {
		// restored partitions flush and close candles without new trades
		e.warm.Do(func() {
			for _, k := range e.opts.Symbols.Partitions() {
				e.partition(k)
			}
		})
	}
	for _, k := range e.knownPartitions() {
		if _, ok := groups[k]; !ok {
			groups[k] = nil
		}
	}

	keys := make([]market.PartitionKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	results := make([]partResult, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, k := range keys {
		i, k := i, k
		g.Go(func() error {
			r, err := e.processPartition(gctx, k, groups[k], now)
			results[i] = r
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	for _, r := range results {
		report.add(r)
	}
	report.ProcessingTime = time.Since(began)
	e.record(report)

	if report.Failed() {
		return report, fmt.Errorf("batch %s: %d failed keys: %w", batchID, len(report.Failures), ErrBatchFailed)
	}
	return report, nil
}

func (e *Engine) processPartition(ctx context.Context, key market.PartitionKey, trades []market.ValidatedTrade, now time.Time) (partResult, error) {
	p := e.partition(key)
	p.mu.Lock()
	defer p.mu.Unlock()

	res := partResult{rejections: make(map[market.RejectionReason]int64)}
	if err := e.load(ctx, key, p); err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.failures = append(res.failures, KeyFailure{Key: key.String(), Stage: StageState, Reason: err.Error()})
		return res, nil
	}
	work := p.clone()

	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].TradeTimestamp.Before(trades[j].TradeTimestamp)
	})
	for _, t := range trades {
		e.ingest(work, t, &res)
	}

	events := work.builder.Flush(now)
	finalized := work.scorer.Rollover(now)

	enriched, err := e.applyEvents(ctx, events, &res)
	if err != nil {
		return res, err
	}
	if len(res.failures) > 0 {
		return res, nil
	}

	var records []market.QualityRecord
	if len(trades) > 0 || len(finalized) > 0 {
		records = append(finalized, work.scorer.Snapshot()...)
	}
	if err := e.write(ctx, enriched, records); err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		e.log.Warn("sink write failed",
			zap.String("partition", key.String()),
			zap.Error(err))
		res.failures = append(res.failures, KeyFailure{Key: key.String(), Stage: StageSink, Reason: err.Error()})
		return res, nil
	}
	if len(trades) > 0 || len(events) > 0 || len(finalized) > 0 {
		if err := e.save(ctx, key, work); err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			e.log.Warn("snapshot save failed",
				zap.String("partition", key.String()),
				zap.Error(err))
			res.failures = append(res.failures, KeyFailure{Key: key.String(), Stage: StageState, Reason: err.Error()})
			return res, nil
		}
	}

	res.quality = records
	res.alerts = e.alerts(p.scorer, records, now)
	p.commit(work)
	return res, nil
}

// ingest counts t and folds it into every configured resolution. A trade
// is late only when every resolution refused it.
func (e *Engine) ingest(w *partition, t market.ValidatedTrade, res *partResult) {
	res.records++
	if !t.IsValid {
		w.scorer.Record(t)
		res.invalid++
		res.rejections[t.RejectionReason]++
		return
	}
	if w.dedup.IsDuplicate(t) {
		w.scorer.RecordOutcome(t, quality.Duplicate)
		res.duplicates++
		return
	}

	accepted := false
	for _, r := range e.opts.Resolutions {
		_, err := w.builder.Ingest(t, r)
		switch {
		case err == nil:
			accepted = true
		case errors.Is(err, candles.ErrLateTrade):
		default:
			e.log.Warn("ingest failed", zap.String("resolution", string(r)), zap.Error(err))
		}
	}
	if accepted {
		w.scorer.RecordOutcome(t, quality.Accepted)
		res.valid++
		return
	}
	w.scorer.RecordOutcome(t, quality.Late)
	res.invalid++
	res.late++
}

// applyEvents hands closed candles to the indicator machine. Series run
// concurrently; within a series events are applied in interval order and
// the first failure stops that series.
func (e *Engine) applyEvents(ctx context.Context, events []candles.Event, res *partResult) ([]market.EnrichedCandle, error) {
	if len(events) == 0 {
		return nil, nil
	}

	var order []market.SeriesKey
	bySeries := make(map[market.SeriesKey][]candles.Event)
	for _, ev := range events {
		k := ev.Candle.Key()
		if _, ok := bySeries[k]; !ok {
			order = append(order, k)
		}
		bySeries[k] = append(bySeries[k], ev)
	}

	type seriesResult struct {
		enriched                    []market.EnrichedCandle
		emitted, corrected, dropped int64
		failure                     *KeyFailure
	}
	out := make([]seriesResult, len(order))

	g, gctx := errgroup.WithContext(ctx)
	for i, k := range order {
		i, k := i, k
		g.Go(func() error {
			sr := &out[i]
			for _, ev := range bySeries[k] {
				r, err := e.apply(gctx, ev)
				switch {
				case errors.Is(err, errDropped):
					sr.dropped++
					continue
				case err != nil:
					if gctx.Err() != nil {
						return gctx.Err()
					}
					stage := StageState
					var seq *indicators.SequenceError
					if errors.As(err, &seq) {
						stage = StageSequence
					}
					sr.failure = &KeyFailure{Key: k.String(), Stage: stage, Reason: err.Error()}
					e.log.Warn("series failed",
						zap.String("series", k.String()),
						zap.String("stage", string(stage)),
						zap.Error(err))
					return nil
				}
				sr.enriched = append(sr.enriched, r.Enriched...)
				if r.Unchanged {
					continue
				}
				if ev.Corrected || r.Replayed > 0 {
					sr.corrected++
				}
				sr.emitted += int64(len(r.Enriched))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var enriched []market.EnrichedCandle
	for _, sr := range out {
		enriched = append(enriched, sr.enriched...)
		res.emitted += sr.emitted
		res.corrected += sr.corrected
		res.dropped += sr.dropped
		if sr.failure != nil {
			res.failures = append(res.failures, *sr.failure)
		}
	}
	return enriched, nil
}

func (e *Engine) apply(ctx context.Context, ev candles.Event) (indicators.Result, error) {
	call := e.machine.OnCandleClosed
	if ev.Corrected {
		call = e.machine.Correct
	}
	res, err := e.call(ctx, call, ev.Candle)

	var seq *indicators.SequenceError
	if errors.As(err, &seq) {
		applied, ok, aerr := e.applied(ctx, ev.Candle)
		if aerr != nil {
			return indicators.Result{}, aerr
		}
		if ok {
			return applied, nil
		}
		switch e.opts.SequencePolicy {
		case PolicyReplay:
			stored, found, serr := e.stored(ctx, ev.Candle)
			if serr != nil {
				return indicators.Result{}, serr
			}
			if found {
				// a rebuilt candle for a passed interval only holds the
				// trades seen since the builder lost it
				e.log.Warn("out of order candle conflicts with stored interval",
					zap.String("series", seq.Key.String()),
					zap.Time("interval_start", seq.Got),
					zap.Float64("stored_volume", stored.Volume),
					zap.Float64("volume", ev.Candle.Volume))
				return indicators.Result{}, errDropped
			}
			res, err = e.call(ctx, e.machine.Correct, ev.Candle)
		case PolicyDiscard:
			e.log.Info("out of order candle discarded",
				zap.String("series", seq.Key.String()),
				zap.Time("interval_start", seq.Got),
				zap.Time("last_applied", seq.Last))
			return indicators.Result{}, errDropped
		}
	}
	if errors.Is(err, indicators.ErrCheckpointMissing) {
		e.log.Warn("correction older than retained checkpoints",
			zap.String("series", ev.Candle.Key().String()),
			zap.Time("interval_start", ev.Candle.IntervalStart))
		return indicators.Result{}, errDropped
	}
	return res, err
}

// applied detects a redelivered candle that is already in its series.
func (e *Engine) applied(ctx context.Context, c market.Candle) (indicators.Result, bool, error) {
	var (
		res indicators.Result
		ok  bool
	)
	err := e.withRetry(ctx, "indicator state", func(ctx context.Context) error {
		var err error
		res, ok, err = e.machine.Applied(ctx, c)
		return err
	})
	return res, ok, err
}

func (e *Engine) stored(ctx context.Context, c market.Candle) (market.Candle, bool, error) {
	var (
		stored market.Candle
		ok     bool
	)
	err := e.withRetry(ctx, "indicator state", func(ctx context.Context) error {
		var err error
		stored, ok, err = e.machine.Stored(ctx, c)
		return err
	})
	return stored, ok, err
}

func (e *Engine) call(ctx context.Context, fn func(context.Context, market.Candle) (indicators.Result, error), c market.Candle) (indicators.Result, error) {
	var res indicators.Result
	err := e.withRetry(ctx, "indicator state", func(ctx context.Context) error {
		var err error
		res, err = fn(ctx, c)
		return err
	})
	return res, err
}

// write upserts enriched candles and then quality records. Rows of
// unchanged candles are written again; upserts make that a no-op.
func (e *Engine) write(ctx context.Context, enriched []market.EnrichedCandle, records []market.QualityRecord) error {
	if len(enriched) > 0 {
		err := e.withRetry(ctx, "write candles", func(ctx context.Context) error {
			return e.sink.WriteCandles(ctx, enriched)
		})
		if err != nil {
			return &SinkWriteError{Op: "write candles", Records: len(enriched), Err: err}
		}
	}
	if len(records) > 0 {
		err := e.withRetry(ctx, "write quality", func(ctx context.Context) error {
			return e.sink.WriteQuality(ctx, records)
		})
		if err != nil {
			return &SinkWriteError{Op: "write quality", Records: len(records), Err: err}
		}
	}
	return nil
}

// alerts returns an alert for every record that crossed the threshold in
// this batch.
func (e *Engine) alerts(prev *quality.Scorer, records []market.QualityRecord, now time.Time) []metrics.Alert {
	if len(records) == 0 || e.opts.AlertThreshold <= 0 {
		return nil
	}
	type dayKey struct {
		exchange, symbol string
		date             time.Time
	}
	breached := make(map[dayKey]bool)
	for _, q := range prev.Snapshot() {
		if q.Breached(e.opts.AlertThreshold) {
			breached[dayKey{q.Exchange, q.Symbol, q.Date}] = true
		}
	}

	var out []metrics.Alert
	for _, q := range records {
		if !q.Breached(e.opts.AlertThreshold) || breached[dayKey{q.Exchange, q.Symbol, q.Date}] {
			continue
		}
		out = append(out, metrics.Alert{
			Record:    q,
			ErrorRate: q.ErrorRate(),
			Threshold: e.opts.AlertThreshold,
			At:        now,
		})
	}
	return out
}

func (e *Engine) record(r Report) {
	e.metrics.RecordBatch(r.Stats())
	for _, q := range r.Quality {
		e.metrics.RecordQuality(q)
	}
	for _, a := range r.Alerts {
		e.metrics.RecordAlert(a)
	}

	if r.RecordsProcessed > 0 || r.CandlesEmitted > 0 || r.Failed() {
		e.log.Info("batch processed",
			zap.String("batch", r.BatchID),
			zap.Int64("records", r.RecordsProcessed),
			zap.Int64("invalid", r.InvalidRecords),
			zap.Int64("duplicates", r.DuplicateRecords),
			zap.Int64("candles", r.CandlesEmitted),
			zap.Int("failures", len(r.Failures)),
			zap.Duration("elapsed", r.ProcessingTime))
	}

	e.reportMu.Lock()
	e.last = &r
	e.reportMu.Unlock()
}

// LastReport returns the most recent batch report.
func (e *Engine) LastReport() (Report, bool) {
	e.reportMu.RLock()
	defer e.reportMu.RUnlock()
	if e.last == nil {
		return Report{}, false
	}
	return *e.last, true
}

// OpenCandles returns the in-progress candles of every partition.
func (e *Engine) OpenCandles() []market.Candle {
	var out []market.Candle
	for _, k := range e.knownPartitions() {
		p := e.partition(k)
		p.mu.Lock()
		out = append(out, p.builder.OpenCandles()...)
		p.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key().String() < out[j].Key().String()
	})
	return out
}

// Quality returns the running quality records of every partition.
func (e *Engine) Quality() []market.QualityRecord {
	var out []market.QualityRecord
	for _, k := range e.knownPartitions() {
		p := e.partition(k)
		p.mu.Lock()
		out = append(out, p.scorer.Snapshot()...)
		p.mu.Unlock()
	}
	return out
}
