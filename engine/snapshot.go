package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/rustyeddy/candlestream/candles"
	"github.com/rustyeddy/candlestream/dedup"
	"github.com/rustyeddy/candlestream/market"
)

// SnapshotStore persists the in-memory state of each partition. A state
// store that also implements it lets a restarted engine, or the next
// owner of a partition, continue from the last committed batch: open
// candles keep their trades, late trades extend the stored candle and
// the dedup window and quality counts carry over.
type SnapshotStore interface {
	// LoadSnapshot returns the saved snapshot of p, or false if there
	// is none.
	LoadSnapshot(ctx context.Context, p market.PartitionKey) ([]byte, bool, error)

	// SaveSnapshot replaces the saved snapshot of p.
	SaveSnapshot(ctx context.Context, p market.PartitionKey, data []byte) error
}

// PartitionSnapshot is the encoded form of a partition.
type PartitionSnapshot struct {
	Builder candles.Snapshot       `json:"builder"`
	Dedup   []dedup.Seen           `json:"dedup,omitempty"`
	Quality []market.QualityRecord `json:"quality,omitempty"`
}

func (p *partition) snapshot() PartitionSnapshot {
	return PartitionSnapshot{
		Builder: p.builder.Snapshot(),
		Dedup:   p.dedup.Snapshot(),
		Quality: p.scorer.Snapshot(),
	}
}

func (p *partition) restore(s PartitionSnapshot) error {
	if err := p.builder.Restore(s.Builder); err != nil {
		return err
	}
	p.dedup.Restore(s.Dedup)
	p.scorer.Restore(s.Quality)
	return nil
}

// load restores p from the snapshot store the first time the partition
// is used by this engine.
func (e *Engine) load(ctx context.Context, key market.PartitionKey, p *partition) error {
	if p.loaded || e.snapshots == nil {
		p.loaded = true
		return nil
	}
	var (
		data []byte
		ok   bool
	)
	err := e.withRetry(ctx, "load snapshot", func(ctx context.Context) error {
		var err error
		data, ok, err = e.snapshots.LoadSnapshot(ctx, key)
		return err
	})
	if err != nil {
		return fmt.Errorf("load snapshot %s: %w", key, err)
	}
	if ok {
		var s PartitionSnapshot
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode snapshot %s: %w", key, err)
		}
		if err := p.restore(s); err != nil {
			return fmt.Errorf("restore snapshot %s: %w", key, err)
		}
		e.log.Info("partition restored",
			zap.String("partition", key.String()),
			zap.Int("series", len(s.Builder.Series)))
	}
	p.loaded = true
	return nil
}

func (e *Engine) save(ctx context.Context, key market.PartitionKey, w *partition) error {
	if e.snapshots == nil {
		return nil
	}
	data, err := json.Marshal(w.snapshot())
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", key, err)
	}
	err = e.withRetry(ctx, "save snapshot", func(ctx context.Context) error {
		return e.snapshots.SaveSnapshot(ctx, key, data)
	})
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", key, err)
	}
	return nil
}
