package quality

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/candlestream/market"
)

var day1 = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func rec(valid bool, at time.Time) market.ValidatedTrade {
	return market.ValidatedTrade{
		RawTrade:   market.RawTrade{Exchange: "binance", Symbol: "BTCUSDT"},
		IsValid:    valid,
		ReceivedAt: at,
	}
}

func TestScorerCounts(t *testing.T) {
	s := NewScorer()
	for i := 0; i < 7; i++ {
		s.Record(rec(true, day1))
	}
	s.Record(rec(false, day1))
	s.RecordOutcome(rec(true, day1), Duplicate)
	s.RecordOutcome(rec(true, day1), Late)

	q := s.Finalize("binance", "BTCUSDT", day1)
	assert.Equal(t, int64(10), q.TotalRecords)
	assert.Equal(t, int64(7), q.ValidRecords)
	assert.Equal(t, int64(2), q.InvalidRecords)
	assert.Equal(t, int64(1), q.DuplicateRecords)
	assert.Equal(t, int64(1), q.LateRecords)
	assert.InDelta(t, 0.7, q.QualityScore, 1e-12)
	assert.True(t, q.Final)
	assert.True(t, q.Date.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)))
}

func TestEmptyScoreIsOne(t *testing.T) {
	s := NewScorer()
	q := s.Finalize("kraken", "XBT/USD", day1)
	assert.Equal(t, 1.0, q.QualityScore)
	assert.Zero(t, q.TotalRecords)
}

func TestSnapshotAndRollover(t *testing.T) {
	s := NewScorer()
	s.Record(rec(true, day1))
	s.Record(rec(false, day1.Add(24*time.Hour)))

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.False(t, snap[0].Final)
	assert.True(t, snap[0].Date.Before(snap[1].Date))

	want := s.Finalize("binance", "BTCUSDT", day1)
	done := s.Rollover(day1.Add(24 * time.Hour))
	require.Len(t, done, 1)
	assert.Equal(t, want, done[0])
	assert.True(t, done[0].Final)
	assert.Equal(t, 1.0, done[0].QualityScore)

	snap = s.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, 0.0, snap[0].QualityScore)
}

func TestScorerRestore(t *testing.T) {
	s := NewScorer()
	s.Record(rec(true, day1))
	s.RecordOutcome(rec(true, day1), Duplicate)

	restored := NewScorer()
	restored.Restore(s.Snapshot())
	assert.Equal(t, s.Snapshot(), restored.Snapshot())

	restored.Record(rec(false, day1))
	q := restored.Finalize("binance", "BTCUSDT", day1)
	assert.Equal(t, int64(3), q.TotalRecords)
	assert.Equal(t, int64(1), q.DuplicateRecords)
	assert.Equal(t, int64(2), s.Snapshot()[0].TotalRecords)
}

func TestScorerClone(t *testing.T) {
	s := NewScorer()
	s.Record(rec(true, day1))

	c := s.Clone()
	c.Record(rec(false, day1))

	assert.Equal(t, int64(1), s.Snapshot()[0].TotalRecords)
	assert.Equal(t, int64(2), c.Snapshot()[0].TotalRecords)
}
