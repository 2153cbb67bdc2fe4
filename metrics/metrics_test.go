package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rustyeddy/candlestream/market"
)

func TestBatchQualityScore(t *testing.T) {
	assert.Equal(t, 1.0, BatchStats{}.QualityScore())
	assert.InDelta(t, 0.75, BatchStats{RecordsProcessed: 4, ValidRecords: 3}.QualityScore(), 1e-12)
}

func TestMemoryBounded(t *testing.T) {
	m := NewMemory(2)
	for _, id := range []string{"a", "b", "c"} {
		m.RecordBatch(BatchStats{BatchID: id})
	}
	b := m.Batches()
	require.Len(t, b, 2)
	assert.Equal(t, "b", b[0].BatchID)

	latest, ok := m.Latest()
	require.True(t, ok)
	assert.Equal(t, "c", latest.BatchID)
}

func TestLogRecorder(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewLog(zap.New(core))

	Multi{l, Nop{}}.RecordBatch(BatchStats{
		BatchID:          "01H",
		RecordsProcessed: 10,
		ValidRecords:     8,
		Rejections:       map[market.RejectionReason]int64{market.RejectPriceOutOfRange: 2},
	})
	l.RecordAlert(Alert{Record: market.QualityRecord{Exchange: "binance", Symbol: "BTCUSDT"}, ErrorRate: 0.2, Threshold: 0.1})

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "batch metrics", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(2), fields["invalid_price_out_of_range"])
	assert.InDelta(t, 0.8, fields["data_quality_score"], 1e-12)
	assert.Equal(t, "high error rate", entries[1].Message)
}
