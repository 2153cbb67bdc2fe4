package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/candlestream/engine"
	"github.com/rustyeddy/candlestream/market"
)

type fakeSource struct {
	report *engine.Report
	open   []market.Candle
}

func (f *fakeSource) LastReport() (engine.Report, bool) {
	if f.report == nil {
		return engine.Report{}, false
	}
	return *f.report, true
}

func (f *fakeSource) OpenCandles() []market.Candle { return f.open }

func (f *fakeSource) Quality() []market.QualityRecord { return nil }

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	rec := get(t, New(&fakeSource{}, nil), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestLatestReport(t *testing.T) {
	src := &fakeSource{}
	s := New(src, nil)

	assert.Equal(t, http.StatusNotFound, get(t, s, "/reports/latest").Code)

	src.report = &engine.Report{BatchID: "01HZ", RecordsProcessed: 3, ValidRecords: 2}
	rec := get(t, s, "/reports/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got engine.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "01HZ", got.BatchID)
	assert.Equal(t, int64(3), got.RecordsProcessed)
}

func TestOpenCandlesFilter(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	src := &fakeSource{open: []market.Candle{
		{Exchange: "binance", Symbol: "BTCUSDT", Resolution: market.Resolution1m, IntervalStart: now},
		{Exchange: "binance", Symbol: "ETHUSDT", Resolution: market.Resolution1m, IntervalStart: now},
		{Exchange: "binance", Symbol: "BTCUSDT", Resolution: market.Resolution5m, IntervalStart: now},
	}}
	s := New(src, nil)

	var got []market.Candle
	rec := get(t, s, "/candles/open?symbol=btcusdt&resolution=1m")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "BTCUSDT", got[0].Symbol)

	rec = get(t, s, "/quality")
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	New(&fakeSource{}, nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
