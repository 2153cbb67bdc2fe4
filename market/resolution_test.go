package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolutionFloor(t *testing.T) {
	ts := time.Date(2024, 3, 9, 13, 47, 31, 500, time.UTC)

	tests := []struct {
		res  Resolution
		want time.Time
	}{
		{Resolution1m, time.Date(2024, 3, 9, 13, 47, 0, 0, time.UTC)},
		{Resolution5m, time.Date(2024, 3, 9, 13, 45, 0, 0, time.UTC)},
		{Resolution15m, time.Date(2024, 3, 9, 13, 45, 0, 0, time.UTC)},
		{Resolution1h, time.Date(2024, 3, 9, 13, 0, 0, 0, time.UTC)},
		{Resolution4h, time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)},
		{Resolution1d, time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(string(tt.res), func(t *testing.T) {
			assert.True(t, tt.want.Equal(tt.res.Floor(ts)), "got %s", tt.res.Floor(ts))
			start, end := tt.res.Bounds(ts)
			assert.True(t, start.Before(end))
			assert.Equal(t, tt.res.Duration(), end.Sub(start))
		})
	}
}

func TestResolutionFloorNonUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	ts := time.Date(2024, 3, 10, 2, 0, 0, 0, loc) // 2024-03-09 21:00 UTC

	got := Resolution1d.Floor(ts)
	assert.Equal(t, time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), got)
}

func TestParseResolution(t *testing.T) {
	for _, r := range AllResolutions {
		got, err := ParseResolution(string(r))
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}

	_, err := ParseResolution("2m")
	assert.Error(t, err)
}

func TestSeriesKeyRoundTrip(t *testing.T) {
	k := SeriesKey{Exchange: "binance", Symbol: "BTCUSDT", Resolution: Resolution5m}
	assert.Equal(t, "binance:BTCUSDT:5m", k.String())

	got, err := ParseSeriesKey(k.String())
	require.NoError(t, err)
	assert.Equal(t, k, got)
	assert.Equal(t, "binance:BTCUSDT", got.Partition().String())

	_, err = ParseSeriesKey("binance:BTCUSDT")
	assert.Error(t, err)
}
