package market

import (
	"fmt"
	"time"
)

// Resolution is a fixed candle width.
type Resolution string

const (
	Resolution1m  Resolution = "1m"
	Resolution5m  Resolution = "5m"
	Resolution15m Resolution = "15m"
	Resolution1h  Resolution = "1h"
	Resolution4h  Resolution = "4h"
	Resolution1d  Resolution = "1d"
)

// AllResolutions is the default resolution set, finest first.
var AllResolutions = []Resolution{
	Resolution1m,
	Resolution5m,
	Resolution15m,
	Resolution1h,
	Resolution4h,
	Resolution1d,
}

var resolutionDurations = map[Resolution]time.Duration{
	Resolution1m:  time.Minute,
	Resolution5m:  5 * time.Minute,
	Resolution15m: 15 * time.Minute,
	Resolution1h:  time.Hour,
	Resolution4h:  4 * time.Hour,
	Resolution1d:  24 * time.Hour,
}

// ParseResolution returns the Resolution named s.
func ParseResolution(s string) (Resolution, error) {
	r := Resolution(s)
	if !r.Valid() {
		return "", fmt.Errorf("unsupported resolution: %q", s)
	}
	return r, nil
}

func (r Resolution) Valid() bool {
	_, ok := resolutionDurations[r]
	return ok
}

func (r Resolution) Duration() time.Duration {
	return resolutionDurations[r]
}

// Floor returns the start of the interval containing ts, in UTC.
func (r Resolution) Floor(ts time.Time) time.Time {
	ts = ts.UTC()
	switch r {
	case Resolution1d:
		return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	default:
		return ts.Truncate(r.Duration())
	}
}

// Bounds returns the [start, end) interval containing ts.
func (r Resolution) Bounds(ts time.Time) (start, end time.Time) {
	start = r.Floor(ts)
	return start, start.Add(r.Duration())
}
