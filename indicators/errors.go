package indicators

import (
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/candlestream/market"
)

var (
	// ErrStateConflict is returned when optimistic writes keep losing to
	// concurrent writers after the configured number of reloads.
	ErrStateConflict = errors.New("indicator state version conflict")

	// ErrCheckpointMissing is returned when a correction targets an
	// interval older than the retained checkpoints.
	ErrCheckpointMissing = errors.New("no checkpoint to roll back to")
)

// SequenceError reports a closed candle older than the last one applied
// to its series.
type SequenceError struct {
	Key  market.SeriesKey
	Got  time.Time
	Last time.Time
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("series %s: candle %s is before last applied %s",
		e.Key, e.Got.Format(time.RFC3339), e.Last.Format(time.RFC3339))
}
