package market

import (
	"fmt"
	"strings"
)

// PartitionKey identifies an (exchange, symbol) stream. It is the
// transport partition key and the unit of engine work.
type PartitionKey struct {
	Exchange string
	Symbol   string
}

func (k PartitionKey) String() string {
	return k.Exchange + ":" + k.Symbol
}

// Series returns the series key for this partition at resolution r.
func (k PartitionKey) Series(r Resolution) SeriesKey {
	return SeriesKey{Exchange: k.Exchange, Symbol: k.Symbol, Resolution: r}
}

// SeriesKey identifies one candle series: (exchange, symbol, resolution).
// Indicator state and checkpoints are addressed by it.
type SeriesKey struct {
	Exchange   string
	Symbol     string
	Resolution Resolution
}

func (k SeriesKey) String() string {
	return k.Exchange + ":" + k.Symbol + ":" + string(k.Resolution)
}

func (k SeriesKey) Partition() PartitionKey {
	return PartitionKey{Exchange: k.Exchange, Symbol: k.Symbol}
}

// ParseSeriesKey is the inverse of SeriesKey.String.
func ParseSeriesKey(s string) (SeriesKey, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return SeriesKey{}, fmt.Errorf("bad series key %q", s)
	}
	r, err := ParseResolution(parts[2])
	if err != nil {
		return SeriesKey{}, err
	}
	return SeriesKey{Exchange: parts[0], Symbol: parts[1], Resolution: r}, nil
}
