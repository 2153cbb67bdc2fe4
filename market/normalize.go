package market

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TimeFormat says how a payload encodes the trade timestamp.
type TimeFormat int

const (
	UnixMillis TimeFormat = iota
	UnixSeconds
	RFC3339
)

// FieldMap names the payload fields one exchange uses for the RawTrade
// fields. Normalization is a table lookup; there is no per-exchange code.
type FieldMap struct {
	Symbol     string
	Price      string
	Quantity   string
	Timestamp  string
	Sequence   string
	TimeFormat TimeFormat
}

// CanonicalExchange is the field map used for payloads already in the
// engine's own shape, and for exchanges without a dedicated entry.
const CanonicalExchange = "canonical"

// DefaultFieldMaps covers the exchanges the platform ingests from.
var DefaultFieldMaps = map[string]FieldMap{
	"binance": {
		Symbol: "s", Price: "p", Quantity: "q", Timestamp: "T", Sequence: "t",
		TimeFormat: UnixMillis,
	},
	"coinbase": {
		Symbol: "product_id", Price: "price", Quantity: "size", Timestamp: "time", Sequence: "trade_id",
		TimeFormat: RFC3339,
	},
	"kraken": {
		Symbol: "symbol", Price: "price", Quantity: "qty", Timestamp: "timestamp", Sequence: "trade_id",
		TimeFormat: RFC3339,
	},
	CanonicalExchange: {
		Symbol: "symbol", Price: "price", Quantity: "volume", Timestamp: "timestamp", Sequence: "sequence_id",
		TimeFormat: UnixMillis,
	},
}

// Normalizer maps exchange payloads onto RawTrade.
type Normalizer struct {
	maps map[string]FieldMap
}

// NewNormalizer returns a normalizer over maps, or DefaultFieldMaps when
// maps is nil.
func NewNormalizer(maps map[string]FieldMap) *Normalizer {
	if maps == nil {
		maps = DefaultFieldMaps
	}
	return &Normalizer{maps: maps}
}

func (n *Normalizer) fieldMap(exchange string) FieldMap {
	if fm, ok := n.maps[exchange]; ok {
		return fm
	}
	return n.maps[CanonicalExchange]
}

// Normalize maps one decoded payload using the field map named by format,
// usually the exchange name. A payload "exchange" field sets the exchange;
// otherwise format does. Missing or malformed fields come back as
// zero/null values for the validator to reject; it never fails.
func (n *Normalizer) Normalize(format string, payload map[string]any) RawTrade {
	format = strings.ToLower(format)
	fm := n.fieldMap(format)

	exchange := format
	if v, ok := payload["exchange"].(string); ok && v != "" {
		exchange = strings.ToLower(v)
	}

	rt := RawTrade{
		Exchange:   exchange,
		Symbol:     stringField(payload[fm.Symbol]),
		Price:      decimalField(payload[fm.Price]),
		Quantity:   decimalField(payload[fm.Quantity]),
		SequenceID: stringField(payload[fm.Sequence]),
	}
	rt.TradeTimestamp = timeField(payload[fm.Timestamp], fm.TimeFormat)
	return rt
}

// NormalizeJSON decodes data and normalizes it. Undecodable input yields
// a RawTrade carrying only the exchange.
func (n *Normalizer) NormalizeJSON(format string, data []byte) RawTrade {
	payload, err := DecodePayload(data)
	if err != nil {
		return RawTrade{Exchange: strings.ToLower(format)}
	}
	return n.Normalize(format, payload)
}

// DecodePayload decodes a JSON object keeping numbers as json.Number so
// decimals survive without float rounding.
func DecodePayload(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return payload, nil
}

func stringField(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	}
	return ""
}

func decimalField(v any) decimal.NullDecimal {
	switch x := v.(type) {
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(x))
		if err != nil {
			return decimal.NullDecimal{}
		}
		return decimal.NewNullDecimal(d)
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		if err != nil {
			return decimal.NullDecimal{}
		}
		return decimal.NewNullDecimal(d)
	case float64:
		return decimal.NewNullDecimal(decimal.NewFromFloat(x))
	case int64:
		return decimal.NewNullDecimal(decimal.NewFromInt(x))
	case int:
		return decimal.NewNullDecimal(decimal.NewFromInt(int64(x)))
	}
	return decimal.NullDecimal{}
}

func timeField(v any, format TimeFormat) time.Time {
	if format == RFC3339 {
		s, ok := v.(string)
		if !ok {
			return time.Time{}
		}
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}
		}
		return ts.UTC()
	}

	d := decimalField(v)
	if !d.Valid {
		return time.Time{}
	}
	switch format {
	case UnixSeconds:
		return time.UnixMicro(d.Decimal.Shift(6).IntPart()).UTC()
	default:
		return time.UnixMilli(d.Decimal.IntPart()).UTC()
	}
}

// ParseTimestamp accepts unix milliseconds or RFC 3339 and returns the
// zero time for anything else.
func ParseTimestamp(s string) time.Time {
	if strings.ContainsAny(s, "T-:") {
		return timeField(s, RFC3339)
	}
	return timeField(s, UnixMillis)
}

// CanonicalPayload encodes t in the canonical field layout.
func CanonicalPayload(t RawTrade) ([]byte, error) {
	p := map[string]any{
		"exchange":  t.Exchange,
		"symbol":    t.Symbol,
		"timestamp": t.TradeTimestamp.UnixMilli(),
	}
	if t.Price.Valid {
		p["price"] = t.Price.Decimal.String()
	}
	if t.Quantity.Valid {
		p["volume"] = t.Quantity.Decimal.String()
	}
	if t.SequenceID != "" {
		p["sequence_id"] = t.SequenceID
	}
	return json.Marshal(p)
}
