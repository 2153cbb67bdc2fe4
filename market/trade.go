package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawTrade is a single exchange trade after normalization. Price and
// Quantity are null when the upstream field was missing or not numeric.
type RawTrade struct {
	Exchange       string              `json:"exchange"`
	Symbol         string              `json:"symbol"`
	Price          decimal.NullDecimal `json:"price"`
	Quantity       decimal.NullDecimal `json:"quantity"`
	TradeTimestamp time.Time           `json:"trade_timestamp"`
	SequenceID     string              `json:"sequence_id,omitempty"`
}

// Partition returns the transport partition the trade belongs to.
func (t RawTrade) Partition() PartitionKey {
	return PartitionKey{Exchange: t.Exchange, Symbol: t.Symbol}
}

// RejectionReason names the first validation check a trade failed.
type RejectionReason string

const (
	RejectNone                    RejectionReason = ""
	RejectMissingField            RejectionReason = "missing_field"
	RejectPriceOutOfRange         RejectionReason = "price_out_of_range"
	RejectVolumeBelowMinimum      RejectionReason = "volume_below_minimum"
	RejectTimestampOutOfTolerance RejectionReason = "timestamp_out_of_tolerance"
	RejectUnknownSymbol           RejectionReason = "unknown_symbol"
)

// RejectionReasons lists every non-empty reason, in check order.
var RejectionReasons = []RejectionReason{
	RejectMissingField,
	RejectPriceOutOfRange,
	RejectVolumeBelowMinimum,
	RejectTimestampOutOfTolerance,
	RejectUnknownSymbol,
}

// ValidatedTrade is a RawTrade plus the validator's verdict. It is never
// mutated after the validator creates it.
type ValidatedTrade struct {
	RawTrade
	IsValid         bool            `json:"is_valid"`
	RejectionReason RejectionReason `json:"rejection_reason,omitempty"`
	ReceivedAt      time.Time       `json:"received_at"`
}

// PriceFloat returns the price as float64 for candle arithmetic.
func (t ValidatedTrade) PriceFloat() float64 {
	f, _ := t.Price.Decimal.Float64()
	return f
}

// QuantityFloat returns the quantity as float64 for candle arithmetic.
func (t ValidatedTrade) QuantityFloat() float64 {
	f, _ := t.Quantity.Decimal.Float64()
	return f
}

// Day truncates ts to midnight UTC.
func Day(ts time.Time) time.Time {
	ts = ts.UTC()
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
}
