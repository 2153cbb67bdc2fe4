package market

import "time"

// QualityRecord summarises validation outcomes for one (exchange, symbol,
// UTC day). Running records are upserted intra-day; Final is set once the
// day rolls over.
type QualityRecord struct {
	Exchange         string    `json:"exchange"`
	Symbol           string    `json:"symbol"`
	Date             time.Time `json:"date"`
	TotalRecords     int64     `json:"total_records"`
	ValidRecords     int64     `json:"valid_records"`
	InvalidRecords   int64     `json:"invalid_records"`
	DuplicateRecords int64     `json:"duplicate_records"`
	LateRecords      int64     `json:"late_records"`
	QualityScore     float64   `json:"quality_score"`
	Final            bool      `json:"final"`
}

// ErrorRate is the share of invalid records; zero when nothing was seen.
func (q QualityRecord) ErrorRate() float64 {
	if q.TotalRecords == 0 {
		return 0
	}
	return float64(q.InvalidRecords) / float64(q.TotalRecords)
}

// Breached reports whether the invalid ratio exceeds threshold.
func (q QualityRecord) Breached(threshold float64) bool {
	return q.ErrorRate() > threshold
}
