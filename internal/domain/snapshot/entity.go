package snapshot

import (
	"time"

	"github.com/shopspring/decimal"

	"vega/internal/domain/chain"
)

// ExpiryChain groups one expiration's contracts into calls and puts
type ExpiryChain struct {
	Expiry time.Time        `json:"expiry"`
	Calls  []chain.Contract `json:"calls"`
	Puts   []chain.Contract `json:"puts"`
}

// DailyStats aggregates a snapshot's chain-wide activity. Ratios are zero
// when their denominator is zero.
type DailyStats struct {
	TotalCallVolume int64           `json:"total_call_volume"`
	TotalPutVolume  int64           `json:"total_put_volume"`
	TotalCallOI     int64           `json:"total_call_oi"`
	TotalPutOI      int64           `json:"total_put_oi"`
	PutCallVolRatio float64         `json:"put_call_vol_ratio"`
	PutCallOIRatio  float64         `json:"put_call_oi_ratio"`
	CallPremium     decimal.Decimal `json:"call_premium"`
	PutPremium      decimal.Decimal `json:"put_premium"`
	ContractCount   int             `json:"contract_count"`
}

// UnusualEntry is one row of a snapshot's unusual-activity extract
type UnusualEntry struct {
	Symbol       string              `json:"symbol"`
	Type         chain.ContractType  `json:"type"`
	Strike       float64             `json:"strike"`
	Expiry       time.Time           `json:"expiry"`
	DTE          int                 `json:"dte"`
	Volume       int64               `json:"volume"`
	OpenInterest int64               `json:"open_interest"`
	VOIRatio     float64             `json:"voi_ratio"`
	Premium      float64             `json:"premium"`
	IV           float64             `json:"iv"`
	Flow         chain.FlowDirection `json:"flow"`
	Score        float64             `json:"score"`
}

// ChainSnapshot is one symbol's full option chain captured on one date.
// Persisted once at collection time and read-only thereafter.
type ChainSnapshot struct {
	Symbol          string         `json:"symbol"`
	Date            time.Time      `json:"date"`
	UnderlyingPrice float64        `json:"underlying_price"`
	Timestamp       time.Time      `json:"timestamp"`
	Chains          []ExpiryChain  `json:"chains"`
	Stats           DailyStats     `json:"stats"`
	Unusual         []UnusualEntry `json:"unusual"`
}

// AgeDays returns the snapshot age in whole days relative to now
func (s *ChainSnapshot) AgeDays(now time.Time) int {
	age := int(now.UTC().Truncate(24*time.Hour).Sub(s.Date.UTC().Truncate(24*time.Hour)).Hours() / 24)
	if age < 0 {
		age = 0
	}
	return age
}

// Expirations returns the number of expiry groups in the snapshot
func (s *ChainSnapshot) Expirations() int {
	return len(s.Chains)
}

// Contracts flattens the snapshot back into a single contract list
func (s *ChainSnapshot) Contracts() []chain.Contract {
	var out []chain.Contract
	for _, ec := range s.Chains {
		out = append(out, ec.Calls...)
		out = append(out, ec.Puts...)
	}
	return out
}
