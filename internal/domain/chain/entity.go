package chain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ContractType distinguishes calls from puts
type ContractType string

const (
	Call ContractType = "CALL"
	Put  ContractType = "PUT"
)

// FlowDirection classifies the directional bias implied by a contract's flow
type FlowDirection string

const (
	FlowBullish FlowDirection = "Bullish"
	FlowBearish FlowDirection = "Bearish"
	FlowNeutral FlowDirection = "Neutral"
)

// MoneynessBucket classifies a contract relative to the underlying price
type MoneynessBucket string

const (
	BucketITM MoneynessBucket = "ITM"
	BucketATM MoneynessBucket = "ATM"
	BucketOTM MoneynessBucket = "OTM"
)

// Contract is one normalized option contract with derived activity metrics.
// Immutable once computed; the unique key within a batch is (Type, Strike, Expiry).
type Contract struct {
	Type   ContractType `json:"type"`
	Strike float64      `json:"strike"`
	Expiry time.Time    `json:"expiry"`
	DTE    int          `json:"dte"`

	Bid          float64 `json:"bid"`
	Ask          float64 `json:"ask"`
	Last         float64 `json:"last"`
	Mark         float64 `json:"mark"`
	Volume       int64   `json:"volume"`
	OpenInterest int64   `json:"open_interest"`

	IV    float64 `json:"iv"` // decimal, e.g. 0.45 = 45%
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`

	// Derived fields
	VOIRatio     float64         `json:"voi_ratio"`
	Premium      float64         `json:"premium"` // volume * mark * 100
	Spread       float64         `json:"spread"`
	SpreadPct    float64         `json:"spread_pct"`
	Moneyness    float64         `json:"moneyness"`
	Bucket       MoneynessBucket `json:"bucket"`
	UnusualScore int             `json:"unusual_score"` // 0, 25, 50, 75 or 100
	Flow         FlowDirection   `json:"flow"`
}

// Key returns the unique contract key within one snapshot
func (c Contract) Key() string {
	return fmt.Sprintf("%s:%s:%s", c.Type, strconv.FormatFloat(c.Strike, 'f', -1, 64), c.Expiry.Format("2006-01-02"))
}

// RawChain is the broker's option chain document:
// two nested maps keyed by expiry then strike, each holding contract lists.
type RawChain struct {
	Symbol         string                              `json:"symbol"`
	Underlying     Underlying                          `json:"underlying"`
	CallExpDateMap map[string]map[string][]RawContract `json:"callExpDateMap"`
	PutExpDateMap  map[string]map[string][]RawContract `json:"putExpDateMap"`
}

// Underlying carries the fields consumed from the broker's underlying block
type Underlying struct {
	Last float64 `json:"last"`
}

// RawContract mirrors the broker's contract document. All numeric fields
// tolerate strings and nulls; malformed values coerce to zero rather than
// failing the whole chain.
type RawContract struct {
	PutCall        string          `json:"putCall"`
	StrikePrice    FlexFloat       `json:"strikePrice"`
	Bid            FlexFloat       `json:"bid"`
	Ask            FlexFloat       `json:"ask"`
	Last           FlexFloat       `json:"last"`
	Mark           FlexFloat       `json:"mark"`
	TotalVolume    FlexFloat       `json:"totalVolume"`
	OpenInterest   FlexFloat       `json:"openInterest"`
	Volatility     FlexFloat       `json:"volatility"` // broker reports IV as a percentage
	Delta          FlexFloat       `json:"delta"`
	Gamma          FlexFloat       `json:"gamma"`
	Theta          FlexFloat       `json:"theta"`
	Vega           FlexFloat       `json:"vega"`
	ExpirationDate json.RawMessage `json:"expirationDate"` // ISO-8601 string or epoch millis
}

// IsEmpty reports whether the chain document has no contracts at all
func (r *RawChain) IsEmpty() bool {
	if r == nil {
		return true
	}
	for _, strikes := range r.CallExpDateMap {
		for _, contracts := range strikes {
			if len(contracts) > 0 {
				return false
			}
		}
	}
	for _, strikes := range r.PutExpDateMap {
		for _, contracts := range strikes {
			if len(contracts) > 0 {
				return false
			}
		}
	}
	return true
}

// Expirations returns the number of distinct expiry keys across both maps
func (r *RawChain) Expirations() int {
	if r == nil {
		return 0
	}
	seen := make(map[string]struct{})
	for expiry := range r.CallExpDateMap {
		seen[expiry] = struct{}{}
	}
	for expiry := range r.PutExpDateMap {
		seen[expiry] = struct{}{}
	}
	return len(seen)
}

// TotalVolume sums contract volume across both maps
func (r *RawChain) TotalVolume() int64 {
	if r == nil {
		return 0
	}
	var total int64
	for _, strikes := range r.CallExpDateMap {
		for _, contracts := range strikes {
			for _, c := range contracts {
				total += int64(c.TotalVolume)
			}
		}
	}
	for _, strikes := range r.PutExpDateMap {
		for _, contracts := range strikes {
			for _, c := range contracts {
				total += int64(c.TotalVolume)
			}
		}
	}
	return total
}

// ContractCount counts contracts across both maps
func (r *RawChain) ContractCount() int {
	if r == nil {
		return 0
	}
	count := 0
	for _, strikes := range r.CallExpDateMap {
		for _, contracts := range strikes {
			count += len(contracts)
		}
	}
	for _, strikes := range r.PutExpDateMap {
		for _, contracts := range strikes {
			count += len(contracts)
		}
	}
	return count
}

// FlexFloat is a float64 that unmarshals from numbers, quoted numbers or
// null, coercing anything unparseable to zero
type FlexFloat float64

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	s := string(bytes.Trim(data, `"`))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = FlexFloat(v)
	return nil
}

// Float64 returns the underlying value
func (f FlexFloat) Float64() float64 {
	return float64(f)
}
