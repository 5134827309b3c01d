package chain

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"vega/pkg/logger"
)

// Params tunes how derived contract fields are computed. Bands and trigger
// thresholds are configuration, not hard constants.
type Params struct {
	OTMBandPct       float64 // |moneyness| above this fraction of spot is OTM
	ITMBandPct       float64 // |moneyness| below this fraction of spot is ITM
	HighVOIRatio     float64 // V/OI trigger for the unusual score
	VolumeMedianMult float64 // multiple of median volume trigger
	PremiumQuantile  float64 // batch premium quantile trigger
	NearTermMaxDTE   int     // DTE ceiling for the near-term IV trigger
	NearTermHighIV   float64 // IV floor for the near-term IV trigger
}

// DefaultParams returns the standard normalization parameters
func DefaultParams() Params {
	return Params{
		OTMBandPct:       0.05,
		ITMBandPct:       0.02,
		HighVOIRatio:     5,
		VolumeMedianMult: 3,
		PremiumQuantile:  0.9,
		NearTermMaxDTE:   7,
		NearTermHighIV:   0.5,
	}
}

// Normalizer flattens raw broker chain documents into contract records
type Normalizer struct {
	params Params
	now    func() time.Time
}

// NewNormalizer creates a normalizer with the given parameters
func NewNormalizer(params Params) *Normalizer {
	return &Normalizer{
		params: params,
		now:    time.Now,
	}
}

// Normalize converts a raw chain document into a flat list of contract
// records with derived fields populated. Malformed numeric values coerce to
// zero and an empty or nil document yields an empty slice, never an error.
func (n *Normalizer) Normalize(raw *RawChain) []Contract {
	if raw == nil {
		return []Contract{}
	}

	now := n.now().UTC().Truncate(24 * time.Hour)
	underlying := raw.Underlying.Last

	contracts := make([]Contract, 0, raw.ContractCount())
	contracts = n.flatten(contracts, raw.Symbol, raw.CallExpDateMap, Call, underlying, now)
	contracts = n.flatten(contracts, raw.Symbol, raw.PutExpDateMap, Put, underlying, now)

	n.score(contracts)

	return contracts
}

func (n *Normalizer) flatten(out []Contract, symbol string, expMap map[string]map[string][]RawContract, typ ContractType, underlying float64, now time.Time) []Contract {
	for expiryKey, strikes := range expMap {
		for strikeKey, rawContracts := range strikes {
			for _, rc := range rawContracts {
				out = append(out, n.normalizeOne(symbol, rc, typ, expiryKey, strikeKey, underlying, now))
			}
		}
	}
	return out
}

func (n *Normalizer) normalizeOne(symbol string, rc RawContract, typ ContractType, expiryKey, strikeKey string, underlying float64, now time.Time) Contract {
	strike := rc.StrikePrice.Float64()
	if strike == 0 {
		if v, err := strconv.ParseFloat(strikeKey, 64); err == nil {
			strike = v
		}
	}

	expiry, ok := parseExpiry(rc.ExpirationDate, expiryKey)
	if !ok {
		expiry = now.Add(30 * 24 * time.Hour)
		logger.Get().Warnw("Unparseable expiration date, defaulting to 30 days out",
			"symbol", symbol,
			"strike", strike,
			"type", typ,
		)
	}
	expiry = expiry.UTC().Truncate(24 * time.Hour)

	dte := int(expiry.Sub(now).Hours() / 24)
	if dte < 0 {
		dte = 0
	}

	volume := int64(rc.TotalVolume)
	oi := int64(rc.OpenInterest)

	voiRatio := 0.0
	if oi > 0 {
		voiRatio = float64(volume) / float64(oi)
	}

	mark := rc.Mark.Float64()
	bid := rc.Bid.Float64()
	ask := rc.Ask.Float64()

	spread := ask - bid
	spreadPct := 0.0
	if mark > 0 {
		spreadPct = spread / mark
	}

	moneyness := underlying - strike
	if typ == Put {
		moneyness = -moneyness
	}

	flow := FlowNeutral
	if volume > oi {
		switch typ {
		case Call:
			flow = FlowBullish
		case Put:
			flow = FlowBearish
		}
	}

	return Contract{
		Type:         typ,
		Strike:       strike,
		Expiry:       expiry,
		DTE:          dte,
		Bid:          bid,
		Ask:          ask,
		Last:         rc.Last.Float64(),
		Mark:         mark,
		Volume:       volume,
		OpenInterest: oi,
		IV:           rc.Volatility.Float64() / 100,
		Delta:        rc.Delta.Float64(),
		Gamma:        rc.Gamma.Float64(),
		Theta:        rc.Theta.Float64(),
		Vega:         rc.Vega.Float64(),
		VOIRatio:     voiRatio,
		Premium:      float64(volume) * mark * 100,
		Spread:       spread,
		SpreadPct:    spreadPct,
		Moneyness:    moneyness,
		Bucket:       n.bucket(moneyness, underlying),
		Flow:         flow,
	}
}

func (n *Normalizer) bucket(moneyness, underlying float64) MoneynessBucket {
	if underlying <= 0 {
		return BucketATM
	}
	abs := moneyness
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs > n.params.OTMBandPct*underlying:
		return BucketOTM
	case abs < n.params.ITMBandPct*underlying:
		return BucketITM
	default:
		return BucketATM
	}
}

// score fills UnusualScore for every contract. Four independent triggers,
// 25 points each: high V/OI, volume above a multiple of the per-type batch
// median, premium above the batch quantile, and near-term expiry with
// elevated IV.
func (n *Normalizer) score(contracts []Contract) {
	if len(contracts) == 0 {
		return
	}

	callVolumes := make([]float64, 0, len(contracts))
	putVolumes := make([]float64, 0, len(contracts))
	premiums := make([]float64, 0, len(contracts))
	for _, c := range contracts {
		if c.Type == Call {
			callVolumes = append(callVolumes, float64(c.Volume))
		} else {
			putVolumes = append(putVolumes, float64(c.Volume))
		}
		premiums = append(premiums, c.Premium)
	}

	callMedian := quantile(callVolumes, 0.5)
	putMedian := quantile(putVolumes, 0.5)
	premiumCut := quantile(premiums, n.params.PremiumQuantile)

	for i := range contracts {
		c := &contracts[i]

		median := callMedian
		if c.Type == Put {
			median = putMedian
		}

		score := 0
		if c.VOIRatio > n.params.HighVOIRatio {
			score += 25
		}
		if float64(c.Volume) > n.params.VolumeMedianMult*median {
			score += 25
		}
		if c.Premium > premiumCut {
			score += 25
		}
		if c.DTE <= n.params.NearTermMaxDTE && c.IV > n.params.NearTermHighIV {
			score += 25
		}
		c.UnusualScore = score
	}
}

func quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return stat.Quantile(q, stat.LinInterp, sorted, nil)
}

// expiryLayouts are tried in order against string-encoded expiration dates
var expiryLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseExpiry decodes the broker's expiration date. The contract field is
// tried first as an ISO-8601 string, then as epoch milliseconds; the expiry
// map key (formatted "2006-01-02:<dte>") is the last resort.
func parseExpiry(raw json.RawMessage, mapKey string) (time.Time, bool) {
	s := strings.TrimSpace(string(raw))
	s = strings.Trim(s, `"`)

	if s != "" && s != "null" {
		for _, layout := range expiryLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 0 {
			return time.UnixMilli(ms), true
		}
	}

	if datePart, _, found := strings.Cut(mapKey, ":"); found || mapKey != "" {
		if t, err := time.Parse("2006-01-02", datePart); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}
