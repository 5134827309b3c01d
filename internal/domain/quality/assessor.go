package quality

// LiveBand is one live-mode tier boundary: a payload qualifies when its
// total volume is at least MinVolume and its contract count exceeds MinContracts.
type LiveBand struct {
	MinVolume    int64
	MinContracts int
	Tier         Tier
}

// HistoricalBand is one historical-mode tier boundary: a snapshot qualifies
// when it is at most MaxAgeDays old and covers more than MinExpirations.
type HistoricalBand struct {
	MaxAgeDays     int
	MinExpirations int
	Tier           Tier
}

// Bounds holds the tier boundaries for both assessment modes. Bands are
// evaluated left to right; the first match wins.
type Bounds struct {
	Live       []LiveBand
	Historical []HistoricalBand
}

// DefaultBounds returns the standard tier boundaries
func DefaultBounds() Bounds {
	return Bounds{
		Live: []LiveBand{
			{MinVolume: 10000, MinContracts: 100, Tier: Excellent},
			{MinVolume: 1000, MinContracts: 50, Tier: Good},
			{MinVolume: 100, MinContracts: 20, Tier: Fair},
		},
		Historical: []HistoricalBand{
			{MaxAgeDays: 1, MinExpirations: 15, Tier: Excellent},
			{MaxAgeDays: 3, MinExpirations: 10, Tier: Good},
			{MaxAgeDays: 7, MinExpirations: 5, Tier: Fair},
		},
	}
}

// Assessor grades payloads against configured tier boundaries.
// Pure and deterministic: the same inputs always produce the same tier.
type Assessor struct {
	bounds Bounds
}

// NewAssessor creates an assessor with the given boundaries
func NewAssessor(bounds Bounds) *Assessor {
	return &Assessor{bounds: bounds}
}

// AssessLive grades a live chain by total contract volume and contract count
func (a *Assessor) AssessLive(totalVolume int64, contractCount int) Tier {
	for _, band := range a.bounds.Live {
		if totalVolume >= band.MinVolume && contractCount > band.MinContracts {
			return band.Tier
		}
	}
	return Poor
}

// AssessHistorical grades a stored snapshot by its age in days and the
// number of distinct expirations it covers
func (a *Assessor) AssessHistorical(ageDays int, expirations int) Tier {
	for _, band := range a.bounds.Historical {
		if ageDays <= band.MaxAgeDays && expirations > band.MinExpirations {
			return band.Tier
		}
	}
	return Poor
}

// FusionScore combines two tiers into a blended quality score on [0, 1]
func FusionScore(live, historical Tier) float64 {
	return (live.Score() + historical.Score()) / 2
}
