package analytics

import (
	"time"

	"vega/internal/domain/chain"
)

// Report is the full derived-analytics bundle for one chain
type Report struct {
	Spot         float64           `json:"spot"`
	Dealer       DealerPositioning `json:"dealer"`
	IV           IVMetrics         `json:"iv"`
	Surface      Surface           `json:"surface"`
	UnusualCount int               `json:"unusual_count"`
	GeneratedAt  time.Time         `json:"generated_at"`
}

// Engine derives analytics reports from normalized chains
type Engine struct {
	params Params
}

// NewEngine creates an analytics engine
func NewEngine(params Params) *Engine {
	return &Engine{params: params}
}

// Derive computes the full analytics bundle. knownSpot is used when the
// caller already has an underlying price; zero triggers in-chain estimation.
func (e *Engine) Derive(contracts []chain.Contract, knownSpot float64) *Report {
	spot := knownSpot
	if spot <= 0 {
		spot = EstimateSpot(contracts)
	}

	return &Report{
		Spot:         spot,
		Dealer:       EstimateDealerPositioning(contracts, spot),
		IV:           ComputeIVMetrics(contracts, spot),
		Surface:      BuildIVSurface(contracts, e.params),
		UnusualCount: len(FilterUnusual(contracts, e.params.UnusualScoreFloor)),
		GeneratedAt:  time.Now().UTC(),
	}
}

// Surface builds the IV surface with the engine's parameters
func (e *Engine) Surface(contracts []chain.Contract) Surface {
	return BuildIVSurface(contracts, e.params)
}

// FilterUnusual returns contracts whose unusual score meets the floor
func FilterUnusual(contracts []chain.Contract, minScore int) []chain.Contract {
	out := make([]chain.Contract, 0)
	for _, c := range contracts {
		if c.UnusualScore >= minScore {
			out = append(out, c)
		}
	}
	return out
}
