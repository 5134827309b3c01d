// Package scoring ranks unusual option flow on a normalized [0, 1] scale.
// The Strategy interface keeps the ranking model pluggable; the default is
// a feature-weighted heuristic.
package scoring

import (
	"context"
	"math"

	"vega/internal/domain/chain"
)

// Features is the model input vector for one contract
type Features struct {
	VOIRatio     float64
	PremiumLog   float64 // log10 of dollar premium
	UnusualScore float64 // 0..100 trigger score
	DTE          float64
	IV           float64
	SpreadPct    float64
}

// ExtractFeatures builds the feature vector from a normalized contract
func ExtractFeatures(c chain.Contract) Features {
	premiumLog := 0.0
	if c.Premium > 1 {
		premiumLog = math.Log10(c.Premium)
	}
	return Features{
		VOIRatio:     c.VOIRatio,
		PremiumLog:   premiumLog,
		UnusualScore: float64(c.UnusualScore),
		DTE:          float64(c.DTE),
		IV:           c.IV,
		SpreadPct:    c.SpreadPct,
	}
}

// Strategy scores a contract's flow significance on [0, 1]
type Strategy interface {
	Score(ctx context.Context, c chain.Contract) float64
}

// HeuristicStrategy is the default model: a bounded weighted blend of the
// trigger score, V/OI and premium size, discounted by wide spreads
type HeuristicStrategy struct{}

// NewHeuristicStrategy creates the default scoring strategy
func NewHeuristicStrategy() *HeuristicStrategy {
	return &HeuristicStrategy{}
}

// Score implements Strategy
func (s *HeuristicStrategy) Score(_ context.Context, c chain.Contract) float64 {
	f := ExtractFeatures(c)

	triggers := f.UnusualScore / 100

	voi := f.VOIRatio / 10
	if voi > 1 {
		voi = 1
	}

	// premium ramps from 0 at $10k to 1 at $10M
	premium := (f.PremiumLog - 4) / 3
	if premium < 0 {
		premium = 0
	}
	if premium > 1 {
		premium = 1
	}

	score := 0.5*triggers + 0.3*voi + 0.2*premium

	// wide markets are noisy quotes, not conviction
	if f.SpreadPct > 0.2 {
		score *= 0.5
	}

	if score > 1 {
		score = 1
	}
	return score
}
