package analytics

import (
	"math"

	"vega/internal/domain/chain"
)

const (
	deltaMax = 0.95
	deltaMin = 0.05
)

// Greeks holds the approximate sensitivities for one contract
type Greeks struct {
	Delta float64
	Gamma float64
	Vega  float64
	Theta float64
}

// ApproxGreeks estimates greeks from moneyness, implied vol and time to
// expiry. This is a coarse heuristic for ranking and exposure aggregation,
// not a pricing model.
func ApproxGreeks(c chain.Contract, spot float64) Greeks {
	if spot <= 0 || c.Strike <= 0 {
		return Greeks{}
	}

	m := spot / c.Strike
	t := float64(c.DTE) / 365.0

	delta := approxDelta(c.Type, m)
	gamma := approxGamma(m, c.IV, t)

	sqrtT := math.Sqrt(t)
	vega := spot * sqrtT * gamma * 0.01

	theta := 0.0
	if sqrtT > 0 {
		theta = -spot * gamma * c.IV / (2 * sqrtT) * 0.01
	}

	return Greeks{
		Delta: delta,
		Gamma: gamma,
		Vega:  vega,
		Theta: theta,
	}
}

// approxDelta interpolates linearly through the money and clamps deep
// ITM/OTM. Calls live in [0.05, 0.95], puts mirrored in [-0.95, -0.05].
func approxDelta(typ chain.ContractType, m float64) float64 {
	if typ == chain.Call {
		return clamp(0.5+(m-1)*2, deltaMin, deltaMax)
	}
	return -clamp(0.5+(1-m)*2, deltaMin, deltaMax)
}

// approxGamma models gamma as a Gaussian peak in log-moneyness with width
// set by IV and time to expiry
func approxGamma(m, iv, t float64) float64 {
	width := iv * math.Sqrt(t)
	if width < 0.01 {
		width = 0.01
	}
	logM := math.Log(m)
	return math.Exp(-(logM*logM)/(2*width*width)) * 0.1
}

// FillGreeks replaces zero-valued broker greeks with approximations.
// Broker-supplied values are kept when present.
func FillGreeks(contracts []chain.Contract, spot float64) []chain.Contract {
	out := make([]chain.Contract, len(contracts))
	copy(out, contracts)
	for i := range out {
		if out[i].Delta != 0 || out[i].Gamma != 0 {
			continue
		}
		g := ApproxGreeks(out[i], spot)
		out[i].Delta = g.Delta
		out[i].Gamma = g.Gamma
		out[i].Vega = g.Vega
		out[i].Theta = g.Theta
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
