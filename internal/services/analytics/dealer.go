package analytics

import (
	"math"
	"sort"

	"vega/internal/domain/chain"
)

// DealerExposure aggregates estimated dealer positioning for one strike
type DealerExposure struct {
	Strike          float64
	DealerDelta     float64
	DealerGamma     float64
	HedgingPressure float64
}

// DealerPositioning is the chain-wide dealer estimate
type DealerPositioning struct {
	ByStrike        []DealerExposure
	NetDealerDelta  float64
	NetDealerGamma  float64
	TotalHedging    float64
	MaxPainStrike   float64
	GammaFlipStrike float64 // strike where cumulative dealer gamma changes sign, 0 if none
}

// EstimateDealerPositioning assumes dealers are net short the retail flow:
// each contract contributes -greek x activity_factor where activity_factor
// grows with the log of volume plus open interest.
func EstimateDealerPositioning(contracts []chain.Contract, spot float64) DealerPositioning {
	byStrike := make(map[float64]*DealerExposure)

	var pos DealerPositioning
	for _, c := range contracts {
		delta, gamma := c.Delta, c.Gamma
		if delta == 0 && gamma == 0 {
			g := ApproxGreeks(c, spot)
			delta, gamma = g.Delta, g.Gamma
		}

		af := math.Log(1 + float64(c.Volume) + float64(c.OpenInterest))
		dealerDelta := -delta * af
		dealerGamma := -gamma * af
		hedging := math.Abs(dealerGamma) * af

		exp, ok := byStrike[c.Strike]
		if !ok {
			exp = &DealerExposure{Strike: c.Strike}
			byStrike[c.Strike] = exp
		}
		exp.DealerDelta += dealerDelta
		exp.DealerGamma += dealerGamma
		exp.HedgingPressure += hedging

		pos.NetDealerDelta += dealerDelta
		pos.NetDealerGamma += dealerGamma
		pos.TotalHedging += hedging
	}

	pos.ByStrike = make([]DealerExposure, 0, len(byStrike))
	for _, exp := range byStrike {
		pos.ByStrike = append(pos.ByStrike, *exp)
	}
	sort.Slice(pos.ByStrike, func(i, j int) bool { return pos.ByStrike[i].Strike < pos.ByStrike[j].Strike })

	pos.MaxPainStrike = MaxPain(contracts)
	pos.GammaFlipStrike = gammaFlip(pos.ByStrike)

	return pos
}

// MaxPain returns the strike minimizing the total intrinsic payout to
// option holders at expiry, weighted by open interest
func MaxPain(contracts []chain.Contract) float64 {
	strikeSet := make(map[float64]struct{})
	for _, c := range contracts {
		strikeSet[c.Strike] = struct{}{}
	}
	if len(strikeSet) == 0 {
		return 0
	}

	strikes := make([]float64, 0, len(strikeSet))
	for s := range strikeSet {
		strikes = append(strikes, s)
	}
	sort.Float64s(strikes)

	best := strikes[0]
	bestPain := math.Inf(1)
	for _, settle := range strikes {
		pain := 0.0
		for _, c := range contracts {
			oi := float64(c.OpenInterest)
			if c.Type == chain.Call && settle > c.Strike {
				pain += (settle - c.Strike) * oi
			}
			if c.Type == chain.Put && settle < c.Strike {
				pain += (c.Strike - settle) * oi
			}
		}
		if pain < bestPain {
			bestPain = pain
			best = settle
		}
	}
	return best
}

// gammaFlip finds the first strike where cumulative dealer gamma crosses
// zero, scanning strikes in ascending order
func gammaFlip(byStrike []DealerExposure) float64 {
	cum := 0.0
	prevSign := 0
	for _, exp := range byStrike {
		cum += exp.DealerGamma
		sign := 0
		if cum > 0 {
			sign = 1
		} else if cum < 0 {
			sign = -1
		}
		if prevSign != 0 && sign != 0 && sign != prevSign {
			return exp.Strike
		}
		if sign != 0 {
			prevSign = sign
		}
	}
	return 0
}
