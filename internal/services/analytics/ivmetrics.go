package analytics

import (
	"math"

	"vega/internal/domain/chain"
)

// IVMetrics summarizes a chain's implied-volatility structure
type IVMetrics struct {
	ATMIndex  float64 // volume-weighted IV of at-the-money contracts
	Call25d   float64 // IV of the call closest to 0.25 delta
	Put25d    float64 // IV of the put closest to -0.25 delta
	Skew      float64 // Put25d - Call25d
	TermSlope float64
}

// ComputeIVMetrics derives the chain-wide IV summary. Contracts without a
// usable IV are ignored; an empty chain yields zeroes.
func ComputeIVMetrics(contracts []chain.Contract, spot float64) IVMetrics {
	var m IVMetrics

	var atmWeighted, atmWeight float64
	call25Dist := math.Inf(1)
	put25Dist := math.Inf(1)

	for _, c := range contracts {
		if c.IV <= 0 {
			continue
		}

		if c.Bucket == chain.BucketATM {
			w := float64(c.Volume)
			if w <= 0 {
				w = 1
			}
			atmWeighted += c.IV * w
			atmWeight += w
		}

		delta := c.Delta
		if delta == 0 {
			delta = ApproxGreeks(c, spot).Delta
		}

		if c.Type == chain.Call {
			if dist := math.Abs(delta - 0.25); dist < call25Dist {
				call25Dist = dist
				m.Call25d = c.IV
			}
		} else {
			if dist := math.Abs(delta + 0.25); dist < put25Dist {
				put25Dist = dist
				m.Put25d = c.IV
			}
		}
	}

	if atmWeight > 0 {
		m.ATMIndex = atmWeighted / atmWeight
	}
	m.Skew = m.Put25d - m.Call25d
	m.TermSlope = TermStructureSlope(contracts)

	return m
}
