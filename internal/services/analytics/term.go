package analytics

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"vega/internal/domain/chain"
)

// TermStructureSlope regresses mean IV per expiry bucket against DTE and
// returns the slope (IV change per day). Positive means longer-dated
// options carry higher implied vol. Fewer than two buckets yields zero.
func TermStructureSlope(contracts []chain.Contract) float64 {
	type bucket struct {
		sum   float64
		count int
	}

	byDTE := make(map[int]*bucket)
	for _, c := range contracts {
		if c.IV <= 0 {
			continue
		}
		b, ok := byDTE[c.DTE]
		if !ok {
			b = &bucket{}
			byDTE[c.DTE] = b
		}
		b.sum += c.IV
		b.count++
	}

	if len(byDTE) < 2 {
		return 0
	}

	dtes := make([]float64, 0, len(byDTE))
	for dte := range byDTE {
		dtes = append(dtes, float64(dte))
	}
	sort.Float64s(dtes)

	meanIVs := make([]float64, len(dtes))
	for i, dte := range dtes {
		b := byDTE[int(dte)]
		meanIVs[i] = b.sum / float64(b.count)
	}

	_, slope := stat.LinearRegression(dtes, meanIVs, nil, false)
	return slope
}
