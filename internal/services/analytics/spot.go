package analytics

import (
	"math"
	"sort"

	"vega/internal/domain/chain"
)

// EstimateSpot estimates the underlying price from the chain itself.
// Put-call parity on a strike traded in both calls and puts is preferred;
// when several such strikes exist the one closest to the median strike is
// used. Without a usable pair it falls back to the median strike.
func EstimateSpot(contracts []chain.Contract) float64 {
	if len(contracts) == 0 {
		return 0
	}

	callLast := make(map[float64]float64)
	putLast := make(map[float64]float64)
	strikes := make([]float64, 0, len(contracts))
	for _, c := range contracts {
		strikes = append(strikes, c.Strike)
		if c.Last <= 0 {
			continue
		}
		if c.Type == chain.Call {
			callLast[c.Strike] = c.Last
		} else {
			putLast[c.Strike] = c.Last
		}
	}

	median := medianOf(strikes)

	best := math.NaN()
	bestDist := math.Inf(1)
	for strike, call := range callLast {
		put, ok := putLast[strike]
		if !ok {
			continue
		}
		if dist := math.Abs(strike - median); dist < bestDist {
			bestDist = dist
			best = call - put + strike
		}
	}

	if !math.IsNaN(best) {
		return best
	}
	return median
}

func medianOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
