package analytics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat"

	"vega/internal/domain/chain"
)

// Surface interpolation methods, tried in degrading order
const (
	MethodCubic  = "cubic"
	MethodLinear = "linear"
	MethodZero   = "zero"
)

// Surface is an implied-volatility grid over strike and days-to-expiry.
// Grid is indexed [dte][strike] and never contains NaN or Inf.
type Surface struct {
	Strikes []float64
	DTEs    []float64
	Grid    [][]float64
	Points  int    // cleaned input points used
	Method  string // interpolation method that produced the grid
}

type surfacePoint struct {
	strike float64
	dte    float64
	iv     float64
	voi    float64
}

// BuildIVSurface cleans the chain's (strike, DTE, IV) triples and
// interpolates them onto a uniform grid. Cubic interpolation is tried
// first, then linear, then a zero-filled grid as the last resort.
func BuildIVSurface(contracts []chain.Contract, params Params) Surface {
	points := cleanSurfacePoints(contracts, params)

	surface := Surface{Points: len(points)}
	surface.Strikes, surface.DTEs = surfaceAxes(points, params)

	for _, method := range []string{MethodCubic, MethodLinear} {
		grid, ok := interpolateGrid(points, surface.Strikes, surface.DTEs, method)
		if ok {
			surface.Grid = grid
			surface.Method = method
			return surface
		}
	}

	surface.Grid = zeroGrid(len(surface.DTEs), len(surface.Strikes))
	surface.Method = MethodZero
	return surface
}

// cleanSurfacePoints applies the four-stage filter: IV bounds, DTE bounds,
// IV outliers beyond the sigma cutoff, and the bottom V/OI quantile
// (stale-quote suppression)
func cleanSurfacePoints(contracts []chain.Contract, params Params) []surfacePoint {
	points := make([]surfacePoint, 0, len(contracts))
	for _, c := range contracts {
		if c.IV < params.SurfaceIVMin || c.IV > params.SurfaceIVMax {
			continue
		}
		if c.DTE < params.SurfaceDTEMin || c.DTE > params.SurfaceDTEMax {
			continue
		}
		points = append(points, surfacePoint{
			strike: c.Strike,
			dte:    float64(c.DTE),
			iv:     c.IV,
			voi:    c.VOIRatio,
		})
	}
	if len(points) == 0 {
		return points
	}

	ivs := make([]float64, len(points))
	for i, p := range points {
		ivs[i] = p.iv
	}
	mean, std := stat.MeanStdDev(ivs, nil)
	if !math.IsNaN(std) && std > 0 {
		filtered := points[:0]
		for _, p := range points {
			if math.Abs(p.iv-mean) <= params.SurfaceOutlierSigma*std {
				filtered = append(filtered, p)
			}
		}
		points = filtered
	}
	if len(points) == 0 {
		return points
	}

	vois := make([]float64, len(points))
	for i, p := range points {
		vois[i] = p.voi
	}
	sort.Float64s(vois)
	staleCut := stat.Quantile(params.SurfaceStaleQuantile, stat.LinInterp, vois, nil)

	filtered := points[:0]
	for _, p := range points {
		if p.voi >= staleCut {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

func surfaceAxes(points []surfacePoint, params Params) (strikes, dtes []float64) {
	if len(points) == 0 {
		return linspace(0, 1, params.SurfaceGridStrikes), linspace(0, 1, params.SurfaceGridDTEs)
	}

	minStrike, maxStrike := points[0].strike, points[0].strike
	minDTE, maxDTE := points[0].dte, points[0].dte
	for _, p := range points {
		minStrike = math.Min(minStrike, p.strike)
		maxStrike = math.Max(maxStrike, p.strike)
		minDTE = math.Min(minDTE, p.dte)
		maxDTE = math.Max(maxDTE, p.dte)
	}
	return linspace(minStrike, maxStrike, params.SurfaceGridStrikes), linspace(minDTE, maxDTE, params.SurfaceGridDTEs)
}

// interpolateGrid fits one volatility smile per expiry bucket and blends
// smiles linearly along the DTE axis. Returns false when too few points
// support the requested method or the result is not finite.
func interpolateGrid(points []surfacePoint, strikes, dtes []float64, method string) ([][]float64, bool) {
	smiles := fitSmiles(points, method)
	if len(smiles) == 0 {
		return nil, false
	}

	grid := make([][]float64, len(dtes))
	for i, dte := range dtes {
		row := make([]float64, len(strikes))
		lo, hi, w := bracketSmiles(smiles, dte)
		for j, strike := range strikes {
			v := lo.predict(strike)*(1-w) + hi.predict(strike)*w
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, false
			}
			row[j] = v
		}
		grid[i] = row
	}
	return grid, true
}

// smile is one expiry's fitted strike-to-IV curve
type smile struct {
	dte       float64
	predictor interp.Predictor
	minStrike float64
	maxStrike float64
}

// predict clamps the strike into the fitted domain; the smile extends
// flat beyond its edges
func (s smile) predict(strike float64) float64 {
	return s.predictor.Predict(clamp(strike, s.minStrike, s.maxStrike))
}

func fitSmiles(points []surfacePoint, method string) []smile {
	byDTE := make(map[float64][]surfacePoint)
	for _, p := range points {
		byDTE[p.dte] = append(byDTE[p.dte], p)
	}

	minPoints := 2
	if method == MethodCubic {
		minPoints = 3
	}

	smiles := make([]smile, 0, len(byDTE))
	for dte, group := range byDTE {
		xs, ys := dedupeStrikes(group)
		if len(xs) < minPoints {
			continue
		}

		var predictor interp.Predictor
		if method == MethodCubic {
			var cubic interp.NaturalCubic
			if err := cubic.Fit(xs, ys); err != nil {
				continue
			}
			predictor = &cubic
		} else {
			var linear interp.PiecewiseLinear
			if err := linear.Fit(xs, ys); err != nil {
				continue
			}
			predictor = &linear
		}

		smiles = append(smiles, smile{
			dte:       dte,
			predictor: predictor,
			minStrike: xs[0],
			maxStrike: xs[len(xs)-1],
		})
	}

	sort.Slice(smiles, func(i, j int) bool { return smiles[i].dte < smiles[j].dte })
	return smiles
}

// dedupeStrikes sorts a group by strike and averages IVs at repeated
// strikes; interpolation fits require strictly increasing x values
func dedupeStrikes(group []surfacePoint) (xs, ys []float64) {
	sort.Slice(group, func(i, j int) bool { return group[i].strike < group[j].strike })

	for i := 0; i < len(group); {
		j := i
		sum := 0.0
		for j < len(group) && group[j].strike == group[i].strike {
			sum += group[j].iv
			j++
		}
		xs = append(xs, group[i].strike)
		ys = append(ys, sum/float64(j-i))
		i = j
	}
	return xs, ys
}

// bracketSmiles finds the two fitted smiles surrounding a DTE value and
// the blend weight toward the later one
func bracketSmiles(smiles []smile, dte float64) (lo, hi smile, w float64) {
	if dte <= smiles[0].dte {
		return smiles[0], smiles[0], 0
	}
	last := smiles[len(smiles)-1]
	if dte >= last.dte {
		return last, last, 0
	}
	for i := 1; i < len(smiles); i++ {
		if dte <= smiles[i].dte {
			lo, hi = smiles[i-1], smiles[i]
			w = (dte - lo.dte) / (hi.dte - lo.dte)
			return lo, hi, w
		}
	}
	return last, last, 0
}

func zeroGrid(rows, cols int) [][]float64 {
	grid := make([][]float64, rows)
	for i := range grid {
		grid[i] = make([]float64, cols)
	}
	return grid
}

func linspace(start, end float64, n int) []float64 {
	if n < 2 {
		return []float64{start}
	}
	out := make([]float64, n)
	step := (end - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}
