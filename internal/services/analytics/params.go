// Package analytics derives spot estimates, approximate greeks, dealer
// positioning and volatility surfaces from normalized option chains.
package analytics

// Params tunes the derivation pipeline
type Params struct {
	SurfaceIVMin         float64 // IV floor for surface points
	SurfaceIVMax         float64 // IV ceiling for surface points
	SurfaceDTEMin        int     // DTE floor for surface points
	SurfaceDTEMax        int     // DTE ceiling for surface points
	SurfaceOutlierSigma  float64 // IV outlier cutoff in standard deviations
	SurfaceStaleQuantile float64 // bottom V/OI quantile dropped as stale
	SurfaceGridStrikes   int     // strike axis resolution
	SurfaceGridDTEs      int     // DTE axis resolution
	UnusualScoreFloor    int     // minimum unusual score counted in reports
}

// DefaultParams returns the standard derivation parameters
func DefaultParams() Params {
	return Params{
		SurfaceIVMin:         0.05,
		SurfaceIVMax:         2.0,
		SurfaceDTEMin:        1,
		SurfaceDTEMax:        365,
		SurfaceOutlierSigma:  3,
		SurfaceStaleQuantile: 0.1,
		SurfaceGridStrikes:   50,
		SurfaceGridDTEs:      50,
		UnusualScoreFloor:    50,
	}
}
