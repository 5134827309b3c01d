package analysis

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"vega/internal/domain/chain"
	"vega/internal/ml/scoring"
	"vega/internal/services/analytics"
	"vega/internal/services/router"
	"vega/pkg/errors"
)

// ============================================================================
// IV Surface
// ============================================================================

// IVSurfaceProcessor builds the implied-volatility grid
type IVSurfaceProcessor struct {
	engine *analytics.Engine
}

func NewIVSurfaceProcessor(engine *analytics.Engine) *IVSurfaceProcessor {
	return &IVSurfaceProcessor{engine: engine}
}

func (p *IVSurfaceProcessor) Kind() Kind { return KindIVSurface }

func (p *IVSurfaceProcessor) Process(_ context.Context, d *router.Decision) (any, error) {
	surface := p.engine.Surface(d.Contracts)
	return &surface, nil
}

// ============================================================================
// Flow Scanner
// ============================================================================

// AlertLevel buckets an unusual-score value
type AlertLevel string

const (
	AlertExtreme  AlertLevel = "extreme"
	AlertHigh     AlertLevel = "high"
	AlertModerate AlertLevel = "moderate"
)

// FlowAlert is one flagged contract with its model score
type FlowAlert struct {
	Contract chain.Contract `json:"contract"`
	Level    AlertLevel     `json:"level"`
	MLScore  float64        `json:"ml_score"`
}

// FlowScan is the flow-scanner payload
type FlowScan struct {
	Alerts          []FlowAlert     `json:"alerts"`
	CallPremium     decimal.Decimal `json:"call_premium"`
	PutPremium      decimal.Decimal `json:"put_premium"`
	PutCallVolRatio float64         `json:"put_call_vol_ratio"`
}

// FlowScannerProcessor flags unusual flow and ranks it with the scoring
// strategy
type FlowScannerProcessor struct {
	strategy scoring.Strategy
}

func NewFlowScannerProcessor(strategy scoring.Strategy) *FlowScannerProcessor {
	return &FlowScannerProcessor{strategy: strategy}
}

func (p *FlowScannerProcessor) Kind() Kind { return KindFlowScanner }

func (p *FlowScannerProcessor) Process(ctx context.Context, d *router.Decision) (any, error) {
	scan := &FlowScan{
		Alerts:      make([]FlowAlert, 0),
		CallPremium: decimal.Zero,
		PutPremium:  decimal.Zero,
	}

	var callVol, putVol int64
	for _, c := range d.Contracts {
		premium := decimal.NewFromFloat(c.Premium)
		if c.Type == chain.Call {
			callVol += c.Volume
			scan.CallPremium = scan.CallPremium.Add(premium)
		} else {
			putVol += c.Volume
			scan.PutPremium = scan.PutPremium.Add(premium)
		}

		level, flagged := alertLevel(c.UnusualScore)
		if !flagged {
			continue
		}
		scan.Alerts = append(scan.Alerts, FlowAlert{
			Contract: c,
			Level:    level,
			MLScore:  p.strategy.Score(ctx, c),
		})
	}

	if callVol > 0 {
		scan.PutCallVolRatio = float64(putVol) / float64(callVol)
	}

	sort.Slice(scan.Alerts, func(i, j int) bool { return scan.Alerts[i].MLScore > scan.Alerts[j].MLScore })
	return scan, nil
}

func alertLevel(score int) (AlertLevel, bool) {
	switch {
	case score >= 100:
		return AlertExtreme, true
	case score >= 75:
		return AlertHigh, true
	case score >= 50:
		return AlertModerate, true
	default:
		return "", false
	}
}

// ============================================================================
// Heatmap
// ============================================================================

// Heatmap is volume and open interest over strike x expiry
type Heatmap struct {
	Strikes  []float64   `json:"strikes"`
	Expiries []time.Time `json:"expiries"`
	Volume   [][]int64   `json:"volume"` // [expiry][strike]
	OI       [][]int64   `json:"oi"`
}

// HeatmapProcessor aggregates activity onto a strike x expiry grid
type HeatmapProcessor struct{}

func NewHeatmapProcessor() *HeatmapProcessor { return &HeatmapProcessor{} }

func (p *HeatmapProcessor) Kind() Kind { return KindHeatmap }

func (p *HeatmapProcessor) Process(_ context.Context, d *router.Decision) (any, error) {
	strikeSet := make(map[float64]struct{})
	expirySet := make(map[time.Time]struct{})
	for _, c := range d.Contracts {
		strikeSet[c.Strike] = struct{}{}
		expirySet[c.Expiry] = struct{}{}
	}

	hm := &Heatmap{
		Strikes:  make([]float64, 0, len(strikeSet)),
		Expiries: make([]time.Time, 0, len(expirySet)),
	}
	for s := range strikeSet {
		hm.Strikes = append(hm.Strikes, s)
	}
	for e := range expirySet {
		hm.Expiries = append(hm.Expiries, e)
	}
	sort.Float64s(hm.Strikes)
	sort.Slice(hm.Expiries, func(i, j int) bool { return hm.Expiries[i].Before(hm.Expiries[j]) })

	strikeIdx := make(map[float64]int, len(hm.Strikes))
	for i, s := range hm.Strikes {
		strikeIdx[s] = i
	}
	expiryIdx := make(map[time.Time]int, len(hm.Expiries))
	for i, e := range hm.Expiries {
		expiryIdx[e] = i
	}

	hm.Volume = make([][]int64, len(hm.Expiries))
	hm.OI = make([][]int64, len(hm.Expiries))
	for i := range hm.Expiries {
		hm.Volume[i] = make([]int64, len(hm.Strikes))
		hm.OI[i] = make([]int64, len(hm.Strikes))
	}

	for _, c := range d.Contracts {
		i := expiryIdx[c.Expiry]
		j := strikeIdx[c.Strike]
		hm.Volume[i][j] += c.Volume
		hm.OI[i][j] += c.OpenInterest
	}

	return hm, nil
}

// ============================================================================
// Strike Analysis
// ============================================================================

// StrikeRow aggregates one strike across calls and puts
type StrikeRow struct {
	Strike     float64 `json:"strike"`
	CallVolume int64   `json:"call_volume"`
	PutVolume  int64   `json:"put_volume"`
	CallOI     int64   `json:"call_oi"`
	PutOI      int64   `json:"put_oi"`
	NetPremium float64 `json:"net_premium"` // call premium minus put premium
}

// StrikeAnalysisView is the per-strike breakdown with key levels. Support
// is the heaviest put-OI strike at or below spot, resistance the heaviest
// call-OI strike at or above spot.
type StrikeAnalysisView struct {
	Rows       []StrikeRow `json:"rows"`
	Support    float64     `json:"support"`
	Resistance float64     `json:"resistance"`
	MaxPain    float64     `json:"max_pain"`
}

// StrikeAnalysisProcessor breaks activity down per strike
type StrikeAnalysisProcessor struct{}

func NewStrikeAnalysisProcessor() *StrikeAnalysisProcessor { return &StrikeAnalysisProcessor{} }

func (p *StrikeAnalysisProcessor) Kind() Kind { return KindStrikeAnalysis }

func (p *StrikeAnalysisProcessor) Process(_ context.Context, d *router.Decision) (any, error) {
	byStrike := make(map[float64]*StrikeRow)
	for _, c := range d.Contracts {
		row, ok := byStrike[c.Strike]
		if !ok {
			row = &StrikeRow{Strike: c.Strike}
			byStrike[c.Strike] = row
		}
		if c.Type == chain.Call {
			row.CallVolume += c.Volume
			row.CallOI += c.OpenInterest
			row.NetPremium += c.Premium
		} else {
			row.PutVolume += c.Volume
			row.PutOI += c.OpenInterest
			row.NetPremium -= c.Premium
		}
	}

	rows := make([]StrikeRow, 0, len(byStrike))
	for _, row := range byStrike {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Strike < rows[j].Strike })

	view := &StrikeAnalysisView{
		Rows:    rows,
		MaxPain: analytics.MaxPain(d.Contracts),
	}

	spot := decisionSpot(d)
	var supportOI, resistanceOI int64
	for _, row := range rows {
		if row.Strike <= spot && row.PutOI > supportOI {
			supportOI = row.PutOI
			view.Support = row.Strike
		}
		if row.Strike >= spot && row.CallOI > resistanceOI {
			resistanceOI = row.CallOI
			view.Resistance = row.Strike
		}
	}

	return view, nil
}

// ============================================================================
// Intraday
// ============================================================================

// IntradayView summarizes the current session's activity
type IntradayView struct {
	TotalVolume     int64            `json:"total_volume"`
	PutCallVolRatio float64          `json:"put_call_vol_ratio"`
	VOILeaders      []chain.Contract `json:"voi_leaders"`
	AsOf            time.Time        `json:"as_of"`
}

// IntradayProcessor reports session activity; it is meaningful only on a
// live payload
type IntradayProcessor struct {
	leaders int
}

func NewIntradayProcessor() *IntradayProcessor {
	return &IntradayProcessor{leaders: 10}
}

func (p *IntradayProcessor) Kind() Kind { return KindIntraday }

func (p *IntradayProcessor) Process(_ context.Context, d *router.Decision) (any, error) {
	if d.Source != router.SourceLive && d.Source != router.SourceFusion {
		return nil, errors.Wrap(errors.ErrAnalysisUnavailable, "intraday view requires live data")
	}

	view := &IntradayView{AsOf: time.Now().UTC()}

	var callVol, putVol int64
	for _, c := range d.Contracts {
		view.TotalVolume += c.Volume
		if c.Type == chain.Call {
			callVol += c.Volume
		} else {
			putVol += c.Volume
		}
	}
	if callVol > 0 {
		view.PutCallVolRatio = float64(putVol) / float64(callVol)
	}

	leaders := make([]chain.Contract, len(d.Contracts))
	copy(leaders, d.Contracts)
	sort.Slice(leaders, func(i, j int) bool { return leaders[i].VOIRatio > leaders[j].VOIRatio })
	if len(leaders) > p.leaders {
		leaders = leaders[:p.leaders]
	}
	view.VOILeaders = leaders

	return view, nil
}

// ============================================================================
// Dealer Surfaces
// ============================================================================

// DealerView is the dealer-positioning payload
type DealerView struct {
	Spot        float64                     `json:"spot"`
	Positioning analytics.DealerPositioning `json:"positioning"`
}

// DealerSurfacesProcessor estimates dealer positioning across strikes
type DealerSurfacesProcessor struct{}

func NewDealerSurfacesProcessor() *DealerSurfacesProcessor { return &DealerSurfacesProcessor{} }

func (p *DealerSurfacesProcessor) Kind() Kind { return KindDealerSurfaces }

func (p *DealerSurfacesProcessor) Process(_ context.Context, d *router.Decision) (any, error) {
	spot := decisionSpot(d)
	return &DealerView{
		Spot:        spot,
		Positioning: analytics.EstimateDealerPositioning(d.Contracts, spot),
	}, nil
}

// ============================================================================
// Comprehensive
// ============================================================================

// ComprehensiveView bundles the full derived report with flow and strike
// breakdowns
type ComprehensiveView struct {
	Report  *analytics.Report   `json:"report"`
	Flow    *FlowScan           `json:"flow"`
	Strikes *StrikeAnalysisView `json:"strikes"`
}

// ComprehensiveProcessor runs every derivation over one payload
type ComprehensiveProcessor struct {
	engine  *analytics.Engine
	flow    *FlowScannerProcessor
	strikes *StrikeAnalysisProcessor
}

func NewComprehensiveProcessor(engine *analytics.Engine, strategy scoring.Strategy) *ComprehensiveProcessor {
	return &ComprehensiveProcessor{
		engine:  engine,
		flow:    NewFlowScannerProcessor(strategy),
		strikes: NewStrikeAnalysisProcessor(),
	}
}

func (p *ComprehensiveProcessor) Kind() Kind { return KindComprehensive }

func (p *ComprehensiveProcessor) Process(ctx context.Context, d *router.Decision) (any, error) {
	report := d.Analytics
	if report == nil {
		report = p.engine.Derive(d.Contracts, decisionSpot(d))
	}

	flowData, err := p.flow.Process(ctx, d)
	if err != nil {
		return nil, err
	}
	strikeData, err := p.strikes.Process(ctx, d)
	if err != nil {
		return nil, err
	}

	return &ComprehensiveView{
		Report:  report,
		Flow:    flowData.(*FlowScan),
		Strikes: strikeData.(*StrikeAnalysisView),
	}, nil
}

// decisionSpot picks the best known underlying price from a decision
func decisionSpot(d *router.Decision) float64 {
	if d.Snapshot != nil && d.Snapshot.UnderlyingPrice > 0 {
		return d.Snapshot.UnderlyingPrice
	}
	if d.Analytics != nil && d.Analytics.Spot > 0 {
		return d.Analytics.Spot
	}
	return analytics.EstimateSpot(d.Contracts)
}
