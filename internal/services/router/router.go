// Package router decides which data source answers a chain request:
// live broker data, a stored snapshot, a fusion of both, or a labeled
// placeholder when nothing usable exists.
package router

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"

	"vega/internal/domain/chain"
	"vega/internal/domain/quality"
	"vega/internal/domain/snapshot"
	"vega/internal/metrics"
	"vega/internal/services/analytics"
	"vega/pkg/logger"
)

// Mode selects the routing strategy for a request
type Mode string

const (
	ModeLive       Mode = "live"
	ModeHistorical Mode = "historical"
	ModeAuto       Mode = "auto"
)

// Source identifies which payload variant a decision carries
type Source string

const (
	SourceLive       Source = "live"
	SourceHistorical Source = "historical"
	SourceFusion     Source = "fusion"
	SourceSynthetic  Source = "synthetic"
)

// Request asks for the best available chain data for one symbol
type Request struct {
	Symbol     string
	Mode       Mode
	TargetDate *time.Time
}

// Decision is the routing outcome. Exactly one payload variant is primary,
// indicated by Source; Route never returns nil.
type Decision struct {
	Symbol   string
	Source   Source
	Tier     quality.Tier
	Enriched bool

	Contracts []chain.Contract        // live or snapshot contracts
	Snapshot  *snapshot.ChainSnapshot // set for historical and fusion
	Analytics *analytics.Report       // set when enriched

	// Live-augmentation context: stored dates within the recent window
	RecentDates []time.Time

	// Fusion only
	FusionScore float64

	// Synthetic only
	Message   string
	Timestamp time.Time
}

// LiveSource is the external broker collaborator
type LiveSource interface {
	GetOptionChain(ctx context.Context, symbol string) (*chain.RawChain, error)
}

// SnapshotStore is the read side of the historical store
type SnapshotStore interface {
	Get(ctx context.Context, symbol string, date time.Time) (*snapshot.ChainSnapshot, error)
	Latest(ctx context.Context, symbol string) (*snapshot.ChainSnapshot, error)
	AvailableDates(ctx context.Context, symbol string) ([]time.Time, error)
}

// Router orchestrates normalizer, assessor, store and analytics engine
type Router struct {
	live       LiveSource
	store      SnapshotStore
	normalizer *chain.Normalizer
	assessor   *quality.Assessor
	engine     *analytics.Engine
	recentDays int
	now        func() time.Time
	log        *logger.Logger
}

// New creates a router
func New(live LiveSource, store SnapshotStore, normalizer *chain.Normalizer, assessor *quality.Assessor, engine *analytics.Engine, recentDays int) *Router {
	return &Router{
		live:       live,
		store:      store,
		normalizer: normalizer,
		assessor:   assessor,
		engine:     engine,
		recentDays: recentDays,
		now:        time.Now,
		log:        logger.Get().With("service", "router"),
	}
}

// Route answers a data request with the best available payload. It never
// fails: collaborator errors degrade the decision instead of propagating,
// and the worst case is a synthetic placeholder tagged poor. Routing is
// read-only and repeatable; it never writes snapshots.
func (r *Router) Route(ctx context.Context, req Request) *Decision {
	start := r.now()
	decision := r.route(ctx, req)
	metrics.RecordRouterDecision(string(decision.Source), decision.Tier.String(), r.now().Sub(start))

	r.log.Infow("Routed request",
		"symbol", req.Symbol,
		"mode", req.Mode,
		"source", decision.Source,
		"tier", decision.Tier.String(),
		"enriched", decision.Enriched,
	)
	return decision
}

func (r *Router) route(ctx context.Context, req Request) *Decision {
	// Step 1: explicit historical requests bypass the live feed entirely
	if req.Mode == ModeHistorical || req.TargetDate != nil {
		if decision := r.routeHistoricalExact(ctx, req); decision != nil {
			return decision
		}
		return r.synthetic(req.Symbol, "no snapshot for the requested date")
	}

	// Step 2: fetch live data and grade it
	liveContracts, liveTier, liveOK := r.fetchLive(ctx, req.Symbol)

	// Step 3: strong live data wins, with recent history attached as context
	if liveOK && liveTier.AtLeast(quality.Good) {
		return &Decision{
			Symbol:      req.Symbol,
			Source:      SourceLive,
			Tier:        liveTier,
			Contracts:   liveContracts,
			RecentDates: r.recentDates(ctx, req.Symbol),
		}
	}

	// Step 4: weak live feed, consult the most recent snapshot
	snap, histTier, histOK := r.latestSnapshot(ctx, req.Symbol)

	if histOK && histTier.AtLeast(quality.Good) {
		return r.enrichedSnapshot(req.Symbol, snap, histTier)
	}

	if liveOK && histOK {
		decision := r.enrichedSnapshot(req.Symbol, snap, histTier)
		decision.Source = SourceFusion
		decision.Contracts = liveContracts
		decision.FusionScore = quality.FusionScore(liveTier, histTier)
		if liveTier > histTier {
			decision.Tier = liveTier
		}
		return decision
	}

	if histOK {
		return r.enrichedSnapshot(req.Symbol, snap, histTier)
	}
	if liveOK {
		return &Decision{
			Symbol:    req.Symbol,
			Source:    SourceLive,
			Tier:      liveTier,
			Contracts: liveContracts,
		}
	}

	// Step 5: nothing usable anywhere
	return r.synthetic(req.Symbol, "no live or historical data available")
}

func (r *Router) routeHistoricalExact(ctx context.Context, req Request) *Decision {
	var (
		snap *snapshot.ChainSnapshot
		err  error
	)
	if req.TargetDate != nil {
		snap, err = r.store.Get(ctx, req.Symbol, *req.TargetDate)
	} else {
		snap, err = r.store.Latest(ctx, req.Symbol)
	}
	if err != nil || snap == nil {
		return nil
	}

	tier := r.assessor.AssessHistorical(snap.AgeDays(r.now()), snap.Expirations())
	return r.enrichedSnapshot(req.Symbol, snap, tier)
}

func (r *Router) fetchLive(ctx context.Context, symbol string) ([]chain.Contract, quality.Tier, bool) {
	raw, err := r.live.GetOptionChain(ctx, symbol)
	if err != nil {
		r.log.Warnw("Live fetch failed", "symbol", symbol, "error", err)
		return nil, quality.Poor, false
	}
	if raw.IsEmpty() {
		return nil, quality.Poor, false
	}

	volume := raw.TotalVolume()
	count := raw.ContractCount()
	tier := r.assessor.AssessLive(volume, count)

	r.log.Debugw("Live chain fetched",
		"symbol", symbol,
		"volume", humanize.Comma(volume),
		"contracts", count,
		"tier", tier.String(),
	)

	return r.normalizer.Normalize(raw), tier, true
}

func (r *Router) latestSnapshot(ctx context.Context, symbol string) (*snapshot.ChainSnapshot, quality.Tier, bool) {
	snap, err := r.store.Latest(ctx, symbol)
	if err != nil || snap == nil {
		return nil, quality.Poor, false
	}
	tier := r.assessor.AssessHistorical(snap.AgeDays(r.now()), snap.Expirations())
	return snap, tier, true
}

// enrichedSnapshot wraps a stored snapshot with derived analytics
func (r *Router) enrichedSnapshot(symbol string, snap *snapshot.ChainSnapshot, tier quality.Tier) *Decision {
	contracts := snap.Contracts()
	return &Decision{
		Symbol:    symbol,
		Source:    SourceHistorical,
		Tier:      tier,
		Enriched:  true,
		Contracts: contracts,
		Snapshot:  snap,
		Analytics: r.engine.Derive(contracts, snap.UnderlyingPrice),
	}
}

// recentDates lists stored dates inside the recent-context window
func (r *Router) recentDates(ctx context.Context, symbol string) []time.Time {
	dates, err := r.store.AvailableDates(ctx, symbol)
	if err != nil {
		return nil
	}

	cutoff := r.now().UTC().AddDate(0, 0, -r.recentDays)
	var recent []time.Time
	for _, d := range dates {
		if d.After(cutoff) {
			recent = append(recent, d)
		}
	}
	return recent
}

func (r *Router) synthetic(symbol, message string) *Decision {
	return &Decision{
		Symbol:    symbol,
		Source:    SourceSynthetic,
		Tier:      quality.Poor,
		Message:   message,
		Timestamp: r.now().UTC(),
	}
}
