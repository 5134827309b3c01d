// Package analysis dispatches per-view chain processing over a common
// Processor interface: volatility surfaces, flow scanning, heatmaps,
// strike breakdowns, intraday activity and dealer positioning.
package analysis

import (
	"context"
	"time"

	"vega/internal/services/router"
	"vega/pkg/errors"
	"vega/pkg/logger"
)

// Kind tags one analysis view
type Kind string

const (
	KindIVSurface      Kind = "iv_surface"
	KindFlowScanner    Kind = "flow_scanner"
	KindHeatmap        Kind = "heatmap"
	KindStrikeAnalysis Kind = "strike_analysis"
	KindIntraday       Kind = "intraday"
	KindDealerSurfaces Kind = "dealer_surfaces"
	KindComprehensive  Kind = "comprehensive"
)

// Status of one analysis result
type Status string

const (
	StatusOK          Status = "ok"
	StatusUnavailable Status = "unavailable"
)

// Result is the outcome of one analysis run. Data holds the
// processor-specific payload; Unavailable results carry a reason instead.
type Result struct {
	Kind        Kind          `json:"kind"`
	Symbol      string        `json:"symbol"`
	Status      Status        `json:"status"`
	Reason      string        `json:"reason,omitempty"`
	Source      router.Source `json:"source"`
	Tier        string        `json:"tier"`
	Data        any           `json:"data,omitempty"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// Processor computes one analysis view from a routing decision
type Processor interface {
	Kind() Kind
	Process(ctx context.Context, decision *router.Decision) (any, error)
}

// DataRouter answers chain requests
type DataRouter interface {
	Route(ctx context.Context, req router.Request) *router.Decision
}

// Service routes a symbol's data and dispatches it to the requested
// processor
type Service struct {
	router     DataRouter
	processors map[Kind]Processor
	cache      *ResultCache
	log        *logger.Logger
}

// NewService creates an analysis service with the given processors
func NewService(dataRouter DataRouter, processors ...Processor) *Service {
	byKind := make(map[Kind]Processor, len(processors))
	for _, p := range processors {
		byKind[p.Kind()] = p
	}
	return &Service{
		router:     dataRouter,
		processors: byKind,
		log:        logger.Get().With("service", "analysis"),
	}
}

// WithCache enables Redis-backed result memoization
func (s *Service) WithCache(cache *ResultCache) *Service {
	s.cache = cache
	return s
}

// Analyze routes the best available data for a symbol and runs the
// requested view over it. Missing data yields an Unavailable result, not
// an error; only an unknown kind fails.
func (s *Service) Analyze(ctx context.Context, symbol string, kind Kind, mode router.Mode, targetDate *time.Time) (*Result, error) {
	processor, ok := s.processors[kind]
	if !ok {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unknown analysis kind %q", kind)
	}

	if mode == "" {
		mode = router.ModeAuto
	}

	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, symbol, kind, mode, targetDate); ok {
			return cached, nil
		}
	}

	decision := s.router.Route(ctx, router.Request{Symbol: symbol, Mode: mode, TargetDate: targetDate})

	result := &Result{
		Kind:        kind,
		Symbol:      symbol,
		Source:      decision.Source,
		Tier:        decision.Tier.String(),
		GeneratedAt: time.Now().UTC(),
	}

	if decision.Source == router.SourceSynthetic || len(decision.Contracts) == 0 {
		result.Status = StatusUnavailable
		result.Reason = decision.Message
		if result.Reason == "" {
			result.Reason = "no contracts in routed payload"
		}
		return result, nil
	}

	data, err := processor.Process(ctx, decision)
	if err != nil {
		s.log.Warnw("Processor failed", "kind", kind, "symbol", symbol, "error", err)
		result.Status = StatusUnavailable
		result.Reason = err.Error()
		return result, nil
	}

	result.Status = StatusOK
	result.Data = data

	if s.cache != nil {
		s.cache.Set(ctx, result, mode, targetDate)
	}
	return result, nil
}

// Kinds lists the registered analysis kinds
func (s *Service) Kinds() []Kind {
	kinds := make([]Kind, 0, len(s.processors))
	for k := range s.processors {
		kinds = append(kinds, k)
	}
	return kinds
}
