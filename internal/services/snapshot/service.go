// Package snapshot builds and persists daily option chain snapshots.
package snapshot

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"vega/internal/domain/chain"
	"vega/internal/domain/snapshot"
	"vega/pkg/errors"
	"vega/pkg/logger"
)

// ExtractParams tunes the unusual-activity extract
type ExtractParams struct {
	MinVolume int64   // volume floor for extract candidates
	MinScore  float64 // local score floor
	Limit     int     // extract size cap
}

// DefaultExtractParams returns the standard extract thresholds
func DefaultExtractParams() ExtractParams {
	return ExtractParams{
		MinVolume: 1000,
		MinScore:  3.0,
		Limit:     50,
	}
}

// Service builds chain snapshots and writes them through the repositories.
// Writes to the same (symbol, date) key are last-writer-wins.
type Service struct {
	repo     snapshot.Repository
	activity snapshot.ActivityRepository
	cache    snapshot.Cache
	params   ExtractParams
	log      *logger.Logger
}

// NewService creates a snapshot service
func NewService(repo snapshot.Repository, activity snapshot.ActivityRepository, cache snapshot.Cache, params ExtractParams) *Service {
	return &Service{
		repo:     repo,
		activity: activity,
		cache:    cache,
		params:   params,
		log:      logger.Get().With("service", "snapshot"),
	}
}

// Build assembles a snapshot from normalized contracts: groups them per
// expiry, computes daily aggregates and extracts unusual activity.
func (s *Service) Build(symbol string, date time.Time, contracts []chain.Contract, underlying float64) *snapshot.ChainSnapshot {
	return &snapshot.ChainSnapshot{
		Symbol:          symbol,
		Date:            date.UTC().Truncate(24 * time.Hour),
		UnderlyingPrice: underlying,
		Timestamp:       time.Now().UTC(),
		Chains:          groupByExpiry(contracts),
		Stats:           computeStats(contracts),
		Unusual:         s.extractUnusual(symbol, contracts),
	}
}

// Store builds a snapshot and persists it. The canonical store write must
// succeed; analytics rows and the cache are best effort.
func (s *Service) Store(ctx context.Context, symbol string, date time.Time, contracts []chain.Contract, underlying float64) (*snapshot.ChainSnapshot, error) {
	snap := s.Build(symbol, date, contracts, underlying)

	if err := s.repo.Save(ctx, snap); err != nil {
		return nil, errors.Wrapf(err, "save snapshot %s %s", symbol, snap.Date.Format("2006-01-02"))
	}

	if s.activity != nil {
		if err := s.activity.SaveUnusualFlows(ctx, snap.Date, snap.Unusual); err != nil {
			s.log.Warnw("Failed to save unusual flows", "symbol", symbol, "error", err)
		}
		if err := s.activity.SaveDailyStats(ctx, symbol, snap.Date, snap.Stats); err != nil {
			s.log.Warnw("Failed to save daily stats", "symbol", symbol, "error", err)
		}
	}

	if s.cache != nil {
		s.cache.SetLatest(ctx, snap)
	}

	s.log.Infow("Stored snapshot",
		"symbol", symbol,
		"date", snap.Date.Format("2006-01-02"),
		"contracts", snap.Stats.ContractCount,
		"unusual", len(snap.Unusual),
	)

	return snap, nil
}

// Get loads a snapshot by symbol and date
func (s *Service) Get(ctx context.Context, symbol string, date time.Time) (*snapshot.ChainSnapshot, error) {
	return s.repo.Load(ctx, symbol, date.UTC().Truncate(24*time.Hour))
}

// Latest loads the most recent snapshot for a symbol, consulting the cache
// first. Cache failures fall through to the repository.
func (s *Service) Latest(ctx context.Context, symbol string) (*snapshot.ChainSnapshot, error) {
	if s.cache != nil {
		if snap, ok := s.cache.GetLatest(ctx, symbol); ok {
			return snap, nil
		}
	}

	date, err := s.repo.LatestDate(ctx, symbol)
	if err != nil {
		return nil, err
	}

	snap, err := s.repo.Load(ctx, symbol, date)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.SetLatest(ctx, snap)
	}
	return snap, nil
}

// AvailableDates lists stored snapshot dates for a symbol, newest first
func (s *Service) AvailableDates(ctx context.Context, symbol string) ([]time.Time, error) {
	return s.repo.AvailableDates(ctx, symbol)
}

func groupByExpiry(contracts []chain.Contract) []snapshot.ExpiryChain {
	byExpiry := make(map[time.Time]*snapshot.ExpiryChain)
	for _, c := range contracts {
		ec, ok := byExpiry[c.Expiry]
		if !ok {
			ec = &snapshot.ExpiryChain{Expiry: c.Expiry}
			byExpiry[c.Expiry] = ec
		}
		if c.Type == chain.Call {
			ec.Calls = append(ec.Calls, c)
		} else {
			ec.Puts = append(ec.Puts, c)
		}
	}

	out := make([]snapshot.ExpiryChain, 0, len(byExpiry))
	for _, ec := range byExpiry {
		sort.Slice(ec.Calls, func(i, j int) bool { return ec.Calls[i].Strike < ec.Calls[j].Strike })
		sort.Slice(ec.Puts, func(i, j int) bool { return ec.Puts[i].Strike < ec.Puts[j].Strike })
		out = append(out, *ec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Expiry.Before(out[j].Expiry) })
	return out
}

func computeStats(contracts []chain.Contract) snapshot.DailyStats {
	stats := snapshot.DailyStats{
		CallPremium:   decimal.Zero,
		PutPremium:    decimal.Zero,
		ContractCount: len(contracts),
	}

	for _, c := range contracts {
		premium := decimal.NewFromFloat(c.Premium)
		if c.Type == chain.Call {
			stats.TotalCallVolume += c.Volume
			stats.TotalCallOI += c.OpenInterest
			stats.CallPremium = stats.CallPremium.Add(premium)
		} else {
			stats.TotalPutVolume += c.Volume
			stats.TotalPutOI += c.OpenInterest
			stats.PutPremium = stats.PutPremium.Add(premium)
		}
	}

	if stats.TotalCallVolume > 0 {
		stats.PutCallVolRatio = float64(stats.TotalPutVolume) / float64(stats.TotalCallVolume)
	}
	if stats.TotalCallOI > 0 {
		stats.PutCallOIRatio = float64(stats.TotalPutOI) / float64(stats.TotalCallOI)
	}

	return stats
}

// extractUnusual selects extract candidates by volume floor and local score,
// sorted by score descending and capped at the configured limit
func (s *Service) extractUnusual(symbol string, contracts []chain.Contract) []snapshot.UnusualEntry {
	entries := make([]snapshot.UnusualEntry, 0)

	for _, c := range contracts {
		if c.Volume < s.params.MinVolume {
			continue
		}

		score := localScore(c)
		if score < s.params.MinScore {
			continue
		}

		entries = append(entries, snapshot.UnusualEntry{
			Symbol:       symbol,
			Type:         c.Type,
			Strike:       c.Strike,
			Expiry:       c.Expiry,
			DTE:          c.DTE,
			Volume:       c.Volume,
			OpenInterest: c.OpenInterest,
			VOIRatio:     c.VOIRatio,
			Premium:      c.Premium,
			IV:           c.IV,
			Flow:         c.Flow,
			Score:        score,
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })
	if len(entries) > s.params.Limit {
		entries = entries[:s.params.Limit]
	}
	return entries
}

// localScore grades one contract for the extract: a volume component capped
// at 5 plus a V/OI component capped at 3, with OI floored at 1
func localScore(c chain.Contract) float64 {
	volScore := float64(c.Volume) / 1000
	if volScore > 5 {
		volScore = 5
	}

	oi := c.OpenInterest
	if oi < 1 {
		oi = 1
	}
	voiScore := float64(c.Volume) / float64(oi)
	if voiScore > 3 {
		voiScore = 3
	}

	return volScore + voiScore
}
