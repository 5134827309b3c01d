package analysis

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"vega/internal/services/router"
	"vega/pkg/logger"
)

// CacheConfig controls result memoization. Live payloads go stale within
// minutes; snapshot-backed views are stable until the next collection cycle.
type CacheConfig struct {
	Enabled       bool
	TTLLive       time.Duration
	TTLHistorical time.Duration
}

// DefaultCacheConfig returns the standard cache settings
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:       true,
		TTLLive:       3 * time.Minute,
		TTLHistorical: time.Hour,
	}
}

// cacheStore is the slice of the Redis adapter the cache needs
type cacheStore interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
}

// ResultCache memoizes analysis results in Redis. Results round-trip
// through JSON, so cached Data comes back as generic JSON values rather
// than the processor's concrete types; callers serving JSON see no
// difference.
type ResultCache struct {
	config CacheConfig
	store  cacheStore
	log    *logger.Logger
}

// NewResultCache creates a Redis-backed analysis result cache
func NewResultCache(config CacheConfig, store cacheStore) *ResultCache {
	return &ResultCache{
		config: config,
		store:  store,
		log:    logger.Get().With("component", "analysis_cache"),
	}
}

// Get returns a cached result for the request, if present
func (c *ResultCache) Get(ctx context.Context, symbol string, kind Kind, mode router.Mode, targetDate *time.Time) (*Result, bool) {
	if !c.config.Enabled {
		return nil, false
	}

	var result Result
	if err := c.store.Get(ctx, c.key(symbol, kind, mode, targetDate), &result); err != nil {
		return nil, false
	}
	return &result, true
}

// Set stores a result under the request key. Only OK results are cached:
// an unavailable view should retry the full route on the next request.
func (c *ResultCache) Set(ctx context.Context, result *Result, mode router.Mode, targetDate *time.Time) {
	if !c.config.Enabled || result == nil || result.Status != StatusOK {
		return
	}

	ttl := c.config.TTLLive
	if result.Source == router.SourceHistorical {
		ttl = c.config.TTLHistorical
	}

	key := c.key(result.Symbol, result.Kind, mode, targetDate)
	if err := c.store.Set(ctx, key, result, ttl); err != nil {
		c.log.Warnw("Failed to cache analysis result", "symbol", result.Symbol, "kind", result.Kind, "error", err)
	}
}

func (c *ResultCache) key(symbol string, kind Kind, mode router.Mode, targetDate *time.Time) string {
	date := "latest"
	if targetDate != nil {
		date = targetDate.Format("2006-01-02")
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%s", symbol, kind, mode, date)))
	return fmt.Sprintf("vega:analysis:%x", sum[:12])
}
