package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"vega/internal/domain/snapshot"
	"vega/pkg/logger"
)

const latestKeyPrefix = "vega:snapshot:latest:"

// SnapshotCache implements snapshot.Cache on Redis. Backend errors are
// logged and treated as cache misses; the canonical store stays the source
// of truth.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewSnapshotCache creates a snapshot cache with the given entry TTL
func NewSnapshotCache(client *redis.Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{
		client: client,
		ttl:    ttl,
		log:    logger.Get().With("cache", "snapshot"),
	}
}

// GetLatest returns the cached most-recent snapshot for a symbol
func (c *SnapshotCache) GetLatest(ctx context.Context, symbol string) (*snapshot.ChainSnapshot, bool) {
	data, err := c.client.Get(ctx, latestKeyPrefix+symbol).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.log.Warnw("Cache read failed", "symbol", symbol, "error", err)
		return nil, false
	}

	var snap snapshot.ChainSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		c.log.Warnw("Cache entry corrupted, dropping", "symbol", symbol, "error", err)
		c.client.Del(ctx, latestKeyPrefix+symbol)
		return nil, false
	}
	return &snap, true
}

// SetLatest caches the most-recent snapshot for a symbol
func (c *SnapshotCache) SetLatest(ctx context.Context, snap *snapshot.ChainSnapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		c.log.Warnw("Cache marshal failed", "symbol", snap.Symbol, "error", err)
		return
	}

	key := fmt.Sprintf("%s%s", latestKeyPrefix, snap.Symbol)
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Warnw("Cache write failed", "symbol", snap.Symbol, "error", err)
	}
}
