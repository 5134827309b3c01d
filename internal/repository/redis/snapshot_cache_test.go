package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vega/internal/domain/snapshot"
	"vega/internal/testsupport"
)

func TestSnapshotCache_RoundTrip(t *testing.T) {
	cfg := testsupport.LoadDatabaseConfigsFromEnv(t)
	client := testsupport.NewRedisClient(t, cfg.Redis)
	cache := NewSnapshotCache(client, time.Minute)
	ctx := context.Background()

	_, ok := cache.GetLatest(ctx, "SPY")
	assert.False(t, ok)

	snap := &snapshot.ChainSnapshot{
		Symbol:          "SPY",
		Date:            time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC),
		UnderlyingPrice: 456.5,
	}
	cache.SetLatest(ctx, snap)

	loaded, ok := cache.GetLatest(ctx, "SPY")
	require.True(t, ok)
	assert.Equal(t, "SPY", loaded.Symbol)
	assert.Equal(t, 456.5, loaded.UnderlyingPrice)
}

func TestSnapshotCache_CorruptEntryIsMiss(t *testing.T) {
	cfg := testsupport.LoadDatabaseConfigsFromEnv(t)
	client := testsupport.NewRedisClient(t, cfg.Redis)
	cache := NewSnapshotCache(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "vega:snapshot:latest:SPY", "not-json", time.Minute).Err())

	_, ok := cache.GetLatest(ctx, "SPY")
	assert.False(t, ok)
}
