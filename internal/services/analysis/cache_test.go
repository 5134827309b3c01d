package analysis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vega/internal/services/router"
	"vega/pkg/errors"
)

type memoryStore struct {
	entries map[string][]byte
	ttls    map[string]time.Duration
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = data
	m.ttls[key] = ttl
	return nil
}

func (m *memoryStore) Get(_ context.Context, key string, dest interface{}) error {
	data, ok := m.entries[key]
	if !ok {
		return errors.ErrNotFound
	}
	return json.Unmarshal(data, dest)
}

type countingRouter struct {
	decision *router.Decision
	calls    int
}

func (c *countingRouter) Route(context.Context, router.Request) *router.Decision {
	c.calls++
	return c.decision
}

func TestResultCache_HitSkipsRouting(t *testing.T) {
	ctx := context.Background()
	routed := &countingRouter{decision: liveDecision()}
	store := newMemoryStore()

	svc := NewService(routed, NewHeatmapProcessor()).
		WithCache(NewResultCache(DefaultCacheConfig(), store))

	first, err := svc.Analyze(ctx, "SPY", KindHeatmap, router.ModeLive, nil)
	require.NoError(t, err)
	require.Equal(t, StatusOK, first.Status)
	assert.Equal(t, 1, routed.calls)

	second, err := svc.Analyze(ctx, "SPY", KindHeatmap, router.ModeLive, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, second.Status)
	assert.Equal(t, "SPY", second.Symbol)
	assert.Equal(t, 1, routed.calls, "second analyze should be served from cache")
}

func TestResultCache_UnavailableNotCached(t *testing.T) {
	ctx := context.Background()
	routed := &countingRouter{decision: &router.Decision{
		Symbol:  "SPY",
		Source:  router.SourceSynthetic,
		Message: "no usable data",
	}}
	store := newMemoryStore()

	svc := NewService(routed, NewHeatmapProcessor()).
		WithCache(NewResultCache(DefaultCacheConfig(), store))

	result, err := svc.Analyze(ctx, "SPY", KindHeatmap, router.ModeAuto, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusUnavailable, result.Status)
	assert.Empty(t, store.entries)

	_, err = svc.Analyze(ctx, "SPY", KindHeatmap, router.ModeAuto, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, routed.calls, "unavailable results retry the full route")
}

func TestResultCache_HistoricalGetsLongTTL(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	cache := NewResultCache(DefaultCacheConfig(), store)

	cache.Set(ctx, &Result{Symbol: "QQQ", Kind: KindHeatmap, Status: StatusOK, Source: router.SourceHistorical}, router.ModeHistorical, nil)
	cache.Set(ctx, &Result{Symbol: "SPY", Kind: KindHeatmap, Status: StatusOK, Source: router.SourceLive}, router.ModeLive, nil)

	require.Len(t, store.ttls, 2)
	for key, ttl := range store.ttls {
		var result Result
		require.NoError(t, store.Get(ctx, key, &result))
		if result.Source == router.SourceHistorical {
			assert.Equal(t, time.Hour, ttl)
		} else {
			assert.Equal(t, 3*time.Minute, ttl)
		}
	}
}

func TestResultCache_KeySeparatesDates(t *testing.T) {
	cache := NewResultCache(DefaultCacheConfig(), newMemoryStore())
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	latest := cache.key("SPY", KindHeatmap, router.ModeAuto, nil)
	dated := cache.key("SPY", KindHeatmap, router.ModeAuto, &day)
	otherKind := cache.key("SPY", KindIVSurface, router.ModeAuto, nil)

	assert.NotEqual(t, latest, dated)
	assert.NotEqual(t, latest, otherKind)
}

func TestResultCache_Disabled(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	cache := NewResultCache(CacheConfig{Enabled: false}, store)

	cache.Set(ctx, &Result{Symbol: "SPY", Kind: KindHeatmap, Status: StatusOK, Source: router.SourceLive}, router.ModeLive, nil)
	assert.Empty(t, store.entries)

	_, ok := cache.Get(ctx, "SPY", KindHeatmap, router.ModeLive, nil)
	assert.False(t, ok)
}
