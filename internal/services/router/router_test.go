package router

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vega/internal/domain/chain"
	"vega/internal/domain/quality"
	"vega/internal/domain/snapshot"
	"vega/internal/services/analytics"
	"vega/pkg/errors"
)

type stubLive struct {
	raw *chain.RawChain
	err error
}

func (s *stubLive) GetOptionChain(context.Context, string) (*chain.RawChain, error) {
	return s.raw, s.err
}

type stubStore struct {
	snaps map[string]*snapshot.ChainSnapshot // keyed by date
	dates []time.Time
}

func (s *stubStore) Get(_ context.Context, _ string, date time.Time) (*snapshot.ChainSnapshot, error) {
	if snap, ok := s.snaps[date.Format("2006-01-02")]; ok {
		return snap, nil
	}
	return nil, errors.ErrSnapshotNotFound
}

func (s *stubStore) Latest(ctx context.Context, symbol string) (*snapshot.ChainSnapshot, error) {
	if len(s.dates) == 0 {
		return nil, errors.ErrSnapshotNotFound
	}
	return s.Get(ctx, symbol, s.dates[0])
}

func (s *stubStore) AvailableDates(context.Context, string) ([]time.Time, error) {
	return s.dates, nil
}

var testNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func newTestRouter(live LiveSource, store SnapshotStore) *Router {
	r := New(live, store, chain.NewNormalizer(chain.DefaultParams()), quality.NewAssessor(quality.DefaultBounds()), analytics.NewEngine(analytics.DefaultParams()), 5)
	r.now = func() time.Time { return testNow }
	return r
}

// richChain builds a raw chain that grades excellent in live mode
func richChain() *chain.RawChain {
	strikes := make(map[string][]chain.RawContract)
	for i := 0; i < 120; i++ {
		strike := 400 + float64(i)
		strikes[strconv.FormatFloat(strike, 'f', 1, 64)] = []chain.RawContract{{
			StrikePrice:    chain.FlexFloat(strike),
			TotalVolume:    chain.FlexFloat(200),
			OpenInterest:   chain.FlexFloat(500),
			Mark:           chain.FlexFloat(2.5),
			ExpirationDate: []byte(`"2025-06-20"`),
		}}
	}
	return &chain.RawChain{
		Symbol:         "SPY",
		Underlying:     chain.Underlying{Last: 460},
		CallExpDateMap: map[string]map[string][]chain.RawContract{"2025-06-20:10": strikes},
	}
}

// thinChain grades poor in live mode
func thinChain() *chain.RawChain {
	return &chain.RawChain{
		Symbol:     "SPY",
		Underlying: chain.Underlying{Last: 460},
		CallExpDateMap: map[string]map[string][]chain.RawContract{
			"2025-06-20:10": {
				"460": {{
					StrikePrice:    chain.FlexFloat(460),
					TotalVolume:    chain.FlexFloat(10),
					OpenInterest:   chain.FlexFloat(20),
					Mark:           chain.FlexFloat(2.5),
					ExpirationDate: []byte(`"2025-06-20"`),
				}},
			},
		},
	}
}

// freshSnapshot grades excellent in historical mode (age 0, 20 expiries)
func freshSnapshot(date time.Time) *snapshot.ChainSnapshot {
	snap := &snapshot.ChainSnapshot{
		Symbol:          "SPY",
		Date:            date,
		UnderlyingPrice: 460,
	}
	for i := 0; i < 20; i++ {
		expiry := date.AddDate(0, 0, 7*(i+1))
		snap.Chains = append(snap.Chains, snapshot.ExpiryChain{
			Expiry: expiry,
			Calls: []chain.Contract{{
				Type: chain.Call, Strike: 460, Expiry: expiry, DTE: 7 * (i + 1),
				Volume: 100, OpenInterest: 200, IV: 0.2, VOIRatio: 0.5, Last: 5,
			}},
			Puts: []chain.Contract{{
				Type: chain.Put, Strike: 460, Expiry: expiry, DTE: 7 * (i + 1),
				Volume: 80, OpenInterest: 150, IV: 0.22, VOIRatio: 0.53, Last: 3,
			}},
		})
	}
	return snap
}

// shallowSnapshot grades poor in historical mode
func shallowSnapshot(date time.Time) *snapshot.ChainSnapshot {
	snap := freshSnapshot(date)
	snap.Chains = snap.Chains[:2]
	return snap
}

func storeWith(snaps ...*snapshot.ChainSnapshot) *stubStore {
	s := &stubStore{snaps: make(map[string]*snapshot.ChainSnapshot)}
	for _, snap := range snaps {
		s.snaps[snap.Date.Format("2006-01-02")] = snap
		s.dates = append(s.dates, snap.Date)
	}
	return s
}

func TestRoute_StrongLiveWins(t *testing.T) {
	yesterday := testNow.AddDate(0, 0, -1).Truncate(24 * time.Hour)
	r := newTestRouter(&stubLive{raw: richChain()}, storeWith(freshSnapshot(yesterday)))

	d := r.Route(context.Background(), Request{Symbol: "SPY", Mode: ModeAuto})

	require.NotNil(t, d)
	assert.Equal(t, SourceLive, d.Source)
	assert.Equal(t, quality.Excellent, d.Tier)
	assert.False(t, d.Enriched)
	assert.Len(t, d.Contracts, 120)
	// recent history rides along as additive context
	assert.Len(t, d.RecentDates, 1)
}

func TestRoute_TargetDateHit(t *testing.T) {
	date := time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)
	r := newTestRouter(&stubLive{err: errors.ErrBrokerUnavailable}, storeWith(freshSnapshot(date)))

	d := r.Route(context.Background(), Request{Symbol: "SPY", TargetDate: &date})

	assert.Equal(t, SourceHistorical, d.Source)
	assert.True(t, d.Enriched)
	require.NotNil(t, d.Analytics)
	assert.Equal(t, 460.0, d.Analytics.Spot)
}

func TestRoute_TargetDateMissFallsToSynthetic(t *testing.T) {
	date := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	// live data is rich but must not be consulted for a dated request
	r := newTestRouter(&stubLive{raw: richChain()}, storeWith())

	d := r.Route(context.Background(), Request{Symbol: "SPY", TargetDate: &date})

	assert.Equal(t, SourceSynthetic, d.Source)
	assert.Equal(t, quality.Poor, d.Tier)
	assert.NotEmpty(t, d.Message)
	assert.False(t, d.Timestamp.IsZero())
}

func TestRoute_HistoricalModeUsesLatest(t *testing.T) {
	date := testNow.AddDate(0, 0, -1).Truncate(24 * time.Hour)
	r := newTestRouter(&stubLive{raw: richChain()}, storeWith(freshSnapshot(date)))

	d := r.Route(context.Background(), Request{Symbol: "SPY", Mode: ModeHistorical})

	assert.Equal(t, SourceHistorical, d.Source)
	assert.True(t, d.Enriched)
}

func TestRoute_WeakLivePrefersStrongHistory(t *testing.T) {
	yesterday := testNow.AddDate(0, 0, -1).Truncate(24 * time.Hour)
	r := newTestRouter(&stubLive{raw: thinChain()}, storeWith(freshSnapshot(yesterday)))

	d := r.Route(context.Background(), Request{Symbol: "SPY", Mode: ModeAuto})

	assert.Equal(t, SourceHistorical, d.Source)
	assert.Equal(t, quality.Excellent, d.Tier)
	assert.True(t, d.Enriched)
	require.NotNil(t, d.Snapshot)
}

func TestRoute_FusionWhenBothWeak(t *testing.T) {
	yesterday := testNow.AddDate(0, 0, -1).Truncate(24 * time.Hour)
	r := newTestRouter(&stubLive{raw: thinChain()}, storeWith(shallowSnapshot(yesterday)))

	d := r.Route(context.Background(), Request{Symbol: "SPY", Mode: ModeAuto})

	assert.Equal(t, SourceFusion, d.Source)
	assert.True(t, d.Enriched)
	assert.NotNil(t, d.Snapshot)
	assert.NotEmpty(t, d.Contracts)
	assert.Equal(t, quality.FusionScore(quality.Poor, quality.Poor), d.FusionScore)
}

func TestRoute_WeakHistoryAloneStillServes(t *testing.T) {
	yesterday := testNow.AddDate(0, 0, -1).Truncate(24 * time.Hour)
	r := newTestRouter(&stubLive{err: errors.ErrBrokerUnavailable}, storeWith(shallowSnapshot(yesterday)))

	d := r.Route(context.Background(), Request{Symbol: "SPY", Mode: ModeAuto})

	assert.Equal(t, SourceHistorical, d.Source)
	assert.Equal(t, quality.Poor, d.Tier)
	assert.True(t, d.Enriched)
}

func TestRoute_SyntheticWhenNothingUsable(t *testing.T) {
	r := newTestRouter(&stubLive{err: errors.ErrBrokerUnavailable}, storeWith())

	d := r.Route(context.Background(), Request{Symbol: "XYZ", Mode: ModeAuto})

	require.NotNil(t, d)
	assert.Equal(t, SourceSynthetic, d.Source)
	assert.Equal(t, quality.Poor, d.Tier)
	assert.Equal(t, "XYZ", d.Symbol)
}

func TestRoute_Idempotent(t *testing.T) {
	r := newTestRouter(&stubLive{err: errors.ErrBrokerUnavailable}, storeWith())

	first := r.Route(context.Background(), Request{Symbol: "SPY", Mode: ModeAuto})
	second := r.Route(context.Background(), Request{Symbol: "SPY", Mode: ModeAuto})

	assert.Equal(t, first.Source, second.Source)
	assert.Equal(t, first.Tier, second.Tier)
}
