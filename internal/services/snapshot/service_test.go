package snapshot

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vega/internal/domain/chain"
	"vega/internal/domain/snapshot"
	"vega/pkg/errors"
)

type memoryRepo struct {
	snaps map[string]*snapshot.ChainSnapshot
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{snaps: make(map[string]*snapshot.ChainSnapshot)}
}

func (m *memoryRepo) key(symbol string, date time.Time) string {
	return symbol + ":" + date.Format("2006-01-02")
}

func (m *memoryRepo) Save(_ context.Context, snap *snapshot.ChainSnapshot) error {
	m.snaps[m.key(snap.Symbol, snap.Date)] = snap
	return nil
}

func (m *memoryRepo) Load(_ context.Context, symbol string, date time.Time) (*snapshot.ChainSnapshot, error) {
	snap, ok := m.snaps[m.key(symbol, date)]
	if !ok {
		return nil, errors.ErrSnapshotNotFound
	}
	return snap, nil
}

func (m *memoryRepo) AvailableDates(_ context.Context, symbol string) ([]time.Time, error) {
	var dates []time.Time
	for _, snap := range m.snaps {
		if snap.Symbol == symbol {
			dates = append(dates, snap.Date)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })
	return dates, nil
}

func (m *memoryRepo) LatestDate(_ context.Context, symbol string) (time.Time, error) {
	dates, _ := m.AvailableDates(context.Background(), symbol)
	if len(dates) == 0 {
		return time.Time{}, errors.ErrSnapshotNotFound
	}
	return dates[0], nil
}

func makeContract(typ chain.ContractType, strike float64, volume, oi int64, expiry time.Time) chain.Contract {
	voi := 0.0
	if oi > 0 {
		voi = float64(volume) / float64(oi)
	}
	return chain.Contract{
		Type:         typ,
		Strike:       strike,
		Expiry:       expiry,
		Volume:       volume,
		OpenInterest: oi,
		Mark:         2.5,
		Premium:      float64(volume) * 2.5 * 100,
		VOIRatio:     voi,
	}
}

func TestBuild_GroupsAndAggregates(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil, DefaultExtractParams())

	june := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)
	july := time.Date(2025, 7, 18, 0, 0, 0, 0, time.UTC)

	contracts := []chain.Contract{
		makeContract(chain.Call, 105, 300, 600, july),
		makeContract(chain.Call, 100, 400, 800, june),
		makeContract(chain.Put, 95, 200, 400, june),
	}

	snap := svc.Build("SPY", june, contracts, 100)

	require.Len(t, snap.Chains, 2)
	// expiries ascending, strikes ascending within each group
	assert.Equal(t, june, snap.Chains[0].Expiry)
	assert.Equal(t, july, snap.Chains[1].Expiry)
	require.Len(t, snap.Chains[0].Calls, 1)
	require.Len(t, snap.Chains[0].Puts, 1)

	assert.Equal(t, int64(700), snap.Stats.TotalCallVolume)
	assert.Equal(t, int64(200), snap.Stats.TotalPutVolume)
	assert.InDelta(t, 200.0/700.0, snap.Stats.PutCallVolRatio, 1e-9)
	assert.Equal(t, 3, snap.Stats.ContractCount)
}

func TestBuild_RatioGuardedOnZeroDenominator(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil, DefaultExtractParams())
	june := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)

	snap := svc.Build("SPY", june, []chain.Contract{
		makeContract(chain.Put, 95, 200, 400, june),
	}, 100)

	assert.Equal(t, 0.0, snap.Stats.PutCallVolRatio)
	assert.Equal(t, 0.0, snap.Stats.PutCallOIRatio)
}

func TestBuild_UnusualExtract(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil, DefaultExtractParams())
	june := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)

	contracts := []chain.Contract{
		makeContract(chain.Call, 100, 5000, 500, june),  // vol score 5, V/OI score 3
		makeContract(chain.Call, 105, 2000, 4000, june), // vol score 2, V/OI 0.5: below floor
		makeContract(chain.Put, 95, 500, 10, june),      // below volume floor
		makeContract(chain.Put, 90, 3000, 0, june),      // zero OI floored to 1
	}

	snap := svc.Build("SPY", june, contracts, 100)

	require.Len(t, snap.Unusual, 2)
	// sorted by score descending
	assert.Equal(t, int64(5000), snap.Unusual[0].Volume)
	assert.InDelta(t, 8.0, snap.Unusual[0].Score, 1e-9)
	assert.Equal(t, int64(3000), snap.Unusual[1].Volume)
	assert.InDelta(t, 6.0, snap.Unusual[1].Score, 1e-9)
}

func TestBuild_ExtractCapped(t *testing.T) {
	params := DefaultExtractParams()
	params.Limit = 3
	svc := NewService(newMemoryRepo(), nil, nil, params)
	june := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)

	var contracts []chain.Contract
	for i := 0; i < 10; i++ {
		contracts = append(contracts, makeContract(chain.Call, 100+float64(i), 5000, 100, june))
	}

	snap := svc.Build("SPY", june, contracts, 100)
	assert.Len(t, snap.Unusual, 3)
}

func TestStoreAndGet(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, DefaultExtractParams())
	june := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)

	_, err := svc.Store(context.Background(), "SPY", june, []chain.Contract{
		makeContract(chain.Call, 100, 400, 800, june),
	}, 100)
	require.NoError(t, err)

	snap, err := svc.Get(context.Background(), "SPY", june)
	require.NoError(t, err)
	assert.Equal(t, "SPY", snap.Symbol)
	assert.Equal(t, 100.0, snap.UnderlyingPrice)

	_, err = svc.Get(context.Background(), "SPY", june.AddDate(0, 0, 1))
	assert.ErrorIs(t, err, errors.ErrSnapshotNotFound)
}

func TestStore_LastWriterWins(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, DefaultExtractParams())
	june := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)

	_, err := svc.Store(context.Background(), "SPY", june, nil, 100)
	require.NoError(t, err)
	_, err = svc.Store(context.Background(), "SPY", june, nil, 101)
	require.NoError(t, err)

	snap, err := svc.Get(context.Background(), "SPY", june)
	require.NoError(t, err)
	assert.Equal(t, 101.0, snap.UnderlyingPrice)
}

func TestLatest(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, DefaultExtractParams())

	d1 := time.Date(2025, 6, 18, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)

	_, err := svc.Store(context.Background(), "SPY", d1, nil, 99)
	require.NoError(t, err)
	_, err = svc.Store(context.Background(), "SPY", d2, nil, 100)
	require.NoError(t, err)

	snap, err := svc.Latest(context.Background(), "SPY")
	require.NoError(t, err)
	assert.Equal(t, d2, snap.Date)

	dates, err := svc.AvailableDates(context.Background(), "SPY")
	require.NoError(t, err)
	require.Len(t, dates, 2)
	assert.Equal(t, d2, dates[0])

	_, err = svc.Latest(context.Background(), "QQQ")
	assert.ErrorIs(t, err, errors.ErrSnapshotNotFound)
}
