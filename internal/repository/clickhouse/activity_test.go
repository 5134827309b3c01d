package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopspring/decimal"

	"vega/internal/domain/chain"
	"vega/internal/domain/snapshot"
	"vega/internal/testsupport"
)

func TestActivityRepository_UnusualFlowsRoundTrip(t *testing.T) {
	helper := testsupport.NewTestClickHouse(t)
	repo := NewActivityRepository(helper.Client().Conn())
	ctx := context.Background()

	date := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)
	entries := []snapshot.UnusualEntry{
		{
			Symbol: "SPY", Type: chain.Call, Strike: 455, Expiry: date.AddDate(0, 0, 7),
			DTE: 7, Volume: 5000, OpenInterest: 400, VOIRatio: 12.5,
			Premium: 1.2e6, IV: 0.31, Flow: chain.FlowBullish, Score: 8.0,
		},
		{
			Symbol: "SPY", Type: chain.Put, Strike: 450, Expiry: date.AddDate(0, 0, 7),
			DTE: 7, Volume: 2000, OpenInterest: 900, VOIRatio: 2.2,
			Premium: 3e5, IV: 0.35, Flow: chain.FlowBearish, Score: 4.2,
		},
	}

	require.NoError(t, repo.SaveUnusualFlows(ctx, date, entries))

	loaded, err := repo.GetUnusualFlows(ctx, "SPY", date.AddDate(0, 0, -1), date.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	// ordered by score descending within the day
	assert.Equal(t, 8.0, loaded[0].Score)
	assert.Equal(t, chain.Call, loaded[0].Type)
	assert.Equal(t, chain.FlowBearish, loaded[1].Flow)
}

func TestActivityRepository_EmptyBatchIsNoop(t *testing.T) {
	helper := testsupport.NewTestClickHouse(t)
	repo := NewActivityRepository(helper.Client().Conn())

	require.NoError(t, repo.SaveUnusualFlows(context.Background(), time.Now(), nil))
}

func TestActivityRepository_SaveDailyStats(t *testing.T) {
	helper := testsupport.NewTestClickHouse(t)
	repo := NewActivityRepository(helper.Client().Conn())
	ctx := context.Background()

	stats := snapshot.DailyStats{
		TotalCallVolume: 120000,
		TotalPutVolume:  90000,
		TotalCallOI:     500000,
		TotalPutOI:      450000,
		PutCallVolRatio: 0.75,
		PutCallOIRatio:  0.9,
		CallPremium:     decimal.NewFromFloat(2.5e7),
		PutPremium:      decimal.NewFromFloat(1.9e7),
		ContractCount:   4200,
	}

	err := repo.SaveDailyStats(ctx, "SPY", time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC), stats)
	require.NoError(t, err)
}
