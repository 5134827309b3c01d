package testsupport

import (
	"context"
	"fmt"
	"testing"

	"vega/internal/adapters/clickhouse"
	"vega/internal/adapters/config"
)

// Analytics table schemas mirrored for integration tests
const (
	unusualFlowsSchema = `
		CREATE TABLE IF NOT EXISTS unusual_flows (
			symbol         String,
			flow_date      Date,
			option_type    String,
			strike         Float64,
			expiry         Date,
			dte            Int32,
			volume         Int64,
			open_interest  Int64,
			voi_ratio      Float64,
			premium        Float64,
			iv             Float64,
			flow_direction String,
			score          Float64
		) ENGINE = MergeTree()
		ORDER BY (symbol, flow_date, score)
	`

	dailyStatsSchema = `
		CREATE TABLE IF NOT EXISTS daily_option_stats (
			symbol             String,
			stat_date          Date,
			total_call_volume  Int64,
			total_put_volume   Int64,
			total_call_oi      Int64,
			total_put_oi       Int64,
			put_call_vol_ratio Float64,
			put_call_oi_ratio  Float64,
			call_premium       Float64,
			put_premium        Float64,
			contract_count     Int32
		) ENGINE = MergeTree()
		ORDER BY (symbol, stat_date)
	`
)

// ClickHouseTestHelper manages schema setup and cleanup for ClickHouse
// integration tests.
type ClickHouseTestHelper struct {
	client *clickhouse.Client
}

// NewClickHouseTestHelper creates a ClickHouse client for tests and ensures
// the analytics tables exist, truncated before and after each test.
func NewClickHouseTestHelper(t *testing.T, cfg config.ClickHouseConfig) *ClickHouseTestHelper {
	t.Helper()

	client, err := clickhouse.NewClient(cfg)
	if err != nil {
		t.Fatalf("failed to connect to clickhouse: %v", err)
	}

	helper := &ClickHouseTestHelper{client: client}
	ctx := context.Background()

	for _, schema := range []string{unusualFlowsSchema, dailyStatsSchema} {
		if err := client.Exec(ctx, schema); err != nil {
			_ = client.Close()
			t.Fatalf("failed to ensure clickhouse schema: %v", err)
		}
	}
	for _, table := range []string{"unusual_flows", "daily_option_stats"} {
		if err := helper.TruncateTable(ctx, table); err != nil {
			_ = client.Close()
			t.Fatalf("failed to truncate %s: %v", table, err)
		}
	}

	t.Cleanup(func() {
		_ = helper.TruncateTable(context.Background(), "unusual_flows")
		_ = helper.TruncateTable(context.Background(), "daily_option_stats")
		_ = client.Close()
	})
	return helper
}

// Client returns the underlying connection wrapper.
func (h *ClickHouseTestHelper) Client() *clickhouse.Client {
	return h.client
}

// TruncateTable removes all data from the table but keeps the structure
func (h *ClickHouseTestHelper) TruncateTable(ctx context.Context, table string) error {
	return h.client.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE IF EXISTS %s", table))
}

// NewTestClickHouse creates a test helper with config loaded from the environment.
func NewTestClickHouse(t *testing.T) *ClickHouseTestHelper {
	t.Helper()
	return NewClickHouseTestHelper(t, LoadDatabaseConfigsFromEnv(t).ClickHouse)
}
