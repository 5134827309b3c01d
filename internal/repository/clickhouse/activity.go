package clickhouse

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"vega/internal/domain/chain"
	"vega/internal/domain/snapshot"
	"vega/internal/metrics"
	"vega/pkg/errors"
)

// ActivityRepository implements snapshot.ActivityRepository for ClickHouse
type ActivityRepository struct {
	conn driver.Conn
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(conn driver.Conn) *ActivityRepository {
	return &ActivityRepository{conn: conn}
}

// ============================================================================
// Unusual Flow Operations
// ============================================================================

// SaveUnusualFlows batch-inserts one date's unusual-activity extract
func (r *ActivityRepository) SaveUnusualFlows(ctx context.Context, date time.Time, entries []snapshot.UnusualEntry) error {
	if len(entries) == 0 {
		return nil
	}

	batch, err := r.conn.PrepareBatch(ctx, `
		INSERT INTO unusual_flows (
			symbol, flow_date, option_type, strike, expiry, dte,
			volume, open_interest, voi_ratio, premium, iv, flow_direction, score
		)
	`)
	if err != nil {
		return errors.Wrap(err, "prepare unusual flows batch")
	}

	for _, e := range entries {
		err := batch.Append(
			e.Symbol,
			date,
			string(e.Type),
			e.Strike,
			e.Expiry,
			int32(e.DTE),
			e.Volume,
			e.OpenInterest,
			e.VOIRatio,
			e.Premium,
			e.IV,
			string(e.Flow),
			e.Score,
		)
		if err != nil {
			return errors.Wrap(err, "append unusual flow")
		}
	}

	start := time.Now()
	err = batch.Send()
	metrics.RecordDBQuery("clickhouse", "save_unusual_flows", start, err)
	if err != nil {
		return errors.Wrap(err, "send unusual flows batch")
	}
	return nil
}

// GetUnusualFlows retrieves extract rows for a symbol within a date range,
// newest first
func (r *ActivityRepository) GetUnusualFlows(ctx context.Context, symbol string, from, to time.Time) ([]snapshot.UnusualEntry, error) {
	query := `
		SELECT
			symbol, option_type, strike, expiry, dte,
			volume, open_interest, voi_ratio, premium, iv, flow_direction, score
		FROM unusual_flows
		WHERE symbol = ? AND flow_date >= ? AND flow_date <= ?
		ORDER BY flow_date DESC, score DESC
	`

	rows, err := r.conn.Query(ctx, query, symbol, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "query unusual flows")
	}
	defer rows.Close()

	var entries []snapshot.UnusualEntry
	for rows.Next() {
		var (
			e         snapshot.UnusualEntry
			typ, flow string
			dte       int32
		)
		err := rows.Scan(
			&e.Symbol, &typ, &e.Strike, &e.Expiry, &dte,
			&e.Volume, &e.OpenInterest, &e.VOIRatio, &e.Premium, &e.IV, &flow, &e.Score,
		)
		if err != nil {
			return nil, errors.Wrap(err, "scan unusual flow")
		}
		e.Type = chain.ContractType(typ)
		e.Flow = chain.FlowDirection(flow)
		e.DTE = int(dte)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// ============================================================================
// Daily Stats Operations
// ============================================================================

// SaveDailyStats inserts one symbol's daily aggregate row
func (r *ActivityRepository) SaveDailyStats(ctx context.Context, symbol string, date time.Time, stats snapshot.DailyStats) error {
	query := `
		INSERT INTO daily_option_stats (
			symbol, stat_date, total_call_volume, total_put_volume,
			total_call_oi, total_put_oi, put_call_vol_ratio, put_call_oi_ratio,
			call_premium, put_premium, contract_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	callPremium, _ := stats.CallPremium.Float64()
	putPremium, _ := stats.PutPremium.Float64()

	start := time.Now()
	err := r.conn.Exec(ctx, query,
		symbol,
		date,
		stats.TotalCallVolume,
		stats.TotalPutVolume,
		stats.TotalCallOI,
		stats.TotalPutOI,
		stats.PutCallVolRatio,
		stats.PutCallOIRatio,
		callPremium,
		putPremium,
		int32(stats.ContractCount),
	)
	metrics.RecordDBQuery("clickhouse", "save_daily_stats", start, err)
	if err != nil {
		return errors.Wrap(err, "insert daily option stats")
	}
	return nil
}
