package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"vega/internal/domain/snapshot"
	"vega/internal/metrics"
	"vega/pkg/errors"
)

// SnapshotRepository implements snapshot.Repository on Postgres.
// The full snapshot document is stored as JSONB keyed by (symbol, date);
// concurrent writes to the same key are last-writer-wins via upsert.
type SnapshotRepository struct {
	db DBTX
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db DBTX) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Save upserts a snapshot for its (symbol, date) key
func (r *SnapshotRepository) Save(ctx context.Context, snap *snapshot.ChainSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "marshal snapshot")
	}

	query := `
		INSERT INTO option_snapshots (symbol, snapshot_date, underlying_price, data, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (symbol, snapshot_date) DO UPDATE SET
			underlying_price = EXCLUDED.underlying_price,
			data = EXCLUDED.data,
			created_at = NOW()
	`

	start := time.Now()
	_, err = r.db.ExecContext(ctx, query, snap.Symbol, snap.Date, snap.UnderlyingPrice, data)
	metrics.RecordDBQuery("postgres", "save_snapshot", start, err)
	if err != nil {
		return errors.Wrap(err, "upsert snapshot")
	}
	return nil
}

// Load retrieves a snapshot by symbol and date
func (r *SnapshotRepository) Load(ctx context.Context, symbol string, date time.Time) (*snapshot.ChainSnapshot, error) {
	query := `
		SELECT data
		FROM option_snapshots
		WHERE symbol = $1 AND snapshot_date = $2
	`

	var data []byte
	start := time.Now()
	err := r.db.QueryRowContext(ctx, query, symbol, date).Scan(&data)
	metrics.RecordDBQuery("postgres", "load_snapshot", start, err)
	if err == sql.ErrNoRows {
		return nil, errors.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "query snapshot")
	}

	var snap snapshot.ChainSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrap(err, "unmarshal snapshot")
	}
	return &snap, nil
}

// AvailableDates lists stored snapshot dates for a symbol, newest first
func (r *SnapshotRepository) AvailableDates(ctx context.Context, symbol string) ([]time.Time, error) {
	query := `
		SELECT snapshot_date
		FROM option_snapshots
		WHERE symbol = $1
		ORDER BY snapshot_date DESC
	`

	var dates []time.Time
	if err := r.db.SelectContext(ctx, &dates, query, symbol); err != nil {
		return nil, errors.Wrap(err, "query snapshot dates")
	}
	return dates, nil
}

// LatestDate returns the most recent stored date for a symbol
func (r *SnapshotRepository) LatestDate(ctx context.Context, symbol string) (time.Time, error) {
	query := `
		SELECT snapshot_date
		FROM option_snapshots
		WHERE symbol = $1
		ORDER BY snapshot_date DESC
		LIMIT 1
	`

	var date time.Time
	err := r.db.GetContext(ctx, &date, query, symbol)
	if err == sql.ErrNoRows {
		return time.Time{}, errors.ErrSnapshotNotFound
	}
	if err != nil {
		return time.Time{}, errors.Wrap(err, "query latest snapshot date")
	}
	return date, nil
}
