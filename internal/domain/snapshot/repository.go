package snapshot

import (
	"context"
	"time"
)

// Repository is the canonical snapshot store. Save is last-writer-wins for
// the same (symbol, date) key.
type Repository interface {
	Save(ctx context.Context, snap *ChainSnapshot) error
	Load(ctx context.Context, symbol string, date time.Time) (*ChainSnapshot, error)
	AvailableDates(ctx context.Context, symbol string) ([]time.Time, error) // newest first
	LatestDate(ctx context.Context, symbol string) (time.Time, error)
}

// ActivityRepository stores unusual-activity extracts and daily aggregates
// as append-only time series
type ActivityRepository interface {
	SaveUnusualFlows(ctx context.Context, date time.Time, entries []UnusualEntry) error
	SaveDailyStats(ctx context.Context, symbol string, date time.Time, stats DailyStats) error
	GetUnusualFlows(ctx context.Context, symbol string, from, to time.Time) ([]UnusualEntry, error)
}

// Cache is the hot-path cache for the most recent snapshot per symbol.
// Misses and backend errors are equivalent to the caller.
type Cache interface {
	GetLatest(ctx context.Context, symbol string) (*ChainSnapshot, bool)
	SetLatest(ctx context.Context, snap *ChainSnapshot)
}
