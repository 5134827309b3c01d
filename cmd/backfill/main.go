package main

// Replays stored chain snapshots into the ClickHouse activity tables.
// Useful after a ClickHouse reset or schema change: the Postgres snapshot
// store stays the source of truth, unusual_flows and daily_option_stats
// are rebuilt from it.
//
// Usage:
//   go run ./cmd/backfill --symbols SPY,QQQ --start 2025-01-01 --end 2025-06-30

import (
	"context"
	"flag"
	"strings"
	"time"

	"vega/internal/adapters/clickhouse"
	"vega/internal/adapters/config"
	"vega/internal/adapters/postgres"
	chrepo "vega/internal/repository/clickhouse"
	pgrepo "vega/internal/repository/postgres"
	"vega/pkg/logger"
)

func main() {
	symbolsFlag := flag.String("symbols", "", "Comma-separated symbols (default: all configured worker symbols)")
	startFlag := flag.String("start", "", "Start date YYYY-MM-DD (default: no lower bound)")
	endFlag := flag.String("end", "", "End date YYYY-MM-DD (default: today)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()
	log := logger.Get()

	symbols := cfg.Workers.Symbols
	if *symbolsFlag != "" {
		symbols = strings.Split(*symbolsFlag, ",")
	}

	start, end, err := parseRange(*startFlag, *endFlag)
	if err != nil {
		log.Fatalf("Invalid date range: %v", err)
	}

	pgClient, err := postgres.NewClient(cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer pgClient.Close()

	chClient, err := clickhouse.NewClient(cfg.ClickHouse)
	if err != nil {
		log.Fatalf("Failed to connect to ClickHouse: %v", err)
	}
	defer chClient.Close()

	snapshots := pgrepo.NewSnapshotRepository(pgClient.DB())
	activity := chrepo.NewActivityRepository(chClient.Conn())

	ctx := context.Background()
	total := 0

	for _, symbol := range symbols {
		symbol = strings.TrimSpace(symbol)
		dates, err := snapshots.AvailableDates(ctx, symbol)
		if err != nil {
			log.Errorf("Failed to list dates for %s: %v", symbol, err)
			continue
		}

		replayed := 0
		for _, date := range dates {
			if date.Before(start) || date.After(end) {
				continue
			}

			snap, err := snapshots.Load(ctx, symbol, date)
			if err != nil {
				log.Errorf("Failed to load %s %s: %v", symbol, date.Format("2006-01-02"), err)
				continue
			}

			if err := activity.SaveUnusualFlows(ctx, date, snap.Unusual); err != nil {
				log.Errorf("Failed to replay flows for %s %s: %v", symbol, date.Format("2006-01-02"), err)
				continue
			}
			if err := activity.SaveDailyStats(ctx, symbol, date, snap.Stats); err != nil {
				log.Errorf("Failed to replay stats for %s %s: %v", symbol, date.Format("2006-01-02"), err)
				continue
			}
			replayed++
		}

		log.Infof("Replayed %d snapshot(s) for %s", replayed, symbol)
		total += replayed
	}

	log.Infof("Backfill complete: %d snapshot(s) replayed", total)
}

func parseRange(startStr, endStr string) (time.Time, time.Time, error) {
	start := time.Time{}
	end := time.Now().UTC()

	if startStr != "" {
		parsed, err := time.Parse("2006-01-02", startStr)
		if err != nil {
			return start, end, err
		}
		start = parsed
	}
	if endStr != "" {
		parsed, err := time.Parse("2006-01-02", endStr)
		if err != nil {
			return start, end, err
		}
		end = parsed
	}
	return start, end, nil
}
