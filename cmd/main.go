package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vega/internal/adapters/clickhouse"
	"vega/internal/adapters/config"
	"vega/internal/adapters/errors/noop"
	"vega/internal/adapters/errors/sentry"
	"vega/internal/adapters/kafka"
	"vega/internal/adapters/postgres"
	"vega/internal/adapters/redis"
	"vega/internal/adapters/schwab"
	"vega/internal/api/health"
	"vega/internal/domain/chain"
	"vega/internal/domain/quality"
	"vega/internal/events"
	"vega/internal/metrics"
	"vega/internal/ml/scoring"
	chrepo "vega/internal/repository/clickhouse"
	pgrepo "vega/internal/repository/postgres"
	redisrepo "vega/internal/repository/redis"
	"vega/internal/services/analysis"
	"vega/internal/services/analytics"
	"vega/internal/services/router"
	snapshotsvc "vega/internal/services/snapshot"
	"vega/internal/workers"
	"vega/pkg/errors"
	"vega/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	metrics.Init()

	// Storage
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

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	log.Info("Storage initialized")

	// Messaging
	producer := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers})
	defer producer.Close()
	publisher := events.NewPublisher(producer)

	// Repositories
	snapshotRepo := pgrepo.NewSnapshotRepository(pgClient.DB())
	activityRepo := chrepo.NewActivityRepository(chClient.Conn())
	snapshotCache := redisrepo.NewSnapshotCache(redisClient.Client(), cfg.Redis.SnapshotTTL)

	// Domain and services
	broker := schwab.NewClient(cfg.Broker)
	normalizer := chain.NewNormalizer(normalizerParams(cfg.Analytics))
	assessor := quality.NewAssessor(qualityBounds(cfg.Quality))
	engine := analytics.NewEngine(analyticsParams(cfg.Analytics))

	snapshotService := snapshotsvc.NewService(snapshotRepo, activityRepo, snapshotCache, snapshotsvc.ExtractParams{
		MinVolume: cfg.Analytics.ExtractMinVolume,
		MinScore:  cfg.Analytics.ExtractMinScore,
		Limit:     cfg.Analytics.ExtractLimit,
	})

	dataRouter := router.New(broker, snapshotService, normalizer, assessor, engine, cfg.Analytics.RecentContextDays)

	strategy := scoring.NewHeuristicStrategy()
	analysisService := analysis.NewService(dataRouter,
		analysis.NewIVSurfaceProcessor(engine),
		analysis.NewFlowScannerProcessor(strategy),
		analysis.NewHeatmapProcessor(),
		analysis.NewStrikeAnalysisProcessor(),
		analysis.NewIntradayProcessor(),
		analysis.NewDealerSurfacesProcessor(),
		analysis.NewComprehensiveProcessor(engine, strategy),
	).WithCache(analysis.NewResultCache(analysis.CacheConfig{
		Enabled:       cfg.Analytics.CacheEnabled,
		TTLLive:       cfg.Analytics.CacheTTLLive,
		TTLHistorical: cfg.Analytics.CacheTTLHistorical,
	}, redisClient))
	log.Infof("Analysis service ready (%d processors)", len(analysisService.Kinds()))

	// Workers
	scheduler := workers.NewScheduler()
	scheduler.RegisterWorker(workers.NewCollectorWorker(
		broker,
		snapshotService,
		normalizer,
		publisher,
		cfg.Workers.Symbols,
		cfg.Workers.CollectorInterval,
		cfg.Analytics.AlertMinScore,
		cfg.Workers.CollectorEnabled,
	))

	// Observability
	metrics.Register(metrics.NewCustomCollector(log, pgClient.DB(), chClient.Conn(), redisClient.Client()))
	healthHandler := health.New(log, pgClient.DB(), chClient.Conn(), redisClient.Client(), cfg.App.Name)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", healthHandler.HandleLiveness)
	mux.HandleFunc("/health", healthHandler.HandleHealth)
	httpServer := &http.Server{Addr: cfg.App.HTTPAddr, Handler: mux}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := scheduler.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	go func() {
		log.Infof("HTTP server listening on %s", cfg.App.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("HTTP server error: %v", err)
		}
	}()

	log.Info("System initialized successfully")

	waitForShutdown(cancel, scheduler, httpServer, errorTracker, log)
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// normalizerParams maps environment config onto chain normalization parameters
func normalizerParams(cfg config.AnalyticsConfig) chain.Params {
	return chain.Params{
		OTMBandPct:       cfg.OTMBandPct,
		ITMBandPct:       cfg.ITMBandPct,
		HighVOIRatio:     cfg.HighVOIRatio,
		VolumeMedianMult: cfg.VolumeMedianMult,
		PremiumQuantile:  cfg.PremiumQuantile,
		NearTermMaxDTE:   cfg.NearTermMaxDTE,
		NearTermHighIV:   cfg.NearTermHighIV,
	}
}

// analyticsParams maps environment config onto the derivation engine parameters
func analyticsParams(cfg config.AnalyticsConfig) analytics.Params {
	return analytics.Params{
		SurfaceIVMin:         cfg.SurfaceIVMin,
		SurfaceIVMax:         cfg.SurfaceIVMax,
		SurfaceDTEMin:        cfg.SurfaceDTEMin,
		SurfaceDTEMax:        cfg.SurfaceDTEMax,
		SurfaceOutlierSigma:  cfg.SurfaceOutlierSigma,
		SurfaceStaleQuantile: cfg.SurfaceStaleQuantile,
		SurfaceGridStrikes:   cfg.SurfaceGridStrikes,
		SurfaceGridDTEs:      cfg.SurfaceGridDTEs,
		UnusualScoreFloor:    cfg.UnusualScoreFloor,
	}
}

// qualityBounds maps environment config onto tier boundaries, first match wins
func qualityBounds(cfg config.QualityConfig) quality.Bounds {
	return quality.Bounds{
		Live: []quality.LiveBand{
			{MinVolume: cfg.LiveExcellentVolume, MinContracts: cfg.LiveExcellentCount, Tier: quality.Excellent},
			{MinVolume: cfg.LiveGoodVolume, MinContracts: cfg.LiveGoodCount, Tier: quality.Good},
			{MinVolume: cfg.LiveFairVolume, MinContracts: cfg.LiveFairCount, Tier: quality.Fair},
		},
		Historical: []quality.HistoricalBand{
			{MaxAgeDays: cfg.HistExcellentAgeDays, MinExpirations: cfg.HistExcellentExpiry, Tier: quality.Excellent},
			{MaxAgeDays: cfg.HistGoodAgeDays, MinExpirations: cfg.HistGoodExpiry, Tier: quality.Good},
			{MaxAgeDays: cfg.HistFairAgeDays, MinExpirations: cfg.HistFairExpiry, Tier: quality.Fair},
		},
	}
}

// waitForShutdown blocks until SIGINT/SIGTERM and drains components in order
func waitForShutdown(cancel context.CancelFunc, scheduler *workers.Scheduler, httpServer *http.Server, errorTracker errors.Tracker, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("Shutting down...")

	cancel()

	if err := scheduler.Stop(); err != nil {
		log.Warnf("Scheduler stop: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warnf("HTTP server shutdown: %v", err)
	}

	if errorTracker != nil {
		if err := errorTracker.Flush(shutdownCtx); err != nil {
			log.Warnf("Failed to flush error tracker: %v", err)
		}
	}

	log.Info("Shutdown complete")
}
