package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"vega/pkg/errors"
)

type Config struct {
	App           AppConfig
	Postgres      PostgresConfig
	ClickHouse    ClickHouseConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Broker        BrokerConfig
	Quality       QualityConfig
	Analytics     AnalyticsConfig
	ErrorTracking ErrorTrackingConfig
	Workers       WorkerConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"vega"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	Database string `envconfig:"POSTGRES_DB" required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type ClickHouseConfig struct {
	Host     string `envconfig:"CLICKHOUSE_HOST" required:"true"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"options"`
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" required:"true"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`

	// TTL for cached latest snapshots; slightly over a day so the cache
	// survives until the next collection cycle
	SnapshotTTL time.Duration `envconfig:"REDIS_SNAPSHOT_TTL" default:"26h"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS" required:"true"`
	GroupID string   `envconfig:"KAFKA_GROUP_ID" default:"vega"`
}

// BrokerConfig holds the options-chain API credentials and limits
type BrokerConfig struct {
	BaseURL           string        `envconfig:"BROKER_BASE_URL" default:"https://api.schwabapi.com/marketdata/v1"`
	AccessToken       string        `envconfig:"BROKER_ACCESS_TOKEN"`
	RequestTimeout    time.Duration `envconfig:"BROKER_REQUEST_TIMEOUT" default:"30s"`
	RequestsPerMinute int           `envconfig:"BROKER_REQUESTS_PER_MINUTE" default:"120"`
}

// QualityConfig holds the tier boundary table for the quality assessor.
// Bands are evaluated left-to-right (excellent, good, fair); first match wins.
type QualityConfig struct {
	// Live tiers: total volume plus contract count
	LiveExcellentVolume int64 `envconfig:"QUALITY_LIVE_EXCELLENT_VOLUME" default:"10000"`
	LiveExcellentCount  int   `envconfig:"QUALITY_LIVE_EXCELLENT_COUNT" default:"100"`
	LiveGoodVolume      int64 `envconfig:"QUALITY_LIVE_GOOD_VOLUME" default:"1000"`
	LiveGoodCount       int   `envconfig:"QUALITY_LIVE_GOOD_COUNT" default:"50"`
	LiveFairVolume      int64 `envconfig:"QUALITY_LIVE_FAIR_VOLUME" default:"100"`
	LiveFairCount       int   `envconfig:"QUALITY_LIVE_FAIR_COUNT" default:"20"`

	// Historical tiers: snapshot age in days plus distinct expirations
	HistExcellentAgeDays int `envconfig:"QUALITY_HIST_EXCELLENT_AGE_DAYS" default:"1"`
	HistExcellentExpiry  int `envconfig:"QUALITY_HIST_EXCELLENT_EXPIRATIONS" default:"15"`
	HistGoodAgeDays      int `envconfig:"QUALITY_HIST_GOOD_AGE_DAYS" default:"3"`
	HistGoodExpiry       int `envconfig:"QUALITY_HIST_GOOD_EXPIRATIONS" default:"10"`
	HistFairAgeDays      int `envconfig:"QUALITY_HIST_FAIR_AGE_DAYS" default:"7"`
	HistFairExpiry       int `envconfig:"QUALITY_HIST_FAIR_EXPIRATIONS" default:"5"`
}

// AnalyticsConfig holds tunable thresholds for normalization and derived
// analytics. The scoring constants are reference defaults, not calibrated
// model parameters.
type AnalyticsConfig struct {
	// Moneyness bands as fractions of the underlying price
	OTMBandPct float64 `envconfig:"ANALYTICS_OTM_BAND_PCT" default:"0.05"`
	ITMBandPct float64 `envconfig:"ANALYTICS_ITM_BAND_PCT" default:"0.02"`

	// Unusual-score triggers (25 points each)
	HighVOIRatio     float64 `envconfig:"ANALYTICS_HIGH_VOI_RATIO" default:"5"`
	VolumeMedianMult float64 `envconfig:"ANALYTICS_VOLUME_MEDIAN_MULT" default:"3"`
	PremiumQuantile  float64 `envconfig:"ANALYTICS_PREMIUM_QUANTILE" default:"0.9"`
	NearTermMaxDTE   int     `envconfig:"ANALYTICS_NEAR_TERM_MAX_DTE" default:"7"`
	NearTermHighIV   float64 `envconfig:"ANALYTICS_NEAR_TERM_HIGH_IV" default:"0.5"`

	// Unusual-activity extract thresholds (store write path)
	ExtractMinVolume int64   `envconfig:"ANALYTICS_EXTRACT_MIN_VOLUME" default:"1000"`
	ExtractMinScore  float64 `envconfig:"ANALYTICS_EXTRACT_MIN_SCORE" default:"3.0"`
	ExtractLimit     int     `envconfig:"ANALYTICS_EXTRACT_LIMIT" default:"50"`

	// Alert publishing threshold for the collector
	AlertMinScore float64 `envconfig:"ANALYTICS_ALERT_MIN_SCORE" default:"6.0"`

	// IV surface cleaning and grid
	SurfaceIVMin         float64 `envconfig:"ANALYTICS_SURFACE_IV_MIN" default:"0.05"`
	SurfaceIVMax         float64 `envconfig:"ANALYTICS_SURFACE_IV_MAX" default:"2.0"`
	SurfaceDTEMin        int     `envconfig:"ANALYTICS_SURFACE_DTE_MIN" default:"1"`
	SurfaceDTEMax        int     `envconfig:"ANALYTICS_SURFACE_DTE_MAX" default:"365"`
	SurfaceOutlierSigma  float64 `envconfig:"ANALYTICS_SURFACE_OUTLIER_SIGMA" default:"3"`
	SurfaceStaleQuantile float64 `envconfig:"ANALYTICS_SURFACE_STALE_QUANTILE" default:"0.1"`
	SurfaceGridStrikes   int     `envconfig:"ANALYTICS_SURFACE_GRID_STRIKES" default:"50"`
	SurfaceGridDTEs      int     `envconfig:"ANALYTICS_SURFACE_GRID_DTES" default:"50"`

	// Unusual-score floor for report counts and flow filtering
	UnusualScoreFloor int `envconfig:"ANALYTICS_UNUSUAL_SCORE_FLOOR" default:"50"`

	// Router enrichment window
	RecentContextDays int `envconfig:"ANALYTICS_RECENT_CONTEXT_DAYS" default:"5"`

	// Analysis result cache
	CacheEnabled       bool          `envconfig:"ANALYTICS_CACHE_ENABLED" default:"true"`
	CacheTTLLive       time.Duration `envconfig:"ANALYTICS_CACHE_TTL_LIVE" default:"3m"`
	CacheTTLHistorical time.Duration `envconfig:"ANALYTICS_CACHE_TTL_HISTORICAL" default:"1h"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	Provider    string `envconfig:"ERROR_TRACKING_PROVIDER" default:"sentry"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// WorkerConfig contains intervals for background workers
type WorkerConfig struct {
	// Daily collection runs once per trading day after the close
	CollectorInterval time.Duration `envconfig:"WORKER_COLLECTOR_INTERVAL" default:"24h"`
	CollectorEnabled  bool          `envconfig:"WORKER_COLLECTOR_ENABLED" default:"true"`

	// Symbols collected each cycle
	Symbols []string `envconfig:"WORKER_SYMBOLS" default:"SPY,QQQ,AAPL,TSLA,NVDA"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return &cfg, nil
}
