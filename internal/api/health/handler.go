package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"vega/pkg/logger"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// Handler provides liveness and readiness endpoints over the three stores
type Handler struct {
	log        *logger.Logger
	postgres   *sqlx.DB
	clickhouse driver.Conn
	redis      *redis.Client
	startTime  time.Time
	service    string
}

// New creates a new health check handler
func New(log *logger.Logger, postgres *sqlx.DB, clickhouse driver.Conn, redis *redis.Client, service string) *Handler {
	return &Handler{
		log:        log,
		postgres:   postgres,
		clickhouse: clickhouse,
		redis:      redis,
		startTime:  time.Now(),
		service:    service,
	}
}

// Status is the overall health report
type Status struct {
	Status    string                     `json:"status"` // "healthy", "degraded", "unhealthy"
	Service   string                     `json:"service"`
	Uptime    string                     `json:"uptime"`
	Timestamp string                     `json:"timestamp"`
	Checks    map[string]ComponentHealth `json:"checks"`
}

// ComponentHealth is the health of a single store
type ComponentHealth struct {
	Status       string `json:"status"`
	ResponseTime string `json:"response_time,omitempty"`
	Error        string `json:"error,omitempty"`
}

// HandleLiveness returns 200 OK if the process is running
func (h *Handler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
}

// HandleHealth checks all backing stores and reports aggregate status.
// Degraded (some stores down) still returns 200 so a partial outage does
// not take the router out of rotation: it can serve from whatever remains.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]ComponentHealth{
		"postgres":   h.check(ctx, "postgres", func(ctx context.Context) error { return h.postgres.PingContext(ctx) }),
		"clickhouse": h.check(ctx, "clickhouse", h.clickhouse.Ping),
		"redis":      h.check(ctx, "redis", func(ctx context.Context) error { return h.redis.Ping(ctx).Err() }),
	}

	healthy := 0
	for _, c := range checks {
		if c.Status == "healthy" {
			healthy++
		}
	}

	status := Status{
		Status:    "healthy",
		Service:   h.service,
		Uptime:    time.Since(h.startTime).String(),
		Timestamp: time.Now().Format(time.RFC3339),
		Checks:    checks,
	}

	code := http.StatusOK
	switch {
	case healthy == 0:
		status.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	case healthy < len(checks):
		status.Status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(status)
}

func (h *Handler) check(ctx context.Context, name string, ping func(context.Context) error) ComponentHealth {
	start := time.Now()
	err := ping(ctx)
	elapsed := time.Since(start)

	if err != nil {
		h.log.Warnw("Health check failed", "component", name, "error", err, "elapsed", elapsed)
		return ComponentHealth{Status: "unhealthy", ResponseTime: elapsed.String(), Error: err.Error()}
	}
	return ComponentHealth{Status: "healthy", ResponseTime: elapsed.String()}
}
