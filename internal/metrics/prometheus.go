package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Router metrics
	RouterDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vega_router_decisions_total",
			Help: "Total routing decisions by chosen source and quality tier",
		},
		[]string{"source", "tier"}, // source: live|historical|fusion|synthetic
	)

	RouterDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vega_router_duration_seconds",
			Help:    "Routing request duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"source"},
	)

	// Broker metrics
	BrokerAPICalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vega_broker_api_calls_total",
			Help: "Total broker API calls",
		},
		[]string{"endpoint", "status"}, // status: success|error|rate_limited
	)

	BrokerAPILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vega_broker_api_latency_seconds",
			Help:    "Broker API latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"endpoint"},
	)

	// Snapshot metrics
	SnapshotWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vega_snapshot_writes_total",
			Help: "Total snapshot store writes",
		},
		[]string{"symbol", "status"}, // status: success|error
	)

	SnapshotContracts = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vega_snapshot_contracts_count",
			Help: "Contracts captured in the most recent snapshot per symbol",
		},
		[]string{"symbol"},
	)

	UnusualFlowsExtracted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vega_unusual_flows_extracted_total",
			Help: "Total unusual-activity extract rows written",
		},
		[]string{"symbol"},
	)

	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vega_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"}, // status: success|error
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vega_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"worker"},
	)

	WorkerLastRun = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vega_worker_last_run_timestamp",
			Help: "Unix timestamp of last worker execution",
		},
		[]string{"worker"},
	)

	// Database metrics
	DBQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vega_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"database", "operation", "status"}, // database: postgres|clickhouse|redis
	)

	DBQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vega_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"database", "operation"},
	)

	// Messaging metrics
	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vega_kafka_messages_total",
			Help: "Total Kafka messages produced",
		},
		[]string{"topic", "status"}, // status: success|error
	)
)

// Init registers all metrics with Prometheus
func Init() {
	// Router metrics
	prometheus.MustRegister(RouterDecisions)
	prometheus.MustRegister(RouterDuration)

	// Broker metrics
	prometheus.MustRegister(BrokerAPICalls)
	prometheus.MustRegister(BrokerAPILatency)

	// Snapshot metrics
	prometheus.MustRegister(SnapshotWrites)
	prometheus.MustRegister(SnapshotContracts)
	prometheus.MustRegister(UnusualFlowsExtracted)

	// Worker metrics
	prometheus.MustRegister(WorkerExecutions)
	prometheus.MustRegister(WorkerDuration)
	prometheus.MustRegister(WorkerLastRun)

	// Database metrics
	prometheus.MustRegister(DBQueries)
	prometheus.MustRegister(DBQueryDuration)

	// Messaging metrics
	prometheus.MustRegister(KafkaMessages)
}

// Register adds a custom collector to the default registry
func Register(c prometheus.Collector) {
	prometheus.MustRegister(c)
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordWorkerExecution records a worker execution
func RecordWorkerExecution(worker string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	WorkerExecutions.WithLabelValues(worker, status).Inc()
	WorkerDuration.WithLabelValues(worker).Observe(duration.Seconds())
	WorkerLastRun.WithLabelValues(worker).SetToCurrentTime()
}

// RecordRouterDecision records one routing decision
func RecordRouterDecision(source, tier string, duration time.Duration) {
	RouterDecisions.WithLabelValues(source, tier).Inc()
	RouterDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordBrokerCall records a broker API call
func RecordBrokerCall(endpoint string, latency time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	BrokerAPICalls.WithLabelValues(endpoint, status).Inc()
	BrokerAPILatency.WithLabelValues(endpoint).Observe(latency.Seconds())
}

// RecordSnapshotWrite records a snapshot store write
func RecordSnapshotWrite(symbol string, contracts int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	SnapshotWrites.WithLabelValues(symbol, status).Inc()
	if err == nil {
		SnapshotContracts.WithLabelValues(symbol).Set(float64(contracts))
	}
}

// RecordDBQuery records one repository query
func RecordDBQuery(database, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	DBQueries.WithLabelValues(database, operation, status).Inc()
	DBQueryDuration.WithLabelValues(database, operation).Observe(time.Since(start).Seconds())
}

// RecordKafkaMessage records a produced Kafka message
func RecordKafkaMessage(topic string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	KafkaMessages.WithLabelValues(topic, status).Inc()
}
