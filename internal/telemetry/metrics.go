package telemetry

import "github.com/prometheus/client_golang/prometheus"

var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "ticketsync",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	},
	[]string{"method", "route", "status"},
)

var TicketsIngestedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "ticketsync",
		Subsystem: "ingest",
		Name:      "tickets_total",
		Help:      "Total number of tickets processed by ingestion, by outcome.",
	},
	[]string{"tenant_id", "outcome"}, // outcome: created, updated, unchanged, error
)

var IngestionRunsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "ticketsync",
		Subsystem: "ingest",
		Name:      "runs_total",
		Help:      "Total number of ingestion runs, by final status.",
	},
	[]string{"status"}, // completed, cancelled, failed, already_running
)

var IngestionPageDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "ticketsync",
		Subsystem: "ingest",
		Name:      "page_fetch_duration_seconds",
		Help:      "Duration of a single external page fetch, including retries.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	},
	[]string{"tenant_id"},
)

var NotifierAttemptsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "ticketsync",
		Subsystem: "notify",
		Name:      "attempts_total",
		Help:      "Total notification delivery attempts, by outcome.",
	},
	[]string{"outcome"}, // success, failure, circuit_open
)

var CircuitBreakerState = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "ticketsync",
		Subsystem: "breaker",
		Name:      "state",
		Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open), by name.",
	},
	[]string{"name"},
)

var StatsCacheHitsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "ticketsync",
		Subsystem: "analytics",
		Name:      "stats_cache_total",
		Help:      "Analytics stats cache lookups, by outcome.",
	},
	[]string{"outcome"}, // hit, miss
)

// All returns all ticketsync-specific metrics for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		HTTPRequestDuration,
		TicketsIngestedTotal,
		IngestionRunsTotal,
		IngestionPageDuration,
		NotifierAttemptsTotal,
		CircuitBreakerState,
		StatsCacheHitsTotal,
	}
}
