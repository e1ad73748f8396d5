package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the analytics engine.
type Metrics struct {
	// Event store metrics
	EventsIngested *prometheus.CounterVec
	StorageErrors  *prometheus.CounterVec

	// Ledger metrics
	LedgerFetches      prometheus.Counter
	LedgerFetchErrors  prometheus.Counter
	LedgerFetchSeconds prometheus.Histogram

	// Aggregation metrics
	QueryDuration *prometheus.HistogramVec
	CacheHits     *prometheus.CounterVec
	CacheMisses   *prometheus.CounterVec
	FunnelOmitted prometheus.Counter

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		EventsIngested: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_ingested_total",
				Help:      "Events appended to the store, by serving tier and type",
			},
			[]string{"tier", "event_type"},
		),
		StorageErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_errors_total",
				Help:      "Event store I/O failures by tier and operation",
			},
			[]string{"tier", "op"},
		),
		LedgerFetches: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_fetches_total",
				Help:      "Ledger snapshot fetches",
			},
		),
		LedgerFetchErrors: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_fetch_errors_total",
				Help:      "Failed ledger snapshot fetches",
			},
		),
		LedgerFetchSeconds: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ledger_fetch_seconds",
				Help:      "Ledger fetch latency in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
			},
		),
		QueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_seconds",
				Help:      "Analytics query latency by operation",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"operation"},
		),
		CacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "result_cache_hits_total",
				Help:      "Result cache hits by operation",
			},
			[]string{"operation"},
		),
		CacheMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "result_cache_misses_total",
				Help:      "Result cache misses by operation",
			},
			[]string{"operation"},
		),
		FunnelOmitted: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "funnel_omitted_total",
				Help:      "Summaries returned without a funnel because the store was unreachable",
			},
		),
		RateLimitHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Requests rejected by rate limiting",
			},
			[]string{"endpoint"},
		),
	}
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
