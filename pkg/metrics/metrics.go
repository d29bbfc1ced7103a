// Package metrics defines the Prometheus collectors shared by the recommender,
// ingestion and analytics services. All names carry the movierec namespace.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "movierec"

var (
	httpBuckets      = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
	recommendBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}
	buildBuckets     = prometheus.ExponentialBuckets(0.01, 2.5, 10)
)

type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// RecommendRequestsTotal is labelled by outcome: ok, empty, unresolved,
	// invalid or error.
	RecommendRequestsTotal *prometheus.CounterVec
	RecommendLatency       *prometheus.HistogramVec
	RecommendResultsCount  prometheus.Histogram
	CacheHitsTotal         prometheus.Counter
	CacheMissesTotal       prometheus.Counter

	CatalogMovies       prometheus.Gauge
	IndexVocabularySize prometheus.Gauge
	IndexBuildDuration  prometheus.Histogram
	CatalogReloadsTotal *prometheus.CounterVec
	MoviesIngestedTotal prometheus.Counter

	// CircuitBreakerState is 0 closed, 1 open, 2 half-open.
	CircuitBreakerState *prometheus.GaugeVec
}

// New registers with the default registry, which /metrics serves.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers every collector with reg. It panics if any is
// already registered there.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by method, route pattern and status.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help: "HTTP request latency.", Buckets: httpBuckets,
		}, []string{"method", "path"}),
		HTTPRequestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_in_flight",
			Help: "HTTP requests being served.",
		}),

		RecommendRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "recommend", Name: "requests_total",
			Help: "Recommendation requests by outcome.",
		}, []string{"result_type"}),
		RecommendLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "recommend", Name: "latency_seconds",
			Help: "Recommendation latency by cache status.", Buckets: recommendBuckets,
		}, []string{"cache_status"}),
		RecommendResultsCount: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "recommend", Name: "results",
			Help: "Recommendations returned per request.", Buckets: []float64{0, 1, 3, 5, 10, 25},
		}),
		CacheHitsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "hits_total",
			Help: "Result cache hits.",
		}),
		CacheMissesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "misses_total",
			Help: "Result cache misses.",
		}),

		CatalogMovies: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "catalog", Name: "movies",
			Help: "Movies in the serving catalog snapshot.",
		}),
		IndexVocabularySize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "index", Name: "vocabulary_terms",
			Help: "Terms in the serving feature index vocabulary.",
		}),
		IndexBuildDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "index", Name: "build_duration_seconds",
			Help: "Time to build the feature index for one snapshot.", Buckets: buildBuckets,
		}),
		CatalogReloadsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "catalog", Name: "reloads_total",
			Help: "Catalog reload attempts by status.",
		}, []string{"status"}),
		MoviesIngestedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "movies_total",
			Help: "Movie records written by ingestion.",
		}),

		CircuitBreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "breaker", Name: "state",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open).",
		}, []string{"name"}),
	}
}
