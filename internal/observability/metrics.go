package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingestion-to-forecast pipeline.
type Metrics struct {
	JobsProcessed *prometheus.CounterVec   // labels: outcome={complete,failed}
	StageDuration *prometheus.HistogramVec // labels: stage
	JobsRunning   prometheus.Gauge

	// Enrichment cache metrics.
	EnrichmentFetches *prometheus.CounterVec // labels: source={weather,holidays}, outcome={success,error,empty}
	EnrichmentCache   *prometheus.CounterVec // labels: source={weather,holidays}, result={hit,miss}
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.JobsProcessed,
		m.StageDuration,
		m.JobsRunning,
		m.EnrichmentFetches,
		m.EnrichmentCache,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		JobsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gridflow",
			Name:      "jobs_processed_total",
			Help:      "Pipeline runs by terminal outcome.",
		}, []string{"outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gridflow",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
		JobsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gridflow",
			Name:      "jobs_running",
			Help:      "Number of pipeline runs currently executing.",
		}),
		EnrichmentFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gridflow",
			Name:      "enrichment_fetches_total",
			Help:      "Upstream enrichment provider calls by source and outcome.",
		}, []string{"source", "outcome"}),
		EnrichmentCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gridflow",
			Name:      "enrichment_cache_total",
			Help:      "Enrichment cache lookups by source and result.",
		}, []string{"source", "result"}),
	}
}
