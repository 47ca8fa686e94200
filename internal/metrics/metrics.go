// Package metrics holds the Prometheus collectors for the pipeline.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pricelens"

// Cache lookup outcomes.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

type Metrics struct {
	Runs          *prometheus.CounterVec
	FetchDuration prometheus.Histogram
	DroppedRows   prometheus.Counter
	StaleResults  prometheus.Counter
	CacheRequests *prometheus.CounterVec
}

// New registers the pipeline collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by terminal status.",
		}, []string{"status"}),
		FetchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Time spent fetching raw bars from the market data source.",
			Buckets:   prometheus.DefBuckets,
		}),
		DroppedRows: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_rows_total",
			Help:      "Malformed rows removed during validation.",
		}),
		StaleResults: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_results_total",
			Help:      "Completed runs discarded because a newer trigger superseded them.",
		}),
		CacheRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Bar cache lookups by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) ObserveRun(status string) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(d.Seconds())
}

func (m *Metrics) AddDropped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.DroppedRows.Add(float64(n))
}

func (m *Metrics) IncStale() {
	if m == nil {
		return
	}
	m.StaleResults.Inc()
}

func (m *Metrics) CacheResult(result string) {
	if m == nil {
		return
	}
	m.CacheRequests.WithLabelValues(result).Inc()
}
