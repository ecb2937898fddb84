package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "depositrates"

// Cache request outcomes
const (
	CacheHit    = "hit"
	CacheMiss   = "miss"
	CacheForced = "forced"
)

// Extraction outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds the collectors of one process. It owns its registry so
// tests can create as many instances as they like.
type Metrics struct {
	Registry *prometheus.Registry

	ExtractionsTotal       *prometheus.CounterVec
	ExtractionErrorsTotal  *prometheus.CounterVec
	CacheRequestsTotal     *prometheus.CounterVec
	CachePersistFailures   prometheus.Counter
	ScrapeDuration         prometheus.Histogram
	LastBatchMissingRates  prometheus.Gauge
	LastBatchTimestampSecs prometheus.Gauge
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		ExtractionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extractions_total",
				Help:      "Rate extractions by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),

		ExtractionErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extraction_errors_total",
				Help:      "Failed extractions by error type",
			},
			[]string{"type"},
		),

		CacheRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_requests_total",
				Help:      "Data requests by cache outcome",
			},
			[]string{"result"},
		),

		CachePersistFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_persist_failures_total",
				Help:      "Scraped datasets that could not be written to the cache",
			},
		),

		ScrapeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scrape_duration_seconds",
				Help:      "Wall time of a full scrape batch",
				Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
			},
		),

		LastBatchMissingRates: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_batch_missing_rates",
				Help:      "Records without a rate in the most recent batch",
			},
		),

		LastBatchTimestampSecs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_batch_timestamp_seconds",
				Help:      "Unix time of the most recent scrape batch",
			},
		),
	}

	m.Registry.MustRegister(
		m.ExtractionsTotal,
		m.ExtractionErrorsTotal,
		m.CacheRequestsTotal,
		m.CachePersistFailures,
		m.ScrapeDuration,
		m.LastBatchMissingRates,
		m.LastBatchTimestampSecs,
	)
	return m
}

// WriteTextfile dumps the registry in the text exposition format, for the
// node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
