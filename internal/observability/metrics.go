package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "redraw"

// Metrics holds the Prometheus counters and histograms for one ETL run.
type Metrics struct {
	registry *prometheus.Registry

	// Fetch metrics.
	FetchRequests *prometheus.CounterVec   // labels: source, outcome={success,error}
	FetchRetries  *prometheus.CounterVec   // labels: source
	FetchDuration *prometheus.HistogramVec // labels: source

	// Parsed-results cache metrics.
	CacheLookups *prometheus.CounterVec // labels: result={hit,miss,bypass}

	// Output metrics.
	CountiesParsed     *prometheus.GaugeVec // labels: source
	CoverageMismatches prometheus.Gauge
	RowsPublished      prometheus.Counter
}

// NewMetrics creates the run metrics on a private registry. A CLI run is a single
// process-lifetime batch, so the registry is written out once instead of scraped.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "HTTP requests to election and census sources by outcome.",
		}, []string{"source", "outcome"}),
		FetchRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_retries_total",
			Help:      "Failed fetch attempts that were retried.",
		}, []string{"source"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of a single HTTP attempt.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Parsed-results cache lookups by result.",
		}, []string{"result"}),
		CountiesParsed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "counties_parsed",
			Help:      "Counties produced by a source after normalization.",
		}, []string{"source"}),
		CoverageMismatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "coverage_mismatches",
			Help:      "FIPS codes present in only one of vote data and geography.",
		}),
		RowsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_published_total",
			Help:      "Merged rows written to the Kafka sink.",
		}),
	}

	m.registry.MustRegister(
		m.FetchRequests,
		m.FetchRetries,
		m.FetchDuration,
		m.CacheLookups,
		m.CountiesParsed,
		m.CoverageMismatches,
		m.RowsPublished,
	)

	return m
}

// NewMetricsForTesting returns fresh metrics. Each call has its own registry, so
// tests can create as many as they like.
func NewMetricsForTesting() *Metrics {
	return NewMetrics()
}

// Gatherer exposes the registry for writing or inspection.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes the metrics in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
