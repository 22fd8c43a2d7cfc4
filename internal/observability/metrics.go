package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "skylore"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// submission service.
type Metrics struct {
	// Table load metrics.
	Loads        *prometheus.CounterVec   // labels: source={local,remote}, outcome={success,error}
	LoadDuration *prometheus.HistogramVec // labels: source
	TableRows    *prometheus.GaugeVec     // labels: source

	// Query metrics.
	QueryRows *prometheus.HistogramVec // labels: view={table,area,timeseries,recent}

	// Submission metrics.
	Submissions    *prometheus.CounterVec // labels: outcome={accepted,invalid,error}
	PhotosStored   prometheus.Counter
	ReviewQueued   prometheus.Counter
	ImportRejected prometheus.Counter

	// Constellation detection metrics.
	DetectionRequests *prometheus.CounterVec // labels: outcome={detected,failed,timed_out}
	DetectionCache    *prometheus.CounterVec // labels: result={hit,miss}
	DetectionDuration prometheus.Histogram
	DetectionEnabled  prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "table_loads_total",
			Help:      "Submission table loads by source and outcome.",
		}, []string{"source", "outcome"}),
		LoadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "table_load_duration_seconds",
			Help:      "Duration of a fetch-normalize-sort pass.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"source"}),
		TableRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "table_rows",
			Help:      "Rows in the most recently loaded submission table.",
		}, []string{"source"}),
		QueryRows: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_rows",
			Help:      "Rows or buckets returned per query.",
			Buckets:   []float64{0, 1, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"view"}),
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Submission attempts by outcome.",
		}, []string{"outcome"}),
		PhotosStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "photos_stored_total",
			Help:      "Uploaded photos persisted to the photo store.",
		}),
		ReviewQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "review_queued_total",
			Help:      "Imported submissions published to the review topic.",
		}),
		ImportRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rejected_total",
			Help:      "Imported rows rejected by normalization or validation.",
		}),
		DetectionRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detection_requests_total",
			Help:      "Constellation detection attempts by outcome.",
		}, []string{"outcome"}),
		DetectionCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detection_cache_total",
			Help:      "Detection cache lookups by result.",
		}, []string{"result"}),
		DetectionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "detection_duration_seconds",
			Help:      "Duration of a detection from login to results.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		DetectionEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "detection_enabled",
			Help:      "1 when constellation detection is enabled, 0 otherwise.",
		}),
	}

	prometheus.MustRegister(
		m.Loads,
		m.LoadDuration,
		m.TableRows,
		m.QueryRows,
		m.Submissions,
		m.PhotosStored,
		m.ReviewQueued,
		m.ImportRejected,
		m.DetectionRequests,
		m.DetectionCache,
		m.DetectionDuration,
		m.DetectionEnabled,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		Loads:             prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "table_loads_total"}, []string{"source", "outcome"}),
		LoadDuration:      prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "table_load_duration_seconds"}, []string{"source"}),
		TableRows:         prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: namespace, Name: "table_rows"}, []string{"source"}),
		QueryRows:         prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "query_rows"}, []string{"view"}),
		Submissions:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "submissions_total"}, []string{"outcome"}),
		PhotosStored:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "photos_stored_total"}),
		ReviewQueued:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "review_queued_total"}),
		ImportRejected:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "import_rejected_total"}),
		DetectionRequests: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "detection_requests_total"}, []string{"outcome"}),
		DetectionCache:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "detection_cache_total"}, []string{"result"}),
		DetectionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "detection_duration_seconds"}),
		DetectionEnabled:  prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "detection_enabled"}),
	}
}
