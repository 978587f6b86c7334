package kvstore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics implements the Metrics interface using Prometheus
type PrometheusMetrics struct {
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	registry   *prometheus.Registry
}

// NewPrometheusMetrics creates a new Prometheus metrics instance.
// If registry is nil, uses the default Prometheus registry.
func NewPrometheusMetrics(registry *prometheus.Registry) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer.(*prometheus.Registry)
	}

	pm := &PrometheusMetrics{
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		registry:   registry,
	}

	pm.registerDefaultMetrics()
	return pm
}

// registerDefaultMetrics registers the standard store metrics
func (p *PrometheusMetrics) registerDefaultMetrics() {
	p.counters[MetricCommandOps] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kvstore",
			Subsystem: "command",
			Name:      "operations_total",
			Help:      "Total number of protocol commands processed",
		},
		[]string{"verb"},
	)

	p.counters[MetricCommandErrors] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kvstore",
			Subsystem: "command",
			Name:      "errors_total",
			Help:      "Total number of commands that produced an error response",
		},
		[]string{"verb"},
	)

	p.histograms[MetricCommandDuration] = promauto.With(p.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kvstore",
			Subsystem: "command",
			Name:      "duration_seconds",
			Help:      "Command execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"verb"},
	)

	p.histograms[MetricStoreGetDuration] = promauto.With(p.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kvstore",
			Subsystem: "store",
			Name:      "get_duration_seconds",
			Help:      "Store read duration in seconds, including lock wait",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{},
	)

	p.histograms[MetricStoreSetDuration] = promauto.With(p.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kvstore",
			Subsystem: "store",
			Name:      "set_duration_seconds",
			Help:      "Store write duration in seconds, including lock wait",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{},
	)

	p.counters[MetricStoreLoadErrors] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kvstore",
			Subsystem: "store",
			Name:      "load_errors_total",
			Help:      "Reads of the store image that fell back to the empty map",
		},
		[]string{},
	)

	p.counters[MetricLockAcquired] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kvstore",
			Subsystem: "lock",
			Name:      "acquired_total",
			Help:      "Successful store lock acquisitions",
		},
		[]string{},
	)

	p.counters[MetricLockContention] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kvstore",
			Subsystem: "lock",
			Name:      "contention_total",
			Help:      "Lock acquisitions that had to retry at least once",
		},
		[]string{},
	)

	p.histograms[MetricLockWaitTime] = promauto.With(p.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kvstore",
			Subsystem: "lock",
			Name:      "wait_duration_seconds",
			Help:      "Time spent waiting for the store lock",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{},
	)

	p.counters[MetricTxnBegin] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kvstore",
			Subsystem: "txn",
			Name:      "begin_total",
			Help:      "Transactions started",
		},
		[]string{},
	)

	p.counters[MetricTxnCommit] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kvstore",
			Subsystem: "txn",
			Name:      "commit_total",
			Help:      "Transactions committed",
		},
		[]string{},
	)

	p.counters[MetricTxnConflict] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kvstore",
			Subsystem: "txn",
			Name:      "conflict_total",
			Help:      "Commits aborted by read-set validation",
		},
		[]string{},
	)

	p.counters[MetricTxnRollback] = promauto.With(p.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kvstore",
			Subsystem: "txn",
			Name:      "rollback_total",
			Help:      "Transactions rolled back",
		},
		[]string{},
	)
}

// Increment increments a Prometheus counter
func (p *PrometheusMetrics) Increment(name string, tags ...string) {
	counter, ok := p.counters[name]
	if !ok {
		counter = promauto.With(p.registry).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kvstore",
				Name:      name,
				Help:      "Dynamic counter: " + name,
			},
			p.extractLabels(tags),
		)
		p.counters[name] = counter
	}

	counter.With(p.extractLabelValues(tags)).Inc()
}

// Gauge sets a Prometheus gauge value
func (p *PrometheusMetrics) Gauge(name string, value float64, tags ...string) {
	gauge, ok := p.gauges[name]
	if !ok {
		gauge = promauto.With(p.registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "kvstore",
				Name:      name,
				Help:      "Dynamic gauge: " + name,
			},
			p.extractLabels(tags),
		)
		p.gauges[name] = gauge
	}

	gauge.With(p.extractLabelValues(tags)).Set(value)
}

// Histogram records a value in a Prometheus histogram
func (p *PrometheusMetrics) Histogram(name string, value float64, tags ...string) {
	histogram, ok := p.histograms[name]
	if !ok {
		histogram = promauto.With(p.registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "kvstore",
				Name:      name,
				Help:      "Dynamic histogram: " + name,
				Buckets:   prometheus.DefBuckets,
			},
			p.extractLabels(tags),
		)
		p.histograms[name] = histogram
	}

	histogram.With(p.extractLabelValues(tags)).Observe(value)
}

// Timing records a duration in a Prometheus histogram
func (p *PrometheusMetrics) Timing(name string, duration time.Duration, tags ...string) {
	p.Histogram(name, duration.Seconds(), tags...)
}

// extractLabels extracts label names from tags (every even index)
func (p *PrometheusMetrics) extractLabels(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}

	labels := make([]string, 0, len(tags)/2)
	for i := 0; i < len(tags); i += 2 {
		labels = append(labels, tags[i])
	}
	return labels
}

// extractLabelValues creates a label map from tags (key-value pairs)
func (p *PrometheusMetrics) extractLabelValues(tags []string) prometheus.Labels {
	labels := make(prometheus.Labels)
	for i := 0; i+1 < len(tags); i += 2 {
		labels[tags[i]] = tags[i+1]
	}
	return labels
}

// GetRegistry returns the underlying Prometheus registry
func (p *PrometheusMetrics) GetRegistry() *prometheus.Registry {
	return p.registry
}
