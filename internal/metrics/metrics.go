// Package metrics exposes Prometheus metrics for the scrape pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shohin"

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
	ResultEmpty = "empty"
)

// Metrics holds the pipeline's Prometheus metrics on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	URLsTotal     *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	BatchSize     prometheus.Histogram
	Documents     prometheus.Gauge
}

// New creates the metrics and registers them, with Go and process collectors,
// on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		URLsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "urls_total",
			Help:      "URLs processed, by the last stage reached and its result",
		}, []string{"stage", "result"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage for one URL",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}, []string{"stage"}),
		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of URLs per batch",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		Documents: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "documents",
			Help:      "Documents in the store as of the last status check",
		}),
	}
}

// ObserveURL counts one finished URL.
func (m *Metrics) ObserveURL(stage, result string) {
	if m == nil {
		return
	}
	m.URLsTotal.WithLabelValues(stage, result).Inc()
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveBatch records the size of a batch.
func (m *Metrics) ObserveBatch(n int) {
	if m == nil {
		return
	}
	m.BatchSize.Observe(float64(n))
}

// SetDocuments records the current store size.
func (m *Metrics) SetDocuments(n int64) {
	if m == nil {
		return
	}
	m.Documents.Set(float64(n))
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
