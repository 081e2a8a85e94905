// Package metrics holds the Prometheus collectors exported by faultscope and
// the /metrics handler that serves them.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "faultscope"

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	analyses        *prometheus.CounterVec
	analyzeDuration prometheus.Histogram
	scrapeFetches   *prometheus.CounterVec
	pixelsPlaced    prometheus.Counter
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_total",
			Help:      "Fault code analyses by the stage that answered them.",
		}, []string{"stage"}),
		analyzeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "End-to-end duration of an analysis.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10, 20, 40},
		}),
		scrapeFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrape_fetches_total",
			Help:      "Scrape fetches by target and outcome.",
		}, []string{"target", "outcome"}),
		pixelsPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pixels_placed_total",
			Help:      "Pixels written to the shared canvas.",
		}),
	}
	reg.MustRegister(
		m.analyses,
		m.analyzeDuration,
		m.scrapeFetches,
		m.pixelsPlaced,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveAnalysis records which stage answered and how long it took.
func (m *Metrics) ObserveAnalysis(stage string, elapsed time.Duration) {
	m.analyses.WithLabelValues(stage).Inc()
	m.analyzeDuration.Observe(elapsed.Seconds())
}

// ObserveFetch records one scrape fetch. outcome is "hit", "miss", "error"
// or "skipped" (breaker open).
func (m *Metrics) ObserveFetch(target, outcome string) {
	m.scrapeFetches.WithLabelValues(target, outcome).Inc()
}

// PixelPlaced counts a canvas write.
func (m *Metrics) PixelPlaced() {
	m.pixelsPlaced.Inc()
}

// Handler serves the registry in the Prometheus text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
