// Package observability builds the process logger and Prometheus collectors.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the collectors the explorer records into. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	indexTime *prometheus.HistogramVec
	imports   *prometheus.CounterVec
	fallbacks *prometheus.GaugeVec
	exports   *prometheus.CounterVec
}

// NewMetrics registers collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "explorer", Name: "http_requests_total", Help: "HTTP requests by route and status.",
		}, []string{"route", "method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "explorer", Name: "http_request_duration_seconds", Help: "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		indexTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "explorer", Name: "index_build_seconds", Help: "Time spent rebuilding catalog indexes.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"catalog"}),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "explorer", Name: "imports_total", Help: "Dataset imports by outcome.",
		}, []string{"catalog", "outcome"}),
		fallbacks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "explorer", Name: "catalog_fallback", Help: "1 when a catalog is serving its fallback sample.",
		}, []string{"catalog"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "explorer", Name: "exports_total", Help: "Async export jobs by format and final status.",
		}, []string{"format", "status"}),
	}
	m.registry.MustRegister(
		m.requests, m.latency, m.indexTime, m.imports, m.fallbacks, m.exports,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one served request.
func (m *Metrics) ObserveRequest(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(route).Observe(d.Seconds())
}

// ObserveIndexBuild records how long a catalog rebuild took.
func (m *Metrics) ObserveIndexBuild(catalog string, d time.Duration) {
	if m == nil {
		return
	}
	m.indexTime.WithLabelValues(catalog).Observe(d.Seconds())
}

// CountImport records an import outcome ("ok" or "rejected").
func (m *Metrics) CountImport(catalog, outcome string) {
	if m == nil {
		return
	}
	m.imports.WithLabelValues(catalog, outcome).Inc()
}

// SetFallback flags whether catalog is serving its fallback sample.
func (m *Metrics) SetFallback(catalog string, active bool) {
	if m == nil {
		return
	}
	v := 0.0
	if active {
		v = 1
	}
	m.fallbacks.WithLabelValues(catalog).Set(v)
}

// CountExport records a finished export job.
func (m *Metrics) CountExport(format, status string) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(format, status).Inc()
}
