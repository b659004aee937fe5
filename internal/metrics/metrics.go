// Package metrics bundles Prometheus collectors for the workflow server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all collectors on a dedicated registry so tests and multiple
// instances never clash with the default one.
type Metrics struct {
	Registry                *prometheus.Registry
	BackendRequestsTotal    *prometheus.CounterVec
	BackendRequestDuration  prometheus.Histogram
	GenerationRowsTotal     *prometheus.CounterVec
	SessionsActive          prometheus.Gauge
	ImageProxyRequestsTotal *prometheus.CounterVec
}

// New constructs and registers all metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	backendRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photogen_backend_requests_total",
			Help: "Total requests issued to the PhotoGen backend, by endpoint.",
		},
		[]string{"endpoint"},
	)
	backendDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "photogen_backend_request_duration_seconds",
			Help:    "Latency of PhotoGen backend calls.",
			Buckets: prometheus.DefBuckets,
		},
	)
	generationRows := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photogen_generation_rows_total",
			Help: "Result rows produced by generation runs, by outcome.",
		},
		[]string{"outcome"},
	)
	sessionsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "photogen_sessions_active",
			Help: "Number of workflow sessions currently held in memory.",
		},
	)
	proxyRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photogen_image_proxy_requests_total",
			Help: "Image proxy requests, by cache result.",
		},
		[]string{"result"},
	)

	registry.MustRegister(backendRequests, backendDuration, generationRows, sessionsActive, proxyRequests)

	return &Metrics{
		Registry:                registry,
		BackendRequestsTotal:    backendRequests,
		BackendRequestDuration:  backendDuration,
		GenerationRowsTotal:     generationRows,
		SessionsActive:          sessionsActive,
		ImageProxyRequestsTotal: proxyRequests,
	}
}

// IncBackendRequest increments the backend request counter for an endpoint.
func (m *Metrics) IncBackendRequest(endpoint string) {
	if m == nil {
		return
	}
	m.BackendRequestsTotal.WithLabelValues(endpoint).Inc()
}

// ObserveBackendDuration records one backend call latency.
func (m *Metrics) ObserveBackendDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.BackendRequestDuration.Observe(d.Seconds())
}

// IncGenerationRow counts one result row by outcome
// (ok, error, no_images, cancelled).
func (m *Metrics) IncGenerationRow(outcome string) {
	if m == nil {
		return
	}
	m.GenerationRowsTotal.WithLabelValues(outcome).Inc()
}

// SetActiveSessions updates the session gauge.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.SessionsActive.Set(float64(n))
}

// IncProxyRequest counts one image proxy request (hit, miss, error).
func (m *Metrics) IncProxyRequest(result string) {
	if m == nil {
		return
	}
	m.ImageProxyRequestsTotal.WithLabelValues(result).Inc()
}
