// Package metrics collects Prometheus metrics for bastiond.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Namespace is the metric name prefix for all bastiond metrics.
const Namespace = "bastiond"

// Collector owns the metric registry and all instrument families.
type Collector struct {
	registry *prometheus.Registry

	// Request metrics
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	responseBytes   *prometheus.CounterVec

	// Connection metrics
	openConnections  prometheus.Gauge
	connectionsTotal prometheus.Counter
	handshakeErrors  prometheus.Counter
}

// NewCollector creates a collector with a fresh registry. The registry also
// exposes the standard Go runtime and process collectors.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c := &Collector{
		registry: registry,

		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "requests_total",
				Help:      "Total number of HTTP requests served",
			},
			[]string{"server", "method", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"server"},
		),

		responseBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "response_bytes_total",
				Help:      "Total bytes written in response bodies",
			},
			[]string{"server"},
		),

		openConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "open_connections",
				Help:      "Number of currently open client connections",
			},
		),

		connectionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "connections_total",
				Help:      "Total number of accepted client connections",
			},
		),

		handshakeErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "tls_handshake_errors_total",
				Help:      "Total number of TLS handshakes that failed",
			},
		),
	}

	registry.MustRegister(
		c.requestsTotal,
		c.requestDuration,
		c.responseBytes,
		c.openConnections,
		c.connectionsTotal,
		c.handshakeErrors,
	)

	return c
}

// RecordRequest records metrics for a completed request.
func (c *Collector) RecordRequest(server, method, status string, duration time.Duration, bytes int64) {
	c.requestsTotal.WithLabelValues(server, method, status).Inc()
	c.requestDuration.WithLabelValues(server).Observe(duration.Seconds())
	if bytes > 0 {
		c.responseBytes.WithLabelValues(server).Add(float64(bytes))
	}
}

// ConnOpened records an accepted connection.
func (c *Collector) ConnOpened() {
	c.connectionsTotal.Inc()
	c.openConnections.Inc()
}

// ConnClosed records a closed connection.
func (c *Collector) ConnClosed() {
	c.openConnections.Dec()
}

// HandshakeFailed records a failed TLS handshake.
func (c *Collector) HandshakeFailed() {
	c.handshakeErrors.Inc()
}

// Registry returns the underlying registry, for tests and custom handlers.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
