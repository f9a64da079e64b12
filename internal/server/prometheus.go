package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsCollector implements MetricsCollector using Prometheus metrics
type PrometheusMetricsCollector struct {
	starts   prometheus.Counter
	failures *prometheus.CounterVec
	stops    prometheus.Counter
	uptime   prometheus.Histogram
	active   prometheus.Gauge

	registry *prometheus.Registry
}

// NewPrometheusMetricsCollector creates a collector with its own registry
func NewPrometheusMetricsCollector(namespace string) *PrometheusMetricsCollector {
	if namespace == "" {
		namespace = "phpsrv"
	}

	pmc := &PrometheusMetricsCollector{
		registry: prometheus.NewRegistry(),
	}

	pmc.starts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "server_starts_total",
			Help:      "Total number of development servers started",
		},
	)

	pmc.failures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "server_start_failures_total",
			Help:      "Total number of failed server starts",
		},
		[]string{"reason"},
	)

	pmc.stops = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "server_stops_total",
			Help:      "Total number of development servers stopped",
		},
	)

	pmc.uptime = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "server_uptime_seconds",
			Help:      "How long servers ran before being stopped",
			Buckets:   []float64{1, 10, 60, 300, 1800, 3600, 14400, 86400},
		},
	)

	pmc.active = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_servers",
			Help:      "Number of servers currently tracked",
		},
	)

	pmc.registry.MustRegister(
		pmc.starts,
		pmc.failures,
		pmc.stops,
		pmc.uptime,
		pmc.active,
	)

	return pmc
}

// ServerStarted records a successful start
func (pmc *PrometheusMetricsCollector) ServerStarted() {
	pmc.starts.Inc()
}

// ServerStartFailed records a failed start
func (pmc *PrometheusMetricsCollector) ServerStartFailed(reason string) {
	pmc.failures.WithLabelValues(reason).Inc()
}

// ServerStopped records a stop and the server's uptime
func (pmc *PrometheusMetricsCollector) ServerStopped(uptime time.Duration) {
	pmc.stops.Inc()
	pmc.uptime.Observe(uptime.Seconds())
}

// ActiveServers sets the tracked server gauge
func (pmc *PrometheusMetricsCollector) ActiveServers(n int) {
	pmc.active.Set(float64(n))
}

// Registry returns the Prometheus registry holding the collector's metrics
func (pmc *PrometheusMetricsCollector) Registry() *prometheus.Registry {
	return pmc.registry
}
