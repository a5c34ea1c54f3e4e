package observability

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the client-side Prometheus metrics. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Backend request metrics
	ClientRequestsTotal   *prometheus.CounterVec
	ClientRequestDuration *prometheus.HistogramVec

	// CRUD module metrics
	ModuleOperationsTotal *prometheus.CounterVec

	// Dashboard cache metrics
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter
}

// NewMetrics creates and registers all metrics on registry
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		ClientRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "residencia_client_requests_total",
				Help: "Total number of backend requests",
			},
			[]string{"module", "method", "status"},
		),
		ClientRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "residencia_client_request_duration_seconds",
				Help:    "Backend request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"module", "method"},
		),
		ModuleOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "residencia_module_operations_total",
				Help: "Total number of CRUD module operations by outcome",
			},
			[]string{"module", "operation", "outcome"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "residencia_dashboard_cache_hits_total",
				Help: "Dashboard cache hits",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "residencia_dashboard_cache_misses_total",
				Help: "Dashboard cache misses",
			},
		),
	}

	registry.MustRegister(
		m.ClientRequestsTotal,
		m.ClientRequestDuration,
		m.ModuleOperationsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
	)

	return m
}

// Registry returns the registry the metrics were registered on
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveRequest records one backend request. status is 0 for transport errors.
func (m *Metrics) ObserveRequest(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "none"
	}
	statusLabel := "error"
	if status > 0 {
		statusLabel = strconv.Itoa(status)
	}
	m.ClientRequestsTotal.WithLabelValues(module, method, statusLabel).Inc()
	m.ClientRequestDuration.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordOperation counts a module operation outcome (ok, error, denied, invalid)
func (m *Metrics) RecordOperation(module, operation, outcome string) {
	if m == nil {
		return
	}
	m.ModuleOperationsTotal.WithLabelValues(module, operation, outcome).Inc()
}

// CacheHit counts a dashboard cache hit
func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}

// CacheMiss counts a dashboard cache miss
func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.CacheMissesTotal.Inc()
}

// WriteTextfile dumps all metrics in the node-exporter textfile format
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
