// Package metrics provides Prometheus metrics for grantdraft
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for grantdraft
type Metrics struct {
	// gRPC request metrics
	GrpcRequestsTotal    *prometheus.CounterVec
	GrpcRequestDuration  *prometheus.HistogramVec
	GrpcRequestsInFlight prometheus.Gauge

	// Version store metrics
	VersionsSavedTotal   prometheus.Counter
	PersistFailuresTotal prometheus.Counter
	LoadFailuresTotal    prometheus.Counter
	LookupsTotal         *prometheus.CounterVec
	VersionsStored       prometheus.Gauge

	// Server metrics
	ServerUptimeSeconds prometheus.Gauge
	ServerStartTime     time.Time
}

// NewMetrics creates all metrics and registers them with reg.
// A nil reg uses the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{
		ServerStartTime: time.Now(),
	}

	m.GrpcRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grantdraft_grpc_requests_total",
			Help: "Total number of gRPC requests",
		},
		[]string{"method", "status"},
	)

	m.GrpcRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grantdraft_grpc_request_duration_seconds",
			Help:    "Duration of gRPC requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	m.GrpcRequestsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "grantdraft_grpc_requests_in_flight",
			Help: "Number of gRPC requests currently being processed",
		},
	)

	m.VersionsSavedTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "grantdraft_versions_saved_total",
			Help: "Total number of proposal versions saved",
		},
	)

	m.PersistFailuresTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "grantdraft_persist_failures_total",
			Help: "Total number of saves whose history could not be persisted",
		},
	)

	m.LoadFailuresTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "grantdraft_load_failures_total",
			Help: "Total number of stores that started empty because history failed to load",
		},
	)

	m.LookupsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grantdraft_version_lookups_total",
			Help: "Total number of version lookups by result",
		},
		[]string{"result"},
	)

	m.VersionsStored = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "grantdraft_versions_stored",
			Help: "Number of versions currently held by the store",
		},
	)

	m.ServerUptimeSeconds = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "grantdraft_server_uptime_seconds",
			Help: "Server uptime in seconds",
		},
	)

	return m
}

// StartUptime updates the uptime gauge every interval until stop is closed
func (m *Metrics) StartUptime(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.ServerUptimeSeconds.Set(time.Since(m.ServerStartTime).Seconds())
			case <-stop:
				return
			}
		}
	}()
}

// RecordGrpcRequest records a gRPC request with its status
func (m *Metrics) RecordGrpcRequest(method string, status string, duration time.Duration) {
	m.GrpcRequestsTotal.WithLabelValues(method, status).Inc()
	m.GrpcRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// Saved implements version.Observer
func (m *Metrics) Saved() {
	m.VersionsSavedTotal.Inc()
	m.VersionsStored.Inc()
}

// PersistFailed implements version.Observer
func (m *Metrics) PersistFailed() {
	m.PersistFailuresTotal.Inc()
}

// LoadFailed implements version.Observer
func (m *Metrics) LoadFailed() {
	m.LoadFailuresTotal.Inc()
}

// Lookup implements version.Observer
func (m *Metrics) Lookup(hit bool) {
	result := "hit"
	if !hit {
		result = "miss"
	}
	m.LookupsTotal.WithLabelValues(result).Inc()
}

// SetVersionsStored sets the stored-versions gauge, e.g. after hydration
func (m *Metrics) SetVersionsStored(n int) {
	m.VersionsStored.Set(float64(n))
}
