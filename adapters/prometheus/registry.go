package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/troupe-go/core/metrics"
	"github.com/codewandler/troupe-go/core/registry"
)

// registryMetrics implements registry.Metrics using Prometheus.
type registryMetrics struct {
	actorsActive    prometheus.Gauge
	leasesActive    prometheus.Gauge
	cleanupDuration prometheus.Histogram
	cleanupFailures prometheus.Counter
	scopesEnded     *prometheus.CounterVec
}

// NewRegistryMetrics creates a new Prometheus implementation of registry.Metrics.
func NewRegistryMetrics(reg prometheus.Registerer) registry.Metrics {
	m := &registryMetrics{
		actorsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "troupe_registry_actors_active",
			Help: "Number of live actors",
		}),

		leasesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "troupe_registry_leases_active",
			Help: "Number of outstanding leases",
		}),

		cleanupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "troupe_registry_cleanup_duration_seconds",
			Help:    "Scope teardown time in seconds",
			Buckets: defaultBuckets,
		}),

		cleanupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "troupe_registry_cleanup_task_failures_total",
			Help: "Total number of failed cleanup tasks",
		}),

		scopesEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "troupe_registry_scopes_ended_total",
			Help: "Total number of ended scopes",
		}, []string{"success"}),
	}

	reg.MustRegister(
		m.actorsActive,
		m.leasesActive,
		m.cleanupDuration,
		m.cleanupFailures,
		m.scopesEnded,
	)

	return m
}

func (m *registryMetrics) ActorsActive(count int) {
	m.actorsActive.Set(float64(count))
}

func (m *registryMetrics) LeasesActive(count int) {
	m.leasesActive.Set(float64(count))
}

func (m *registryMetrics) CleanupDuration() metrics.Timer {
	return newTimer(m.cleanupDuration)
}

func (m *registryMetrics) CleanupTaskFailures(count int) {
	m.cleanupFailures.Add(float64(count))
}

func (m *registryMetrics) ScopeEnded(success bool) {
	m.scopesEnded.WithLabelValues(boolToStr(success)).Inc()
}

var _ registry.Metrics = (*registryMetrics)(nil)
