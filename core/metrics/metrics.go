// Package metrics defines abstract instrumentation interfaces so the core
// packages stay decoupled from any concrete backend. The Prometheus
// implementation lives in adapters/prometheus.
package metrics

// Counter is a monotonically increasing metric.
type Counter interface {
	Inc()
	Add(delta float64)
}

// Gauge is a metric that can go up and down.
type Gauge interface {
	Set(value float64)
	Inc()
	Dec()
}

// Timer measures the duration of an operation. Call ObserveDuration when
// the operation completes to record the elapsed time.
type Timer interface {
	ObserveDuration()
}
