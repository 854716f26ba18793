// Package prometheus provides Prometheus implementations of the metrics
// interfaces for the actor runtime and the registry.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/troupe-go/core/metrics"
)

// timer wraps a Prometheus observer to implement the Timer interface.
type timer struct {
	h     prometheus.Observer
	start time.Time
}

func newTimer(h prometheus.Observer) metrics.Timer {
	return &timer{h: h, start: time.Now()}
}

func (t *timer) ObserveDuration() {
	t.h.Observe(time.Since(t.start).Seconds())
}

// Default histogram buckets for latency metrics (in seconds).
var defaultBuckets = []float64{
	.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10,
}

func boolToStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// AllMetrics holds Prometheus implementations for both pillars.
type AllMetrics struct {
	Actor    *actorMetrics
	Registry *registryMetrics
}

// NewAllMetrics creates Prometheus metrics for the actor runtime and the
// registry at once.
func NewAllMetrics(reg prometheus.Registerer) *AllMetrics {
	return &AllMetrics{
		Actor:    NewActorMetrics(reg).(*actorMetrics),
		Registry: NewRegistryMetrics(reg).(*registryMetrics),
	}
}
