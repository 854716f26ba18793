package registry

import "github.com/codewandler/troupe-go/core/metrics"

// Metrics is the instrumentation surface of the registry.
// All methods are thread-safe.
type Metrics interface {
	ActorsActive(count int)
	LeasesActive(count int)
	CleanupDuration() metrics.Timer
	CleanupTaskFailures(count int)
	ScopeEnded(success bool)
}

type nopMetrics struct{}

func (nopMetrics) ActorsActive(int)               {}
func (nopMetrics) LeasesActive(int)               {}
func (nopMetrics) CleanupDuration() metrics.Timer { return metrics.NopTimer() }
func (nopMetrics) CleanupTaskFailures(int)        {}
func (nopMetrics) ScopeEnded(bool)                {}

// NopMetrics returns a no-op Metrics implementation.
func NopMetrics() Metrics { return nopMetrics{} }
