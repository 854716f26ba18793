package actor

import "github.com/codewandler/troupe-go/core/metrics"

// Metrics is the instrumentation surface of the actor runtime.
// All methods are thread-safe.
type Metrics interface {
	HandlerDuration(eventType string) metrics.Timer
	HandlerProcessed(eventType string, success bool)
	HandlerPanic(eventType string)
	EmissionsTotal(kind string)
	MailboxDepth(actorID string, depth int)
}

type nopMetrics struct{}

func (nopMetrics) HandlerDuration(string) metrics.Timer { return metrics.NopTimer() }
func (nopMetrics) HandlerProcessed(string, bool)        {}
func (nopMetrics) HandlerPanic(string)                  {}
func (nopMetrics) EmissionsTotal(string)                {}
func (nopMetrics) MailboxDepth(string, int)             {}

// NopMetrics returns a no-op Metrics implementation.
func NopMetrics() Metrics { return nopMetrics{} }
