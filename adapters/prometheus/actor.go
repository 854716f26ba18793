package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/troupe-go/core/actor"
	"github.com/codewandler/troupe-go/core/metrics"
)

// actorMetrics implements actor.Metrics using Prometheus.
type actorMetrics struct {
	handlerDuration *prometheus.HistogramVec
	handlersTotal   *prometheus.CounterVec
	panicTotal      *prometheus.CounterVec
	emissionsTotal  *prometheus.CounterVec
	mailboxDepth    *prometheus.GaugeVec
}

// NewActorMetrics creates a new Prometheus implementation of actor.Metrics.
func NewActorMetrics(reg prometheus.Registerer) actor.Metrics {
	m := &actorMetrics{
		handlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "troupe_actor_handler_duration_seconds",
			Help:    "Event handling time in seconds",
			Buckets: defaultBuckets,
		}, []string{"event_type"}),

		handlersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "troupe_actor_handlers_total",
			Help: "Total number of events handled",
		}, []string{"event_type", "success"}),

		panicTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "troupe_actor_handler_panics_total",
			Help: "Total number of handler panics",
		}, []string{"event_type"}),

		emissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "troupe_actor_emissions_total",
			Help: "Total number of status emissions by kind",
		}, []string{"kind"}),

		mailboxDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "troupe_actor_mailbox_depth",
			Help: "Current mailbox queue depth",
		}, []string{"actor_id"}),
	}

	reg.MustRegister(
		m.handlerDuration,
		m.handlersTotal,
		m.panicTotal,
		m.emissionsTotal,
		m.mailboxDepth,
	)

	return m
}

func (m *actorMetrics) HandlerDuration(eventType string) metrics.Timer {
	return newTimer(m.handlerDuration.WithLabelValues(eventType))
}

func (m *actorMetrics) HandlerProcessed(eventType string, success bool) {
	m.handlersTotal.WithLabelValues(eventType, boolToStr(success)).Inc()
}

func (m *actorMetrics) HandlerPanic(eventType string) {
	m.panicTotal.WithLabelValues(eventType).Inc()
}

func (m *actorMetrics) EmissionsTotal(kind string) {
	m.emissionsTotal.WithLabelValues(kind).Inc()
}

func (m *actorMetrics) MailboxDepth(actorID string, depth int) {
	m.mailboxDepth.WithLabelValues(actorID).Set(float64(depth))
}

var _ actor.Metrics = (*actorMetrics)(nil)
