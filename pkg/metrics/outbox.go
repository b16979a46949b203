package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics tracks the outbox dispatcher: delivered rows, retries, dead letters and backlog.
type OutboxMetrics struct {
	published    *prometheus.CounterVec
	retried      *prometheus.CounterVec
	deadLettered *prometheus.CounterVec
	backlog      prometheus.Gauge
}

// NewOutboxMetrics registers outbox metrics. A nil registerer yields a no-op recorder.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "published_total",
			Help:      "Outbox rows delivered to the event bus, by topic.",
		}, []string{"topic"}),
		retried: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "retries_total",
			Help:      "Failed publish attempts that will be retried, by event type.",
		}, []string{"event_type"}),
		deadLettered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "dead_lettered_total",
			Help:      "Outbox rows moved to the dead letter table, by reason.",
		}, []string{"reason"}),
		backlog: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "backlog",
			Help:      "Outbox rows still waiting to be published.",
		}),
	}
	reg.MustRegister(m.published, m.retried, m.deadLettered, m.backlog)
	return m
}

func (m *OutboxMetrics) IncPublished(topic string) {
	if m == nil || m.published == nil {
		return
	}
	m.published.WithLabelValues(normalizeLabel(topic)).Inc()
}

func (m *OutboxMetrics) IncRetried(eventType string) {
	if m == nil || m.retried == nil {
		return
	}
	m.retried.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (m *OutboxMetrics) IncDeadLettered(reason string) {
	if m == nil || m.deadLettered == nil {
		return
	}
	m.deadLettered.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *OutboxMetrics) SetBacklog(n int64) {
	if m == nil || m.backlog == nil {
		return
	}
	m.backlog.Set(float64(n))
}
