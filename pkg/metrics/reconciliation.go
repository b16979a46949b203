package metrics

import "github.com/prometheus/client_golang/prometheus"

// ReconciliationMetrics tracks payment reconciliation outcomes and stock side effects.
type ReconciliationMetrics struct {
	outcomes   *prometheus.CounterVec
	shortfalls prometheus.Counter
	restocks   prometheus.Counter
	webhooks   *prometheus.CounterVec
}

// NewReconciliationMetrics registers reconciliation metrics. A nil registerer yields a no-op recorder.
func NewReconciliationMetrics(reg prometheus.Registerer) *ReconciliationMetrics {
	if reg == nil {
		return &ReconciliationMetrics{}
	}
	m := &ReconciliationMetrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "outcomes_total",
			Help:      "Reconciliation attempts by event source and outcome.",
		}, []string{"source", "outcome"}),
		shortfalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inventory",
			Name:      "shortfalls_total",
			Help:      "Order items whose stock could not be deducted after payment.",
		}),
		restocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inventory",
			Name:      "restocked_items_total",
			Help:      "Product units returned to stock by order reversals.",
		}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "deliveries_total",
			Help:      "Gateway webhook deliveries by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.outcomes, m.shortfalls, m.restocks, m.webhooks)
	return m
}

// IncOutcome counts one reconciliation attempt.
func (m *ReconciliationMetrics) IncOutcome(source, outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(source), normalizeLabel(outcome)).Inc()
}

// AddShortfalls counts order items that could not be deducted.
func (m *ReconciliationMetrics) AddShortfalls(n int) {
	if m == nil || m.shortfalls == nil || n <= 0 {
		return
	}
	m.shortfalls.Add(float64(n))
}

// AddRestocked counts order items returned to stock.
func (m *ReconciliationMetrics) AddRestocked(n int) {
	if m == nil || m.restocks == nil || n <= 0 {
		return
	}
	m.restocks.Add(float64(n))
}

// IncWebhook counts one webhook delivery by result label.
func (m *ReconciliationMetrics) IncWebhook(result string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(result)).Inc()
}
