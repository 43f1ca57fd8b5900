package metrics

import "github.com/prometheus/client_golang/prometheus"

// DomainMetrics tracks order, webhook and payout activity.
type DomainMetrics struct {
	webhooks    *prometheus.CounterVec
	transitions *prometheus.CounterVec
	transfers   *prometheus.CounterVec
}

func NewDomainMetrics(reg prometheus.Registerer) *DomainMetrics {
	if reg == nil {
		return &DomainMetrics{}
	}
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_webhooks_total",
		Help:      "Payment notifications by outcome.",
	}, []string{"outcome"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_transitions_total",
		Help:      "Committed order status transitions.",
	}, []string{"from", "to", "actor"})
	transfers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payout_transfers_total",
		Help:      "Payout transfer attempts by result.",
	}, []string{"result"})
	reg.MustRegister(webhooks, transitions, transfers)
	return &DomainMetrics{webhooks: webhooks, transitions: transitions, transfers: transfers}
}

// WebhookOutcome values: processed, duplicate, ignored, rejected, failed.
func (m *DomainMetrics) WebhookOutcome(outcome string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *DomainMetrics) OrderTransition(from, to, actor string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to), normalizeLabel(actor)).Inc()
}

func (m *DomainMetrics) PayoutTransfer(result string) {
	if m == nil || m.transfers == nil {
		return
	}
	m.transfers.WithLabelValues(normalizeLabel(result)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
