package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics tracks what the publisher did with each outbox row.
type OutboxMetrics struct {
	events  *prometheus.CounterVec
	latency *prometheus.HistogramVec
	lag     prometheus.Histogram
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "events_total",
		Help:      "Outbox rows handled by the publisher, by event type and result.",
	}, []string{"event_type", "result"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "publish_seconds",
		Help:      "Broker publish latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 15},
	}, []string{"transport"})
	lag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "delivery_lag_seconds",
		Help:      "Time between an event being written and being published.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
	})
	reg.MustRegister(events, latency, lag)
	return &OutboxMetrics{events: events, latency: latency, lag: lag}
}

// Event results: published, retried, dead_lettered.
func (m *OutboxMetrics) Event(eventType, result string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(eventType), normalizeLabel(result)).Inc()
}

func (m *OutboxMetrics) PublishLatency(transport string, d time.Duration) {
	if m == nil || m.latency == nil {
		return
	}
	m.latency.WithLabelValues(normalizeLabel(transport)).Observe(d.Seconds())
}

func (m *OutboxMetrics) DeliveryLag(d time.Duration) {
	if m == nil || m.lag == nil || d < 0 {
		return
	}
	m.lag.Observe(d.Seconds())
}
