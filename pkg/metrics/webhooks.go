package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics counts identity-provider deliveries by outcome.
type WebhookMetrics struct {
	events     *prometheus.CounterVec
	rejections *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "clerk_webhook_events_total",
		Help: "Verified Clerk webhook events by type and dispatch result.",
	}, []string{"type", "result"})
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "clerk_webhook_rejections_total",
		Help: "Clerk webhook deliveries rejected before dispatch.",
	}, []string{"reason"})
	reg.MustRegister(events, rejections)
	return &WebhookMetrics{events: events, rejections: rejections}
}

// IncEvent records one dispatched event.
func (m *WebhookMetrics) IncEvent(eventType, result string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(eventType), normalizeLabel(result)).Inc()
}

// IncRejection records a delivery that never reached the dispatcher.
func (m *WebhookMetrics) IncRejection(reason string) {
	if m == nil || m.rejections == nil {
		return
	}
	m.rejections.WithLabelValues(normalizeLabel(reason)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
