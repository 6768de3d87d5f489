package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RelayMetrics records outbound calls to the workflow engine.
type RelayMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	if reg == nil {
		return &RelayMetrics{}
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "n8n_relay_requests_total",
		Help: "Outbound n8n workflow triggers by workflow and result.",
	}, []string{"workflow", "result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "n8n_relay_duration_seconds",
		Help:    "Latency of outbound n8n workflow triggers.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"workflow"})
	reg.MustRegister(requests, duration)
	return &RelayMetrics{requests: requests, duration: duration}
}

// Observe records one relay attempt.
func (m *RelayMetrics) Observe(workflow, result string, elapsed time.Duration) {
	if m == nil || m.requests == nil {
		return
	}
	workflow = normalizeLabel(workflow)
	m.requests.WithLabelValues(workflow, normalizeLabel(result)).Inc()
	m.duration.WithLabelValues(workflow).Observe(elapsed.Seconds())
}
