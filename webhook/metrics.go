package webhook

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the webhook server's Prometheus counters.
type Metrics struct {
	WebhooksTotal *prometheus.CounterVec
}

// NewMetrics constructs and registers the webhook server's metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		WebhooksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "homu_webhooks_total",
			Help: "Number of webhook deliveries received, by event type.",
		}, []string{"event_type"}),
	}
	prometheus.MustRegister(m.WebhooksTotal)
	return m
}
