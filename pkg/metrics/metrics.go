// payment-integration-service/pkg/metrics/metrics.go
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// "service" label lets one query compare the API and the sandbox
	PaymentRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payment",
			Name:      "requests_total",
			Help:      "Total HTTP requests per service",
		},
		[]string{"service", "status", "method"},
	)

	PaymentRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "payment",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration per service",
			// provider calls sit in the 0.2s-5s range
			Buckets: []float64{
				0.01, 0.02, 0.03, 0.05, 0.08, 0.12,
				0.2, 0.3, 0.5, 0.8, 1.2, 2, 3, 5,
			},
		},
		[]string{"service", "status"},
	)

	ProviderCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payment",
			Name:      "provider_calls_total",
			Help:      "Provider gateway calls by provider, operation and resulting ledger status",
		},
		[]string{"provider", "operation", "status"},
	)

	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payment",
			Name:      "webhook_events_total",
			Help:      "Inbound webhook callbacks by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(PaymentRequestsTotal, PaymentRequestDuration, ProviderCallsTotal, WebhookEventsTotal)
}

// helpers called from middleware and services
func IncRequest(service, status, method string) {
	PaymentRequestsTotal.WithLabelValues(service, status, method).Inc()
}

func ObserveDuration(service, status string, seconds float64) {
	PaymentRequestDuration.WithLabelValues(service, status).Observe(seconds)
}

func IncProviderCall(provider, operation, status string) {
	ProviderCallsTotal.WithLabelValues(provider, operation, status).Inc()
}

func IncWebhook(provider, outcome string) {
	WebhookEventsTotal.WithLabelValues(provider, outcome).Inc()
}
