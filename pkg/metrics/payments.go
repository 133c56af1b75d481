package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	PaymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agropay",
			Subsystem: "payments",
			Name:      "processed_total",
			Help:      "Processed payments by provider and resulting status",
		},
		[]string{"provider", "status"},
	)

	ProviderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agropay",
			Subsystem: "provider",
			Name:      "request_duration_seconds",
			Help:      "Outbound provider call latency in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider", "operation"},
	)

	TokenRefreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agropay",
			Subsystem: "provider",
			Name:      "token_refreshes_total",
			Help:      "Credential exchange calls by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	CallbackEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agropay",
			Subsystem: "callbacks",
			Name:      "events_total",
			Help:      "Normalized provider callbacks by provider and status",
		},
		[]string{"provider", "status"},
	)
)

func init() {
	Registry.MustRegister(
		PaymentsTotal,
		ProviderRequestDuration,
		TokenRefreshesTotal,
		CallbackEventsTotal,
	)
}
