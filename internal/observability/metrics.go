package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CodesIssued counts verification codes written to the store by channel (email|phone).
	CodesIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_verification_codes_issued_total",
			Help: "Total number of verification codes issued",
		},
		[]string{"channel"},
	)

	// CodeChecks counts verification attempts by channel and result (success|mismatch|not_found|error).
	CodeChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_verification_checks_total",
			Help: "Total number of verification code checks",
		},
		[]string{"channel", "result"},
	)

	// DeliveryAttempts counts notification sends by channel, provider and result.
	DeliveryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_delivery_attempts_total",
			Help: "Total number of notification delivery attempts",
		},
		[]string{"channel", "provider", "result"},
	)

	// AuthAttempts records password and federated sign-ins by method and result.
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"method", "result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)
