package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_messages_total",
			Help: "Total number of messages processed by the delivery service (count)",
		},
		[]string{"family", "status"},
	)

	DeliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "delivery_processing_duration_ms",
			Help:    "End-to-end processing duration per message in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"family", "status"},
	)

	DeliveryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_attempts_total",
			Help: "Total number of outbound delivery attempts (count)",
		},
		[]string{"family"},
	)

	TokenRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_refresh_total",
			Help: "Total number of access token refreshes (count)",
		},
		[]string{"status"},
	)

	TokenCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "token_cache_hits_total",
			Help: "Token requests served from the cached token (count)",
		},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "topic"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Total number of messages sent to DLQ (count)",
		},
		[]string{"service", "topic", "reason"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of rate-limited management API requests (count)",
		},
		[]string{"outcome"},
	)

	ConfigChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "config_changes_total",
			Help: "Total number of integration config changes (count)",
		},
		[]string{"action"},
	)
)

func ObserveDeliveryDuration(family string, d time.Duration, status string) {
	DeliveryDuration.WithLabelValues(family, status).Observe(float64(d.Milliseconds()))
}

func RegisterDeliveryMetrics() {
	prometheus.MustRegister(DeliveriesTotal)
	prometheus.MustRegister(DeliveryDuration)
	prometheus.MustRegister(DeliveryAttemptsTotal)
	prometheus.MustRegister(TokenRefreshTotal)
	prometheus.MustRegister(TokenCacheHitsTotal)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(RetryAttemptsTotal)
	prometheus.MustRegister(DLQMessagesTotal)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func RegisterManagementMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
	prometheus.MustRegister(ConfigChangesTotal)
}
