package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the admission layer
type Metrics struct {
	registry *prometheus.Registry

	// AuthDecisions counts authenticator outcomes by taxonomy code
	// ("ok" for success).
	AuthDecisions *prometheus.CounterVec

	// GuardDenials counts access-guard rejections by guard and code
	GuardDenials *prometheus.CounterVec

	// RateLimitDecisions counts limiter outcomes per policy:
	// allowed, limited, skipped.
	RateLimitDecisions *prometheus.CounterVec

	// RateLimitExemptOutcomes counts responses a policy's
	// skip-successful/skip-failed bookkeeping flags would have excluded
	// from the window, had counting been post-hoc.
	RateLimitExemptOutcomes *prometheus.CounterVec

	// CounterCacheFailures counts fail-open events
	CounterCacheFailures prometheus.Counter

	// RequestDuration measures handler latency by method and route
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all collectors on the given registry.
// A nil registry gets its own private one, which tests rely on.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: registry,
		AuthDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateward_auth_decisions_total",
				Help: "Authenticator outcomes by code",
			},
			[]string{"outcome"},
		),
		GuardDenials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateward_guard_denials_total",
				Help: "Access guard rejections by guard and code",
			},
			[]string{"guard", "code"},
		),
		RateLimitDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateward_ratelimit_decisions_total",
				Help: "Rate limiter decisions per policy",
			},
			[]string{"policy", "decision"},
		),
		RateLimitExemptOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateward_ratelimit_exempt_outcomes_total",
				Help: "Responses matching a policy's inert skip-successful/skip-failed flags",
			},
			[]string{"policy", "outcome"},
		),
		CounterCacheFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gateward_counter_cache_failures_total",
				Help: "Counter cache errors that resulted in fail-open admission",
			},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateward_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	registry.MustRegister(
		m.AuthDecisions,
		m.GuardDenials,
		m.RateLimitDecisions,
		m.RateLimitExemptOutcomes,
		m.CounterCacheFailures,
		m.RequestDuration,
	)

	return m
}

// Handler serves the /metrics endpoint for this registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
