// Package metrics provides Prometheus instrumentation for breakers and rate
// limiters, labeled by dependency name.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus collectors for the resilience layer
type Metrics struct {
	calls          *prometheus.CounterVec
	successes      *prometheus.CounterVec
	failures       *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	stateChanges   *prometheus.CounterVec
	currentState   *prometheus.GaugeVec
	callLatency    *prometheus.HistogramVec
	limiterAllowed *prometheus.CounterVec
	limiterDenied  *prometheus.CounterVec
	limiterTokens  *prometheus.GaugeVec
}

// New creates a new Metrics instance registered with the default registry
func New(namespace string) *Metrics {
	return &Metrics{
		calls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_calls_total",
				Help:      "Total number of protected calls",
			},
			[]string{"name"},
		),
		successes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_successes_total",
				Help:      "Total number of successful calls",
			},
			[]string{"name"},
		),
		failures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_failures_total",
				Help:      "Total number of failed calls",
			},
			[]string{"name"},
		),
		rejections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_rejections_total",
				Help:      "Total number of rejected calls (circuit open)",
			},
			[]string{"name"},
		),
		stateChanges: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state_changes_total",
				Help:      "Total number of state changes",
			},
			[]string{"name", "from", "to"},
		),
		currentState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Current state of the circuit breaker (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
		callLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_call_duration_seconds",
				Help:      "Protected call duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"name", "status"},
		),
		limiterAllowed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limiter_allowed_total",
				Help:      "Total number of admitted requests",
			},
			[]string{"name"},
		),
		limiterDenied: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limiter_denied_total",
				Help:      "Total number of rejected requests (quota exhausted)",
			},
			[]string{"name"},
		),
		limiterTokens: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "rate_limiter_available_tokens",
				Help:      "Tokens or window capacity currently available",
			},
			[]string{"name"},
		),
	}
}

// Handler returns the Prometheus scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordCall records a protected call attempt
func (m *Metrics) RecordCall(name string) {
	m.calls.WithLabelValues(name).Inc()
}

// RecordSuccess records a successful call
func (m *Metrics) RecordSuccess(name string) {
	m.successes.WithLabelValues(name).Inc()
}

// RecordFailure records a failed call
func (m *Metrics) RecordFailure(name string) {
	m.failures.WithLabelValues(name).Inc()
}

// RecordRejection records a call rejected by an open circuit
func (m *Metrics) RecordRejection(name string) {
	m.rejections.WithLabelValues(name).Inc()
}

// RecordStateChange records a breaker state change
func (m *Metrics) RecordStateChange(name, from, to string, stateValue float64) {
	m.stateChanges.WithLabelValues(name, from, to).Inc()
	m.currentState.WithLabelValues(name).Set(stateValue)
}

// RecordDuration records a protected call's latency
func (m *Metrics) RecordDuration(name, status string, seconds float64) {
	m.callLatency.WithLabelValues(name, status).Observe(seconds)
}

// RecordAdmission records a rate limiter decision
func (m *Metrics) RecordAdmission(name string, allowed bool) {
	if allowed {
		m.limiterAllowed.WithLabelValues(name).Inc()
	} else {
		m.limiterDenied.WithLabelValues(name).Inc()
	}
}

// SetAvailableTokens records a limiter's remaining capacity
func (m *Metrics) SetAvailableTokens(name string, tokens float64) {
	m.limiterTokens.WithLabelValues(name).Set(tokens)
}
