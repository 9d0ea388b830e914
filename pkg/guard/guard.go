// Package guard ties the per-dependency circuit breakers and rate limiters
// into a single explicitly constructed registry. A Registry is created once
// at process start and passed by reference to every component that needs to
// protect or inspect calls; there is no package-level singleton.
//
// The protection order for a fully guarded dependency is limiter first
// (admission control), then breaker (health control), then the operation
// itself. Limiter counters are purely time based and do not depend on the
// call's outcome; the breaker observes the outcome and feeds it into its
// failure/success counters.
package guard

import (
	"time"

	"go.uber.org/zap"

	"github.com/breakwater-io/breakwater/internal/breaker"
	"github.com/breakwater-io/breakwater/internal/metrics"
	"github.com/breakwater-io/breakwater/internal/ratelimit"
)

// Registry owns the breaker and limiter registries for one process.
type Registry struct {
	breakers *breaker.Manager
	limiters *ratelimit.Manager
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// New creates a Registry. Both logger and m may be nil, in which case state
// changes are not logged and no metrics are recorded.
func New(logger *zap.Logger, m *metrics.Metrics) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Registry{
		breakers: breaker.NewManager(logger),
		limiters: ratelimit.NewManager(logger),
		metrics:  m,
		logger:   logger,
	}
}

// CreateBreaker registers a circuit breaker for the named dependency.
// Re-registering a name replaces the previous breaker, counters included.
func (r *Registry) CreateBreaker(name string, config breaker.Config) *breaker.CircuitBreaker {
	if r.metrics != nil {
		userHook := config.OnStateChange
		config.OnStateChange = func(name string, from, to breaker.State) {
			r.metrics.RecordStateChange(name, from.String(), to.String(), stateValue(to))
			if userHook != nil {
				userHook(name, from, to)
			}
		}
	}

	return r.breakers.Create(name, config)
}

// CreateLimiter registers a rate limiter for the named dependency. An unknown
// algorithm is a configuration error, fatal at setup time.
func (r *Registry) CreateLimiter(name string, config ratelimit.Config, algorithm ratelimit.Algorithm) (ratelimit.Limiter, error) {
	return r.limiters.Create(name, config, algorithm)
}

// Breaker returns the named breaker.
func (r *Registry) Breaker(name string) (*breaker.CircuitBreaker, bool) {
	return r.breakers.Get(name)
}

// Limiter returns the named limiter.
func (r *Registry) Limiter(name string) (ratelimit.Limiter, bool) {
	return r.limiters.Get(name)
}

// Protect runs fn through the named breaker. On rejection fn is never
// invoked and a *breaker.OpenError is returned; fn's own error is returned
// unchanged otherwise. An unregistered name runs fn unprotected; callers
// register breakers at startup, so this only happens in tests and tools.
func (r *Registry) Protect(name string, fn func() error) error {
	cb, ok := r.breakers.Get(name)
	if !ok {
		r.logger.Warn("no circuit breaker registered, running unprotected", zap.String("name", name))
		return fn()
	}

	start := time.Now()
	err := cb.Do(fn)
	r.record(name, err, time.Since(start))
	return err
}

// ProtectValue is a generic version of Registry.Protect for operations that
// return a value.
func ProtectValue[T any](r *Registry, name string, fn func() (T, error)) (T, error) {
	var result T
	var fnErr error

	err := r.Protect(name, func() error {
		result, fnErr = fn()
		return fnErr
	})
	if err != nil {
		var zero T
		return zero, err
	}

	return result, nil
}

// Acquire admits n requests against the named limiter, rejecting immediately
// with a *ratelimit.LimitError when the quota is exhausted.
func (r *Registry) Acquire(name string, n int) error {
	err := r.limiters.Acquire(name, n)
	if r.metrics != nil {
		r.metrics.RecordAdmission(name, err == nil)
	}
	return err
}

// Call runs fn for a dependency registered under name with both primitives:
// the limiter admits or rejects first, then the breaker applies its health
// gate, then fn executes. Either primitive may be absent for the name; the
// other still applies.
func (r *Registry) Call(name string, fn func() error) error {
	if _, ok := r.limiters.Get(name); ok {
		if err := r.Acquire(name, 1); err != nil {
			return err
		}
	}

	return r.Protect(name, fn)
}

// BreakerStatus returns a snapshot of every registered breaker.
func (r *Registry) BreakerStatus() map[string]breaker.Status {
	return r.breakers.Status()
}

// LimiterStatus returns a snapshot of every registered limiter. Lazy
// refill/prune bookkeeping runs as part of the snapshot, so reported counts
// are current.
func (r *Registry) LimiterStatus() map[string]ratelimit.Status {
	statuses := r.limiters.Status()
	if r.metrics != nil {
		for name, st := range statuses {
			if st.Algorithm == ratelimit.TokenBucket {
				r.metrics.SetAvailableTokens(name, st.AvailableTokens)
			} else {
				r.metrics.SetAvailableTokens(name, float64(st.Remaining))
			}
		}
	}
	return statuses
}

// ResetBreaker forces the named breaker back to closed with all counters
// zeroed. Returns false when the name is not registered.
func (r *Registry) ResetBreaker(name string) bool {
	return r.breakers.Reset(name)
}

// record feeds call outcomes into metrics, mirroring the breaker's own
// classification: rejections are neither successes nor failures.
func (r *Registry) record(name string, err error, elapsed time.Duration) {
	if r.metrics == nil {
		return
	}

	r.metrics.RecordCall(name)

	switch {
	case err == nil:
		r.metrics.RecordSuccess(name)
		r.metrics.RecordDuration(name, "success", elapsed.Seconds())
	case breaker.IsOpen(err):
		r.metrics.RecordRejection(name)
	default:
		r.metrics.RecordFailure(name)
		r.metrics.RecordDuration(name, "failure", elapsed.Seconds())
	}
}

// stateValue maps states onto the gauge scale used by dashboards.
func stateValue(s breaker.State) float64 {
	switch s {
	case breaker.StateClosed:
		return 0
	case breaker.StateHalfOpen:
		return 1
	case breaker.StateOpen:
		return 2
	default:
		return -1
	}
}
