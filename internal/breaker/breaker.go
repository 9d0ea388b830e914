package breaker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// OpenError is returned when a call is rejected because the circuit is open
// and the recovery timeout has not elapsed.
type OpenError struct {
	Name     string
	Failures int
	Timeout  time.Duration
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit breaker %q is open (failures=%d, retry after %s)", e.Name, e.Failures, e.Timeout)
}

// IsOpen reports whether err is a circuit-open rejection.
func IsOpen(err error) bool {
	var oe *OpenError
	return errors.As(err, &oe)
}

// Status is a read-only snapshot of a breaker, rendered as JSON by the
// operational status endpoints.
type Status struct {
	Name                string `json:"name"`
	State               State  `json:"state"`
	FailureCount        int    `json:"failure_count"`
	SuccessCount        int    `json:"success_count"`
	LastFailureTime     int64  `json:"last_failure_time"`
	FailureThreshold    int    `json:"failure_threshold"`
	TimeoutSeconds      int    `json:"timeout_seconds"`
	RecoveryTimeoutSecs int    `json:"recovery_timeout_seconds"`
}

// CircuitBreaker guards one named external dependency. It trips open after
// FailureThreshold qualifying failures in the closed state, rejects calls
// while open, and closes again after three consecutive successes in the
// half-open state.
type CircuitBreaker struct {
	name   string
	config Config
	logger *zap.Logger

	mutex        sync.Mutex
	state        State
	generation   uint64
	failureCount int
	successCount int
	lastFailure  time.Time

	now func() time.Time
}

// New creates a new CircuitBreaker with the given configuration
func New(name string, config Config, logger *zap.Logger) *CircuitBreaker {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CircuitBreaker{
		name:   name,
		config: config.merge(),
		logger: logger,
		state:  StateClosed,
		now:    time.Now,
	}
}

// Do runs the given function if the circuit breaker allows it. The function's
// own error is returned unchanged; on rejection a *OpenError is returned and
// the function is never invoked.
func (cb *CircuitBreaker) Do(fn func() error) error {
	generation, err := cb.beforeCall()
	if err != nil {
		return err
	}

	defer func() {
		if e := recover(); e != nil {
			cb.afterCall(generation, false)
			panic(e)
		}
	}()

	err = fn()
	switch {
	case err == nil:
		cb.afterCall(generation, true)
	case cb.config.IsFailure(err):
		cb.afterCall(generation, false)
	default:
		// Non-qualifying errors propagate but bypass the failure and
		// success bookkeeping entirely.
	}
	return err
}

// State returns the current state of the circuit breaker
func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	state, _ := cb.currentState(cb.now())
	return state
}

// Name returns the breaker name
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Status returns a consistent snapshot of the breaker. It never mutates
// counters, but evaluates the lazy open -> half-open gate so the reported
// state is not stale.
func (cb *CircuitBreaker) Status() Status {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	state, _ := cb.currentState(cb.now())

	var lastFailure int64
	if !cb.lastFailure.IsZero() {
		lastFailure = cb.lastFailure.Unix()
	}

	return Status{
		Name:                cb.name,
		State:               state,
		FailureCount:        cb.failureCount,
		SuccessCount:        cb.successCount,
		LastFailureTime:     lastFailure,
		FailureThreshold:    cb.config.FailureThreshold,
		TimeoutSeconds:      int(cb.config.Timeout / time.Second),
		RecoveryTimeoutSecs: int(cb.config.RecoveryTimeout / time.Second),
	}
}

// Reset forces the breaker back to closed with all counters zeroed. The
// generation bump discards outcomes of calls that are still in flight.
func (cb *CircuitBreaker) Reset() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.generation++
	cb.setState(StateClosed, cb.now())
	cb.failureCount = 0
	cb.successCount = 0
	cb.lastFailure = time.Time{}
}

// beforeCall evaluates the admission gate
func (cb *CircuitBreaker) beforeCall() (uint64, error) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	state, generation := cb.currentState(cb.now())

	if state == StateOpen {
		return generation, &OpenError{
			Name:     cb.name,
			Failures: cb.failureCount,
			Timeout:  cb.config.Timeout,
		}
	}

	return generation, nil
}

// afterCall records the outcome, unless the breaker was reset while the call
// was in flight
func (cb *CircuitBreaker) afterCall(before uint64, success bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	now := cb.now()
	state, generation := cb.currentState(now)
	if generation != before {
		return
	}

	if success {
		cb.onSuccess(state, now)
	} else {
		cb.onFailure(state, now)
	}
}

// onSuccess handles qualifying successes
func (cb *CircuitBreaker) onSuccess(state State, now time.Time) {
	switch state {
	case StateClosed:
		// A single success clears accumulated failures.
		cb.failureCount = 0

	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= recoverySuccesses {
			cb.setState(StateClosed, now)
			cb.failureCount = 0
			cb.successCount = 0
			cb.lastFailure = time.Time{}
		}
	}
}

// onFailure handles qualifying failures
func (cb *CircuitBreaker) onFailure(state State, now time.Time) {
	switch state {
	case StateClosed:
		cb.failureCount++
		cb.lastFailure = now

		if cb.failureCount >= cb.config.FailureThreshold {
			cb.setState(StateOpen, now)
		}

	case StateHalfOpen:
		cb.successCount = 0
		cb.lastFailure = now
		cb.setState(StateOpen, now)
	}
}

// currentState evaluates the lazy recovery gate. There is no background
// timer; the open -> half-open transition only happens here, at call time.
func (cb *CircuitBreaker) currentState(now time.Time) (State, uint64) {
	if cb.state == StateOpen && now.Sub(cb.lastFailure) >= cb.config.Timeout {
		cb.setState(StateHalfOpen, now)
	}

	return cb.state, cb.generation
}

// setState changes the state
func (cb *CircuitBreaker) setState(state State, now time.Time) {
	if cb.state == state {
		return
	}

	prev := cb.state
	cb.state = state
	cb.generation++

	if state == StateHalfOpen {
		cb.successCount = 0
	}

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.name, prev, state)
	}

	cb.logger.Info("circuit breaker state changed",
		zap.String("name", cb.name),
		zap.Stringer("from", prev),
		zap.Stringer("to", state),
		zap.Int("failure_count", cb.failureCount),
	)
}
