package breaker

import (
	"errors"
	"time"
)

// recoverySuccesses is the number of consecutive successes required while
// half-open before the circuit closes again.
const recoverySuccesses = 3

// Config holds configuration for a circuit breaker
type Config struct {
	// FailureThreshold is the number of qualifying failures accumulated in
	// the closed state that trips the circuit.
	// If FailureThreshold is 0, the default of 5 is used.
	FailureThreshold int

	// Timeout is the minimum dwell time in the open state before a recovery
	// probe is allowed through.
	// If Timeout is 0, the timeout value is 60 seconds.
	Timeout time.Duration

	// RecoveryTimeout is recorded in status snapshots for dashboards.
	// The actual recovery gate uses Timeout.
	// If RecoveryTimeout is 0, the default of 30 seconds is used.
	RecoveryTimeout time.Duration

	// IsFailure decides whether an error returned by a protected call counts
	// against the breaker. Errors for which IsFailure returns false propagate
	// to the caller but bypass failure counting entirely.
	// If IsFailure is nil, every non-nil error counts as a failure.
	IsFailure func(err error) bool

	// OnStateChange is called whenever the state of the breaker changes.
	OnStateChange func(name string, from State, to State)
}

// defaultConfig returns default configuration
func defaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		Timeout:          60 * time.Second,
		RecoveryTimeout:  30 * time.Second,
		IsFailure: func(err error) bool {
			return err != nil
		},
	}
}

// merge merges user config with default config
func (c Config) merge() Config {
	config := defaultConfig()

	if c.FailureThreshold > 0 {
		config.FailureThreshold = c.FailureThreshold
	}

	if c.Timeout > 0 {
		config.Timeout = c.Timeout
	}

	if c.RecoveryTimeout > 0 {
		config.RecoveryTimeout = c.RecoveryTimeout
	}

	if c.IsFailure != nil {
		config.IsFailure = c.IsFailure
	}

	if c.OnStateChange != nil {
		config.OnStateChange = c.OnStateChange
	}

	return config
}

// FailureKinds builds an IsFailure predicate from a closed set of sentinel
// errors. Only errors matching one of the given kinds (via errors.Is) count
// against the breaker.
func FailureKinds(kinds ...error) func(error) bool {
	return func(err error) bool {
		if err == nil {
			return false
		}
		for _, kind := range kinds {
			if errors.Is(err, kind) {
				return true
			}
		}
		return false
	}
}
