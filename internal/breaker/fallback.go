package breaker

import "fmt"

// FallbackFunc is a function that provides fallback behavior
type FallbackFunc func(err error) error

// DoWithFallback runs the given function through the circuit breaker.
// If the circuit rejects the call or the function fails, the fallback is
// called with the error. Callers that only want to degrade on rejection can
// check IsOpen inside the fallback.
func (cb *CircuitBreaker) DoWithFallback(fn func() error, fallback FallbackFunc) error {
	err := cb.Do(fn)
	if err != nil {
		return fallback(err)
	}

	return nil
}

// DoWithFallbackResult is a generic version of DoWithFallback that supports
// returning a value along with an error.
func DoWithFallbackResult[T any](cb *CircuitBreaker, fn func() (T, error), fallback func(error) (T, error)) (T, error) {
	var result T
	var fnErr error

	err := cb.Do(func() error {
		result, fnErr = fn()
		return fnErr
	})
	if err != nil {
		return fallback(err)
	}

	return result, nil
}

// Common fallback strategies

// SkipFallback swallows the error, for optional enrichment steps that the
// surrounding workflow can simply go without.
func SkipFallback() FallbackFunc {
	return func(err error) error {
		return nil
	}
}

// SkipOnRejection swallows circuit-open rejections but propagates the
// operation's own errors.
func SkipOnRejection() FallbackFunc {
	return func(err error) error {
		if IsOpen(err) {
			return nil
		}
		return err
	}
}

// WrapErrorFallback wraps the error with additional context
func WrapErrorFallback(message string) FallbackFunc {
	return func(err error) error {
		return fmt.Errorf("%s: %w", message, err)
	}
}

// DefaultValueFallback returns a default value function
func DefaultValueFallback[T any](defaultValue T) func(error) (T, error) {
	return func(err error) (T, error) {
		return defaultValue, nil
	}
}

// CacheFallback returns a cached value when the circuit rejects a call
func CacheFallback[T any](getCached func() (T, bool)) func(error) (T, error) {
	return func(err error) (T, error) {
		if cached, ok := getCached(); ok {
			return cached, nil
		}
		var zero T
		return zero, err
	}
}
