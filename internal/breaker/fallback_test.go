package breaker_test

import (
	"errors"
	"testing"

	"github.com/breakwater-io/breakwater/internal/breaker"
)

func TestDoWithFallback_Success(t *testing.T) {
	cb := breaker.New("test-fallback", breaker.Config{}, nil)
	fallbackCalled := false

	err := cb.DoWithFallback(
		func() error {
			return nil
		},
		func(err error) error {
			fallbackCalled = true
			return nil
		},
	)
	if err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}
	if fallbackCalled {
		t.Error("Fallback should not be called on success")
	}
}

func TestDoWithFallback_FallbackOnError(t *testing.T) {
	cb := breaker.New("test-fallback", breaker.Config{}, nil)
	fallbackCalled := false
	originalErr := errors.New("original error")

	err := cb.DoWithFallback(
		func() error {
			return originalErr
		},
		func(err error) error {
			fallbackCalled = true
			return nil // Fallback succeeds
		},
	)
	if err != nil {
		t.Errorf("Expected nil error from fallback, got %v", err)
	}
	if !fallbackCalled {
		t.Error("Fallback should be called on error")
	}
}

func TestDoWithFallback_CircuitOpen(t *testing.T) {
	cb := breaker.New("test-fallback", breaker.Config{FailureThreshold: 1}, nil)

	// Trip the circuit
	cb.Do(func() error { return errors.New("error") })

	fallbackCalled := false
	err := cb.DoWithFallback(
		func() error {
			return nil
		},
		func(err error) error {
			fallbackCalled = true
			if !breaker.IsOpen(err) {
				t.Errorf("Expected open rejection in fallback, got %v", err)
			}
			return nil
		},
	)
	if err != nil {
		t.Errorf("Expected nil error from fallback, got %v", err)
	}
	if !fallbackCalled {
		t.Error("Fallback should be called when circuit is open")
	}
}

func TestDoWithFallbackResult_Success(t *testing.T) {
	cb := breaker.New("test-fallback-result", breaker.Config{}, nil)

	result, err := breaker.DoWithFallbackResult(cb,
		func() (int, error) {
			return 42, nil
		},
		func(err error) (int, error) {
			return -1, nil
		},
	)
	if err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}
	if result != 42 {
		t.Errorf("Expected 42, got %d", result)
	}
}

func TestDoWithFallbackResult_Fallback(t *testing.T) {
	cb := breaker.New("test-fallback-result", breaker.Config{}, nil)

	result, err := breaker.DoWithFallbackResult(cb,
		func() (int, error) {
			return 0, errors.New("error")
		},
		func(err error) (int, error) {
			return -1, nil // Fallback value
		},
	)
	if err != nil {
		t.Errorf("Expected nil error from fallback, got %v", err)
	}
	if result != -1 {
		t.Errorf("Expected -1 (fallback), got %d", result)
	}
}

func TestDefaultValueFallback(t *testing.T) {
	fallback := breaker.DefaultValueFallback("default")
	result, err := fallback(errors.New("some error"))
	if err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}
	if result != "default" {
		t.Errorf("Expected 'default', got %s", result)
	}
}

func TestCacheFallback_Found(t *testing.T) {
	cachedValue := "cached"
	fallback := breaker.CacheFallback(func() (string, bool) {
		return cachedValue, true
	})

	result, err := fallback(errors.New("some error"))
	if err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}
	if result != cachedValue {
		t.Errorf("Expected %s, got %s", cachedValue, result)
	}
}

func TestCacheFallback_NotFound(t *testing.T) {
	originalErr := errors.New("original error")
	fallback := breaker.CacheFallback(func() (string, bool) {
		return "", false
	})

	_, err := fallback(originalErr)

	if err != originalErr {
		t.Errorf("Expected original error, got %v", err)
	}
}

func TestSkipFallback(t *testing.T) {
	fallback := breaker.SkipFallback()
	err := fallback(errors.New("some error"))
	if err != nil {
		t.Errorf("Expected nil, got %v", err)
	}
}

func TestSkipOnRejection(t *testing.T) {
	fallback := breaker.SkipOnRejection()

	opErr := errors.New("operation error")
	if err := fallback(opErr); err != opErr {
		t.Errorf("Expected operation error to propagate, got %v", err)
	}

	rejection := &breaker.OpenError{Name: "test", Failures: 5}
	if err := fallback(rejection); err != nil {
		t.Errorf("Expected rejection to be swallowed, got %v", err)
	}
}

func TestWrapErrorFallback(t *testing.T) {
	fallback := breaker.WrapErrorFallback("wrapped message")
	err := fallback(errors.New("original"))

	if err == nil {
		t.Error("Expected wrapped error")
	}
	if err.Error() != "wrapped message: original" {
		t.Errorf("Unexpected error message: %s", err.Error())
	}
}
