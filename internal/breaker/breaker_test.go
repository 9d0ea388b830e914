package breaker_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/breakwater-io/breakwater/internal/breaker"
)

func TestCircuitBreaker_StaysClosed(t *testing.T) {
	cb := breaker.New("test", breaker.Config{
		FailureThreshold: 3,
		Timeout:          time.Second,
	}, nil)

	// Circuit should start closed
	if state := cb.State(); state != breaker.StateClosed {
		t.Errorf("Expected StateClosed, got %v", state)
	}

	// Successful calls should keep it closed
	for i := 0; i < 5; i++ {
		err := cb.Do(func() error {
			return nil
		})
		if err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
	}

	if state := cb.State(); state != breaker.StateClosed {
		t.Errorf("Expected StateClosed after successes, got %v", state)
	}
}

func TestCircuitBreaker_TripsAtThreshold(t *testing.T) {
	cb := breaker.New("test", breaker.Config{
		FailureThreshold: 2,
		Timeout:          time.Second,
	}, nil)

	testErr := errors.New("test error")

	// One failure short of the threshold
	cb.Do(func() error { return testErr })
	if state := cb.State(); state != breaker.StateClosed {
		t.Errorf("Expected StateClosed below threshold, got %v", state)
	}

	// Threshold reached
	cb.Do(func() error { return testErr })
	if state := cb.State(); state != breaker.StateOpen {
		t.Errorf("Expected StateOpen at threshold, got %v", state)
	}

	// Calls are rejected without being invoked, counters untouched
	invoked := false
	err := cb.Do(func() error {
		invoked = true
		return nil
	})

	if !breaker.IsOpen(err) {
		t.Errorf("Expected OpenError, got %v", err)
	}
	if invoked {
		t.Error("Operation must not run while circuit is open")
	}

	st := cb.Status()
	if st.FailureCount != 2 {
		t.Errorf("Expected failure count to stay 2 after rejection, got %d", st.FailureCount)
	}

	var oe *breaker.OpenError
	if errors.As(err, &oe) {
		if oe.Name != "test" || oe.Failures != 2 || oe.Timeout != time.Second {
			t.Errorf("OpenError fields wrong: %+v", oe)
		}
	}
}

func TestCircuitBreaker_SuccessClearsFailures(t *testing.T) {
	cb := breaker.New("test", breaker.Config{
		FailureThreshold: 3,
	}, nil)

	cb.Do(func() error { return errors.New("error") })
	cb.Do(func() error { return errors.New("error") })
	cb.Do(func() error { return nil })

	if st := cb.Status(); st.FailureCount != 0 {
		t.Errorf("Expected a single success to clear failures, got %d", st.FailureCount)
	}

	// The counter starts from scratch
	cb.Do(func() error { return errors.New("error") })
	cb.Do(func() error { return errors.New("error") })
	if state := cb.State(); state != breaker.StateClosed {
		t.Errorf("Expected StateClosed after reset counter, got %v", state)
	}
}

func TestCircuitBreaker_RecoversThroughHalfOpen(t *testing.T) {
	cb := breaker.New("test", breaker.Config{
		FailureThreshold: 2,
		Timeout:          100 * time.Millisecond,
	}, nil)

	// Trip the circuit
	for i := 0; i < 2; i++ {
		cb.Do(func() error { return errors.New("error") })
	}

	// Wait out the open dwell time
	time.Sleep(150 * time.Millisecond)

	// The first call after the timeout is the recovery probe
	if state := cb.State(); state != breaker.StateHalfOpen {
		t.Errorf("Expected StateHalfOpen, got %v", state)
	}

	// Three consecutive successes close the circuit
	for i := 0; i < 3; i++ {
		if err := cb.Do(func() error { return nil }); err != nil {
			t.Errorf("Unexpected error in half-open: %v", err)
		}
	}

	if state := cb.State(); state != breaker.StateClosed {
		t.Errorf("Expected StateClosed after recovery, got %v", state)
	}

	st := cb.Status()
	if st.FailureCount != 0 || st.SuccessCount != 0 || st.LastFailureTime != 0 {
		t.Errorf("Expected counters zeroed on close, got %+v", st)
	}
}

func TestCircuitBreaker_TwoSuccessesAreNotEnough(t *testing.T) {
	cb := breaker.New("test", breaker.Config{
		FailureThreshold: 1,
		Timeout:          50 * time.Millisecond,
	}, nil)

	cb.Do(func() error { return errors.New("error") })
	time.Sleep(100 * time.Millisecond)

	cb.Do(func() error { return nil })
	cb.Do(func() error { return nil })

	if state := cb.State(); state != breaker.StateHalfOpen {
		t.Errorf("Expected StateHalfOpen after two successes, got %v", state)
	}
	if st := cb.Status(); st.SuccessCount != 2 {
		t.Errorf("Expected success count 2, got %d", st.SuccessCount)
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := breaker.New("test", breaker.Config{
		FailureThreshold: 2,
		Timeout:          50 * time.Millisecond,
	}, nil)

	// Trip the circuit
	for i := 0; i < 2; i++ {
		cb.Do(func() error { return errors.New("error") })
	}

	// Wait for half-open
	time.Sleep(100 * time.Millisecond)

	// Failure in half-open should reopen the circuit immediately
	cb.Do(func() error { return errors.New("error") })

	if state := cb.State(); state != breaker.StateOpen {
		t.Errorf("Expected StateOpen after half-open failure, got %v", state)
	}
	if st := cb.Status(); st.SuccessCount != 0 {
		t.Errorf("Expected success count reset on reopen, got %d", st.SuccessCount)
	}
}

func TestCircuitBreaker_NonQualifyingErrorsBypassCounting(t *testing.T) {
	errTransient := errors.New("transient")
	errClientSide := errors.New("client side")

	cb := breaker.New("test", breaker.Config{
		FailureThreshold: 2,
		IsFailure:        breaker.FailureKinds(errTransient),
	}, nil)

	cb.Do(func() error { return errTransient })

	// Non-qualifying error propagates and bypasses the bookkeeping: it is
	// neither a failure nor a count-clearing success.
	err := cb.Do(func() error { return fmt.Errorf("wrapped: %w", errClientSide) })
	if err == nil || !errors.Is(err, errClientSide) {
		t.Errorf("Expected the operation's own error back, got %v", err)
	}
	if state := cb.State(); state != breaker.StateClosed {
		t.Errorf("Expected StateClosed after non-qualifying error, got %v", state)
	}
	if st := cb.Status(); st.FailureCount != 1 {
		t.Errorf("Expected failure count untouched at 1, got %d", st.FailureCount)
	}

	// A qualifying kind trips it, even wrapped
	cb.Do(func() error { return fmt.Errorf("wrapped: %w", errTransient) })
	if state := cb.State(); state != breaker.StateOpen {
		t.Errorf("Expected StateOpen after qualifying error, got %v", state)
	}
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	var stateChanges []string

	cb := breaker.New("test", breaker.Config{
		FailureThreshold: 2,
		Timeout:          50 * time.Millisecond,
		OnStateChange: func(name string, from, to breaker.State) {
			stateChanges = append(stateChanges, from.String()+"->"+to.String())
		},
	}, nil)

	cb.Do(func() error { return errors.New("error") })
	cb.Do(func() error { return errors.New("error") }) // closed->open

	time.Sleep(100 * time.Millisecond)
	cb.State() // open->half-open via the lazy gate

	for i := 0; i < 3; i++ {
		cb.Do(func() error { return nil }) // half-open->closed
	}

	want := []string{"closed->open", "open->half-open", "half-open->closed"}
	if len(stateChanges) != len(want) {
		t.Fatalf("Expected %d state changes, got %d: %v", len(want), len(stateChanges), stateChanges)
	}
	for i := range want {
		if stateChanges[i] != want[i] {
			t.Errorf("State change %d: expected %s, got %s", i, want[i], stateChanges[i])
		}
	}
}

func TestCircuitBreaker_ResetWhileInFlight(t *testing.T) {
	cb := breaker.New("test", breaker.Config{
		FailureThreshold: 1,
	}, nil)

	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		cb.Do(func() error {
			<-release
			return errors.New("stale failure")
		})
		close(done)
	}()

	// Give the call time to pass the gate, then reset.
	time.Sleep(20 * time.Millisecond)
	cb.Reset()
	close(release)
	<-done

	// The stale outcome must not trip the freshly reset breaker.
	if state := cb.State(); state != breaker.StateClosed {
		t.Errorf("Expected StateClosed after reset, got %v", state)
	}
	if st := cb.Status(); st.FailureCount != 0 {
		t.Errorf("Expected failure count 0 after reset, got %d", st.FailureCount)
	}
}

func TestCircuitBreaker_PanicCountsAsFailure(t *testing.T) {
	cb := breaker.New("test", breaker.Config{
		FailureThreshold: 1,
	}, nil)

	func() {
		defer func() {
			if recover() == nil {
				t.Error("Expected panic to propagate")
			}
		}()
		cb.Do(func() error { panic("boom") })
	}()

	if state := cb.State(); state != breaker.StateOpen {
		t.Errorf("Expected StateOpen after panic, got %v", state)
	}
}

func BenchmarkCircuitBreaker_Closed(b *testing.B) {
	cb := breaker.New("bench", breaker.Config{}, nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cb.Do(func() error {
			return nil
		})
	}
}

func BenchmarkCircuitBreaker_Open(b *testing.B) {
	cb := breaker.New("bench", breaker.Config{FailureThreshold: 1}, nil)

	// Trip the circuit
	cb.Do(func() error { return errors.New("error") })

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cb.Do(func() error {
			return nil
		})
	}
}
