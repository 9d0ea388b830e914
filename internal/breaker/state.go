package breaker

import "fmt"

// State represents the circuit breaker state
type State int

const (
	// StateClosed - Circuit is closed, calls pass through
	StateClosed State = iota

	// StateHalfOpen - Circuit is testing whether the dependency recovered
	StateHalfOpen

	// StateOpen - Circuit is open, calls fail fast
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return fmt.Sprintf("unknown state: %d", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler so status snapshots render
// the state name rather than its numeric value.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
