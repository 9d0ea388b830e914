// Package middleware adapts the protection primitives to HTTP and gRPC call
// sites. Rejections surface as transport-level responses: 429 with
// Retry-After for exhausted quotas, 503 for open circuits.
package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/breakwater-io/breakwater/internal/breaker"
	"github.com/breakwater-io/breakwater/internal/ratelimit"
	"github.com/breakwater-io/breakwater/pkg/guard"
)

// HTTPConfig configures the HTTP middleware and transport.
type HTTPConfig struct {
	// Registry holding the breaker/limiter for Name.
	Registry *guard.Registry

	// Name of the guarded dependency.
	Name string

	// IsSuccessful determines if a response status is considered successful.
	// Defaults to: 2xx and 3xx status codes.
	IsSuccessful func(status int) bool
}

// Handler wraps an http.Handler so every request runs through the named
// dependency's limiter and breaker.
func Handler(config HTTPConfig, next http.Handler) http.Handler {
	if config.IsSuccessful == nil {
		config.IsSuccessful = defaultIsSuccessful
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		err := config.Registry.Call(config.Name, func() error {
			next.ServeHTTP(wrapped, r)

			if !config.IsSuccessful(wrapped.statusCode) {
				return &httpError{statusCode: wrapped.statusCode}
			}
			return nil
		})

		if err != nil && !wrapped.written {
			writeRejection(w, err)
		}
	})
}

// Transport wraps an http.RoundTripper so outgoing requests run through the
// named dependency's limiter and breaker. 5xx responses count as failures.
type Transport struct {
	base     http.RoundTripper
	registry *guard.Registry
	name     string
}

// NewTransport creates a guarded RoundTripper. base defaults to
// http.DefaultTransport.
func NewTransport(base http.RoundTripper, registry *guard.Registry, name string) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{
		base:     base,
		registry: registry,
		name:     name,
	}
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	var resp *http.Response

	err := t.registry.Call(t.name, func() error {
		var err error
		resp, err = t.base.RoundTrip(req)
		if err != nil {
			return err
		}

		if resp.StatusCode >= 500 {
			return &httpError{statusCode: resp.StatusCode}
		}
		return nil
	})

	return resp, err
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// httpError represents a failure-class HTTP response
type httpError struct {
	statusCode int
}

func (e *httpError) Error() string {
	return http.StatusText(e.statusCode)
}

// writeRejection renders a breaker or limiter rejection. Operation errors
// reach here only when the handler wrote nothing, in which case a 502 is the
// closest honest answer.
func writeRejection(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	var limitErr *ratelimit.LimitError
	var openErr *breaker.OpenError

	switch {
	case errors.As(err, &limitErr):
		retryAfter := int(limitErr.RetryAfter()/time.Second) + 1
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limit exceeded","retry_after":` + strconv.Itoa(retryAfter) + `}` + "\n"))

	case errors.As(err, &openErr):
		retryAfter := int(openErr.Timeout / time.Second)
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"service temporarily unavailable","retry_after":` + strconv.Itoa(retryAfter) + `}` + "\n"))

	default:
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"upstream failure"}` + "\n"))
	}
}

// defaultIsSuccessful considers 2xx and 3xx status codes as successful
func defaultIsSuccessful(status int) bool {
	return status >= 200 && status < 400
}
