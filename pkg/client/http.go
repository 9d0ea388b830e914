// Package client provides an HTTP client whose requests run through a named
// dependency's rate limiter and circuit breaker.
package client

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/breakwater-io/breakwater/pkg/guard"
)

// HTTPClient wraps http.Client with admission and health control for one
// named dependency.
type HTTPClient struct {
	client   *http.Client
	registry *guard.Registry
	name     string
}

// New creates an HTTP client guarded by the registry entries for name.
func New(registry *guard.Registry, name string) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		registry: registry,
		name:     name,
	}
}

// Get performs a GET request through the guard
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	return c.Do(ctx, http.MethodGet, url, nil)
}

// Post performs a POST request through the guard
func (c *HTTPClient) Post(ctx context.Context, url string, body io.Reader) (*http.Response, error) {
	return c.Do(ctx, http.MethodPost, url, body)
}

// Do performs an HTTP request. The limiter admits or rejects first, then the
// breaker applies its health gate; a transport error counts against the
// breaker, a rejection never reaches the network.
func (c *HTTPClient) Do(ctx context.Context, method, url string, body io.Reader) (*http.Response, error) {
	var resp *http.Response

	err := c.registry.Call(c.name, func() error {
		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return err
		}

		resp, err = c.client.Do(req)
		return err
	})

	return resp, err
}

// Name returns the guarded dependency name.
func (c *HTTPClient) Name() string {
	return c.name
}
