// Package status exposes read-only HTTP endpoints for operational dashboards:
// breaker and limiter status snapshots, a liveness probe, and the single
// administrative mutation path (breaker reset).
package status

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/breakwater-io/breakwater/pkg/guard"
)

// Pre-serialized liveness response avoids json.Encoder allocation.
var livenessBody = []byte(`{"status":"ok"}` + "\n")

// Handler provides the status endpoints.
type Handler struct {
	registry *guard.Registry
	logger   *zap.Logger
}

// New creates a status Handler backed by the given registry.
func New(registry *guard.Registry, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{registry: registry, logger: logger}
}

// RegisterRoutes adds the status routes to the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.liveness)
	mux.HandleFunc("GET /status/breakers", h.breakers)
	mux.HandleFunc("GET /status/limiters", h.limiters)
	mux.HandleFunc("POST /status/breakers/{name}/reset", h.resetBreaker)
}

func (h *Handler) liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(livenessBody)
}

// breakers reports every breaker's snapshot keyed by name. Reads are
// side-effect free apart from the lazy recovery-gate evaluation.
func (h *Handler) breakers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"breakers": h.registry.BreakerStatus(),
	})
}

// limiters reports every limiter's snapshot keyed by name. Lazy refill and
// prune bookkeeping runs as part of the snapshot.
func (h *Handler) limiters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"limiters": h.registry.LimiterStatus(),
	})
}

// resetBreaker forces the named breaker back to closed with zeroed counters.
func (h *Handler) resetBreaker(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	if !h.registry.ResetBreaker(name) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "no circuit breaker named " + name,
		})
		return
	}

	h.logger.Info("circuit breaker reset via status API", zap.String("name", name))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reset": name,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
