package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/melodio/api/internal/platform/httpx"
)

const readinessTimeout = 2 * time.Second

// ReadinessChecker reports whether the backing datastore is reachable.
type ReadinessChecker interface {
	Ping(ctx context.Context) error
}

// HealthHandlers exposes liveness and readiness endpoints.
type HealthHandlers struct {
	checker   ReadinessChecker
	startTime time.Time
}

// NewHealthHandlers constructs health handlers. A nil checker makes readiness
// unconditionally healthy, which suits tests and local runs without Firestore.
func NewHealthHandlers(checker ReadinessChecker) *HealthHandlers {
	return &HealthHandlers{
		checker:   checker,
		startTime: time.Now(),
	}
}

// Healthz reports process liveness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(r.Context(), w, http.StatusOK, "ok", map[string]any{
		"status":    "ok",
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Readyz reports whether the datastore is reachable.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checker != nil {
		pingCtx, cancel := context.WithTimeout(ctx, readinessTimeout)
		defer cancel()
		if err := h.checker.Ping(pingCtx); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("datastore unreachable", http.StatusServiceUnavailable, err.Error()))
			return
		}
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, "ready", map[string]any{"status": "ready"})
}
