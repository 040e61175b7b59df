package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	svc    MarketService
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(svc MarketService, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{svc: svc, logger: logger}
}

// HealthCheck reports liveness, the ledger sequence and the pause flag. A
// degraded service answers 503 so load balancers stop routing writes to it.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":    "ok",
		"seq":       h.svc.Seq(),
		"paused":    h.svc.Paused(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if err := h.svc.Degraded(); err != nil {
		body["status"] = "degraded"
		body["error"] = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	writeJSON(w, http.StatusOK, body)
}
