package handler

import (
	"net/http"
	"time"
)

// StatusHandler reports the run mode and uptime of the process.
type StatusHandler struct {
	svc       MarketService
	mode      string
	startedAt time.Time
}

// NewStatusHandler creates a StatusHandler for the given mode.
func NewStatusHandler(svc MarketService, mode string, startedAt time.Time) *StatusHandler {
	return &StatusHandler{svc: svc, mode: mode, startedAt: startedAt}
}

// GetStatus responds with the mode, uptime and ledger position.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	degraded := ""
	if err := h.svc.Degraded(); err != nil {
		degraded = err.Error()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":           h.mode,
		"started_at":     h.startedAt.UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"seq":            h.svc.Seq(),
		"paused":         h.svc.Paused(),
		"degraded":       degraded,
	})
}
