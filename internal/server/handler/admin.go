package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/answermarket/internal/domain"
)

// AdminHandler serves role-gated configuration endpoints. Authorization is
// enforced by the engine against the X-Actor roles; the API key only gates
// access to the HTTP surface.
type AdminHandler struct {
	svc    MarketService
	logger *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(svc MarketService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{svc: svc, logger: logger.With(slog.String("handler", "admin"))}
}

// GetParams returns the current market parameters and pause state.
// GET /api/admin/params
func (h *AdminHandler) GetParams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"params": h.svc.Params(),
		"paused": h.svc.Paused(),
	})
}

type setParamRequest struct {
	Value string `json:"value"`
}

// SetParam changes one parameter. Currency parameters take decimal whole
// units, the rest integers.
// PUT /api/admin/params/{name}
func (h *AdminHandler) SetParam(w http.ResponseWriter, r *http.Request) {
	who, err := actor(r)
	if err != nil {
		writeOpError(w, r, h.logger, "set param", err)
		return
	}
	var req setParamRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeOpError(w, r, h.logger, "set param", err)
		return
	}
	if err := h.svc.SetParam(r.Context(), who, r.PathValue("name"), req.Value); err != nil {
		writeOpError(w, r, h.logger, "set param", err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Params())
}

// Pause halts every state-changing operation.
// POST /api/admin/pause
func (h *AdminHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, "pause", h.svc.Pause)
}

// Unpause resumes operations.
// POST /api/admin/unpause
func (h *AdminHandler) Unpause(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, "unpause", h.svc.Unpause)
}

func (h *AdminHandler) toggle(w http.ResponseWriter, r *http.Request, op string,
	fn func(context.Context, common.Address) error) {
	who, err := actor(r)
	if err != nil {
		writeOpError(w, r, h.logger, op, err)
		return
	}
	if err := fn(r.Context(), who); err != nil {
		writeOpError(w, r, h.logger, op, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"paused": h.svc.Paused()})
}

type roleRequest struct {
	Role    domain.Role `json:"role"`
	Account string      `json:"account"`
}

// GrantRole adds an account to a role.
// POST /api/admin/roles/grant
func (h *AdminHandler) GrantRole(w http.ResponseWriter, r *http.Request) {
	h.role(w, r, "grant role", h.svc.GrantRole)
}

// RevokeRole removes an account from a role.
// POST /api/admin/roles/revoke
func (h *AdminHandler) RevokeRole(w http.ResponseWriter, r *http.Request) {
	h.role(w, r, "revoke role", h.svc.RevokeRole)
}

func (h *AdminHandler) role(w http.ResponseWriter, r *http.Request, op string,
	fn func(context.Context, common.Address, domain.Role, common.Address) error) {
	who, err := actor(r)
	if err != nil {
		writeOpError(w, r, h.logger, op, err)
		return
	}
	var req roleRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeOpError(w, r, h.logger, op, err)
		return
	}
	account, err := parseAddress(req.Account, fmt.Errorf("account %q: %w", req.Account, domain.ErrInvalidParam))
	if err != nil {
		writeOpError(w, r, h.logger, op, err)
		return
	}
	if err := fn(r.Context(), who, req.Role, account); err != nil {
		writeOpError(w, r, h.logger, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type treasuryRequest struct {
	Treasury string `json:"treasury"`
}

// SetTreasury changes the platform fee recipient.
// POST /api/admin/treasury
func (h *AdminHandler) SetTreasury(w http.ResponseWriter, r *http.Request) {
	who, err := actor(r)
	if err != nil {
		writeOpError(w, r, h.logger, "set treasury", err)
		return
	}
	var req treasuryRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeOpError(w, r, h.logger, "set treasury", err)
		return
	}
	treasury, err := parseAddress(req.Treasury, fmt.Errorf("treasury %q: %w", req.Treasury, domain.ErrInvalidParam))
	if err != nil {
		writeOpError(w, r, h.logger, "set treasury", err)
		return
	}
	if err := h.svc.SetTreasury(r.Context(), who, treasury); err != nil {
		writeOpError(w, r, h.logger, "set treasury", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type depositRequest struct {
	Holder string `json:"holder"`
	Amount string `json:"amount"`
}

// Deposit credits a holder's vault balance. Operator only.
// POST /api/admin/deposit
func (h *AdminHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	who, err := actor(r)
	if err != nil {
		writeOpError(w, r, h.logger, "deposit", err)
		return
	}
	var req depositRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeOpError(w, r, h.logger, "deposit", err)
		return
	}
	holder, err := parseAddress(req.Holder, fmt.Errorf("holder %q: %w", req.Holder, domain.ErrInvalidParam))
	if err != nil {
		writeOpError(w, r, h.logger, "deposit", err)
		return
	}
	amt, err := domain.ParseAmount(req.Amount)
	if err != nil {
		writeOpError(w, r, h.logger, "deposit", err)
		return
	}
	if err := h.svc.Deposit(r.Context(), who, holder, amt); err != nil {
		writeOpError(w, r, h.logger, "deposit", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type auditEntryResponse struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditLog lists audited admin operations, newest first.
// GET /api/admin/audit
func (h *AdminHandler) AuditLog(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	entries, err := h.svc.AuditLog(r.Context(), opts)
	if err != nil {
		writeOpError(w, r, h.logger, "audit log", err)
		return
	}
	out := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditEntryResponse(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": out,
		"limit":   opts.Limit,
		"offset":  opts.Offset,
	})
}
