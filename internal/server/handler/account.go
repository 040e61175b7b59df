package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/answermarket/internal/domain"
)

// AccountHandler serves balances, positions and fee claims.
type AccountHandler struct {
	svc    MarketService
	logger *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(svc MarketService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{svc: svc, logger: logger.With(slog.String("handler", "account"))}
}

type accountResponse struct {
	domain.AccountView
	PendingKingFees domain.Amount `json:"pending_king_fees"`
	BalanceDisplay  string        `json:"balance_display"`
}

// GetAccount returns the balance, accrued fees and positions of an address.
// GET /api/accounts/{address}
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("address")
	addr, err := parseAddress(raw, fmt.Errorf("address %q: %w", raw, domain.ErrInvalidParam))
	if err != nil {
		writeOpError(w, r, h.logger, "get account", err)
		return
	}
	view := h.svc.AccountView(addr)
	writeJSON(w, http.StatusOK, accountResponse{
		AccountView:     view,
		PendingKingFees: h.svc.PendingKingFees(addr),
		BalanceDisplay:  view.Balance.String(),
	})
}

// ClaimCreatorFees pays out the caller's accumulated creator fees.
// POST /api/fees/claim
func (h *AccountHandler) ClaimCreatorFees(w http.ResponseWriter, r *http.Request) {
	who, err := actor(r)
	if err != nil {
		writeOpError(w, r, h.logger, "claim fees", err)
		return
	}
	amt, err := h.svc.ClaimCreatorFees(r.Context(), who)
	if err != nil {
		writeOpError(w, r, h.logger, "claim fees", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"claimed": amt, "claimed_display": amt.String()})
}

type amountRequest struct {
	Amount string `json:"amount"`
}

// Withdraw moves currency out of the caller's vault balance.
// POST /api/accounts/withdraw
func (h *AccountHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	who, err := actor(r)
	if err != nil {
		writeOpError(w, r, h.logger, "withdraw", err)
		return
	}
	var req amountRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeOpError(w, r, h.logger, "withdraw", err)
		return
	}
	amt, err := domain.ParseAmount(req.Amount)
	if err != nil {
		writeOpError(w, r, h.logger, "withdraw", err)
		return
	}
	if err := h.svc.Withdraw(r.Context(), who, amt); err != nil {
		writeOpError(w, r, h.logger, "withdraw", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListEvents returns the persisted event log, newest first.
// GET /api/events
func (h *AccountHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	events, err := h.svc.Events(r.Context(), opts)
	if err != nil {
		writeOpError(w, r, h.logger, "list events", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"limit":  opts.Limit,
		"offset": opts.Offset,
	})
}
