package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/answermarket/internal/domain"
)

// AnswerHandler serves answer reads, trading and king-fee claims.
type AnswerHandler struct {
	svc    MarketService
	logger *slog.Logger
}

// NewAnswerHandler creates an AnswerHandler.
func NewAnswerHandler(svc MarketService, logger *slog.Logger) *AnswerHandler {
	return &AnswerHandler{svc: svc, logger: logger.With(slog.String("handler", "answer"))}
}

// GetAnswer returns one answer.
// GET /api/answers/{id}
func (h *AnswerHandler) GetAnswer(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeOpError(w, r, h.logger, "get answer", err)
		return
	}
	a, err := h.svc.Answer(id)
	if err != nil {
		writeOpError(w, r, h.logger, "get answer", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// buyRequest amounts are decimal strings in whole units.
type buyRequest struct {
	Amount       string     `json:"amount"`
	MinSharesOut string     `json:"min_shares_out,omitempty"`
	Deadline     *time.Time `json:"deadline,omitempty"`
}

// Buy spends currency on shares of an answer.
// POST /api/answers/{id}/buy
func (h *AnswerHandler) Buy(w http.ResponseWriter, r *http.Request) {
	who, err := actor(r)
	if err != nil {
		writeOpError(w, r, h.logger, "buy", err)
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		writeOpError(w, r, h.logger, "buy", err)
		return
	}
	var req buyRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeOpError(w, r, h.logger, "buy", err)
		return
	}
	gross, err := domain.ParseAmount(req.Amount)
	if err != nil {
		writeOpError(w, r, h.logger, "buy", err)
		return
	}
	minOut, err := optionalShares(req.MinSharesOut)
	if err != nil {
		writeOpError(w, r, h.logger, "buy", err)
		return
	}
	trade, err := h.svc.Buy(r.Context(), who, id, gross, minOut, deadlineOr(req.Deadline))
	if err != nil {
		writeOpError(w, r, h.logger, "buy", err)
		return
	}
	writeJSON(w, http.StatusOK, trade)
}

type sellRequest struct {
	Shares       string     `json:"shares"`
	MinAmountOut string     `json:"min_amount_out,omitempty"`
	Deadline     *time.Time `json:"deadline,omitempty"`
}

// Sell returns shares of an answer for currency.
// POST /api/answers/{id}/sell
func (h *AnswerHandler) Sell(w http.ResponseWriter, r *http.Request) {
	who, err := actor(r)
	if err != nil {
		writeOpError(w, r, h.logger, "sell", err)
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		writeOpError(w, r, h.logger, "sell", err)
		return
	}
	var req sellRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeOpError(w, r, h.logger, "sell", err)
		return
	}
	shares, err := domain.ParseShares(req.Shares)
	if err != nil {
		writeOpError(w, r, h.logger, "sell", err)
		return
	}
	var minOut domain.Amount
	if req.MinAmountOut != "" {
		if minOut, err = domain.ParseAmount(req.MinAmountOut); err != nil {
			writeOpError(w, r, h.logger, "sell", err)
			return
		}
	}
	trade, err := h.svc.Sell(r.Context(), who, id, shares, minOut, deadlineOr(req.Deadline))
	if err != nil {
		writeOpError(w, r, h.logger, "sell", err)
		return
	}
	writeJSON(w, http.StatusOK, trade)
}

// QuoteBuy previews a buy without executing it.
// GET /api/answers/{id}/quote/buy?amount=100
func (h *AnswerHandler) QuoteBuy(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeOpError(w, r, h.logger, "quote buy", err)
		return
	}
	gross, err := domain.ParseAmount(r.URL.Query().Get("amount"))
	if err != nil {
		writeOpError(w, r, h.logger, "quote buy", err)
		return
	}
	q, err := h.svc.QuoteBuy(id, gross)
	if err != nil {
		writeOpError(w, r, h.logger, "quote buy", err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// QuoteSell previews a sell without executing it.
// GET /api/answers/{id}/quote/sell?shares=10
func (h *AnswerHandler) QuoteSell(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeOpError(w, r, h.logger, "quote sell", err)
		return
	}
	shares, err := domain.ParseShares(r.URL.Query().Get("shares"))
	if err != nil {
		writeOpError(w, r, h.logger, "quote sell", err)
		return
	}
	q, err := h.svc.QuoteSell(id, shares)
	if err != nil {
		writeOpError(w, r, h.logger, "quote sell", err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// ClaimKingFees pays out the caller's king-fee share for one answer.
// POST /api/answers/{id}/claim-king-fees
func (h *AnswerHandler) ClaimKingFees(w http.ResponseWriter, r *http.Request) {
	who, err := actor(r)
	if err != nil {
		writeOpError(w, r, h.logger, "claim king fees", err)
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		writeOpError(w, r, h.logger, "claim king fees", err)
		return
	}
	amt, err := h.svc.ClaimKingFees(r.Context(), who, id)
	if err != nil {
		writeOpError(w, r, h.logger, "claim king fees", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"claimed": amt, "claimed_display": amt.String()})
}

// ListTrades returns the persisted trade history of an answer.
// GET /api/answers/{id}/trades
func (h *AnswerHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeOpError(w, r, h.logger, "list trades", err)
		return
	}
	opts := parseListOpts(r)
	trades, err := h.svc.Trades(r.Context(), id, opts)
	if err != nil {
		writeOpError(w, r, h.logger, "list trades", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"trades": trades,
		"limit":  opts.Limit,
		"offset": opts.Offset,
	})
}

func optionalShares(s string) (domain.Shares, error) {
	if s == "" {
		return 0, nil
	}
	v, err := domain.ParseShares(s)
	if err != nil {
		return 0, fmt.Errorf("min_shares_out: %w", err)
	}
	return v, nil
}
