package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/answermarket/internal/domain"
	"github.com/alanyoungcy/answermarket/internal/market"
)

// QuestionHandler serves question and answer-proposal endpoints.
type QuestionHandler struct {
	svc    MarketService
	logger *slog.Logger
}

// NewQuestionHandler creates a QuestionHandler.
func NewQuestionHandler(svc MarketService, logger *slog.Logger) *QuestionHandler {
	return &QuestionHandler{svc: svc, logger: logger.With(slog.String("handler", "question"))}
}

type createQuestionRequest struct {
	Text     string              `json:"text"`
	Category string              `json:"category"`
	Answer   *market.AnswerInput `json:"answer,omitempty"`
}

// CreateQuestion posts a question owned by the caller.
// POST /api/questions
func (h *QuestionHandler) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	who, err := actor(r)
	if err != nil {
		writeOpError(w, r, h.logger, "create question", err)
		return
	}
	var req createQuestionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeOpError(w, r, h.logger, "create question", err)
		return
	}
	id, err := h.svc.CreateQuestion(r.Context(), who, req.Text, req.Category)
	if err != nil {
		writeOpError(w, r, h.logger, "create question", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"question_id": id})
}

// CreateQuestionWithAnswer posts a question together with its first answer.
// POST /api/questions/with-answer
func (h *QuestionHandler) CreateQuestionWithAnswer(w http.ResponseWriter, r *http.Request) {
	who, err := actor(r)
	if err != nil {
		writeOpError(w, r, h.logger, "create question", err)
		return
	}
	var req createQuestionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeOpError(w, r, h.logger, "create question", err)
		return
	}
	if req.Answer == nil {
		writeOpError(w, r, h.logger, "create question", fmt.Errorf("answer is required: %w", domain.ErrInvalidParam))
		return
	}
	qid, aid, err := h.svc.CreateQuestionWithAnswer(r.Context(), who, req.Text, req.Category, *req.Answer)
	if err != nil {
		writeOpError(w, r, h.logger, "create question", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"question_id": qid, "answer_id": aid})
}

// ListQuestions returns questions in id order.
// GET /api/questions?limit=50&offset=0
func (h *QuestionHandler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"questions": h.svc.Questions(opts),
		"limit":     opts.Limit,
		"offset":    opts.Offset,
	})
}

// GetQuestion returns a question with its answers and current limit.
// GET /api/questions/{id}
func (h *QuestionHandler) GetQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeOpError(w, r, h.logger, "get question", err)
		return
	}
	view, err := h.svc.QuestionView(r.Context(), id)
	if err != nil {
		writeOpError(w, r, h.logger, "get question", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ListAnswers returns the answers of a question.
// GET /api/questions/{id}/answers
func (h *QuestionHandler) ListAnswers(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeOpError(w, r, h.logger, "list answers", err)
		return
	}
	answers, err := h.svc.AnswersOf(id)
	if err != nil {
		writeOpError(w, r, h.logger, "list answers", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"answers": answers})
}

// AnswerLimit returns how many answers the question may hold right now.
// GET /api/questions/{id}/limit
func (h *QuestionHandler) AnswerLimit(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeOpError(w, r, h.logger, "answer limit", err)
		return
	}
	limit, err := h.svc.MaxAnswers(id)
	if err != nil {
		writeOpError(w, r, h.logger, "answer limit", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"question_id": id, "max_answers": limit})
}

// ProposeAnswer adds an answer to a question and charges the stake.
// POST /api/questions/{id}/answers
func (h *QuestionHandler) ProposeAnswer(w http.ResponseWriter, r *http.Request) {
	who, err := actor(r)
	if err != nil {
		writeOpError(w, r, h.logger, "propose answer", err)
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		writeOpError(w, r, h.logger, "propose answer", err)
		return
	}
	var req market.AnswerInput
	if err := decodeBody(w, r, &req); err != nil {
		writeOpError(w, r, h.logger, "propose answer", err)
		return
	}
	aid, err := h.svc.ProposeAnswer(r.Context(), who, id, req)
	if err != nil {
		writeOpError(w, r, h.logger, "propose answer", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"answer_id": aid})
}

type transferOwnerRequest struct {
	NewOwner string `json:"new_owner"`
}

// TransferOwnership hands a question to a new owner.
// POST /api/questions/{id}/owner
func (h *QuestionHandler) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	who, err := actor(r)
	if err != nil {
		writeOpError(w, r, h.logger, "transfer ownership", err)
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		writeOpError(w, r, h.logger, "transfer ownership", err)
		return
	}
	var req transferOwnerRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeOpError(w, r, h.logger, "transfer ownership", err)
		return
	}
	owner, err := parseAddress(req.NewOwner, fmt.Errorf("new_owner %q: %w", req.NewOwner, domain.ErrInvalidParam))
	if err != nil {
		writeOpError(w, r, h.logger, "transfer ownership", err)
		return
	}
	if err := h.svc.TransferQuestionOwnership(r.Context(), who, id, owner); err != nil {
		writeOpError(w, r, h.logger, "transfer ownership", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
