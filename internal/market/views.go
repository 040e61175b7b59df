package market

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/answermarket/internal/domain"
)

// Quote is a fee-inclusive price preview.
type Quote struct {
	Split  domain.FeeSplit `json:"split"`
	Shares domain.Shares   `json:"shares"`
}

// Question returns one question.
func (e *Engine) Question(id uint64) (domain.Question, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	q, ok := e.st.questions[id]
	if !ok {
		return domain.Question{}, fmt.Errorf("market: question %d: %w", id, domain.ErrNotFound)
	}
	return q, nil
}

// Questions returns questions in id order, newest last.
func (e *Engine) Questions(opts domain.ListOpts) []domain.Question {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]domain.Question, 0, len(e.st.questions))
	for _, q := range e.st.questions {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, opts)
}

// Answer returns one answer.
func (e *Engine) Answer(id uint64) (domain.Answer, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	a, ok := e.st.answers[id]
	if !ok {
		return domain.Answer{}, fmt.Errorf("market: answer %d: %w", id, domain.ErrNotFound)
	}
	return a, nil
}

// AnswersOf returns the answers of a question in proposal order.
func (e *Engine) AnswersOf(questionID uint64) ([]domain.Answer, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if _, ok := e.st.questions[questionID]; !ok {
		return nil, fmt.Errorf("market: question %d: %w", questionID, domain.ErrNotFound)
	}
	return e.answersOf(questionID), nil
}

func (e *Engine) answersOf(questionID uint64) []domain.Answer {
	ids := e.st.answersByQuestion[questionID]
	out := make([]domain.Answer, 0, len(ids))
	for _, id := range ids {
		out = append(out, e.st.answers[id])
	}
	return out
}

// QuestionView returns a question with its answers and current limit.
func (e *Engine) QuestionView(questionID uint64) (domain.QuestionView, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	q, ok := e.st.questions[questionID]
	if !ok {
		return domain.QuestionView{}, fmt.Errorf("market: question %d: %w", questionID, domain.ErrNotFound)
	}
	return domain.QuestionView{
		Question:   q,
		Answers:    e.answersOf(questionID),
		MaxAnswers: MaxAnswers(e.st.params, q.TotalVolume),
	}, nil
}

// MaxAnswers returns the current answer limit of a question.
func (e *Engine) MaxAnswers(questionID uint64) (int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	q, ok := e.st.questions[questionID]
	if !ok {
		return 0, fmt.Errorf("market: question %d: %w", questionID, domain.ErrNotFound)
	}
	return MaxAnswers(e.st.params, q.TotalVolume), nil
}

// Position returns holder's position in an answer; a holder without one
// gets an empty position.
func (e *Engine) Position(answerID uint64, holder common.Address) domain.Position {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.st.position(answerID, holder)
}

// PositionsOf returns every non-empty position of holder by answer id.
func (e *Engine) PositionsOf(holder common.Address) []domain.Position {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.positionsOf(holder)
}

func (e *Engine) positionsOf(holder common.Address) []domain.Position {
	var out []domain.Position
	for key, p := range e.st.positions {
		if key.Holder == holder && !p.Empty() {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AnswerID < out[j].AnswerID })
	return out
}

// Balance returns an account's free vault balance.
func (e *Engine) Balance(account common.Address) domain.Amount {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.st.balances[account]
}

// AccumulatedFees returns the creator fees claimable by account.
func (e *Engine) AccumulatedFees(account common.Address) domain.Amount {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.st.accumulated[account]
}

// PendingKingFees returns the king fees claimable by holder across all
// answers.
func (e *Engine) PendingKingFees(holder common.Address) domain.Amount {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var total domain.Amount
	for _, p := range e.positionsOf(holder) {
		total += p.PendingKingFees
	}
	return total
}

// AccountView returns everything the ledger knows about one address.
func (e *Engine) AccountView(account common.Address) domain.AccountView {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return domain.AccountView{
		Account:         account,
		Balance:         e.st.balances[account],
		AccumulatedFees: e.st.accumulated[account],
		Positions:       e.positionsOf(account),
		Roles:           e.st.rolesOf(account),
	}
}

// QuoteBuy previews a buy of gross on an answer.
func (e *Engine) QuoteBuy(answerID uint64, gross domain.Amount) (Quote, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	a, ok := e.st.answers[answerID]
	if !ok {
		return Quote{}, fmt.Errorf("market: answer %d: %w", answerID, domain.ErrNotFound)
	}
	split, err := SplitFees(e.st.params, gross)
	if err != nil {
		return Quote{}, err
	}
	minted, err := QuoteBuy(e.st.params, poolOf(a), split.Net)
	if err != nil {
		return Quote{}, err
	}
	return Quote{Split: split, Shares: minted}, nil
}

// QuoteSell previews a sale of shares of an answer.
func (e *Engine) QuoteSell(answerID uint64, shares domain.Shares) (Quote, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	a, ok := e.st.answers[answerID]
	if !ok {
		return Quote{}, fmt.Errorf("market: answer %d: %w", answerID, domain.ErrNotFound)
	}
	gross, err := QuoteSell(poolOf(a), shares)
	if err != nil {
		return Quote{}, err
	}
	split, err := SplitFees(e.st.params, gross)
	if err != nil {
		return Quote{}, err
	}
	return Quote{Split: split, Shares: shares}, nil
}

// Params returns the current configuration.
func (e *Engine) Params() domain.Params {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.st.params
}

// Paused reports whether user operations are blocked.
func (e *Engine) Paused() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.st.paused
}

// HasRole reports whether account holds role.
func (e *Engine) HasRole(role domain.Role, account common.Address) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.st.hasRole(role, account)
}

func page[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return nil
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}
