package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/answermarket/internal/domain"
	"github.com/alanyoungcy/answermarket/internal/market"
)

// QuestionView returns a question with its answers, served from the cache
// when one is configured. Misses are filled under the write lock so a fill
// cannot overwrite a newer invalidation.
func (s *MarketService) QuestionView(ctx context.Context, id uint64) (domain.QuestionView, error) {
	if s.deps.Cache == nil {
		return s.engine.QuestionView(id)
	}
	view, err := s.deps.Cache.Get(ctx, id)
	if err == nil {
		return view, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		s.sideFailure(ctx, "cache", "get question", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	view, err = s.engine.QuestionView(id)
	if err != nil {
		return domain.QuestionView{}, err
	}
	if err := s.deps.Cache.Set(ctx, view); err != nil {
		s.sideFailure(ctx, "cache", "set question", err)
	}
	return view, nil
}

// Questions lists questions in id order.
func (s *MarketService) Questions(opts domain.ListOpts) []domain.Question {
	return s.engine.Questions(opts)
}

// Answer returns one answer.
func (s *MarketService) Answer(id uint64) (domain.Answer, error) {
	return s.engine.Answer(id)
}

// AnswersOf lists the answers of a question.
func (s *MarketService) AnswersOf(questionID uint64) ([]domain.Answer, error) {
	return s.engine.AnswersOf(questionID)
}

// MaxAnswers returns the current answer limit of a question.
func (s *MarketService) MaxAnswers(questionID uint64) (int, error) {
	return s.engine.MaxAnswers(questionID)
}

// AccountView returns the balances, positions and roles of an address.
func (s *MarketService) AccountView(account common.Address) domain.AccountView {
	return s.engine.AccountView(account)
}

// PendingKingFees sums the unclaimed king fees of holder.
func (s *MarketService) PendingKingFees(holder common.Address) domain.Amount {
	return s.engine.PendingKingFees(holder)
}

// QuoteBuy prices a buy without executing it.
func (s *MarketService) QuoteBuy(answerID uint64, gross domain.Amount) (market.Quote, error) {
	return s.engine.QuoteBuy(answerID, gross)
}

// QuoteSell prices a sell without executing it.
func (s *MarketService) QuoteSell(answerID uint64, shares domain.Shares) (market.Quote, error) {
	return s.engine.QuoteSell(answerID, shares)
}

// Params returns the current parameters.
func (s *MarketService) Params() domain.Params {
	return s.engine.Params()
}

// Paused reports whether user operations are halted.
func (s *MarketService) Paused() bool {
	return s.engine.Paused()
}

// Seq returns the sequence number of the last committed operation.
func (s *MarketService) Seq() uint64 {
	return s.engine.Seq()
}

// Snapshot copies the full ledger state stamped with the service clock.
func (s *MarketService) Snapshot() domain.Snapshot {
	return s.engine.Snapshot(s.now().UTC())
}

// Events lists persisted events newest first.
func (s *MarketService) Events(ctx context.Context, opts domain.ListOpts) ([]domain.Event, error) {
	if s.deps.Events == nil {
		return nil, fmt.Errorf("market_service: event log: %w", domain.ErrUnavailable)
	}
	return s.deps.Events.ListEvents(ctx, opts)
}

// Trades lists the persisted trades of an answer newest first.
func (s *MarketService) Trades(ctx context.Context, answerID uint64, opts domain.ListOpts) ([]domain.Trade, error) {
	if s.deps.Events == nil {
		return nil, fmt.Errorf("market_service: trade log: %w", domain.ErrUnavailable)
	}
	if _, err := s.engine.Answer(answerID); err != nil {
		return nil, err
	}
	return s.deps.Events.ListTrades(ctx, answerID, opts)
}

// AuditLog lists audit entries newest first.
func (s *MarketService) AuditLog(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	if s.deps.Audit == nil {
		return nil, fmt.Errorf("market_service: audit log: %w", domain.ErrUnavailable)
	}
	return s.deps.Audit.List(ctx, opts)
}
