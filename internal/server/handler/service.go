package handler

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/answermarket/internal/domain"
	"github.com/alanyoungcy/answermarket/internal/market"
)

// MarketService defines the methods the handlers require from the service
// layer. It is declared locally so the handler package does not depend on
// the concrete service implementation.
type MarketService interface {
	CreateQuestion(ctx context.Context, actor common.Address, text, category string) (uint64, error)
	CreateQuestionWithAnswer(ctx context.Context, actor common.Address, text, category string, answer market.AnswerInput) (uint64, uint64, error)
	ProposeAnswer(ctx context.Context, actor common.Address, questionID uint64, answer market.AnswerInput) (uint64, error)
	TransferQuestionOwnership(ctx context.Context, actor common.Address, questionID uint64, newOwner common.Address) error
	Buy(ctx context.Context, actor common.Address, answerID uint64, gross domain.Amount, minSharesOut domain.Shares, deadline time.Time) (domain.Trade, error)
	Sell(ctx context.Context, actor common.Address, answerID uint64, shares domain.Shares, minAmountOut domain.Amount, deadline time.Time) (domain.Trade, error)
	ClaimCreatorFees(ctx context.Context, actor common.Address) (domain.Amount, error)
	ClaimKingFees(ctx context.Context, actor common.Address, answerID uint64) (domain.Amount, error)
	Withdraw(ctx context.Context, actor common.Address, amount domain.Amount) error
	Deposit(ctx context.Context, actor, holder common.Address, amount domain.Amount) error
	SetParam(ctx context.Context, actor common.Address, name, value string) error
	SetTreasury(ctx context.Context, actor, treasury common.Address) error
	Pause(ctx context.Context, actor common.Address) error
	Unpause(ctx context.Context, actor common.Address) error
	GrantRole(ctx context.Context, actor common.Address, role domain.Role, account common.Address) error
	RevokeRole(ctx context.Context, actor common.Address, role domain.Role, account common.Address) error

	QuestionView(ctx context.Context, id uint64) (domain.QuestionView, error)
	Questions(opts domain.ListOpts) []domain.Question
	Answer(id uint64) (domain.Answer, error)
	AnswersOf(questionID uint64) ([]domain.Answer, error)
	MaxAnswers(questionID uint64) (int, error)
	AccountView(account common.Address) domain.AccountView
	PendingKingFees(holder common.Address) domain.Amount
	QuoteBuy(answerID uint64, gross domain.Amount) (market.Quote, error)
	QuoteSell(answerID uint64, shares domain.Shares) (market.Quote, error)
	Params() domain.Params
	Paused() bool
	Seq() uint64
	Degraded() error
	Events(ctx context.Context, opts domain.ListOpts) ([]domain.Event, error)
	Trades(ctx context.Context, answerID uint64, opts domain.ListOpts) ([]domain.Trade, error)
	AuditLog(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error)
}
