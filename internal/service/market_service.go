// Package service wraps the market engine with the process around it:
// clock and tick stamping, write-through persistence, event fan-out,
// auditing, caching, notifications and checkpoints.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/answermarket/internal/domain"
	"github.com/alanyoungcy/answermarket/internal/market"
	"github.com/alanyoungcy/answermarket/internal/metrics"
)

// Bus channel names.
const (
	EventsChannel         = "market:events"
	EventsStream          = "stream:market-events"
	questionChannelPrefix = "market:question:"
)

// QuestionChannel is the per-question event channel.
func QuestionChannel(id uint64) string {
	return questionChannelPrefix + strconv.FormatUint(id, 10)
}

// persistTimeout bounds the write-through of one change set. It is detached
// from the request context so a dropped client cannot abort it.
const persistTimeout = 10 * time.Second

// Notifier delivers operator alerts.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Deps are the optional collaborators of a MarketService. Nil fields are
// skipped.
type Deps struct {
	Ledger   domain.LedgerStore
	Events   domain.EventStore
	Audit    domain.AuditStore
	Bus      domain.SignalBus
	Cache    domain.QuestionCache
	Notifier Notifier
	Metrics  *metrics.Metrics
}

// MarketService is the single entry point for market operations.
type MarketService struct {
	engine *market.Engine
	deps   Deps
	logger *slog.Logger

	now          func() time.Time
	tickInterval time.Duration

	// mu orders engine commits with their persistence so change sets reach
	// the ledger store in sequence.
	mu       sync.Mutex
	degraded error
}

// Option configures a MarketService.
type Option func(*MarketService)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *MarketService) { s.now = now }
}

// WithTickInterval sets the width of an ordering tick.
func WithTickInterval(d time.Duration) Option {
	return func(s *MarketService) {
		if d > 0 {
			s.tickInterval = d
		}
	}
}

// NewMarketService creates a MarketService over engine.
func NewMarketService(engine *market.Engine, deps Deps, logger *slog.Logger, opts ...Option) *MarketService {
	s := &MarketService{
		engine:       engine,
		deps:         deps,
		logger:       logger.With(slog.String("component", "market_service")),
		now:          time.Now,
		tickInterval: time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	deps.Metrics.SetLedgerSeq(engine.Seq())
	return s
}

// Degraded returns the persistence failure that stopped writes, or nil.
func (s *MarketService) Degraded() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

func (s *MarketService) tick(now time.Time) uint64 {
	return uint64(now.UnixNano() / int64(s.tickInterval))
}

// run executes one engine operation and, when it commits, carries the
// change set through persistence and the side channels.
func (s *MarketService) run(ctx context.Context, op string, actor common.Address, audit map[string]any,
	fn func(call market.Call) (domain.ChangeSet, error)) error {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.degraded != nil {
		return fmt.Errorf("market_service: %s: %w", op, domain.ErrUnavailable)
	}

	now := s.now().UTC()
	cs, err := fn(market.Call{Actor: actor, Now: now, Tick: s.tick(now)})
	if err == nil {
		err = s.persist(ctx, op, cs)
	}
	s.deps.Metrics.ObserveOperation(op, err, time.Since(start))
	if err != nil {
		return err
	}

	s.deps.Metrics.ObserveChangeSet(cs)
	s.publish(ctx, cs)
	s.invalidate(ctx, cs)
	if audit != nil {
		s.audit(ctx, op, actor, cs.Seq, audit)
	}
	s.notify(cs)

	s.logger.DebugContext(ctx, "market_service: committed",
		slog.String("op", op),
		slog.Uint64("seq", cs.Seq),
		slog.String("actor", actor.Hex()),
		slog.Int("events", len(cs.Events)),
	)
	return nil
}

// persist writes cs through to the ledger store. A failure leaves memory
// ahead of storage, so the service stops accepting writes until restart.
func (s *MarketService) persist(ctx context.Context, op string, cs domain.ChangeSet) error {
	if s.deps.Ledger == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := s.deps.Ledger.Apply(ctx, cs); err != nil {
		s.degraded = fmt.Errorf("persist seq %d: %w", cs.Seq, err)
		s.deps.Metrics.SideChannelFailed("postgres")
		s.logger.ErrorContext(ctx, "market_service: persistence failed, writes disabled",
			slog.String("op", op),
			slog.Uint64("seq", cs.Seq),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("market_service: %s: %w", op, errors.Join(domain.ErrUnavailable, err))
	}
	return nil
}

func (s *MarketService) publish(ctx context.Context, cs domain.ChangeSet) {
	if s.deps.Bus == nil {
		return
	}
	for _, ev := range cs.Events {
		data, err := EncodeEvent(ev)
		if err != nil {
			s.logger.WarnContext(ctx, "market_service: encode event failed",
				slog.String("type", string(ev.Type)),
				slog.String("error", err.Error()),
			)
			continue
		}
		if err := s.deps.Bus.Publish(ctx, EventsChannel, data); err != nil {
			s.sideFailure(ctx, "bus", "publish event", err)
		}
		if ev.QuestionID != 0 {
			if err := s.deps.Bus.Publish(ctx, QuestionChannel(ev.QuestionID), data); err != nil {
				s.sideFailure(ctx, "bus", "publish question event", err)
			}
		}

		raw, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		if err := s.deps.Bus.StreamAppend(ctx, EventsStream, raw); err != nil {
			s.sideFailure(ctx, "bus", "stream append", err)
		}
	}
}

func (s *MarketService) invalidate(ctx context.Context, cs domain.ChangeSet) {
	if s.deps.Cache == nil {
		return
	}
	touched := make(map[uint64]struct{})
	for _, q := range cs.Questions {
		touched[q.ID] = struct{}{}
	}
	for _, a := range cs.Answers {
		touched[a.QuestionID] = struct{}{}
	}
	if cs.Params != nil {
		// Limits of every question depend on the params.
		for _, q := range s.engine.Questions(domain.ListOpts{}) {
			touched[q.ID] = struct{}{}
		}
	}
	for id := range touched {
		if err := s.deps.Cache.Invalidate(ctx, id); err != nil {
			s.sideFailure(ctx, "cache", "invalidate question", err)
		}
	}
}

func (s *MarketService) audit(ctx context.Context, op string, actor common.Address, seq uint64, detail map[string]any) {
	if s.deps.Audit == nil {
		return
	}
	detail["actor"] = actor.Hex()
	detail["seq"] = seq
	if err := s.deps.Audit.Log(ctx, "admin."+op, detail); err != nil {
		s.sideFailure(ctx, "audit", "audit log", err)
	}
}

// notify alerts operators about leadership changes and graduations. Senders
// make outbound HTTP calls, so delivery runs in the background.
func (s *MarketService) notify(cs domain.ChangeSet) {
	if s.deps.Notifier == nil {
		return
	}
	for _, ev := range cs.Events {
		title, message, ok := describe(ev)
		if !ok {
			continue
		}
		go func(ev domain.Event) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := s.deps.Notifier.Notify(ctx, string(ev.Type), title, message); err != nil {
				s.sideFailure(ctx, "notify", "notify", err)
			}
		}(ev)
	}
}

func describe(ev domain.Event) (title, message string, ok bool) {
	switch ev.Type {
	case domain.EventKingChanged:
		msg := fmt.Sprintf("Question #%d: answer #%d now leads", ev.QuestionID, ev.AnswerID)
		if ev.PreviousAnswerID != 0 {
			msg += fmt.Sprintf(", overtaking #%d", ev.PreviousAnswerID)
		}
		return "King changed", msg + " with a pool of " + ev.Amount.String(), true
	case domain.EventAnswerGraduated:
		return "Answer graduated", fmt.Sprintf("Question #%d: answer #%d graduated at a pool of %s",
			ev.QuestionID, ev.AnswerID, ev.Amount.String()), true
	}
	return "", "", false
}

func (s *MarketService) sideFailure(ctx context.Context, channel, what string, err error) {
	s.deps.Metrics.SideChannelFailed(channel)
	s.logger.WarnContext(ctx, "market_service: "+what+" failed",
		slog.String("channel", channel),
		slog.String("error", err.Error()),
	)
}

// CreateQuestion posts a question owned by actor.
func (s *MarketService) CreateQuestion(ctx context.Context, actor common.Address, text, category string) (uint64, error) {
	var id uint64
	err := s.run(ctx, "create_question", actor, nil, func(call market.Call) (cs domain.ChangeSet, err error) {
		id, cs, err = s.engine.CreateQuestion(call, text, category)
		return cs, err
	})
	return id, err
}

// CreateQuestionWithAnswer posts a question and its first answer.
func (s *MarketService) CreateQuestionWithAnswer(ctx context.Context, actor common.Address, text, category string, answer market.AnswerInput) (uint64, uint64, error) {
	var qid, aid uint64
	err := s.run(ctx, "create_question_with_answer", actor, nil, func(call market.Call) (cs domain.ChangeSet, err error) {
		qid, aid, cs, err = s.engine.CreateQuestionWithAnswer(call, text, category, answer)
		return cs, err
	})
	return qid, aid, err
}

// ProposeAnswer adds an answer to a question, staking the proposal stake.
func (s *MarketService) ProposeAnswer(ctx context.Context, actor common.Address, questionID uint64, answer market.AnswerInput) (uint64, error) {
	var id uint64
	err := s.run(ctx, "propose_answer", actor, nil, func(call market.Call) (cs domain.ChangeSet, err error) {
		id, cs, err = s.engine.ProposeAnswer(call, questionID, answer)
		return cs, err
	})
	return id, err
}

// TransferQuestionOwnership hands the creator-fee rights to newOwner.
func (s *MarketService) TransferQuestionOwnership(ctx context.Context, actor common.Address, questionID uint64, newOwner common.Address) error {
	return s.run(ctx, "transfer_ownership", actor, nil, func(call market.Call) (domain.ChangeSet, error) {
		return s.engine.TransferQuestionOwnership(call, questionID, newOwner)
	})
}

// Buy spends gross on shares of an answer.
func (s *MarketService) Buy(ctx context.Context, actor common.Address, answerID uint64, gross domain.Amount, minSharesOut domain.Shares, deadline time.Time) (domain.Trade, error) {
	var trade domain.Trade
	err := s.run(ctx, "buy", actor, nil, func(call market.Call) (cs domain.ChangeSet, err error) {
		trade, cs, err = s.engine.Buy(call, answerID, gross, minSharesOut, deadline)
		return cs, err
	})
	return trade, err
}

// Sell redeems shares of an answer.
func (s *MarketService) Sell(ctx context.Context, actor common.Address, answerID uint64, shares domain.Shares, minAmountOut domain.Amount, deadline time.Time) (domain.Trade, error) {
	var trade domain.Trade
	err := s.run(ctx, "sell", actor, nil, func(call market.Call) (cs domain.ChangeSet, err error) {
		trade, cs, err = s.engine.Sell(call, answerID, shares, minAmountOut, deadline)
		return cs, err
	})
	return trade, err
}

// ClaimCreatorFees pays out actor's accumulated creator fees.
func (s *MarketService) ClaimCreatorFees(ctx context.Context, actor common.Address) (domain.Amount, error) {
	var amt domain.Amount
	err := s.run(ctx, "claim_creator_fees", actor, nil, func(call market.Call) (cs domain.ChangeSet, err error) {
		amt, cs, err = s.engine.ClaimCreatorFees(call)
		return cs, err
	})
	return amt, err
}

// ClaimKingFees pays out actor's pending king fees on an answer.
func (s *MarketService) ClaimKingFees(ctx context.Context, actor common.Address, answerID uint64) (domain.Amount, error) {
	var amt domain.Amount
	err := s.run(ctx, "claim_king_fees", actor, nil, func(call market.Call) (cs domain.ChangeSet, err error) {
		amt, cs, err = s.engine.ClaimKingFees(call, answerID)
		return cs, err
	})
	return amt, err
}

// Withdraw moves currency out of actor's ledger balance.
func (s *MarketService) Withdraw(ctx context.Context, actor common.Address, amount domain.Amount) error {
	return s.run(ctx, "withdraw", actor, nil, func(call market.Call) (domain.ChangeSet, error) {
		return s.engine.Withdraw(call, amount)
	})
}

// Deposit credits holder's ledger balance. Operator only.
func (s *MarketService) Deposit(ctx context.Context, actor, holder common.Address, amount domain.Amount) error {
	detail := map[string]any{"holder": holder.Hex(), "amount": amount.String()}
	return s.run(ctx, "deposit", actor, detail, func(call market.Call) (domain.ChangeSet, error) {
		return s.engine.Deposit(call, holder, amount)
	})
}

// SetParam parses and applies one named parameter.
func (s *MarketService) SetParam(ctx context.Context, actor common.Address, name, value string) error {
	v, err := market.ParseParamValue(name, value)
	if err != nil {
		return err
	}
	detail := map[string]any{"name": name, "value": value}
	return s.run(ctx, "set_param", actor, detail, func(call market.Call) (domain.ChangeSet, error) {
		return s.engine.SetParam(call, name, v)
	})
}

// SetTreasury changes the platform fee recipient.
func (s *MarketService) SetTreasury(ctx context.Context, actor, treasury common.Address) error {
	detail := map[string]any{"treasury": treasury.Hex()}
	return s.run(ctx, "set_treasury", actor, detail, func(call market.Call) (domain.ChangeSet, error) {
		return s.engine.SetTreasury(call, treasury)
	})
}

// Pause halts user operations.
func (s *MarketService) Pause(ctx context.Context, actor common.Address) error {
	return s.run(ctx, "pause", actor, map[string]any{}, s.engine.Pause)
}

// Unpause resumes user operations.
func (s *MarketService) Unpause(ctx context.Context, actor common.Address) error {
	return s.run(ctx, "unpause", actor, map[string]any{}, s.engine.Unpause)
}

// GrantRole adds account to role.
func (s *MarketService) GrantRole(ctx context.Context, actor common.Address, role domain.Role, account common.Address) error {
	detail := map[string]any{"role": string(role), "account": account.Hex()}
	return s.run(ctx, "grant_role", actor, detail, func(call market.Call) (domain.ChangeSet, error) {
		return s.engine.GrantRole(call, role, account)
	})
}

// RevokeRole removes account from role.
func (s *MarketService) RevokeRole(ctx context.Context, actor common.Address, role domain.Role, account common.Address) error {
	detail := map[string]any{"role": string(role), "account": account.Hex()}
	return s.run(ctx, "revoke_role", actor, detail, func(call market.Call) (domain.ChangeSet, error) {
		return s.engine.RevokeRole(call, role, account)
	})
}
