// Package market is the answer market engine: bonding-curve pricing, the
// position ledger, fee distribution, king election, dynamic answer slots,
// the question registry and role-gated administration.
//
// The Engine is a single writer. Every mutating operation runs under one
// lock against an explicit state store; a failed operation leaves no trace,
// a committed one returns the rows it touched as a domain.ChangeSet.
package market

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/answermarket/internal/domain"
)

// Call carries the caller identity and the ordering context of one
// operation. The environment supplies Now and Tick; the engine never reads
// a clock.
type Call struct {
	Actor common.Address
	Now   time.Time
	Tick  uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithOneTradePerTick restricts each actor to a single buy or sell per
// ordering tick.
func WithOneTradePerTick(enabled bool) Option {
	return func(e *Engine) { e.oneTradePerTick = enabled }
}

// Engine owns the ledger state.
type Engine struct {
	mu              sync.RWMutex
	st              *state
	logger          *slog.Logger
	oneTradePerTick bool
}

// New creates an engine at genesis. admin receives every role. A zero
// treasury in params defaults to admin.
func New(params domain.Params, admin common.Address, opts ...Option) (*Engine, error) {
	if admin == (common.Address{}) || admin == domain.EscrowAccount {
		return nil, fmt.Errorf("market: genesis admin %s: %w", admin.Hex(), domain.ErrInvalidParam)
	}
	if params.Treasury == (common.Address{}) {
		params.Treasury = admin
	}
	if params.Treasury == domain.EscrowAccount {
		return nil, fmt.Errorf("market: treasury cannot be the escrow account: %w", domain.ErrInvalidParam)
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("market: genesis params: %w", err)
	}

	st := newState(params)
	for _, r := range domain.AllRoles {
		st.roles[r] = map[common.Address]struct{}{admin: {}}
	}
	return newEngine(st, opts...), nil
}

func newEngine(st *state, opts ...Option) *Engine {
	e := &Engine{st: st, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(slog.String("component", "market"))
	return e
}

// execute runs fn as one atomic operation after the uniform access checks
// for perm. On error every write fn made is rolled back.
func (e *Engine) execute(call Call, perm permission, fn func(t *tx) error) (domain.ChangeSet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.authorize(call, perm); err != nil {
		return domain.ChangeSet{}, fmt.Errorf("market: %s: %w", perm.op, err)
	}

	t := newTx(e.st, call)
	t.oneTradePerTick = e.oneTradePerTick
	if err := fn(t); err != nil {
		t.revert()
		e.logger.Debug("market: operation rejected",
			slog.String("op", perm.op),
			slog.String("actor", call.Actor.Hex()),
			slog.String("error", err.Error()),
		)
		return domain.ChangeSet{}, fmt.Errorf("market: %s: %w", perm.op, err)
	}

	cs := t.commit()
	e.logger.Debug("market: operation committed",
		slog.String("op", perm.op),
		slog.Uint64("seq", cs.Seq),
		slog.Int("events", len(cs.Events)),
	)
	return cs, nil
}

// authorize applies the permission table entry for one operation.
func (e *Engine) authorize(call Call, perm permission) error {
	if call.Actor == (common.Address{}) || call.Actor == domain.EscrowAccount {
		return domain.ErrUnauthorized
	}
	if perm.pausable && e.st.paused {
		return domain.ErrEnforcedPause
	}
	if perm.role != "" && !e.st.hasRole(perm.role, call.Actor) {
		return fmt.Errorf("%s lacks role %s: %w", call.Actor.Hex(), perm.role, domain.ErrUnauthorized)
	}
	return nil
}

// Seq returns the sequence number of the last committed operation.
func (e *Engine) Seq() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.st.seq
}

func checkDeadline(now, deadline time.Time) error {
	if now.After(deadline) {
		return fmt.Errorf("now %s past %s: %w", now.Format(time.RFC3339), deadline.Format(time.RFC3339), domain.ErrDeadlineExpired)
	}
	return nil
}

// checkTick enforces one trade per actor per ordering tick.
func (t *tx) checkTick() error {
	if !t.oneTradePerTick {
		return nil
	}
	if last, ok := t.s.ticks[t.call.Actor]; ok && t.call.Tick <= last {
		return fmt.Errorf("actor already traded in tick %d: %w", last, domain.ErrRateLimited)
	}
	t.setTick(t.call.Actor, t.call.Tick)
	return nil
}
