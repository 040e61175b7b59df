package market

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/answermarket/internal/domain"
)

// Snapshot returns a deterministic copy of the full ledger state stamped
// with at.
func (e *Engine) Snapshot(at time.Time) domain.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := e.st

	snap := domain.Snapshot{
		Seq:            s.seq,
		NextQuestionID: s.nextQuestionID,
		NextAnswerID:   s.nextAnswerID,
		Params:         s.params,
		Paused:         s.paused,
		TakenAt:        at,
	}
	for _, q := range s.questions {
		snap.Questions = append(snap.Questions, q)
	}
	for _, a := range s.answers {
		snap.Answers = append(snap.Answers, a)
	}
	for _, p := range s.positions {
		snap.Positions = append(snap.Positions, p)
	}
	for acct, amt := range s.balances {
		snap.Balances = append(snap.Balances, domain.AccountAmount{Account: acct, Amount: amt})
	}
	for acct, amt := range s.accumulated {
		snap.AccumulatedFees = append(snap.AccumulatedFees, domain.AccountAmount{Account: acct, Amount: amt})
	}
	for role, members := range s.roles {
		for acct := range members {
			snap.Roles = append(snap.Roles, domain.RoleGrant{Role: role, Account: acct})
		}
	}
	for actor, tick := range s.ticks {
		snap.Ticks = append(snap.Ticks, domain.ActorTick{Actor: actor, Tick: tick})
	}

	sortRows(snap.Questions, snap.Answers, snap.Positions, snap.Balances, snap.AccumulatedFees, snap.Ticks)
	sort.Slice(snap.Roles, func(i, j int) bool {
		if snap.Roles[i].Role != snap.Roles[j].Role {
			return snap.Roles[i].Role < snap.Roles[j].Role
		}
		return addrLess(snap.Roles[i].Account, snap.Roles[j].Account)
	})
	return snap
}

// Restore rebuilds an engine from a snapshot and verifies the ledger
// invariants before returning it.
func Restore(snap domain.Snapshot, opts ...Option) (*Engine, error) {
	if err := snap.Params.Validate(); err != nil {
		return nil, fmt.Errorf("market: restore params: %w", err)
	}
	st := newState(snap.Params)
	st.seq = snap.Seq
	st.paused = snap.Paused
	st.nextQuestionID = max(snap.NextQuestionID, 1)
	st.nextAnswerID = max(snap.NextAnswerID, 1)

	for _, q := range snap.Questions {
		st.questions[q.ID] = q
		if q.ID >= st.nextQuestionID {
			st.nextQuestionID = q.ID + 1
		}
	}
	answers := append([]domain.Answer(nil), snap.Answers...)
	sort.Slice(answers, func(i, j int) bool { return answers[i].ID < answers[j].ID })
	for _, a := range answers {
		if _, ok := st.questions[a.QuestionID]; !ok {
			return nil, fmt.Errorf("market: restore answer %d: question %d: %w", a.ID, a.QuestionID, domain.ErrNotFound)
		}
		st.answers[a.ID] = a
		st.answersByQuestion[a.QuestionID] = append(st.answersByQuestion[a.QuestionID], a.ID)
		texts, ok := st.answerTexts[a.QuestionID]
		if !ok {
			texts = make(map[string]uint64)
			st.answerTexts[a.QuestionID] = texts
		}
		if _, dup := texts[a.Text]; dup {
			return nil, fmt.Errorf("market: restore answer %d: %w", a.ID, domain.ErrDuplicateAnswer)
		}
		texts[a.Text] = a.ID
		if a.ID >= st.nextAnswerID {
			st.nextAnswerID = a.ID + 1
		}
	}
	for _, p := range snap.Positions {
		if _, ok := st.answers[p.AnswerID]; !ok {
			return nil, fmt.Errorf("market: restore position on answer %d: %w", p.AnswerID, domain.ErrNotFound)
		}
		st.positions[p.Key()] = p
		if p.Shares > 0 {
			set, ok := st.holders[p.AnswerID]
			if !ok {
				set = make(map[common.Address]struct{})
				st.holders[p.AnswerID] = set
			}
			set[p.Holder] = struct{}{}
		}
	}
	for _, b := range snap.Balances {
		st.balances[b.Account] = b.Amount
	}
	for _, b := range snap.AccumulatedFees {
		st.accumulated[b.Account] = b.Amount
	}
	for _, g := range snap.Roles {
		set, ok := st.roles[g.Role]
		if !ok {
			set = make(map[common.Address]struct{})
			st.roles[g.Role] = set
		}
		set[g.Account] = struct{}{}
	}
	for _, t := range snap.Ticks {
		st.ticks[t.Actor] = t.Tick
	}

	e := newEngine(st, opts...)
	if err := e.CheckInvariants(); err != nil {
		return nil, fmt.Errorf("market: restore: %w", err)
	}
	return e, nil
}

// ErrInvariant reports a ledger state that violates a market invariant.
var ErrInvariant = errors.New("ledger invariant violated")

// CheckInvariants verifies the ledger invariants: pool and share totals
// agree, escrow covers every pool and unclaimed fee, answer texts are
// unique and every question is within its answer limit.
func (e *Engine) CheckInvariants() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := e.st

	if err := s.params.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvariant, err)
	}

	held := make(map[uint64]domain.Shares)
	var owed domain.Amount
	for _, p := range s.positions {
		if p.Shares < 0 || p.PendingKingFees < 0 || p.CostBasis < 0 {
			return fmt.Errorf("%w: negative position %d/%s", ErrInvariant, p.AnswerID, p.Holder.Hex())
		}
		held[p.AnswerID] += p.Shares
		owed += p.PendingKingFees
	}
	for _, a := range s.answers {
		if (a.TotalShares == 0) != (a.PoolValue == 0) {
			return fmt.Errorf("%w: answer %d pool %s with %s shares", ErrInvariant, a.ID, a.PoolValue, a.TotalShares)
		}
		if held[a.ID] != a.TotalShares {
			return fmt.Errorf("%w: answer %d positions hold %s of %s shares", ErrInvariant, a.ID, held[a.ID], a.TotalShares)
		}
		owed += a.PoolValue
	}
	for _, amt := range s.accumulated {
		owed += amt
	}
	if escrow := s.balances[domain.EscrowAccount]; escrow != owed {
		return fmt.Errorf("%w: escrow %s, owed %s", ErrInvariant, escrow, owed)
	}
	for _, q := range s.questions {
		if len(s.answersByQuestion[q.ID]) != q.AnswerCount {
			return fmt.Errorf("%w: question %d counts %d answers, has %d", ErrInvariant, q.ID, q.AnswerCount, len(s.answersByQuestion[q.ID]))
		}
		if limit := MaxAnswers(s.params, q.TotalVolume); q.AnswerCount > limit {
			return fmt.Errorf("%w: question %d holds %d of %d answers", ErrInvariant, q.ID, q.AnswerCount, limit)
		}
	}
	return nil
}

func sortChangeSet(cs *domain.ChangeSet) {
	sortRows(cs.Questions, cs.Answers, cs.Positions, cs.Balances, cs.AccumulatedFees, cs.Ticks)
}

func sortRows(qs []domain.Question, as []domain.Answer, ps []domain.Position, bal, acc []domain.AccountAmount, ticks []domain.ActorTick) {
	sort.Slice(qs, func(i, j int) bool { return qs[i].ID < qs[j].ID })
	sort.Slice(as, func(i, j int) bool { return as[i].ID < as[j].ID })
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].AnswerID != ps[j].AnswerID {
			return ps[i].AnswerID < ps[j].AnswerID
		}
		return addrLess(ps[i].Holder, ps[j].Holder)
	})
	sort.Slice(bal, func(i, j int) bool { return addrLess(bal[i].Account, bal[j].Account) })
	sort.Slice(acc, func(i, j int) bool { return addrLess(acc[i].Account, acc[j].Account) })
	sort.Slice(ticks, func(i, j int) bool { return addrLess(ticks[i].Actor, ticks[j].Actor) })
}

func addrLess(a, b common.Address) bool { return bytes.Compare(a[:], b[:]) < 0 }
