package market

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/answermarket/internal/domain"
)

// Buy spends gross from the caller's balance on shares of an answer. It
// fails without effect when the deadline has passed or fewer than
// minSharesOut shares would be minted.
func (e *Engine) Buy(call Call, answerID uint64, gross domain.Amount, minSharesOut domain.Shares, deadline time.Time) (domain.Trade, domain.ChangeSet, error) {
	var trade domain.Trade
	cs, err := e.execute(call, permissions[opBuy], func(t *tx) error {
		if err := checkDeadline(call.Now, deadline); err != nil {
			return err
		}
		if gross <= 0 {
			return domain.ErrZeroAmount
		}
		a, q, err := t.lookupAnswer(answerID)
		if err != nil {
			return err
		}
		if !q.Active {
			return fmt.Errorf("question %d: %w", q.ID, domain.ErrInactiveQuestion)
		}

		split, err := SplitFees(t.s.params, gross)
		if err != nil {
			return err
		}
		minted, err := QuoteBuy(t.s.params, poolOf(a), split.Net)
		if err != nil {
			return err
		}
		if minted == 0 {
			return domain.ErrZeroShares
		}
		if minted < minSharesOut {
			return fmt.Errorf("minted %s < min %s: %w", minted, minSharesOut, domain.ErrSlippageExceeded)
		}
		if bal := t.s.balances[call.Actor]; bal < gross {
			return fmt.Errorf("balance %s < %s: %w", bal, gross, domain.ErrInsufficientBalance)
		}
		if err := t.checkTick(); err != nil {
			return err
		}

		if err := t.distributeFees(q, split, call.Actor); err != nil {
			return err
		}
		if err := t.transfer(call.Actor, domain.EscrowAccount, split.Net); err != nil {
			return err
		}
		trade, err = t.mint(a, call.Actor, split, minted, domain.TradeSideBuy)
		return err
	})
	return trade, cs, err
}

// Sell redeems shares of an answer at NAV and pays the net proceeds to the
// caller's balance. It fails without effect when the deadline has passed or
// the net proceeds fall below minAmountOut.
func (e *Engine) Sell(call Call, answerID uint64, shares domain.Shares, minAmountOut domain.Amount, deadline time.Time) (domain.Trade, domain.ChangeSet, error) {
	var trade domain.Trade
	cs, err := e.execute(call, permissions[opSell], func(t *tx) error {
		if err := checkDeadline(call.Now, deadline); err != nil {
			return err
		}
		if shares <= 0 {
			return domain.ErrZeroAmount
		}
		a, q, err := t.lookupAnswer(answerID)
		if err != nil {
			return err
		}
		pos := t.s.position(a.ID, call.Actor)
		if pos.Shares < shares {
			return fmt.Errorf("holding %s < %s: %w", pos.Shares, shares, domain.ErrInsufficientShares)
		}
		gross, err := QuoteSell(poolOf(a), shares)
		if err != nil {
			return err
		}
		split, err := SplitFees(t.s.params, gross)
		if err != nil {
			return err
		}
		if split.Net < minAmountOut {
			return fmt.Errorf("net %s < min %s: %w", split.Net, minAmountOut, domain.ErrSlippageExceeded)
		}
		if err := t.checkTick(); err != nil {
			return err
		}

		released := pos.CostBasis
		if shares < pos.Shares {
			slice, err := mulDiv(int64(pos.Shares), int64(pos.CostBasis), int64(shares))
			if err != nil {
				return err
			}
			released = domain.Amount(slice)
		}
		pos.Shares -= shares
		pos.CostBasis -= released
		t.setPosition(pos)

		pool := poolOf(a).applySell(gross, shares)
		a.PoolValue, a.TotalShares = pool.Value, pool.Shares
		t.setAnswer(a)
		if q.TotalVolume, err = addAmount(q.TotalVolume, gross); err != nil {
			return err
		}
		t.setQuestion(q)

		if err := t.distributeFees(q, split, domain.EscrowAccount); err != nil {
			return err
		}
		if err := t.transfer(domain.EscrowAccount, call.Actor, split.Net); err != nil {
			return err
		}

		trade = domain.Trade{
			QuestionID:  q.ID,
			AnswerID:    a.ID,
			Trader:      call.Actor,
			Side:        domain.TradeSideSell,
			Split:       split,
			Shares:      shares,
			PoolAfter:   a.PoolValue,
			SharesAfter: a.TotalShares,
			At:          call.Now,
		}
		t.record(trade)
		t.emit(domain.Event{
			Type:       domain.EventSharesSold,
			QuestionID: q.ID,
			AnswerID:   a.ID,
			Actor:      call.Actor,
			Amount:     split.Net,
			Shares:     shares,
			Trade:      &trade,
		})
		return t.afterPoolChange(q.ID, a.ID)
	})
	return trade, cs, err
}

// mint credits minted shares to holder after split.Net has been moved into
// escrow, updates pool and volume totals and re-runs king election.
func (t *tx) mint(a domain.Answer, holder common.Address, split domain.FeeSplit, minted domain.Shares, side domain.TradeSide) (domain.Trade, error) {
	pool, err := poolOf(a).applyBuy(split.Net, minted)
	if err != nil {
		return domain.Trade{}, err
	}
	a.PoolValue, a.TotalShares = pool.Value, pool.Shares
	t.setAnswer(a)

	pos := t.s.position(a.ID, holder)
	pos.Shares += minted
	if pos.CostBasis, err = addAmount(pos.CostBasis, split.Net); err != nil {
		return domain.Trade{}, err
	}
	t.setPosition(pos)

	// Re-read: fee distribution may have touched the question.
	q := t.s.questions[a.QuestionID]
	if q.TotalVolume, err = addAmount(q.TotalVolume, split.Gross); err != nil {
		return domain.Trade{}, err
	}
	t.setQuestion(q)

	trade := domain.Trade{
		QuestionID:  q.ID,
		AnswerID:    a.ID,
		Trader:      holder,
		Side:        side,
		Split:       split,
		Shares:      minted,
		PoolAfter:   a.PoolValue,
		SharesAfter: a.TotalShares,
		At:          t.now(),
	}
	t.record(trade)
	if side == domain.TradeSideBuy {
		t.emit(domain.Event{
			Type:       domain.EventSharesBought,
			QuestionID: q.ID,
			AnswerID:   a.ID,
			Actor:      holder,
			Amount:     split.Gross,
			Shares:     minted,
			Trade:      &trade,
		})
	}
	return trade, t.afterPoolChange(q.ID, a.ID)
}

// ClaimCreatorFees pays the caller's accumulated creator fees out of escrow.
func (e *Engine) ClaimCreatorFees(call Call) (domain.Amount, domain.ChangeSet, error) {
	var claimed domain.Amount
	cs, err := e.execute(call, permissions[opClaimCreatorFees], func(t *tx) error {
		claimed = t.s.accumulated[call.Actor]
		if claimed == 0 {
			return domain.ErrNothingToClaim
		}
		t.setAccumulated(call.Actor, 0)
		if err := t.transfer(domain.EscrowAccount, call.Actor, claimed); err != nil {
			return err
		}
		t.emit(domain.Event{Type: domain.EventCreatorFeesClaimed, Actor: call.Actor, Amount: claimed})
		return nil
	})
	return claimed, cs, err
}

// ClaimKingFees pays the caller's pending king fees on one answer out of
// escrow.
func (e *Engine) ClaimKingFees(call Call, answerID uint64) (domain.Amount, domain.ChangeSet, error) {
	var claimed domain.Amount
	cs, err := e.execute(call, permissions[opClaimKingFees], func(t *tx) error {
		a, _, err := t.lookupAnswer(answerID)
		if err != nil {
			return err
		}
		pos := t.s.position(a.ID, call.Actor)
		claimed = pos.PendingKingFees
		if claimed == 0 {
			return domain.ErrNothingToClaim
		}
		pos.PendingKingFees = 0
		t.setPosition(pos)
		if err := t.transfer(domain.EscrowAccount, call.Actor, claimed); err != nil {
			return err
		}
		t.emit(domain.Event{
			Type:       domain.EventKingFeesClaimed,
			QuestionID: a.QuestionID,
			AnswerID:   a.ID,
			Actor:      call.Actor,
			Amount:     claimed,
		})
		return nil
	})
	return claimed, cs, err
}

// Deposit credits an external deposit to holder. Operator only.
func (e *Engine) Deposit(call Call, holder common.Address, amount domain.Amount) (domain.ChangeSet, error) {
	return e.execute(call, permissions[opDeposit], func(t *tx) error {
		if amount <= 0 {
			return domain.ErrZeroAmount
		}
		if err := checkAccount(holder); err != nil {
			return err
		}
		if err := t.credit(holder, amount); err != nil {
			return err
		}
		t.emit(domain.Event{Type: domain.EventDeposited, Actor: call.Actor, Counterparty: holder, Amount: amount})
		return nil
	})
}

// Withdraw removes amount of the caller's free balance from the ledger.
func (e *Engine) Withdraw(call Call, amount domain.Amount) (domain.ChangeSet, error) {
	return e.execute(call, permissions[opWithdraw], func(t *tx) error {
		if amount <= 0 {
			return domain.ErrZeroAmount
		}
		if err := t.debit(call.Actor, amount); err != nil {
			return err
		}
		t.emit(domain.Event{Type: domain.EventWithdrawn, Actor: call.Actor, Amount: amount})
		return nil
	})
}

func (t *tx) lookupAnswer(answerID uint64) (domain.Answer, domain.Question, error) {
	a, ok := t.s.answers[answerID]
	if !ok {
		return domain.Answer{}, domain.Question{}, fmt.Errorf("answer %d: %w", answerID, domain.ErrNotFound)
	}
	return a, t.s.questions[a.QuestionID], nil
}

func (t *tx) lookupQuestion(questionID uint64) (domain.Question, error) {
	q, ok := t.s.questions[questionID]
	if !ok {
		return domain.Question{}, fmt.Errorf("question %d: %w", questionID, domain.ErrNotFound)
	}
	return q, nil
}

// checkAccount rejects the zero address and the escrow account as targets.
func checkAccount(a common.Address) error {
	if a == (common.Address{}) || a == domain.EscrowAccount {
		return fmt.Errorf("account %s: %w", a.Hex(), domain.ErrInvalidParam)
	}
	return nil
}
