package market

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/answermarket/internal/domain"
)

// transfer moves amt between two vault accounts. It is a no-op when from
// and to are the same account.
func (t *tx) transfer(from, to common.Address, amt domain.Amount) error {
	if amt < 0 {
		return fmt.Errorf("negative transfer %s: %w", amt, domain.ErrInvalidParam)
	}
	if amt == 0 || from == to {
		return nil
	}
	if err := t.debit(from, amt); err != nil {
		return err
	}
	return t.credit(to, amt)
}

// credit adds amt to account.
func (t *tx) credit(account common.Address, amt domain.Amount) error {
	bal, err := addAmount(t.s.balances[account], amt)
	if err != nil {
		return err
	}
	t.setBalance(account, bal)
	return nil
}

// debit removes amt from account.
func (t *tx) debit(account common.Address, amt domain.Amount) error {
	bal := t.s.balances[account]
	if bal < amt {
		return fmt.Errorf("%s holds %s, needs %s: %w", account.Hex(), bal, amt, domain.ErrInsufficientBalance)
	}
	t.setBalance(account, bal-amt)
	return nil
}
