package market

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/answermarket/internal/domain"
)

// SplitFees decomposes gross into the platform, creator and king fees and
// the net remainder. Each fee is floor(gross*bps/10000), so the parts
// always sum to gross.
func SplitFees(p domain.Params, gross domain.Amount) (domain.FeeSplit, error) {
	if gross < 0 {
		return domain.FeeSplit{}, domain.ErrZeroAmount
	}
	split := domain.FeeSplit{Gross: gross}
	for _, f := range []struct {
		dst *domain.Amount
		bps int64
	}{
		{&split.Platform, p.PlatformFeeBps},
		{&split.Creator, p.CreatorFeeBps},
		{&split.King, p.KingFeeBps},
	} {
		fee, err := mulDiv(domain.BpsDenominator, int64(gross), f.bps)
		if err != nil {
			return domain.FeeSplit{}, err
		}
		*f.dst = domain.Amount(fee)
	}
	split.Net = gross - split.Fees()
	return split, nil
}

// distributeFees pays the fees of split out of the from account: the
// platform fee to the treasury, the creator fee into escrow for the
// question creator, and the king fee into escrow for the holders of the
// leading answer. King fee that cannot be attributed goes to the treasury.
func (t *tx) distributeFees(q domain.Question, split domain.FeeSplit, from common.Address) error {
	treasury := t.s.params.Treasury
	if err := t.transfer(from, treasury, split.Platform); err != nil {
		return err
	}

	if split.Creator > 0 {
		if err := t.transfer(from, domain.EscrowAccount, split.Creator); err != nil {
			return err
		}
		acc, err := addAmount(t.s.accumulated[q.Creator], split.Creator)
		if err != nil {
			return err
		}
		t.setAccumulated(q.Creator, acc)
	}

	credited, err := t.distributeKingFee(q, split.King)
	if err != nil {
		return err
	}
	if err := t.transfer(from, domain.EscrowAccount, credited); err != nil {
		return err
	}
	return t.transfer(from, treasury, split.King-credited)
}

// distributeKingFee credits fee pro rata to the current holders of the
// question's leading answer and returns the amount credited. Each share is
// floored; the remainder is left for the caller.
func (t *tx) distributeKingFee(q domain.Question, fee domain.Amount) (domain.Amount, error) {
	if fee == 0 || !q.HasLeader() {
		return 0, nil
	}
	leader := t.s.answers[q.LeadingAnswerID]
	if leader.TotalShares == 0 {
		return 0, nil
	}

	var credited domain.Amount
	for _, holder := range t.s.sortedHolders(leader.ID) {
		pos := t.s.position(leader.ID, holder)
		cut, err := mulDiv(int64(leader.TotalShares), int64(fee), int64(pos.Shares))
		if err != nil {
			return 0, err
		}
		if cut == 0 {
			continue
		}
		pos.PendingKingFees += domain.Amount(cut)
		t.setPosition(pos)
		credited += domain.Amount(cut)
	}
	return credited, nil
}
