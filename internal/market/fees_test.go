package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/alanyoungcy/answermarket/internal/domain"
)

func TestSplitFees(t *testing.T) {
	split, err := SplitFees(domain.DefaultParams(), domain.Dollars(100))
	require.NoError(t, err)
	assert.Equal(t, domain.FeeSplit{
		Gross:    domain.Dollars(100),
		Platform: domain.Dollars(2),
		Creator:  domain.Dollars(1) / 2,
		King:     domain.Dollars(1) / 2,
		Net:      domain.Dollars(97),
	}, split)
}

func TestSplitFeesRoundsDown(t *testing.T) {
	split, err := SplitFees(domain.DefaultParams(), 199)
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(3), split.Platform)
	assert.Equal(t, domain.Amount(0), split.Creator)
	assert.Equal(t, domain.Amount(0), split.King)
	assert.Equal(t, domain.Amount(196), split.Net)
}

func TestSplitFeesConserves(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := domain.DefaultParams()
		p.PlatformFeeBps = rapid.Int64Range(0, domain.BpsDenominator).Draw(t, "platform")
		p.CreatorFeeBps = rapid.Int64Range(0, domain.BpsDenominator-p.PlatformFeeBps).Draw(t, "creator")
		p.KingFeeBps = rapid.Int64Range(0, domain.BpsDenominator-p.PlatformFeeBps-p.CreatorFeeBps).Draw(t, "king")
		gross := domain.Amount(rapid.Int64Range(0, 1<<62).Draw(t, "gross"))

		split, err := SplitFees(p, gross)
		if err != nil {
			t.Fatalf("split: %v", err)
		}
		if split.Net < 0 {
			t.Fatalf("negative net: %+v", split)
		}
		if split.Platform+split.Creator+split.King+split.Net != gross {
			t.Fatalf("split %+v does not sum to %d", split, gross)
		}
	})
}

func TestKingFeeSplitsProRataWithDustToTreasury(t *testing.T) {
	f := newFixture(t, func(p *domain.Params) {
		p.PlatformFeeBps, p.CreatorFeeBps = 0, 0
		p.KingFeeBps = 100
		p.AnswerProposalStake = 0
	})
	q := f.question(alice)
	a := f.propose(alice, q, "yes")
	f.buy(alice, a, domain.Dollars(1))
	f.buy(bob, a, domain.Dollars(2))

	aliceBefore := f.e.Position(a, alice)
	bobBefore := f.e.Position(a, bob)
	treasuryBefore := f.e.Balance(treasury)

	trade := f.buy(carol, a, domain.Dollars(1)+1)
	king := int64(trade.Split.King)
	total := int64(aliceBefore.Shares + bobBefore.Shares)
	wantAlice := domain.Amount(king * int64(aliceBefore.Shares) / total)
	wantBob := domain.Amount(king * int64(bobBefore.Shares) / total)

	assert.Equal(t, aliceBefore.PendingKingFees+wantAlice, f.e.Position(a, alice).PendingKingFees)
	assert.Equal(t, bobBefore.PendingKingFees+wantBob, f.e.Position(a, bob).PendingKingFees)
	assert.Equal(t, treasuryBefore+trade.Split.King-wantAlice-wantBob, f.e.Balance(treasury))
	require.NoError(t, f.e.CheckInvariants())
}

func TestKingFeeWithoutLeaderGoesToTreasury(t *testing.T) {
	f := newFixture(t, func(p *domain.Params) { p.AnswerProposalStake = 0 })
	q := f.question(alice)
	a := f.propose(alice, q, "yes")
	before := f.e.Balance(treasury)

	// The leader has no shares yet, so nothing can be attributed.
	trade := f.buy(bob, a, domain.Dollars(100))
	assert.Equal(t, before+trade.Split.Platform+trade.Split.King, f.e.Balance(treasury))
	assert.Zero(t, f.e.Position(a, bob).PendingKingFees)
	require.NoError(t, f.e.CheckInvariants())
}
