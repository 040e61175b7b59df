package market

import (
	"fmt"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/alanyoungcy/answermarket/internal/domain"
)

func TestStakeAndFirstBuy(t *testing.T) {
	f := newFixture(t, nil)
	q := f.question(alice)
	assert.Equal(t, domain.Dollars(1), f.e.Balance(treasury))

	a := f.propose(alice, q, "yes")
	pos := f.e.Position(a, alice)
	assert.Equal(t, domain.Shares(5000), pos.Shares)
	assert.Equal(t, domain.Dollars(5), pos.CostBasis)

	trade := f.buy(bob, a, domain.Dollars(100))
	assert.Equal(t, domain.Dollars(2), trade.Split.Platform)
	assert.Equal(t, domain.Dollars(1)/2, trade.Split.Creator)
	assert.Equal(t, domain.Dollars(1)/2, trade.Split.King)
	assert.Equal(t, domain.Dollars(97), trade.Split.Net)
	assert.Equal(t, domain.Shares(96563), trade.Shares)

	assert.Equal(t, domain.Dollars(3), f.e.Balance(treasury))
	assert.Equal(t, domain.Dollars(1)/2, f.e.AccumulatedFees(alice))
	assert.Equal(t, domain.Dollars(1)/2, f.e.PendingKingFees(alice))
	assert.Equal(t, domain.Dollars(10_000-100), f.e.Balance(bob))

	got, err := f.e.Question(q)
	require.NoError(t, err)
	assert.Equal(t, domain.Dollars(105), got.TotalVolume)
	assert.Equal(t, 1, got.AnswerCount)

	ans, err := f.e.Answer(a)
	require.NoError(t, err)
	assert.Equal(t, domain.Dollars(102), ans.PoolValue)
	assert.Equal(t, domain.Shares(101_563), ans.TotalShares)
	require.NoError(t, f.e.CheckInvariants())
}

func TestClaims(t *testing.T) {
	f := newFixture(t, nil)
	q := f.question(alice)
	a := f.propose(alice, q, "yes")
	f.buy(bob, a, domain.Dollars(100))
	start := f.e.Balance(alice)

	claimed, _, err := f.e.ClaimCreatorFees(f.call(alice))
	require.NoError(t, err)
	assert.Equal(t, domain.Dollars(1)/2, claimed)

	claimed, cs, err := f.e.ClaimKingFees(f.call(alice), a)
	require.NoError(t, err)
	assert.Equal(t, domain.Dollars(1)/2, claimed)
	assert.Equal(t, []domain.EventType{domain.EventKingFeesClaimed}, eventTypes(cs))
	assert.Equal(t, start+domain.Dollars(1), f.e.Balance(alice))

	_, _, err = f.e.ClaimCreatorFees(f.call(alice))
	assert.ErrorIs(t, err, domain.ErrNothingToClaim)
	_, _, err = f.e.ClaimKingFees(f.call(alice), a)
	assert.ErrorIs(t, err, domain.ErrNothingToClaim)
	_, _, err = f.e.ClaimKingFees(f.call(alice), 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, f.e.CheckInvariants())
}

func TestRoundTripLoses(t *testing.T) {
	f := newFixture(t, nil)
	q := f.question(alice)
	a := f.propose(alice, q, "yes")
	start := f.e.Balance(bob)

	trade := f.buy(bob, a, domain.Dollars(100))
	sold, _, err := f.e.Sell(f.call(bob), a, trade.Shares, 0, f.deadline())
	require.NoError(t, err)
	assert.Less(t, sold.Split.Net, domain.Dollars(100))
	assert.Less(t, f.e.Balance(bob), start)
	assert.Zero(t, f.e.Position(a, bob).Shares)
	assert.Zero(t, f.e.Position(a, bob).CostBasis)
	require.NoError(t, f.e.CheckInvariants())
}

func TestRoundTripLosesAfterPoolDrained(t *testing.T) {
	f := newFixture(t, nil)
	dave := common.HexToAddress("0x0000000000000000000000000000000000000da7")
	_, err := f.e.Deposit(f.call(admin), dave, domain.Dollars(10_000))
	require.NoError(t, err)

	q := f.question(alice)
	a := f.propose(alice, q, "yes")
	carolBuy := f.buy(carol, a, domain.Dollars(1000))
	bobBuy := f.buy(bob, a, domain.Dollars(9000))
	for who, held := range map[common.Address]domain.Shares{bob: bobBuy.Shares, carol: carolBuy.Shares} {
		_, _, err := f.e.Sell(f.call(who), a, held*99/100, 0, f.deadline())
		require.NoError(t, err)
	}
	ans, err := f.e.Answer(a)
	require.NoError(t, err)
	require.Less(t, ans.PoolValue, domain.DefaultParams().BootstrapThreshold)

	start := f.e.Balance(dave)
	trade := f.buy(dave, a, domain.Dollars(100))
	sold, _, err := f.e.Sell(f.call(dave), a, trade.Shares, 0, f.deadline())
	require.NoError(t, err)
	assert.Less(t, sold.Split.Net, domain.Dollars(100))
	assert.Less(t, f.e.Balance(dave), start)
	require.NoError(t, f.e.CheckInvariants())
}

func TestRoundTripLossProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := newFixture(t, func(p *domain.Params) {
			p.PlatformFeeBps = rapid.Int64Range(0, 1000).Draw(t, "platform")
			p.CreatorFeeBps = rapid.Int64Range(0, 1000).Draw(t, "creator")
			p.KingFeeBps = rapid.Int64Range(1, 1000).Draw(t, "king")
		})
		q := f.question(alice)
		a := f.propose(alice, q, "yes")
		seeded := f.buy(carol, a, domain.Amount(rapid.Int64Range(0, int64(domain.Dollars(2000))).Draw(t, "seed"))+domain.Dollars(1))
		if drainBps := rapid.Int64Range(0, 9_999).Draw(t, "drainBps"); drainBps > 0 {
			drained := domain.Shares(int64(seeded.Shares) * drainBps / domain.BpsDenominator)
			if drained > 0 {
				_, _, err := f.e.Sell(f.call(carol), a, drained, 0, f.deadline())
				require.NoError(t, err)
			}
		}

		gross := domain.Amount(rapid.Int64Range(int64(domain.Dollars(1)), int64(domain.Dollars(5000))).Draw(t, "gross"))
		trade := f.buy(bob, a, gross)
		sold, _, err := f.e.Sell(f.call(bob), a, trade.Shares, 0, f.deadline())
		require.NoError(t, err)
		if sold.Split.Net >= gross {
			t.Fatalf("round trip of %s returned %s", gross, sold.Split.Net)
		}
		require.NoError(t, f.e.CheckInvariants())
	})
}

func TestTradeGuards(t *testing.T) {
	f := newFixture(t, nil)
	q := f.question(alice)
	a := f.propose(alice, q, "yes")

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"expired deadline", func() error {
			_, _, err := f.e.Buy(f.call(bob), a, domain.Dollars(1), 0, f.now.Add(-time.Second))
			return err
		}, domain.ErrDeadlineExpired},
		{"zero deadline", func() error {
			_, _, err := f.e.Buy(f.call(bob), a, domain.Dollars(1), 0, time.Time{})
			return err
		}, domain.ErrDeadlineExpired},
		{"buy slippage", func() error {
			_, _, err := f.e.Buy(f.call(bob), a, domain.Dollars(1), 1_000_000, f.deadline())
			return err
		}, domain.ErrSlippageExceeded},
		{"sell slippage", func() error {
			_, _, err := f.e.Sell(f.call(alice), a, 100, domain.Dollars(1000), f.deadline())
			return err
		}, domain.ErrSlippageExceeded},
		{"sell more than held", func() error {
			_, _, err := f.e.Sell(f.call(bob), a, 1, 0, f.deadline())
			return err
		}, domain.ErrInsufficientShares},
		{"overdraft", func() error {
			_, _, err := f.e.Buy(f.call(bob), a, domain.Dollars(20_000), 0, f.deadline())
			return err
		}, domain.ErrInsufficientBalance},
		{"unknown answer", func() error {
			_, _, err := f.e.Buy(f.call(bob), 42, domain.Dollars(1), 0, f.deadline())
			return err
		}, domain.ErrNotFound},
		{"zero amount", func() error {
			_, _, err := f.e.Buy(f.call(bob), a, 0, 0, f.deadline())
			return err
		}, domain.ErrZeroAmount},
		{"dust buy", func() error {
			_, _, err := f.e.Buy(f.call(bob), a, 1, 0, f.deadline())
			return err
		}, domain.ErrZeroShares},
		{"escrow actor", func() error {
			_, _, err := f.e.Buy(f.call(domain.EscrowAccount), a, domain.Dollars(1), 0, f.deadline())
			return err
		}, domain.ErrUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			before := frozen(f.e)
			err := tc.run()
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, before, frozen(f.e), "failed operation must not change state")
		})
	}
}

func TestFailedOperationRollsBack(t *testing.T) {
	f := newFixture(t, nil)
	q := f.question(alice)
	f.propose(alice, q, "yes")

	// The answer is created, then staking fails on the empty balance.
	poor := common.HexToAddress("0x0000000000000000000000000000000000000d0d")
	before := frozen(f.e)
	_, _, err := f.e.ProposeAnswer(f.call(poor), q, AnswerInput{Text: "no"})
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.Equal(t, before, frozen(f.e))

	_, _, _, err = f.e.CreateQuestionWithAnswer(f.call(poor), "Q2", "misc", AnswerInput{Text: "a"})
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.Equal(t, before, frozen(f.e))
}

func TestCreateQuestionWithAnswer(t *testing.T) {
	f := newFixture(t, nil)
	qid, aid, cs, err := f.e.CreateQuestionWithAnswer(f.call(alice), "Best language?", "tech",
		AnswerInput{Text: "Go", Description: "fast builds", ExternalLink: "https://go.dev"})
	require.NoError(t, err)
	assert.Equal(t, []domain.EventType{
		domain.EventQuestionCreated,
		domain.EventAnswerProposed,
		domain.EventKingChanged,
	}, eventTypes(cs))
	for _, ev := range cs.Events {
		assert.Equal(t, cs.Seq, ev.Seq)
		assert.NotEmpty(t, ev.ID)
	}
	require.Len(t, cs.Trades, 1)
	assert.Equal(t, domain.TradeSideStake, cs.Trades[0].Side)

	view, err := f.e.QuestionView(qid)
	require.NoError(t, err)
	require.Len(t, view.Answers, 1)
	assert.Equal(t, aid, view.Answers[0].ID)
	assert.Equal(t, "https://go.dev", view.Answers[0].ExternalLink)
	assert.Equal(t, aid, view.Question.LeadingAnswerID)
	assert.Equal(t, 10, view.MaxAnswers)
}

func TestDuplicateAnswer(t *testing.T) {
	f := newFixture(t, nil)
	q := f.question(alice)
	f.propose(alice, q, "Yes")

	_, _, err := f.e.ProposeAnswer(f.call(bob), q, AnswerInput{Text: "Yes"})
	assert.ErrorIs(t, err, domain.ErrDuplicateAnswer)

	// Case-sensitive, and scoped to the question.
	f.propose(bob, q, "yes")
	other := f.question(bob)
	f.propose(bob, other, "Yes")

	_, _, err = f.e.ProposeAnswer(f.call(bob), q, AnswerInput{Text: "   "})
	assert.ErrorIs(t, err, domain.ErrEmptyText)
}

func TestDuplicateAnswerProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := newFixture(t, func(p *domain.Params) { p.AnswerProposalStake = 0 })
		q := f.question(alice)
		text := rapid.StringMatching(`[A-Za-z][A-Za-z0-9 ]{0,20}`).Draw(t, "text")
		f.propose(alice, q, text)

		_, _, err := f.e.ProposeAnswer(f.call(bob), q, AnswerInput{Text: text})
		if !assert.ErrorIs(t, err, domain.ErrDuplicateAnswer) {
			t.Fatalf("duplicate %q accepted", text)
		}
	})
}

func TestTransferQuestionOwnership(t *testing.T) {
	f := newFixture(t, nil)
	q := f.question(alice)
	a := f.propose(alice, q, "yes")
	f.buy(bob, a, domain.Dollars(100))

	_, err := f.e.TransferQuestionOwnership(f.call(bob), q, bob)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = f.e.TransferQuestionOwnership(f.call(alice), q, domain.EscrowAccount)
	assert.ErrorIs(t, err, domain.ErrInvalidParam)

	_, err = f.e.TransferQuestionOwnership(f.call(alice), q, carol)
	require.NoError(t, err)
	f.buy(bob, a, domain.Dollars(100))

	// Fees earned before the transfer stay with alice.
	assert.Equal(t, domain.Dollars(1)/2, f.e.AccumulatedFees(alice))
	assert.Equal(t, domain.Dollars(1)/2, f.e.AccumulatedFees(carol))
}

func TestPause(t *testing.T) {
	f := newFixture(t, nil)
	q := f.question(alice)
	a := f.propose(alice, q, "yes")

	_, err := f.e.Pause(f.call(bob))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = f.e.Pause(f.call(admin))
	require.NoError(t, err)
	assert.True(t, f.e.Paused())
	_, err = f.e.Pause(f.call(admin))
	assert.ErrorIs(t, err, domain.ErrEnforcedPause)

	_, _, err = f.e.Buy(f.call(bob), a, domain.Dollars(1), 0, f.deadline())
	assert.ErrorIs(t, err, domain.ErrEnforcedPause)
	assert.Equal(t, domain.KindAvailability, domain.Kind(err))
	_, _, err = f.e.CreateQuestion(f.call(bob), "paused?", "")
	assert.ErrorIs(t, err, domain.ErrEnforcedPause)
	_, err = f.e.Deposit(f.call(admin), bob, domain.Dollars(1))
	assert.ErrorIs(t, err, domain.ErrEnforcedPause)

	// Reads and admin changes still work.
	_, err = f.e.Question(q)
	assert.NoError(t, err)
	f.setParam("platform_fee_bps", 100)

	_, err = f.e.Unpause(f.call(admin))
	require.NoError(t, err)
	_, err = f.e.Unpause(f.call(admin))
	assert.ErrorIs(t, err, domain.ErrNotPaused)
	f.buy(bob, a, domain.Dollars(1))
}

func TestSetParam(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.e.SetParam(f.call(admin), "king_flip_threshold_bps", 2001)
	assert.ErrorIs(t, err, domain.ErrInvalidFlipThreshold)
	_, err = f.e.SetParam(f.call(admin), "platform_fee_bps", 9950)
	assert.ErrorIs(t, err, domain.ErrInvalidFeeConfig)
	_, err = f.e.SetParam(f.call(admin), "nope", 1)
	assert.ErrorIs(t, err, domain.ErrInvalidParam)
	_, err = f.e.SetParam(f.call(bob), "platform_fee_bps", 100)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	cs, err := f.e.SetParam(f.call(admin), "king_flip_threshold_bps", 2000)
	require.NoError(t, err)
	require.NotNil(t, cs.Params)
	assert.Equal(t, int64(2000), cs.Params.KingFlipThresholdBps)
	assert.Equal(t, int64(2000), f.e.Params().KingFlipThresholdBps)

	f.setParam("base_answer_limit", 1)
	q := f.question(alice)
	f.propose(alice, q, "yes")
	_, err = f.e.SetParam(f.call(admin), "max_answer_limit", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidParam)
}

func TestParseParamValue(t *testing.T) {
	v, err := ParseParamValue("answer_proposal_stake", "2.5")
	require.NoError(t, err)
	assert.Equal(t, int64(2_500_000), v)

	v, err = ParseParamValue("king_fee_bps", "75")
	require.NoError(t, err)
	assert.Equal(t, int64(75), v)

	_, err = ParseParamValue("king_fee_bps", "0.5")
	assert.ErrorIs(t, err, domain.ErrInvalidParam)
	_, err = ParseParamValue("missing", "1")
	assert.ErrorIs(t, err, domain.ErrInvalidParam)
	assert.Contains(t, ParamNames(), "volume_per_slot")
}

func TestRoles(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.e.GrantRole(f.call(bob), domain.RoleFeeManager, bob)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	cs, err := f.e.GrantRole(f.call(admin), domain.RoleFeeManager, bob)
	require.NoError(t, err)
	assert.Equal(t, []domain.EventType{domain.EventRoleGranted}, eventTypes(cs))
	cs, err = f.e.GrantRole(f.call(admin), domain.RoleFeeManager, bob)
	require.NoError(t, err)
	assert.Empty(t, cs.Events)

	_, err = f.e.SetParam(f.call(bob), "creator_fee_bps", 10)
	assert.NoError(t, err)
	_, err = f.e.SetParam(f.call(bob), "max_multiplier", 5)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = f.e.GrantRole(f.call(admin), domain.RolePauser, bob)
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.Role{domain.RoleFeeManager, domain.RolePauser}, f.e.AccountView(bob).Roles)

	_, err = f.e.RevokeRole(f.call(admin), domain.RoleFeeManager, bob)
	require.NoError(t, err)
	assert.False(t, f.e.HasRole(domain.RoleFeeManager, bob))
	assert.True(t, f.e.HasRole(domain.RolePauser, bob))

	_, err = f.e.GrantRole(f.call(admin), domain.Role("root"), bob)
	assert.ErrorIs(t, err, domain.ErrInvalidParam)
	_, err = f.e.RevokeRole(f.call(admin), domain.RoleAdmin, admin)
	assert.ErrorIs(t, err, domain.ErrInvalidParam)
}

func TestSetTreasury(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.e.SetTreasury(f.call(admin), carol)
	require.NoError(t, err)
	before := f.e.Balance(carol)
	f.question(alice)
	assert.Equal(t, before+domain.Dollars(1), f.e.Balance(carol))

	_, err = f.e.SetTreasury(f.call(admin), common.Address{})
	assert.ErrorIs(t, err, domain.ErrInvalidParam)
}

func TestOneTradePerTick(t *testing.T) {
	f := newFixture(t, nil, WithOneTradePerTick(true))
	q := f.question(alice)
	a := f.propose(alice, q, "yes")

	f.buy(bob, a, domain.Dollars(1))
	_, _, err := f.e.Buy(f.call(bob), a, domain.Dollars(1), 0, f.deadline())
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, domain.KindAntiGaming, domain.Kind(err))

	// Other actors are unaffected.
	f.buy(carol, a, domain.Dollars(1))

	f.tick++
	f.buy(bob, a, domain.Dollars(1))
}

func TestDepositWithdraw(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.e.Deposit(f.call(bob), bob, domain.Dollars(1))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = f.e.Deposit(f.call(admin), domain.EscrowAccount, domain.Dollars(1))
	assert.ErrorIs(t, err, domain.ErrInvalidParam)

	_, err = f.e.Withdraw(f.call(bob), domain.Dollars(4_000))
	require.NoError(t, err)
	assert.Equal(t, domain.Dollars(6_000), f.e.Balance(bob))
	_, err = f.e.Withdraw(f.call(bob), domain.Dollars(6_001))
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	_, err = f.e.Withdraw(f.call(bob), 0)
	assert.ErrorIs(t, err, domain.ErrZeroAmount)
}

func TestSnapshotRestore(t *testing.T) {
	f := newFixture(t, nil)
	q := f.question(alice)
	a := f.propose(alice, q, "yes")
	b := f.propose(bob, q, "no")
	f.buy(bob, a, domain.Dollars(100))
	f.buy(carol, b, domain.Dollars(300))
	_, _, err := f.e.Sell(f.call(bob), a, 100, 0, f.deadline())
	require.NoError(t, err)

	snap := f.e.Snapshot(f.now)
	restored, err := Restore(snap)
	require.NoError(t, err)
	assert.Equal(t, frozen(f.e), frozen(restored))

	// Ids keep counting and duplicates are still detected.
	_, _, err = restored.ProposeAnswer(f.call(carol), q, AnswerInput{Text: "no"})
	assert.ErrorIs(t, err, domain.ErrDuplicateAnswer)
	id, cs, err := restored.ProposeAnswer(f.call(carol), q, AnswerInput{Text: "maybe"})
	require.NoError(t, err)
	assert.Equal(t, b+1, id)
	assert.Equal(t, snap.Seq+1, cs.Seq)

	snap.Balances = append(snap.Balances, domain.AccountAmount{Account: domain.EscrowAccount, Amount: 1})
	_, err = Restore(snap)
	assert.ErrorIs(t, err, ErrInvariant)
}

func TestChangeSetCarriesTouchedRows(t *testing.T) {
	f := newFixture(t, nil)
	q := f.question(alice)
	a := f.propose(alice, q, "yes")

	_, cs, err := f.e.Buy(f.call(bob), a, domain.Dollars(10), 0, f.deadline())
	require.NoError(t, err)
	assert.Equal(t, f.e.Seq(), cs.Seq)
	require.Len(t, cs.Answers, 1)
	require.Len(t, cs.Questions, 1)
	assert.Len(t, cs.Positions, 2) // buyer plus the king-fee holder
	assert.Len(t, cs.AccumulatedFees, 1)
	accounts := make([]common.Address, 0, len(cs.Balances))
	for _, b := range cs.Balances {
		accounts = append(accounts, b.Account)
	}
	assert.ElementsMatch(t, []common.Address{bob, treasury, domain.EscrowAccount}, accounts)
	require.Len(t, cs.Trades, 1)
	assert.Nil(t, cs.Params)
}

// TestRandomOperationsKeepInvariants drives the engine with arbitrary
// operations and checks that every committed one keeps the ledger sound and
// every rejected one leaves it untouched.
func TestRandomOperationsKeepInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := newFixture(t, nil, WithOneTradePerTick(rapid.Bool().Draw(t, "tick_gate")))
		actors := []common.Address{alice, bob, carol}
		pick := rapid.SampledFrom(actors)

		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			actor := pick.Draw(t, "actor")
			before := frozen(f.e)
			var err error

			switch rapid.IntRange(0, 6).Draw(t, "op") {
			case 0:
				_, _, err = f.e.CreateQuestion(f.call(actor), fmt.Sprintf("q%d", i), "")
			case 1:
				qid := rapid.Uint64Range(1, 4).Draw(t, "qid")
				text := rapid.SampledFrom([]string{"a", "b", "c", "d"}).Draw(t, "text")
				_, _, err = f.e.ProposeAnswer(f.call(actor), qid, AnswerInput{Text: text})
			case 2:
				aid := rapid.Uint64Range(1, 8).Draw(t, "aid")
				gross := domain.Amount(rapid.Int64Range(1, int64(domain.Dollars(3000))).Draw(t, "gross"))
				_, _, err = f.e.Buy(f.call(actor), aid, gross, 0, f.deadline())
			case 3:
				aid := rapid.Uint64Range(1, 8).Draw(t, "aid")
				held := f.e.Position(aid, actor).Shares
				shares := domain.Shares(rapid.Int64Range(1, int64(held)+1).Draw(t, "shares"))
				_, _, err = f.e.Sell(f.call(actor), aid, shares, 0, f.deadline())
			case 4:
				_, _, err = f.e.ClaimCreatorFees(f.call(actor))
			case 5:
				aid := rapid.Uint64Range(1, 8).Draw(t, "aid")
				_, _, err = f.e.ClaimKingFees(f.call(actor), aid)
			case 6:
				f.tick++
			}

			if err != nil {
				require.Equal(t, before, frozen(f.e), "rejected operation changed state: %v", err)
				require.NotEqual(t, domain.KindInternal, domain.Kind(err), "unclassified error: %v", err)
				continue
			}
			require.NoError(t, f.e.CheckInvariants())
		}
	})
}
