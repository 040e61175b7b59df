package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/alanyoungcy/answermarket/internal/domain"
)

func TestFlips(t *testing.T) {
	assert.True(t, Flips(domain.Dollars(100), domain.Dollars(20), 500))
	assert.False(t, Flips(domain.Dollars(52), domain.Dollars(50), 500))
	assert.False(t, Flips(domain.Dollars(52)+domain.Dollars(1)/2, domain.Dollars(50), 500))
	assert.True(t, Flips(domain.Dollars(52)+domain.Dollars(1)/2+1, domain.Dollars(50), 500))
	assert.True(t, Flips(1, 0, 2000))
	assert.False(t, Flips(0, 0, 0))
}

func TestFlipsMatchesMargin(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		leader := rapid.Int64Range(0, 1<<50).Draw(t, "leader")
		challenger := rapid.Int64Range(0, 1<<50).Draw(t, "challenger")
		bps := rapid.Int64Range(0, domain.MaxFlipThresholdBps).Draw(t, "bps")

		want := challenger*domain.BpsDenominator > leader*(domain.BpsDenominator+bps)
		if got := Flips(domain.Amount(challenger), domain.Amount(leader), bps); got != want {
			t.Fatalf("Flips(%d, %d, %d) = %v", challenger, leader, bps, got)
		}
	})
}

func TestFirstAnswerLeadsImmediately(t *testing.T) {
	f := newFixture(t, nil)
	q := f.question(alice)

	a, cs, err := f.e.ProposeAnswer(f.call(bob), q, AnswerInput{Text: "yes"})
	require.NoError(t, err)
	assert.Contains(t, eventTypes(cs), domain.EventKingChanged)

	got, err := f.e.Question(q)
	require.NoError(t, err)
	assert.Equal(t, a, got.LeadingAnswerID)
}

func TestKingHysteresis(t *testing.T) {
	f := newFixture(t, noFees)
	q := f.question(alice)
	leader := f.propose(alice, q, "first")
	challenger := f.propose(bob, q, "second")
	f.buy(alice, leader, domain.Dollars(45))   // pool 50
	f.buy(bob, challenger, domain.Dollars(47)) // pool 52

	got, err := f.e.Question(q)
	require.NoError(t, err)
	assert.Equal(t, leader, got.LeadingAnswerID)

	// Exactly 5% ahead does not flip.
	_, cs, err := f.e.Buy(f.call(bob), challenger, domain.Dollars(1)/2, 0, f.deadline())
	require.NoError(t, err)
	assert.NotContains(t, eventTypes(cs), domain.EventKingChanged)

	_, cs, err = f.e.Buy(f.call(bob), challenger, domain.Dollars(1)/100, 0, f.deadline())
	require.NoError(t, err)
	require.Contains(t, eventTypes(cs), domain.EventKingChanged)
	for _, ev := range cs.Events {
		if ev.Type == domain.EventKingChanged {
			assert.Equal(t, leader, ev.PreviousAnswerID)
			assert.Equal(t, challenger, ev.AnswerID)
			assert.Equal(t, bob, ev.Counterparty)
		}
	}

	got, err = f.e.Question(q)
	require.NoError(t, err)
	assert.Equal(t, challenger, got.LeadingAnswerID)
}

func TestChallengerFlipsAtHundredVersusTwenty(t *testing.T) {
	f := newFixture(t, noFees)
	q := f.question(alice)
	leader := f.propose(alice, q, "first")
	challenger := f.propose(bob, q, "second")
	f.buy(alice, leader, domain.Dollars(15))
	f.buy(bob, challenger, domain.Dollars(95))

	got, err := f.e.Question(q)
	require.NoError(t, err)
	assert.Equal(t, challenger, got.LeadingAnswerID)
}

func TestFlippingTradePaysOutgoingLeader(t *testing.T) {
	f := newFixture(t, nil)
	q := f.question(alice)
	leader := f.propose(alice, q, "first")
	challenger := f.propose(bob, q, "second")

	trade, cs, err := f.e.Buy(f.call(bob), challenger, domain.Dollars(100), 0, f.deadline())
	require.NoError(t, err)
	require.Contains(t, eventTypes(cs), domain.EventKingChanged)
	require.Positive(t, int64(trade.Split.King))

	got, err := f.e.Question(q)
	require.NoError(t, err)
	assert.Equal(t, challenger, got.LeadingAnswerID)

	assert.Equal(t, trade.Split.King, f.e.Position(leader, alice).PendingKingFees)
	assert.Zero(t, f.e.Position(challenger, bob).PendingKingFees)
	require.NoError(t, f.e.CheckInvariants())
}

func TestGraduatesOnce(t *testing.T) {
	f := newFixture(t, nil)
	f.setParam("graduation_threshold", int64(domain.Dollars(100)))
	q := f.question(alice)
	a := f.propose(alice, q, "yes")

	_, cs, err := f.e.Buy(f.call(bob), a, domain.Dollars(200), 0, f.deadline())
	require.NoError(t, err)
	assert.Contains(t, eventTypes(cs), domain.EventAnswerGraduated)

	_, cs, err = f.e.Buy(f.call(bob), a, domain.Dollars(200), 0, f.deadline())
	require.NoError(t, err)
	assert.NotContains(t, eventTypes(cs), domain.EventAnswerGraduated)

	pos := f.e.Position(a, bob)
	_, _, err = f.e.Sell(f.call(bob), a, pos.Shares, 0, f.deadline())
	require.NoError(t, err)
	got, err := f.e.Answer(a)
	require.NoError(t, err)
	assert.True(t, got.Graduated)
}

func TestGraduationDisabledAtZero(t *testing.T) {
	f := newFixture(t, nil)
	f.setParam("graduation_threshold", 0)
	q := f.question(alice)
	a := f.propose(alice, q, "yes")
	f.buy(bob, a, domain.Dollars(5000))

	got, err := f.e.Answer(a)
	require.NoError(t, err)
	assert.False(t, got.Graduated)
}
