package market

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/answermarket/internal/domain"
)

var (
	admin    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	treasury = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	alice    = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	bob      = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol    = common.HexToAddress("0x0000000000000000000000000000000000000ca1")

	genesis = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
)

type fixture struct {
	t    require.TestingT
	e    *Engine
	now  time.Time
	tick uint64
}

func newFixture(t require.TestingT, mutate func(*domain.Params), opts ...Option) *fixture {
	p := domain.DefaultParams()
	p.Treasury = treasury
	if mutate != nil {
		mutate(&p)
	}
	e, err := New(p, admin, opts...)
	require.NoError(t, err)

	f := &fixture{t: t, e: e, now: genesis, tick: 1}
	for _, who := range []common.Address{alice, bob, carol} {
		_, err := e.Deposit(f.call(admin), who, domain.Dollars(10_000))
		require.NoError(t, err)
	}
	return f
}

func (f *fixture) call(actor common.Address) Call {
	return Call{Actor: actor, Now: f.now, Tick: f.tick}
}

func (f *fixture) deadline() time.Time { return f.now.Add(time.Minute) }

func (f *fixture) question(creator common.Address) uint64 {
	id, _, err := f.e.CreateQuestion(f.call(creator), "Who wins?", "sports")
	require.NoError(f.t, err)
	return id
}

func (f *fixture) propose(actor common.Address, questionID uint64, text string) uint64 {
	id, _, err := f.e.ProposeAnswer(f.call(actor), questionID, AnswerInput{Text: text})
	require.NoError(f.t, err)
	return id
}

func (f *fixture) buy(actor common.Address, answerID uint64, gross domain.Amount) domain.Trade {
	trade, _, err := f.e.Buy(f.call(actor), answerID, gross, 0, f.deadline())
	require.NoError(f.t, err)
	return trade
}

func (f *fixture) setParam(name string, value int64) {
	_, err := f.e.SetParam(f.call(admin), name, value)
	require.NoError(f.t, err)
}

// frozen returns a snapshot with a zero timestamp for comparison.
func frozen(e *Engine) domain.Snapshot {
	return e.Snapshot(time.Time{})
}

func eventTypes(cs domain.ChangeSet) []domain.EventType {
	out := make([]domain.EventType, 0, len(cs.Events))
	for _, ev := range cs.Events {
		out = append(out, ev.Type)
	}
	return out
}

func noFees(p *domain.Params) {
	p.PlatformFeeBps, p.CreatorFeeBps, p.KingFeeBps = 0, 0, 0
}

