package market

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/alanyoungcy/answermarket/internal/domain"
)

// tx is one in-flight operation. Every write goes through a journaled
// setter; revert replays the undo log backwards, commit collects the rows
// touched into a ChangeSet.
type tx struct {
	s     *state
	call  Call
	undo  []func()
	dirty dirtySet

	// oneTradePerTick limits each actor to one buy or sell per call.Tick.
	oneTradePerTick bool

	events []domain.Event
	trades []domain.Trade
}

type dirtySet struct {
	questions   map[uint64]struct{}
	answers     map[uint64]struct{}
	positions   map[domain.PositionKey]struct{}
	balances    map[common.Address]struct{}
	accumulated map[common.Address]struct{}
	ticks       map[common.Address]struct{}
	params      bool
	paused      bool
	counters    bool
	granted     []domain.RoleGrant
	revoked     []domain.RoleGrant
}

func newTx(s *state, call Call) *tx {
	return &tx{
		s:    s,
		call: call,
		dirty: dirtySet{
			questions:   make(map[uint64]struct{}),
			answers:     make(map[uint64]struct{}),
			positions:   make(map[domain.PositionKey]struct{}),
			balances:    make(map[common.Address]struct{}),
			accumulated: make(map[common.Address]struct{}),
			ticks:       make(map[common.Address]struct{}),
		},
	}
}

func (t *tx) now() time.Time { return t.call.Now }

// journalSet writes m[k] = v and records how to undo it.
func journalSet[K comparable, V any](t *tx, m map[K]V, k K, v V) {
	old, existed := m[k]
	m[k] = v
	t.undo = append(t.undo, func() {
		if existed {
			m[k] = old
		} else {
			delete(m, k)
		}
	})
}

// journalDelete removes m[k] and records how to undo it.
func journalDelete[K comparable, V any](t *tx, m map[K]V, k K) {
	old, existed := m[k]
	if !existed {
		return
	}
	delete(m, k)
	t.undo = append(t.undo, func() { m[k] = old })
}

func (t *tx) revert() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *tx) setQuestion(q domain.Question) {
	journalSet(t, t.s.questions, q.ID, q)
	t.dirty.questions[q.ID] = struct{}{}
}

func (t *tx) setAnswer(a domain.Answer) {
	journalSet(t, t.s.answers, a.ID, a)
	t.dirty.answers[a.ID] = struct{}{}
}

// indexAnswer registers a new answer under its question.
func (t *tx) indexAnswer(a domain.Answer) {
	journalSet(t, t.s.answersByQuestion, a.QuestionID, append(append([]uint64(nil), t.s.answersByQuestion[a.QuestionID]...), a.ID))
	texts, ok := t.s.answerTexts[a.QuestionID]
	if !ok {
		texts = make(map[string]uint64)
		journalSet(t, t.s.answerTexts, a.QuestionID, texts)
	}
	journalSet(t, texts, a.Text, a.ID)
}

func (t *tx) setPosition(p domain.Position) {
	key := p.Key()
	journalSet(t, t.s.positions, key, p)
	t.dirty.positions[key] = struct{}{}

	set, ok := t.s.holders[p.AnswerID]
	if !ok {
		set = make(map[common.Address]struct{})
		journalSet(t, t.s.holders, p.AnswerID, set)
	}
	if p.Shares > 0 {
		journalSet(t, set, p.Holder, struct{}{})
	} else {
		journalDelete(t, set, p.Holder)
	}
}

func (t *tx) setBalance(account common.Address, amt domain.Amount) {
	journalSet(t, t.s.balances, account, amt)
	t.dirty.balances[account] = struct{}{}
}

func (t *tx) setAccumulated(account common.Address, amt domain.Amount) {
	journalSet(t, t.s.accumulated, account, amt)
	t.dirty.accumulated[account] = struct{}{}
}

func (t *tx) setTick(actor common.Address, tick uint64) {
	journalSet(t, t.s.ticks, actor, tick)
	t.dirty.ticks[actor] = struct{}{}
}

func (t *tx) setParams(p domain.Params) {
	old := t.s.params
	t.s.params = p
	t.undo = append(t.undo, func() { t.s.params = old })
	t.dirty.params = true
}

func (t *tx) setPaused(paused bool) {
	old := t.s.paused
	t.s.paused = paused
	t.undo = append(t.undo, func() { t.s.paused = old })
	t.dirty.paused = true
}

func (t *tx) nextQuestionID() uint64 {
	id := t.s.nextQuestionID
	t.s.nextQuestionID++
	t.undo = append(t.undo, func() { t.s.nextQuestionID = id })
	t.dirty.counters = true
	return id
}

func (t *tx) nextAnswerID() uint64 {
	id := t.s.nextAnswerID
	t.s.nextAnswerID++
	t.undo = append(t.undo, func() { t.s.nextAnswerID = id })
	t.dirty.counters = true
	return id
}

func (t *tx) grantRole(role domain.Role, account common.Address) bool {
	set, ok := t.s.roles[role]
	if !ok {
		set = make(map[common.Address]struct{})
		journalSet(t, t.s.roles, role, set)
	}
	if _, held := set[account]; held {
		return false
	}
	journalSet(t, set, account, struct{}{})
	t.dirty.granted = append(t.dirty.granted, domain.RoleGrant{Role: role, Account: account})
	return true
}

func (t *tx) revokeRole(role domain.Role, account common.Address) bool {
	set := t.s.roles[role]
	if _, held := set[account]; !held {
		return false
	}
	journalDelete(t, set, account)
	t.dirty.revoked = append(t.dirty.revoked, domain.RoleGrant{Role: role, Account: account})
	return true
}

// emit queues an event; sequence numbers are assigned at commit.
func (t *tx) emit(ev domain.Event) {
	if ev.At.IsZero() {
		ev.At = t.now()
	}
	t.events = append(t.events, ev)
}

func (t *tx) record(tr domain.Trade) {
	tr.At = t.now()
	t.trades = append(t.trades, tr)
}

// commit bumps the ledger sequence and returns the change set.
func (t *tx) commit() domain.ChangeSet {
	t.s.seq++
	seq := t.s.seq
	t.undo = nil

	cs := domain.ChangeSet{Seq: seq}
	if t.dirty.counters {
		cs.NextQuestionID = t.s.nextQuestionID
		cs.NextAnswerID = t.s.nextAnswerID
	}
	if t.dirty.params {
		p := t.s.params
		cs.Params = &p
	}
	if t.dirty.paused {
		paused := t.s.paused
		cs.Paused = &paused
	}
	for id := range t.dirty.questions {
		cs.Questions = append(cs.Questions, t.s.questions[id])
	}
	for id := range t.dirty.answers {
		cs.Answers = append(cs.Answers, t.s.answers[id])
	}
	for key := range t.dirty.positions {
		cs.Positions = append(cs.Positions, t.s.positions[key])
	}
	for acct := range t.dirty.balances {
		cs.Balances = append(cs.Balances, domain.AccountAmount{Account: acct, Amount: t.s.balances[acct]})
	}
	for acct := range t.dirty.accumulated {
		cs.AccumulatedFees = append(cs.AccumulatedFees, domain.AccountAmount{Account: acct, Amount: t.s.accumulated[acct]})
	}
	for actor := range t.dirty.ticks {
		cs.Ticks = append(cs.Ticks, domain.ActorTick{Actor: actor, Tick: t.s.ticks[actor]})
	}
	cs.RolesGranted = t.dirty.granted
	cs.RolesRevoked = t.dirty.revoked

	for i := range t.trades {
		t.trades[i].Seq = seq
	}
	for i := range t.events {
		t.events[i].ID = uuid.NewString()
		t.events[i].Seq = seq
	}
	cs.Events = t.events
	cs.Trades = t.trades
	sortChangeSet(&cs)
	return cs
}
