package market

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/answermarket/internal/domain"
)

// state is the explicit ledger store. It is only mutated through a tx, which
// journals every write so a failed operation can be rolled back.
type state struct {
	seq            uint64
	nextQuestionID uint64
	nextAnswerID   uint64
	params         domain.Params
	paused         bool

	questions map[uint64]domain.Question
	answers   map[uint64]domain.Answer
	positions map[domain.PositionKey]domain.Position

	// Indexes derived from the tables above.
	answersByQuestion map[uint64][]uint64
	answerTexts       map[uint64]map[string]uint64
	holders           map[uint64]map[common.Address]struct{}

	balances    map[common.Address]domain.Amount
	accumulated map[common.Address]domain.Amount
	roles       map[domain.Role]map[common.Address]struct{}
	ticks       map[common.Address]uint64
}

func newState(params domain.Params) *state {
	return &state{
		nextQuestionID:    1,
		nextAnswerID:      1,
		params:            params,
		questions:         make(map[uint64]domain.Question),
		answers:           make(map[uint64]domain.Answer),
		positions:         make(map[domain.PositionKey]domain.Position),
		answersByQuestion: make(map[uint64][]uint64),
		answerTexts:       make(map[uint64]map[string]uint64),
		holders:           make(map[uint64]map[common.Address]struct{}),
		balances:          make(map[common.Address]domain.Amount),
		accumulated:       make(map[common.Address]domain.Amount),
		roles:             make(map[domain.Role]map[common.Address]struct{}),
		ticks:             make(map[common.Address]uint64),
	}
}

func (s *state) hasRole(role domain.Role, account common.Address) bool {
	_, ok := s.roles[role][account]
	return ok
}

func (s *state) rolesOf(account common.Address) []domain.Role {
	var out []domain.Role
	for _, r := range domain.AllRoles {
		if s.hasRole(r, account) {
			out = append(out, r)
		}
	}
	return out
}

// sortedHolders returns the addresses holding shares of an answer in byte
// order, so fee distribution is deterministic.
func (s *state) sortedHolders(answerID uint64) []common.Address {
	set := s.holders[answerID]
	out := make([]common.Address, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return addrLess(out[i], out[j]) })
	return out
}

func (s *state) position(answerID uint64, holder common.Address) domain.Position {
	key := domain.PositionKey{AnswerID: answerID, Holder: holder}
	if p, ok := s.positions[key]; ok {
		return p
	}
	return domain.Position{AnswerID: answerID, Holder: holder}
}
