package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EscrowAccount is the reserved vault account holding every pool, unclaimed
// creator fee and unclaimed king fee. No caller may act as it.
var EscrowAccount = common.HexToAddress("0x000000000000000000000000000000000000e5c0")

// AccountAmount is an (address, amount) row.
type AccountAmount struct {
	Account common.Address `json:"account"`
	Amount  Amount         `json:"amount"`
}

// ActorTick records the last ordering tick an actor traded in.
type ActorTick struct {
	Actor common.Address `json:"actor"`
	Tick  uint64         `json:"tick"`
}

// Snapshot is the complete ledger state.
type Snapshot struct {
	Seq             uint64          `json:"seq"`
	NextQuestionID  uint64          `json:"next_question_id"`
	NextAnswerID    uint64          `json:"next_answer_id"`
	Params          Params          `json:"params"`
	Paused          bool            `json:"paused"`
	Questions       []Question      `json:"questions"`
	Answers         []Answer        `json:"answers"`
	Positions       []Position      `json:"positions"`
	Balances        []AccountAmount `json:"balances"`
	AccumulatedFees []AccountAmount `json:"accumulated_fees"`
	Roles           []RoleGrant     `json:"roles"`
	Ticks           []ActorTick     `json:"ticks"`
	TakenAt         time.Time       `json:"taken_at"`
}

// ChangeSet holds every row touched by one committed operation, in its
// post-operation state, plus the events and trades the operation produced.
type ChangeSet struct {
	Seq             uint64
	NextQuestionID  uint64
	NextAnswerID    uint64
	Params          *Params
	Paused          *bool
	Questions       []Question
	Answers         []Answer
	Positions       []Position
	Balances        []AccountAmount
	AccumulatedFees []AccountAmount
	RolesGranted    []RoleGrant
	RolesRevoked    []RoleGrant
	Ticks           []ActorTick
	Events          []Event
	Trades          []Trade
}

// Empty reports whether the change set carries nothing to persist.
func (c ChangeSet) Empty() bool {
	return c.Params == nil && c.Paused == nil &&
		len(c.Questions) == 0 && len(c.Answers) == 0 && len(c.Positions) == 0 &&
		len(c.Balances) == 0 && len(c.AccumulatedFees) == 0 &&
		len(c.RolesGranted) == 0 && len(c.RolesRevoked) == 0 &&
		len(c.Ticks) == 0 && len(c.Events) == 0
}

// QuestionView is the read model of a question with its answers.
type QuestionView struct {
	Question   Question `json:"question"`
	Answers    []Answer `json:"answers"`
	MaxAnswers int      `json:"max_answers"`
}

// AccountView is the read model of one address.
type AccountView struct {
	Account         common.Address `json:"account"`
	Balance         Amount         `json:"balance"`
	AccumulatedFees Amount         `json:"accumulated_fees"`
	Positions       []Position     `json:"positions"`
	Roles           []Role         `json:"roles"`
}
