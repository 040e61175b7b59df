package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventType names a signal emitted by a committed operation.
type EventType string

const (
	EventQuestionCreated      EventType = "question_created"
	EventAnswerProposed       EventType = "answer_proposed"
	EventSharesBought         EventType = "shares_bought"
	EventSharesSold           EventType = "shares_sold"
	EventKingChanged          EventType = "king_changed"
	EventAnswerGraduated      EventType = "answer_graduated"
	EventCreatorFeesClaimed   EventType = "creator_fees_claimed"
	EventKingFeesClaimed      EventType = "king_fees_claimed"
	EventOwnershipTransferred EventType = "ownership_transferred"
	EventParamsUpdated        EventType = "params_updated"
	EventPaused               EventType = "paused"
	EventUnpaused             EventType = "unpaused"
	EventRoleGranted          EventType = "role_granted"
	EventRoleRevoked          EventType = "role_revoked"
	EventDeposited            EventType = "deposited"
	EventWithdrawn            EventType = "withdrawn"
)

// Event is one state-change signal. Fields not relevant to Type are zero.
type Event struct {
	ID         string         `json:"id"`
	Seq        uint64         `json:"seq"`
	Type       EventType      `json:"type"`
	QuestionID uint64         `json:"question_id,omitempty"`
	AnswerID   uint64         `json:"answer_id,omitempty"`
	Actor      common.Address `json:"actor"`
	// Counterparty is the new owner, grantee, or previous king's proposer
	// depending on Type.
	Counterparty     common.Address `json:"counterparty,omitempty"`
	PreviousAnswerID uint64         `json:"previous_answer_id,omitempty"`
	Amount           Amount         `json:"amount,omitempty"`
	Shares           Shares         `json:"shares,omitempty"`
	Trade            *Trade         `json:"trade,omitempty"`
	Detail           string         `json:"detail,omitempty"`
	At               time.Time      `json:"at"`
}

// FeeSplit is the decomposition of a gross trade amount.
type FeeSplit struct {
	Gross    Amount `json:"gross"`
	Platform Amount `json:"platform"`
	Creator  Amount `json:"creator"`
	King     Amount `json:"king"`
	Net      Amount `json:"net"`
}

// Fees returns the sum of the three fee components.
func (f FeeSplit) Fees() Amount { return f.Platform + f.Creator + f.King }

// TradeSide is the direction of a trade.
type TradeSide string

const (
	TradeSideBuy   TradeSide = "buy"
	TradeSideSell  TradeSide = "sell"
	TradeSideStake TradeSide = "stake"
)

// Trade is the ledger record of one buy, sell or proposal stake.
type Trade struct {
	Seq         uint64         `json:"seq"`
	QuestionID  uint64         `json:"question_id"`
	AnswerID    uint64         `json:"answer_id"`
	Trader      common.Address `json:"trader"`
	Side        TradeSide      `json:"side"`
	Split       FeeSplit       `json:"split"`
	Shares      Shares         `json:"shares"`
	PoolAfter   Amount         `json:"pool_after"`
	SharesAfter Shares         `json:"shares_after"`
	At          time.Time      `json:"at"`
}
