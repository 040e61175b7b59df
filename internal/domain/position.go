package domain

import "github.com/ethereum/go-ethereum/common"

// PositionKey identifies a holder's position in one answer.
type PositionKey struct {
	AnswerID uint64
	Holder   common.Address
}

// Position is a holder's share balance in one answer.
type Position struct {
	AnswerID        uint64         `json:"answer_id"`
	Holder          common.Address `json:"holder"`
	Shares          Shares         `json:"shares"`
	CostBasis       Amount         `json:"cost_basis"`
	PendingKingFees Amount         `json:"pending_king_fees"`
}

// Key returns the position's identity.
func (p Position) Key() PositionKey {
	return PositionKey{AnswerID: p.AnswerID, Holder: p.Holder}
}

// Empty reports whether the position holds neither shares nor claimable fees.
func (p Position) Empty() bool {
	return p.Shares == 0 && p.PendingKingFees == 0
}
