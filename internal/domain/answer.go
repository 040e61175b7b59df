package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Answer is a proposed answer to a question, backed by a bonding-curve pool.
type Answer struct {
	ID           uint64         `json:"id"`
	QuestionID   uint64         `json:"question_id"`
	Text         string         `json:"text"`
	Description  string         `json:"description"`
	ExternalLink string         `json:"external_link"`
	Proposer     common.Address `json:"proposer"`
	PoolValue    Amount         `json:"pool_value"`
	TotalShares  Shares         `json:"total_shares"`
	Graduated    bool           `json:"graduated"`
	CreatedAt    time.Time      `json:"created_at"`
}

// PricePerShare returns the current NAV of one whole share, or zero for an
// empty pool.
func (a Answer) PricePerShare() Amount {
	if a.TotalShares == 0 {
		return 0
	}
	return Amount(int64(a.PoolValue) * int64(ShareScale) / int64(a.TotalShares))
}
