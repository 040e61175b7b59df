package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Question is a posted prompt that proposers compete to answer.
type Question struct {
	ID              uint64         `json:"id"`
	Text            string         `json:"text"`
	Category        string         `json:"category"`
	Creator         common.Address `json:"creator"` // holds creator-fee rights
	CreatedAt       time.Time      `json:"created_at"`
	TotalVolume     Amount         `json:"total_volume"`
	AnswerCount     int            `json:"answer_count"`
	LeadingAnswerID uint64         `json:"leading_answer_id"` // 0 until the first answer
	Active          bool           `json:"active"`
}

// HasLeader reports whether the question has a leading answer.
func (q Question) HasLeader() bool { return q.LeadingAnswerID != 0 }
