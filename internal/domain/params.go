package domain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// MaxFlipThresholdBps caps the king-flip hysteresis margin at 20%.
	MaxFlipThresholdBps = 2000
	// MaxBootstrapMultiplier bounds the early-capital share multiplier.
	MaxBootstrapMultiplier = 1000
)

// Params is the admin-mutable market configuration.
type Params struct {
	QuestionCreationFee  Amount `json:"question_creation_fee"`
	AnswerProposalStake  Amount `json:"answer_proposal_stake"`
	BootstrapThreshold   Amount `json:"bootstrap_threshold"`
	MaxMultiplier        int64  `json:"max_multiplier"`
	GraduationThreshold  Amount `json:"graduation_threshold"`
	KingFlipThresholdBps int64  `json:"king_flip_threshold_bps"`
	PlatformFeeBps       int64  `json:"platform_fee_bps"`
	CreatorFeeBps        int64  `json:"creator_fee_bps"`
	KingFeeBps           int64  `json:"king_fee_bps"`
	BaseAnswerLimit      int    `json:"base_answer_limit"`
	VolumePerSlot        Amount `json:"volume_per_slot"`
	MaxAnswerLimit       int    `json:"max_answer_limit"`

	Treasury common.Address `json:"treasury"`
}

// DefaultParams returns the genesis parameters.
func DefaultParams() Params {
	return Params{
		QuestionCreationFee:  Dollars(1),
		AnswerProposalStake:  Dollars(5),
		BootstrapThreshold:   Dollars(1000),
		MaxMultiplier:        10,
		GraduationThreshold:  Dollars(10_000),
		KingFlipThresholdBps: 500,
		PlatformFeeBps:       200,
		CreatorFeeBps:        50,
		KingFeeBps:           50,
		BaseAnswerLimit:      10,
		VolumePerSlot:        Dollars(1000),
		MaxAnswerLimit:       50,
	}
}

// TotalFeeBps returns the combined fee rate.
func (p Params) TotalFeeBps() int64 {
	return p.PlatformFeeBps + p.CreatorFeeBps + p.KingFeeBps
}

// Validate checks every invariant on the parameter set.
func (p Params) Validate() error {
	if p.KingFlipThresholdBps < 0 || p.KingFlipThresholdBps > MaxFlipThresholdBps {
		return fmt.Errorf("king_flip_threshold_bps %d: %w", p.KingFlipThresholdBps, ErrInvalidFlipThreshold)
	}
	if p.PlatformFeeBps < 0 || p.CreatorFeeBps < 0 || p.KingFeeBps < 0 || p.TotalFeeBps() > BpsDenominator {
		return fmt.Errorf("fees %d/%d/%d bps: %w", p.PlatformFeeBps, p.CreatorFeeBps, p.KingFeeBps, ErrInvalidFeeConfig)
	}
	switch {
	case p.QuestionCreationFee < 0:
		return fmt.Errorf("question_creation_fee must be >= 0: %w", ErrInvalidParam)
	case p.AnswerProposalStake < 0:
		return fmt.Errorf("answer_proposal_stake must be >= 0: %w", ErrInvalidParam)
	case p.BootstrapThreshold <= 0:
		return fmt.Errorf("bootstrap_threshold must be > 0: %w", ErrInvalidParam)
	case p.MaxMultiplier < 1 || p.MaxMultiplier > MaxBootstrapMultiplier:
		return fmt.Errorf("max_multiplier must be in [1, %d]: %w", MaxBootstrapMultiplier, ErrInvalidParam)
	case p.GraduationThreshold < 0:
		return fmt.Errorf("graduation_threshold must be >= 0: %w", ErrInvalidParam)
	case p.BaseAnswerLimit < 1:
		return fmt.Errorf("base_answer_limit must be >= 1: %w", ErrInvalidParam)
	case p.VolumePerSlot <= 0:
		return fmt.Errorf("volume_per_slot must be > 0: %w", ErrInvalidParam)
	case p.MaxAnswerLimit < p.BaseAnswerLimit:
		return fmt.Errorf("max_answer_limit must be >= base_answer_limit: %w", ErrInvalidParam)
	}
	return nil
}
