package domain

import "errors"

var (
	// Validation.
	ErrDuplicateAnswer      = errors.New("duplicate answer")
	ErrAnswerLimitReached   = errors.New("answer limit reached")
	ErrInvalidFlipThreshold = errors.New("invalid flip threshold")
	ErrInvalidFeeConfig     = errors.New("invalid fee config")
	ErrInvalidParam         = errors.New("invalid parameter")
	ErrEmptyText            = errors.New("empty text")
	ErrNotPaused            = errors.New("not paused")

	// Economic guards.
	ErrSlippageExceeded    = errors.New("slippage exceeded")
	ErrInsufficientShares  = errors.New("insufficient shares")
	ErrDeadlineExpired     = errors.New("deadline expired")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrZeroAmount          = errors.New("zero amount")
	ErrZeroShares          = errors.New("zero shares minted")
	ErrNothingToClaim      = errors.New("nothing to claim")
	ErrOverflow            = errors.New("arithmetic overflow")

	// Lifecycle / lookup.
	ErrNotFound         = errors.New("not found")
	ErrInactiveQuestion = errors.New("question inactive")

	// Access.
	ErrUnauthorized = errors.New("unauthorized")

	// Availability.
	ErrEnforcedPause = errors.New("enforced pause")
	ErrUnavailable   = errors.New("service unavailable")

	// Anti-gaming.
	ErrRateLimited = errors.New("rate limited")

	// Infrastructure.
	ErrLockHeld = errors.New("lock already held")
)

// ErrorKind is the category of a failed operation.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindEconomic     ErrorKind = "economic"
	KindLookup       ErrorKind = "lookup"
	KindAccess       ErrorKind = "access"
	KindAvailability ErrorKind = "availability"
	KindAntiGaming   ErrorKind = "anti_gaming"
	KindInternal     ErrorKind = "internal"
)

var kinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrDuplicateAnswer, KindValidation},
	{ErrAnswerLimitReached, KindValidation},
	{ErrInvalidFlipThreshold, KindValidation},
	{ErrInvalidFeeConfig, KindValidation},
	{ErrInvalidParam, KindValidation},
	{ErrEmptyText, KindValidation},
	{ErrNotPaused, KindValidation},
	{ErrSlippageExceeded, KindEconomic},
	{ErrInsufficientShares, KindEconomic},
	{ErrDeadlineExpired, KindEconomic},
	{ErrInsufficientBalance, KindEconomic},
	{ErrZeroAmount, KindEconomic},
	{ErrZeroShares, KindEconomic},
	{ErrNothingToClaim, KindEconomic},
	{ErrOverflow, KindEconomic},
	{ErrNotFound, KindLookup},
	{ErrInactiveQuestion, KindLookup},
	{ErrUnauthorized, KindAccess},
	{ErrEnforcedPause, KindAvailability},
	{ErrUnavailable, KindAvailability},
	{ErrRateLimited, KindAntiGaming},
}

// Kind classifies err into one of the error categories. Unknown errors are
// KindInternal.
func Kind(err error) ErrorKind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
