package market

import (
	"math"

	"github.com/holiman/uint256"

	"github.com/alanyoungcy/answermarket/internal/domain"
)

// mulDiv returns floor(product(factors) / den). All operands must be
// non-negative and den positive; the result must fit in an int64.
func mulDiv(den int64, factors ...int64) (int64, error) {
	if den <= 0 {
		return 0, domain.ErrInvalidParam
	}
	acc := uint256.NewInt(1)
	for _, f := range factors {
		if f < 0 {
			return 0, domain.ErrInvalidParam
		}
		if _, overflow := acc.MulOverflow(acc, uint256.NewInt(uint64(f))); overflow {
			return 0, domain.ErrOverflow
		}
	}
	acc.Div(acc, uint256.NewInt(uint64(den)))
	if !acc.IsUint64() || acc.Uint64() > math.MaxInt64 {
		return 0, domain.ErrOverflow
	}
	return int64(acc.Uint64()), nil
}

// exceedsBy reports whether challenger > leader * (10000 + bps) / 10000,
// compared exactly as challenger*10000 > leader*(10000+bps).
func exceedsBy(challenger, leader, bps int64) bool {
	lhs := new(uint256.Int).Mul(uint256.NewInt(uint64(challenger)), uint256.NewInt(domain.BpsDenominator))
	rhs := new(uint256.Int).Mul(uint256.NewInt(uint64(leader)), uint256.NewInt(uint64(domain.BpsDenominator+bps)))
	return lhs.Gt(rhs)
}

func addAmount(a, b domain.Amount) (domain.Amount, error) {
	if b > 0 && a > math.MaxInt64-b {
		return 0, domain.ErrOverflow
	}
	return a + b, nil
}

func addShares(a, b domain.Shares) (domain.Shares, error) {
	if b > 0 && a > math.MaxInt64-b {
		return 0, domain.ErrOverflow
	}
	return a + b, nil
}
