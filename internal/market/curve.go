package market

import (
	"math"

	"github.com/alanyoungcy/answermarket/internal/domain"
)

// unitsPerShare is the currency base units per raw share unit at
// multiplier 1.
const unitsPerShare = int64(domain.CurrencyUnit) / int64(domain.ShareScale)

// Pool is the (poolValue, totalShares) pair the curve prices against.
type Pool struct {
	Value  domain.Amount
	Shares domain.Shares
}

func poolOf(a domain.Answer) Pool {
	return Pool{Value: a.PoolValue, Shares: a.TotalShares}
}

// Bootstrapping reports whether a deposit into pool is priced on the
// bootstrap multiplier rather than at NAV.
func Bootstrapping(p domain.Params, pool Pool) bool {
	return pool.Value < p.BootstrapThreshold || pool.Shares == 0
}

// MultiplierBps returns the bootstrap multiplier for pool in basis points:
// M*10000 at an empty pool, falling linearly to 10000 at the bootstrap
// threshold. Mature pools report 10000.
func MultiplierBps(p domain.Params, pool Pool) int64 {
	if pool.Value >= p.BootstrapThreshold {
		return domain.BpsDenominator
	}
	b := int64(p.BootstrapThreshold)
	extra, err := mulDiv(b, (p.MaxMultiplier-1)*domain.BpsDenominator, b-int64(pool.Value))
	if err != nil {
		return domain.BpsDenominator
	}
	return domain.BpsDenominator + extra
}

// QuoteBuy returns the shares minted for depositing net into pool.
//
// Below the bootstrap threshold B the deposit earns
// net * (1 + (M-1)*(1-P/B)) shares at ShareScale per currency unit, capped
// at NAV (net * T / P) while shares are outstanding so a buy never mints
// more than its deposit redeems for. At or above B issuance is proportional
// to NAV. A pool at or above B with no outstanding shares falls back to the
// bootstrap rate at multiplier 1.
func QuoteBuy(p domain.Params, pool Pool, net domain.Amount) (domain.Shares, error) {
	if net <= 0 {
		return 0, domain.ErrZeroAmount
	}
	if pool.Value >= p.BootstrapThreshold && pool.Shares > 0 {
		minted, err := mulDiv(int64(pool.Value), int64(net), int64(pool.Shares))
		return domain.Shares(minted), err
	}

	b := int64(p.BootstrapThreshold)
	remaining := b - int64(pool.Value)
	if remaining < 0 {
		remaining = 0
	}
	// net * ShareScale * (B + (M-1)*(B-P)) / (CurrencyUnit * B)
	weight, err := mulDiv(1, p.MaxMultiplier-1, remaining)
	if err != nil {
		return 0, err
	}
	if b > math.MaxInt64/unitsPerShare {
		return 0, domain.ErrOverflow
	}
	minted, err := mulDiv(unitsPerShare*b, int64(net), b+weight)
	if err != nil {
		return 0, err
	}
	if pool.Shares > 0 && pool.Value > 0 {
		atNAV, err := mulDiv(int64(pool.Value), int64(net), int64(pool.Shares))
		if err == nil && atNAV < minted {
			minted = atNAV
		}
	}
	return domain.Shares(minted), nil
}

// QuoteSell returns the gross currency released by redeeming shares from
// pool at the current NAV, shares * P / T.
func QuoteSell(pool Pool, shares domain.Shares) (domain.Amount, error) {
	if shares <= 0 {
		return 0, domain.ErrZeroAmount
	}
	if shares > pool.Shares {
		return 0, domain.ErrInsufficientShares
	}
	if shares == pool.Shares {
		return pool.Value, nil
	}
	gross, err := mulDiv(int64(pool.Shares), int64(shares), int64(pool.Value))
	return domain.Amount(gross), err
}

// applyBuy returns the pool after depositing net for minted shares.
func (pool Pool) applyBuy(net domain.Amount, minted domain.Shares) (Pool, error) {
	value, err := addAmount(pool.Value, net)
	if err != nil {
		return Pool{}, err
	}
	shares, err := addShares(pool.Shares, minted)
	if err != nil {
		return Pool{}, err
	}
	return Pool{Value: value, Shares: shares}, nil
}

// applySell returns the pool after redeeming shares for gross.
func (pool Pool) applySell(gross domain.Amount, shares domain.Shares) Pool {
	return Pool{Value: pool.Value - gross, Shares: pool.Shares - shares}
}
