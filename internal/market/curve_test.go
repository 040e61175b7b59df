package market

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/alanyoungcy/answermarket/internal/domain"
)

func TestQuoteBuyBootstrapAtEmptyPool(t *testing.T) {
	p := domain.DefaultParams()

	minted, err := QuoteBuy(p, Pool{}, domain.Dollars(5))
	require.NoError(t, err)
	assert.Equal(t, domain.Shares(5000), minted)
	assert.Equal(t, "50.00", minted.String())
}

func TestQuoteBuyAtThresholdIsLinear(t *testing.T) {
	p := domain.DefaultParams()
	pool := Pool{Value: p.BootstrapThreshold, Shares: 123_456}

	minted, err := QuoteBuy(p, pool, domain.Dollars(10))
	require.NoError(t, err)
	want := int64(domain.Dollars(10)) * int64(pool.Shares) / int64(pool.Value)
	assert.Equal(t, domain.Shares(want), minted)
}

func TestQuoteBuyMatureEmptyPoolUsesUnitMultiplier(t *testing.T) {
	p := domain.DefaultParams()
	minted, err := QuoteBuy(p, Pool{Value: p.BootstrapThreshold}, domain.Dollars(3))
	require.NoError(t, err)
	assert.Equal(t, domain.Shares(300), minted)
}

func TestQuoteBuyDrainedPoolCappedAtNAV(t *testing.T) {
	p := domain.DefaultParams()
	// NAV of 10 units per share, far above what the bootstrap rate implies.
	pool := Pool{Value: domain.Dollars(120), Shares: 1_200}

	minted, err := QuoteBuy(p, pool, domain.Dollars(100))
	require.NoError(t, err)
	assert.Equal(t, domain.Shares(1_000), minted)

	gross, err := QuoteSell(Pool{Value: pool.Value + domain.Dollars(100), Shares: pool.Shares + minted}, minted)
	require.NoError(t, err)
	assert.LessOrEqual(t, gross, domain.Dollars(100))
}

func TestQuoteBuyNeverBeatsNAV(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := domain.DefaultParams()
		p.MaxMultiplier = rapid.Int64Range(1, domain.MaxBootstrapMultiplier).Draw(t, "m")
		value := domain.Amount(rapid.Int64Range(1, 2*int64(p.BootstrapThreshold)).Draw(t, "value"))
		shares := domain.Shares(rapid.Int64Range(1, 1e10).Draw(t, "shares"))
		net := domain.Amount(rapid.Int64Range(1, 1e12).Draw(t, "net"))
		pool := Pool{Value: value, Shares: shares}

		minted, err := QuoteBuy(p, pool, net)
		if errors.Is(err, domain.ErrOverflow) {
			return
		}
		if err != nil {
			t.Fatalf("quote: %v", err)
		}
		if minted == 0 {
			return
		}
		next, err := pool.applyBuy(net, minted)
		if err != nil {
			t.Fatalf("apply: %v", err)
		}
		gross, err := QuoteSell(next, minted)
		if err != nil {
			t.Fatalf("sell quote: %v", err)
		}
		if gross > net {
			t.Fatalf("deposit %d into %+v redeems for %d", net, pool, gross)
		}
	})
}

func TestQuoteBuyRejectsZero(t *testing.T) {
	_, err := QuoteBuy(domain.DefaultParams(), Pool{}, 0)
	assert.ErrorIs(t, err, domain.ErrZeroAmount)
}

func TestMultiplierBoundaries(t *testing.T) {
	p := domain.DefaultParams()
	assert.Equal(t, int64(10*domain.BpsDenominator), MultiplierBps(p, Pool{}))
	assert.Equal(t, int64(domain.BpsDenominator), MultiplierBps(p, Pool{Value: p.BootstrapThreshold, Shares: 1}))
	assert.Equal(t, int64(55_000), MultiplierBps(p, Pool{Value: p.BootstrapThreshold / 2, Shares: 1}))
}

func TestQuoteSell(t *testing.T) {
	pool := Pool{Value: domain.Dollars(102), Shares: 10_000}

	gross, err := QuoteSell(pool, 10_000)
	require.NoError(t, err)
	assert.Equal(t, pool.Value, gross)

	gross, err = QuoteSell(pool, 2_500)
	require.NoError(t, err)
	assert.Equal(t, domain.Dollars(102)/4, gross)

	_, err = QuoteSell(pool, 10_001)
	assert.ErrorIs(t, err, domain.ErrInsufficientShares)
	_, err = QuoteSell(pool, 0)
	assert.ErrorIs(t, err, domain.ErrZeroAmount)
}

func TestQuoteBuyOverflow(t *testing.T) {
	p := domain.DefaultParams()
	pool := Pool{Value: p.BootstrapThreshold, Shares: domain.Shares(1) << 62}
	_, err := QuoteBuy(p, pool, domain.Amount(1)<<40)
	assert.ErrorIs(t, err, domain.ErrOverflow)
}

func TestMultiplierDecreasesAsPoolFills(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := domain.DefaultParams()
		p.MaxMultiplier = rapid.Int64Range(1, domain.MaxBootstrapMultiplier).Draw(t, "m")
		lo := rapid.Int64Range(0, int64(p.BootstrapThreshold)).Draw(t, "lo")
		hi := rapid.Int64Range(lo, int64(p.BootstrapThreshold)).Draw(t, "hi")

		mLo := MultiplierBps(p, Pool{Value: domain.Amount(lo), Shares: 1})
		mHi := MultiplierBps(p, Pool{Value: domain.Amount(hi), Shares: 1})
		if mHi > mLo {
			t.Fatalf("multiplier rose from %d at %d to %d at %d", mLo, lo, mHi, hi)
		}
	})
}

func TestBuyGrowsPool(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := domain.DefaultParams()
		value := domain.Amount(rapid.Int64Range(1, 1e13).Draw(t, "value"))
		shares := domain.Shares(rapid.Int64Range(1, 1e13).Draw(t, "shares"))
		net := domain.Amount(rapid.Int64Range(1, 1e12).Draw(t, "net"))
		pool := Pool{Value: value, Shares: shares}

		minted, err := QuoteBuy(p, pool, net)
		if errors.Is(err, domain.ErrOverflow) {
			return
		}
		if err != nil {
			t.Fatalf("quote: %v", err)
		}
		if minted == 0 {
			return
		}
		next, err := pool.applyBuy(net, minted)
		if err != nil {
			t.Fatalf("apply: %v", err)
		}
		if next.Value <= pool.Value || next.Shares <= pool.Shares {
			t.Fatalf("pool did not grow: %+v -> %+v", pool, next)
		}
	})
}

func TestSellNeverOverpays(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		value := domain.Amount(rapid.Int64Range(1, 1e13).Draw(t, "value"))
		total := domain.Shares(rapid.Int64Range(1, 1e13).Draw(t, "total"))
		sold := domain.Shares(rapid.Int64Range(1, int64(total)).Draw(t, "sold"))
		pool := Pool{Value: value, Shares: total}

		gross, err := QuoteSell(pool, sold)
		if err != nil {
			t.Fatalf("quote: %v", err)
		}
		next := pool.applySell(gross, sold)
		if next.Value < 0 || next.Shares < 0 {
			t.Fatalf("pool went negative: %+v", next)
		}
		if next.Shares == 0 && next.Value != 0 {
			t.Fatalf("shares exhausted with value left: %+v", next)
		}
	})
}
