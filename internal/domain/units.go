package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	// CurrencyDecimals is the number of decimals of the settlement currency.
	CurrencyDecimals = 6
	// CurrencyUnit is one whole currency unit in base units.
	CurrencyUnit Amount = 1_000_000

	// ShareDecimals is the number of decimals of a share balance.
	ShareDecimals = 2
	// ShareScale is one whole share in raw units.
	ShareScale Shares = 100

	// BpsDenominator is 100% in basis points.
	BpsDenominator = 10_000
)

// Amount is a currency quantity in base units (6 decimals).
type Amount int64

// Dollars converts a whole-unit count into an Amount.
func Dollars(n int64) Amount { return Amount(n) * CurrencyUnit }

// Decimal returns the amount in whole currency units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -CurrencyDecimals)
}

// String renders the amount with its full precision, e.g. "97.000000".
func (a Amount) String() string {
	return a.Decimal().StringFixed(CurrencyDecimals)
}

// ParseAmount parses a decimal string of whole units ("97.5") into base
// units. Precision beyond six decimals is truncated.
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("amount %q: %w", s, ErrInvalidParam)
	}
	v := d.Shift(CurrencyDecimals).BigInt()
	if !v.IsInt64() {
		return 0, fmt.Errorf("amount %q out of range: %w", s, ErrInvalidParam)
	}
	return Amount(v.Int64()), nil
}

// Shares is a share balance in raw units (2 decimals).
type Shares int64

// Decimal returns the balance in whole shares.
func (s Shares) Decimal() decimal.Decimal {
	return decimal.New(int64(s), -ShareDecimals)
}

// String renders the balance, e.g. "50.00".
func (s Shares) String() string {
	return s.Decimal().StringFixed(ShareDecimals)
}

// ParseShares parses a decimal string of whole shares into raw units.
func ParseShares(s string) (Shares, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("shares %q: %w", s, ErrInvalidParam)
	}
	v := d.Shift(ShareDecimals).BigInt()
	if !v.IsInt64() {
		return 0, fmt.Errorf("shares %q out of range: %w", s, ErrInvalidParam)
	}
	return Shares(v.Int64()), nil
}
