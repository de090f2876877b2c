// Package money implements the fixed-point amount used for balances and postings.
package money

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/simpleatm/atm/internal/domain"
)

// Scale is the number of minor units per major unit.
const Scale = 2

// Amount is a signed quantity of minor currency units (cents).
type Amount int64

var maxMajor = decimal.New(math.MaxInt64, -Scale)

// Parse converts user input such as "100", "40.5" or "0.01" into an Amount.
// Extra fractional digits are rounded half away from zero.
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: amount %q is not a number", domain.ErrInvalidInput, s)
	}
	d = d.Round(Scale)
	if d.Abs().GreaterThan(maxMajor) {
		return 0, fmt.Errorf("%w: amount %q is out of range", domain.ErrInvalidInput, s)
	}
	return Amount(d.Shift(Scale).IntPart()), nil
}

// FromMajor builds an Amount from whole currency units.
func FromMajor(units int64) Amount {
	return Amount(units * 100)
}

// Add returns a+b, failing instead of wrapping around.
func (a Amount) Add(b Amount) (Amount, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, fmt.Errorf("%w: amount overflows balance", domain.ErrInvalidInput)
	}
	return a + b, nil
}

// Decimal returns the amount in major units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -Scale)
}

// String formats the amount with two decimal places, e.g. "60.00".
func (a Amount) String() string {
	return a.Decimal().StringFixed(Scale)
}

// Signed is like String but always carries a sign, e.g. "+100.00" or "-40.00".
func (a Amount) Signed() string {
	if a >= 0 {
		return "+" + a.String()
	}
	return a.String()
}
