package math

import (
	"errors"

	"github.com/shopspring/decimal"
)

// FractionalDigits is the precision carried by every price, ratio and fee
// rate in the system. Token amounts are integer-valued decimals.
const FractionalDigits = 18

// ErrDivideByZero is returned instead of panicking when a price or ratio
// division hits a zero denominator.
var ErrDivideByZero = errors.New("division by zero")

var (
	Zero = decimal.Zero
	One  = decimal.NewFromInt(1)
)

func init() {
	decimal.DivisionPrecision = FractionalDigits
}

// DivTruncate divides a by b and truncates toward zero to a whole number of
// token units. This is the conversion used whenever a currency value is
// turned back into token units: the rounding direction never favors the
// party extracting value (minters are under-credited, fee payers are not
// over-refunded).
func DivTruncate(a, b decimal.Decimal) (decimal.Decimal, error) {
	if b.IsZero() {
		return decimal.Decimal{}, ErrDivideByZero
	}
	q, _ := a.QuoRem(b, 0)
	return q, nil
}

// DivCeil divides a by b and rounds up to a whole number of token units.
// Used for the collateral a position must retain: rounding up over-charges
// the withdrawer rather than letting them slip under the required ratio.
func DivCeil(a, b decimal.Decimal) (decimal.Decimal, error) {
	if b.IsZero() {
		return decimal.Decimal{}, ErrDivideByZero
	}
	q, r := a.QuoRem(b, 0)
	if !r.IsZero() {
		q = q.Add(One)
	}
	return q, nil
}

// MustParse converts a decimal literal into a Decimal and panics on malformed
// input. Only for package-level constants and test fixtures.
func MustParse(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
