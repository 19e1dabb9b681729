// Package money holds the integer minor-unit (cent) arithmetic used for all
// order totals. Amounts only become decimals at the edges: parsing the
// catalog's NUMERIC price column and formatting API responses.
package money

import (
	"errors"

	"github.com/shopspring/decimal"
)

var ErrNotMinorUnits = errors.New("amount does not resolve to whole minor units")

var hundred = decimal.NewFromInt(100)

// CentsFromDecimal converts a decimal dollar amount (e.g. "3.00") to cents.
// Fails if the amount carries sub-cent precision.
func CentsFromDecimal(d decimal.Decimal) (int64, error) {
	shifted := d.Mul(hundred)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, ErrNotMinorUnits
	}
	return shifted.IntPart(), nil
}

// FormatCents renders cents as a two-decimal dollar string, e.g. 653 -> "6.53".
func FormatCents(cents int64) string {
	return decimal.NewFromInt(cents).Div(hundred).StringFixed(2)
}

// RoundHalfUp multiplies cents by rate and rounds half-up to the nearest
// cent. shopspring's Round rounds half away from zero, which is half-up for
// the non-negative amounts handled here.
func RoundHalfUp(cents int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(cents).Mul(rate).Round(0).IntPart()
}
