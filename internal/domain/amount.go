package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// ScaleDecimals is the number of fractional digits the ledger and the pricing
// engine keep in their integer amounts.
const ScaleDecimals = 4

// One is 1.0 expressed in scaled units (10^4).
var One = big.NewInt(10_000)

// ToScaled converts a display amount into scaled ledger units. Digits beyond
// ScaleDecimals are truncated toward zero.
func ToScaled(d decimal.Decimal) *big.Int {
	return d.Shift(ScaleDecimals).Truncate(0).BigInt()
}

// FromScaled converts scaled ledger units back to a display amount. The
// conversion is exact.
func FromScaled(v *big.Int) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -ScaleDecimals)
}

// HasScalePrecision reports whether d is representable in scaled units
// without truncation.
func HasScalePrecision(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(ScaleDecimals))
}

// MinTokensScaled turns a caller's minimum outcome tokens into scaled units.
// Anything at or below 1 means "one scaled unit", the smallest acceptable fill.
func MinTokensScaled(min decimal.Decimal) *big.Int {
	if min.LessThanOrEqual(decimal.NewFromInt(1)) {
		return big.NewInt(1)
	}
	return ToScaled(min)
}
