// Package asset defines the token and amount primitives shared by the
// router engine, the gateways and the venues.
package asset

import (
	"fmt"
	"strings"
)

// Token identifies an asset by its symbol or address. Comparison is
// case-sensitive after normalization via Normalize.
type Token string

// Normalize trims whitespace so tokens read from config files and wire
// payloads compare equal.
func Normalize(t Token) Token {
	return Token(strings.TrimSpace(string(t)))
}

// BasisPointDenominator is the denominator for all bps fractions.
const BasisPointDenominator = 10000

// SplitCeil partitions amount into (fee, remainder) where
// fee = ceil(amount * bps / 10000). The two parts always sum back to
// amount. The computation avoids uint64 overflow by splitting amount
// into its quotient and remainder modulo the denominator.
func SplitCeil(amount uint64, bps uint32) (fee, remainder uint64) {
	q := amount / BasisPointDenominator
	r := amount % BasisPointDenominator

	fee = q * uint64(bps)
	frac := r * uint64(bps) // at most 9999 * 10000, no overflow
	fee += frac / BasisPointDenominator
	if frac%BasisPointDenominator != 0 {
		fee++
	}
	return fee, amount - fee
}

// AddChecked returns a+b or an error on uint64 overflow.
func AddChecked(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, fmt.Errorf("amount overflow: %d + %d", a, b)
	}
	return sum, nil
}
