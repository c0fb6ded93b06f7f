// Package money centralises fixed-precision monetary arithmetic.
//
// All ledger amounts are decimals with two fractional digits. Rounding is
// applied once, at the line level, before any aggregation; totals are never
// re-rounded to force agreement.
package money

import "github.com/shopspring/decimal"

// Epsilon is the tolerance for debit/credit agreement. A voucher whose
// totals differ by Epsilon or more is rejected, never rounded to balance.
var Epsilon = decimal.New(1, -2) // 0.01

// Zero is the additive identity.
var Zero = decimal.Zero

// Round normalises an amount to two fractional digits.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FromFloat converts a float input to a two-digit decimal.
func FromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(2)
}

// Equal reports whether two amounts agree within Epsilon.
func Equal(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(Epsilon)
}

// IsNegative reports whether the amount is below zero.
func IsNegative(d decimal.Decimal) bool {
	return d.Sign() < 0
}

// IsPositive reports whether the amount is above zero.
func IsPositive(d decimal.Decimal) bool {
	return d.Sign() > 0
}

// IsZero reports whether the amount is exactly zero.
func IsZero(d decimal.Decimal) bool {
	return d.Sign() == 0
}

// Sum adds amounts without intermediate rounding.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
