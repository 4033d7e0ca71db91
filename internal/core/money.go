// Package core provides money parsing and handling utilities.
//
// Amounts are decimal values with two fractional digits. They are stored as
// integer cents and exposed as decimal.Decimal everywhere else.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// maxAmount bounds amounts to 10 significant digits with 2 decimal places.
var maxAmount = decimal.New(1, 8)

// ParseAmount converts a decimal string to an amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Signs,
// more than two decimal places and values of 10^8 or more are rejected.
// Zero is a valid amount.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,5")  -> 12.50, nil
//	ParseAmount("1.005") -> error
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	if s == "." {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if d.IsNegative() || !d.Truncate(2).Equal(d) || d.Cmp(maxAmount) >= 0 {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// AmountToCents converts an amount with at most two decimal places to cents.
func AmountToCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// AmountFromCents is the inverse of AmountToCents.
func AmountFromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// FormatAmount renders an amount with exactly two decimal places ("12.50").
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
