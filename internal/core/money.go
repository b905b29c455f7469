// Package core provides the domain types of the cash dashboard.
//
// This file contains helpers for parsing monetary amounts typed by users
// and rendering them the way the business reads them (es-AR grouping).
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user supplied decimal string into a positive amount.
//
// It accepts a dot (12.34) or a comma (12,34) as decimal separator. When both
// appear, the dot is taken as thousands separator (1.234,50). No rounding is
// applied: every fractional digit given is kept.
//
// Examples:
//   ParseAmount("12.34")    -> 12.34, nil
//   ParseAmount("12,34")    -> 12.34, nil
//   ParseAmount("1.234,50") -> 1234.5, nil
//   ParseAmount("-1")       -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatAmount renders d with two decimals, dot thousands separators and a
// comma decimal separator, e.g. "$1.234,50" or "-$20,00".
func FormatAmount(d decimal.Decimal) string {
	neg := d.IsNegative()
	s := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	b.WriteByte(',')
	b.WriteString(frac)
	return b.String()
}

// FormatGrams renders a gram quantity with up to two decimals.
func FormatGrams(d decimal.Decimal) string {
	return strings.ReplaceAll(d.Round(2).String(), ".", ",") + " g"
}
