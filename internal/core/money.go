// Package core provides the domain types of the linking handshake and the
// spending summary.
//
// This file contains helpers for parsing monetary amounts from strings and
// rendering them as currency for display.
package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// ParseAmount converts a signed decimal string into a decimal amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and an
// optional leading sign. Thousands separators are not accepted.
//
// Examples:
//
//	ParseAmount("-12.50") -> -12.5, nil
//	ParseAmount("3,1")    -> 3.1, nil
//	ParseAmount("1.2.3")  -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatCurrency renders an amount with the given symbol, thousands
// separators and up to two decimal places.
//
// Examples:
//
//	FormatCurrency("£", 12.5)    -> "£12.5"
//	FormatCurrency("$", 1234.567) -> "$1,234.57"
//	FormatCurrency("£", -3)      -> "-£3"
func FormatCurrency(symbol string, amount decimal.Decimal) string {
	rounded := amount.Round(2)
	neg := rounded.IsNegative()
	if neg {
		rounded = rounded.Neg()
	}

	text := rounded.String()
	intPart, fracPart, _ := strings.Cut(text, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString(symbol)
	b.WriteString(groupThousands(intPart))
	if fracPart != "" {
		b.WriteByte('.')
		b.WriteString(fracPart)
	}
	return b.String()
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
