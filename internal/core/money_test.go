package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"-12.50", "-12.5", true},
		{"12,34", "12.34", true},
		{" 2.50 ", "2.5", true},
		{"+3", "3", true},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"1,2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestFormatCurrency(t *testing.T) {
	cases := []struct {
		symbol string
		in     string
		out    string
	}{
		{"£", "12.50", "£12.5"},
		{"£", "12.345", "£12.35"},
		{"$", "0", "$0"},
		{"$", "1234.567", "$1,234.57"},
		{"$", "1234567", "$1,234,567"},
		{"£", "-3", "-£3"},
		{"£", "999.999", "£1,000"},
	}
	for _, tc := range cases {
		got := FormatCurrency(tc.symbol, decimal.RequireFromString(tc.in))
		if got != tc.out {
			t.Fatalf("FormatCurrency(%q, %s) = %q, want %q", tc.symbol, tc.in, got, tc.out)
		}
	}
}
