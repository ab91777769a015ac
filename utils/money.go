package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatAmount renders an amount the way the page shows it: whole amounts
// without decimals, others with two, followed by the currency symbol.
func FormatAmount(amount decimal.Decimal, symbol string) string {
	var s string
	if amount.Equal(amount.Truncate(0)) {
		s = amount.StringFixed(0)
	} else {
		s = amount.StringFixed(2)
	}
	if symbol == "" {
		return s
	}
	return s + " " + symbol
}

// ParseAmount reads an amount the provider or the page sent back, tolerating
// a currency symbol, thousands separators and surrounding spaces.
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			return r
		default:
			return -1
		}
	}, s)
	return decimal.NewFromString(cleaned)
}
