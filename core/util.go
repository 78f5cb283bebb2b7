package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// CentsToDollars formats an amount of cents as a fixed 2-decimal dollar string, e.g. 4999 -> "49.99".
func CentsToDollars(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
