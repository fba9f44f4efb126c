// Package utils provides common utility functions for StockWatcher.
package utils

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatINR formats an amount in Indian Rupee format (₹12,34,567.89).
// Uses the Indian numbering system: last 3 digits, then groups of 2.
func FormatINR(amount decimal.Decimal) string {
	prefix := "₹"
	if amount.IsNegative() {
		prefix = "-₹"
		amount = amount.Abs()
	}

	fixed := amount.StringFixed(2)
	intPart, decPart, _ := strings.Cut(fixed, ".")
	return prefix + groupIndian(intPart) + "." + decPart
}

// FormatPct formats a ratio (0.125) as a signed percentage ("+12.50%").
func FormatPct(ratio float64) string {
	pct := ratio * 100
	if pct >= 0 {
		return fmt.Sprintf("+%.2f%%", pct)
	}
	return fmt.Sprintf("%.2f%%", pct)
}

// ParseINR parses "₹1,23,456.50", "1,23,456" or "Rs. 5000" into a decimal.
func ParseINR(s string) (decimal.Decimal, error) {
	clean := strings.TrimSpace(s)
	for _, p := range []string{"₹", "INR", "RS.", "RS"} {
		if len(clean) >= len(p) && strings.EqualFold(clean[:len(p)], p) {
			clean = clean[len(p):]
		}
	}
	clean = strings.ReplaceAll(strings.TrimSpace(clean), ",", "")
	if clean == "" {
		return decimal.Zero, fmt.Errorf("empty amount %q", s)
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d, nil
}

// groupIndian inserts Indian-style separators into a digit string.
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}

	result := digits[len(digits)-3:]
	remaining := digits[:len(digits)-3]

	// Group remaining digits in pairs from right
	for len(remaining) > 0 {
		if len(remaining) > 2 {
			result = remaining[len(remaining)-2:] + "," + result
			remaining = remaining[:len(remaining)-2]
		} else {
			result = remaining + "," + result
			remaining = ""
		}
	}

	return result
}
