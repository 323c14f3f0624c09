package http

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// parseDate parses a date string in YYYY-MM-DD format (the form input type="date" wire format).
func parseDate(dateStr string) (time.Time, error) {
	return time.Parse("2006-01-02", dateStr)
}

// parseAmount parses a signed decimal amount string without rounding.
func parseAmount(amountStr string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(amountStr))
}

// formatAmount renders a decimal amount with two fraction digits for display
// (e.g. "-42.50"). The underlying value keeps its full precision.
func formatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}
