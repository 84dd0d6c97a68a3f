// Package core holds the domain model shared by storage, services and the
// HTTP layer: categories, transactions, plans and the pure plan rules.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a monetary amount from its string form. The amount
// must be a valid decimal and must not be negative.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, &ValidationError{Field: "amount", Reason: "amount is required"}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: "amount", Reason: "expected a number"}
	}
	if d.IsNegative() {
		return decimal.Zero, &ValidationError{Field: "amount", Reason: "amount must be non-negative"}
	}
	return d, nil
}
