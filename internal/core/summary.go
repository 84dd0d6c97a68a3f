package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// CategoryAmount is an amount aggregated by category name, already in the
// requested display currency.
type CategoryAmount struct {
	Name   string
	Amount decimal.Decimal
}

// DailyAmount is spending aggregated per calendar day.
type DailyAmount struct {
	Date  time.Time
	Total decimal.Decimal
}

// MonthlySummary is a denormalized per-user month row maintained by the
// summary worker. Totals are kept in Currency.
type MonthlySummary struct {
	UserID           int64
	Year             int
	Month            int // 1-12
	Currency         string
	TotalSpent       decimal.Decimal
	TotalEarned      decimal.Decimal
	TransactionCount int64
	RefreshedAt      time.Time
}
