package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"spendtrack/internal/core"
	"spendtrack/internal/store"
)

// overspendThreshold is the spent/earned ratio above which the overview
// warns the user.
var overspendThreshold = decimal.NewFromFloat(0.7)

// RateSource converts amounts between currencies. Conversion degrades, it
// never errors.
type RateSource interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) decimal.Decimal
}

// SummaryReport is a transaction listing with totals, all in Currency.
type SummaryReport struct {
	Currency     string
	Transactions []core.Transaction
	TotalSpent   decimal.Decimal
	TotalEarned  decimal.Decimal
}

// Overview is the profile snapshot for the current month.
type Overview struct {
	Year        int
	Month       int
	Currency    string
	TotalSpent  decimal.Decimal
	TotalEarned decimal.Decimal
	Advisory    string
}

// ReportsService aggregates the ledger for display, converting amounts into
// a single requested currency.
type ReportsService struct {
	repo  store.Repository
	rates RateSource
	now   func() time.Time
}

func NewReportsService(repo store.Repository, rates RateSource, now func() time.Time) *ReportsService {
	if now == nil {
		now = time.Now
	}
	return &ReportsService{repo: repo, rates: rates, now: now}
}

func (s *ReportsService) displayCurrency(currency string) string {
	if currency == "" {
		return core.DefaultCurrency
	}
	return currency
}

// Summary lists the filtered transactions with their amounts converted to
// the display currency, plus spent and earned totals.
func (s *ReportsService) Summary(ctx context.Context, userID int64, f store.TransactionFilter, currency string) (SummaryReport, error) {
	currency = s.displayCurrency(currency)
	txs, err := s.repo.ListTransactions(ctx, userID, f)
	if err != nil {
		return SummaryReport{}, fmt.Errorf("list transactions: %w", err)
	}

	report := SummaryReport{Currency: currency, Transactions: txs}
	for i, tx := range txs {
		converted := s.rates.Convert(ctx, tx.Amount, tx.Currency, currency)
		report.Transactions[i].Amount = converted
		report.Transactions[i].Currency = currency
		switch tx.Status {
		case core.StatusSpent:
			report.TotalSpent = report.TotalSpent.Add(converted)
		case core.StatusEarned:
			report.TotalEarned = report.TotalEarned.Add(converted)
		}
	}
	return report, nil
}

// SpendingByCategory aggregates spent amounts per category, largest first.
func (s *ReportsService) SpendingByCategory(ctx context.Context, userID int64, f store.TransactionFilter, currency string) ([]core.CategoryAmount, error) {
	currency = s.displayCurrency(currency)
	f.Status = core.StatusSpent
	txs, err := s.repo.ListTransactions(ctx, userID, f)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	totals := make(map[string]decimal.Decimal)
	for _, tx := range txs {
		totals[tx.Category] = totals[tx.Category].Add(s.rates.Convert(ctx, tx.Amount, tx.Currency, currency))
	}

	out := make([]core.CategoryAmount, 0, len(totals))
	for name, amount := range totals {
		out = append(out, core.CategoryAmount{Name: name, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Amount.Equal(out[j].Amount) {
			return out[i].Amount.GreaterThan(out[j].Amount)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// SpendingByDay aggregates spent amounts per calendar day in ascending
// date order.
func (s *ReportsService) SpendingByDay(ctx context.Context, userID int64, f store.TransactionFilter, currency string) ([]core.DailyAmount, error) {
	currency = s.displayCurrency(currency)
	f.Status = core.StatusSpent
	txs, err := s.repo.ListTransactions(ctx, userID, f)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	totals := make(map[time.Time]decimal.Decimal)
	for _, tx := range txs {
		day := tx.Date.Truncate(24 * time.Hour)
		totals[day] = totals[day].Add(s.rates.Convert(ctx, tx.Amount, tx.Currency, currency))
	}

	out := make([]core.DailyAmount, 0, len(totals))
	for day, total := range totals {
		out = append(out, core.DailyAmount{Date: day, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// CurrentOverview summarizes the current month and attaches an advisory
// when spending exceeds 70% of earnings.
func (s *ReportsService) CurrentOverview(ctx context.Context, userID int64, currency string) (Overview, error) {
	currency = s.displayCurrency(currency)
	now := s.now()
	start, end := monthWindow(now.Year(), int(now.Month()))

	report, err := s.Summary(ctx, userID, store.TransactionFilter{StartDate: start, EndDate: end}, currency)
	if err != nil {
		return Overview{}, err
	}

	o := Overview{
		Year:        now.Year(),
		Month:       int(now.Month()),
		Currency:    currency,
		TotalSpent:  report.TotalSpent,
		TotalEarned: report.TotalEarned,
	}
	if o.TotalEarned.IsPositive() && o.TotalSpent.GreaterThan(o.TotalEarned.Mul(overspendThreshold)) {
		o.Advisory = "spending exceeds 70% of earnings this month"
	}
	return o, nil
}

// RefreshMonthlySummary recomputes one user-month from the ledger and
// persists it. Totals are kept in the default currency.
func (s *ReportsService) RefreshMonthlySummary(ctx context.Context, userID int64, year, month int) error {
	start, end := monthWindow(year, month)
	txs, err := s.repo.ListTransactions(ctx, userID, store.TransactionFilter{StartDate: start, EndDate: end})
	if err != nil {
		return fmt.Errorf("list transactions for %d-%02d: %w", year, month, err)
	}

	summary := core.MonthlySummary{
		UserID:           userID,
		Year:             year,
		Month:            month,
		Currency:         core.DefaultCurrency,
		TransactionCount: int64(len(txs)),
		RefreshedAt:      s.now(),
	}
	for _, tx := range txs {
		converted := s.rates.Convert(ctx, tx.Amount, tx.Currency, core.DefaultCurrency)
		switch tx.Status {
		case core.StatusSpent:
			summary.TotalSpent = summary.TotalSpent.Add(converted)
		case core.StatusEarned:
			summary.TotalEarned = summary.TotalEarned.Add(converted)
		}
	}

	if err := s.repo.UpsertMonthlySummary(ctx, summary); err != nil {
		return fmt.Errorf("upsert summary for %d-%02d: %w", year, month, err)
	}
	return nil
}

// MonthlySummary returns the stored denormalized row for one user-month.
func (s *ReportsService) MonthlySummary(ctx context.Context, userID int64, year, month int) (core.MonthlySummary, error) {
	return s.repo.GetMonthlySummary(ctx, userID, year, month)
}

func monthWindow(year, month int) (time.Time, time.Time) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return start, end
}
