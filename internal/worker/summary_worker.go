// Package worker maintains the denormalized monthly summaries. It consumes
// ledger events published by the API process and recomputes the affected
// user-months; a periodic full refresh backstops lost messages.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"spendtrack/internal/amqp"
	"spendtrack/internal/core"
)

// SummaryRefresher is the slice of the reports service the worker needs.
type SummaryRefresher interface {
	RefreshMonthlySummary(ctx context.Context, userID int64, year, month int) error
}

type SummaryWorker struct {
	reports SummaryRefresher
}

func NewSummaryWorker(reports SummaryRefresher) *SummaryWorker {
	return &SummaryWorker{reports: reports}
}

// HandleLedgerEvent refreshes every user-month a ledger mutation touched.
// An update carries two dates when the edit moved the transaction across
// months; duplicates are collapsed before refreshing.
func (w *SummaryWorker) HandleLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"kind", msg.Kind,
		"user_id", msg.UserID,
		"dates", msg.Dates)

	type yearMonth struct {
		year  int
		month int
	}
	seen := make(map[yearMonth]bool)

	for _, raw := range msg.Dates {
		date, err := core.ParseDate(raw)
		if err != nil {
			return fmt.Errorf("event carries bad date %q: %w", raw, err)
		}
		ym := yearMonth{date.Year(), int(date.Month())}
		if seen[ym] {
			continue
		}
		seen[ym] = true

		if err := w.reports.RefreshMonthlySummary(ctx, msg.UserID, ym.year, ym.month); err != nil {
			return fmt.Errorf("refresh %d-%02d for user %d: %w", ym.year, ym.month, msg.UserID, err)
		}
	}
	return nil
}

// RunPeriodicRefresh recomputes the current month for the given users on a
// fixed interval until ctx is cancelled. It is the backstop for events lost
// while the worker was down.
func (w *SummaryWorker) RunPeriodicRefresh(ctx context.Context, interval time.Duration, listUsers func(context.Context) ([]int64, error)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			users, err := listUsers(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to list users for periodic refresh", "error", err)
				continue
			}
			now := time.Now()
			for _, userID := range users {
				if err := w.reports.RefreshMonthlySummary(ctx, userID, now.Year(), int(now.Month())); err != nil {
					slog.ErrorContext(ctx, "Periodic refresh failed",
						"user_id", userID, "error", err)
				}
			}
		}
	}
}
