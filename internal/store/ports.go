// Package store defines the persistence ports for the tracker. The sqlite
// subpackage is the production backend; the memory subpackage backs tests
// and local development.
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"spendtrack/internal/core"
)

// TransactionFilter narrows ListTransactions. Zero values mean "no filter";
// Status additionally treats "all" as no filter, matching the query API.
type TransactionFilter struct {
	StartDate time.Time
	EndDate   time.Time
	Status    core.TransactionStatus
	Category  string
}

type (
	CategoryStore interface {
		// GetOrCreateCategory resolves a category by exact (name, user)
		// match, creating it when absent. The name is stored as given.
		GetOrCreateCategory(ctx context.Context, userID int64, name string) (core.Category, error)
		GetCategory(ctx context.Context, userID, id int64) (core.Category, error)
		ListCategories(ctx context.Context, userID int64) ([]core.Category, error)
		// CategoryNameTaken reports whether another category of the same
		// user already uses the name, compared case-insensitively.
		CategoryNameTaken(ctx context.Context, userID int64, name string, excludeID int64) (bool, error)
		RenameCategory(ctx context.Context, userID, id int64, newName string) error
		DeleteCategory(ctx context.Context, userID, id int64) error
		// DeleteTransactionsByCategory removes the user's transactions in
		// the category and returns how many were deleted.
		DeleteTransactionsByCategory(ctx context.Context, userID, categoryID int64) (int64, error)
	}

	TransactionStore interface {
		CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		GetTransaction(ctx context.Context, userID, id int64) (core.Transaction, error)
		UpdateTransaction(ctx context.Context, tx core.Transaction) error
		DeleteTransaction(ctx context.Context, userID, id int64) error
		// ListTransactions returns the user's transactions newest first.
		ListTransactions(ctx context.Context, userID int64, f TransactionFilter) ([]core.Transaction, error)
		// ListUserIDs returns every user with at least one transaction.
		ListUserIDs(ctx context.Context) ([]int64, error)
	}

	PlanStore interface {
		CreatePlan(ctx context.Context, p core.Plan) (core.Plan, error)
		GetPlan(ctx context.Context, userID, id int64) (core.Plan, error)
		UpdatePlan(ctx context.Context, p core.Plan) error
		DeletePlan(ctx context.Context, userID, id int64) error
		ListPlans(ctx context.Context, userID int64) ([]core.Plan, error)
		SetPlanCategories(ctx context.Context, userID, planID int64, categoryIDs []int64) error
		UpdatePlanLeftMoney(ctx context.Context, userID, planID int64, left decimal.Decimal) error
		UpdatePlanStatus(ctx context.Context, userID, planID int64, status core.PlanStatus) error
	}

	SummaryStore interface {
		UpsertMonthlySummary(ctx context.Context, s core.MonthlySummary) error
		GetMonthlySummary(ctx context.Context, userID int64, year, month int) (core.MonthlySummary, error)
	}

	// Store is everything a unit of work can touch.
	Store interface {
		CategoryStore
		TransactionStore
		PlanStore
		SummaryStore
	}

	// Repository is a Store that can open atomic units of work. The Store
	// handed to fn is transaction-scoped: every mutation inside fn commits
	// or rolls back as one.
	Repository interface {
		Store
		WithinTx(ctx context.Context, fn func(Store) error) error
		Close() error
	}
)
