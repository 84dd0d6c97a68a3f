package plan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"spendtrack/internal/core"
)

// Store is the slice of the repository the engine needs. The ledger service
// passes a transaction-scoped store so a mutation and its compensation
// commit or roll back together.
type Store interface {
	ListPlans(ctx context.Context, userID int64) ([]core.Plan, error)
	UpdatePlanLeftMoney(ctx context.Context, userID, planID int64, left decimal.Decimal) error
}

// Engine applies compensation steps to a user's plans. The clock is
// injected so the date-window filtering is testable.
type Engine struct {
	now func() time.Time
}

func NewEngine(now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{now: now}
}

// Apply runs the given steps in order against the store.
func (e *Engine) Apply(ctx context.Context, s Store, userID int64, steps []Step) error {
	for _, step := range steps {
		var err error
		switch step.Kind {
		case Deduct:
			err = e.DeductFromPlans(ctx, s, userID, step.Category, step.Amount)
		case Restore:
			err = e.AddToPlans(ctx, s, userID, step.Category, step.Amount)
		}
		if err != nil {
			return fmt.Errorf("%s %s from plans: %w", step.Kind, step.Amount, err)
		}
	}
	return nil
}

// DeductFromPlans lowers the remaining allowance of every plan that is
// active today, whose window contains today, and whose category set matches
// categoryName. The allowance floors at zero: the amount by which a plan is
// exceeded is not recorded anywhere.
func (e *Engine) DeductFromPlans(ctx context.Context, s Store, userID int64, categoryName string, amount decimal.Decimal) error {
	plans, err := s.ListPlans(ctx, userID)
	if err != nil {
		return fmt.Errorf("list plans: %w", err)
	}

	today := e.now()
	for _, p := range plans {
		if p.StatusAt(today) != core.PlanActive || !p.WindowContains(today) {
			continue
		}
		if !p.MatchesCategory(categoryName) {
			continue
		}
		left := p.LeftMoney.Sub(amount)
		if left.IsNegative() {
			left = decimal.Zero
		}
		if err := s.UpdatePlanLeftMoney(ctx, userID, p.ID, left); err != nil {
			return fmt.Errorf("update plan %d: %w", p.ID, err)
		}
		slog.DebugContext(ctx, "Deducted from plan",
			"plan_id", p.ID,
			"category", categoryName,
			"amount", amount.String(),
			"left_money", left.String())
	}
	return nil
}

// AddToPlans raises the remaining allowance of every plan matching
// categoryName, with no status filter, no window check and no ceiling. This
// is deliberately not a mirror of DeductFromPlans: deduction's filtering is
// not reversible information, so restoration applies the amount to every
// matching plan including completed and failed ones.
func (e *Engine) AddToPlans(ctx context.Context, s Store, userID int64, categoryName string, amount decimal.Decimal) error {
	plans, err := s.ListPlans(ctx, userID)
	if err != nil {
		return fmt.Errorf("list plans: %w", err)
	}

	for _, p := range plans {
		if !p.MatchesCategory(categoryName) {
			continue
		}
		left := p.LeftMoney.Add(amount)
		if err := s.UpdatePlanLeftMoney(ctx, userID, p.ID, left); err != nil {
			return fmt.Errorf("update plan %d: %w", p.ID, err)
		}
		slog.DebugContext(ctx, "Restored to plan",
			"plan_id", p.ID,
			"category", categoryName,
			"amount", amount.String(),
			"left_money", left.String())
	}
	return nil
}
