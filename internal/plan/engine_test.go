package plan

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"spendtrack/internal/core"
)

// fakeStore keeps plans in a slice, enough for exercising the engine.
type fakeStore struct {
	plans []core.Plan
}

func (f *fakeStore) ListPlans(_ context.Context, userID int64) ([]core.Plan, error) {
	var out []core.Plan
	for _, p := range f.plans {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdatePlanLeftMoney(_ context.Context, userID, planID int64, left decimal.Decimal) error {
	for i := range f.plans {
		if f.plans[i].ID == planID && f.plans[i].UserID == userID {
			f.plans[i].LeftMoney = left
		}
	}
	return nil
}

func (f *fakeStore) left(planID int64) decimal.Decimal {
	for _, p := range f.plans {
		if p.ID == planID {
			return p.LeftMoney
		}
	}
	return decimal.Zero
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newPlan(id, userID int64, amount string, from, to time.Time, categories ...string) core.Plan {
	p := core.Plan{
		ID:        id,
		UserID:    userID,
		Type:      core.PlanMonthly,
		Amount:    decimal.RequireFromString(amount),
		FromDate:  from,
		ToDate:    to,
		LeftMoney: decimal.RequireFromString(amount),
	}
	for _, name := range categories {
		p.Categories = append(p.Categories, core.Category{Name: name})
	}
	return p
}

func TestEngine_DeductFromPlans(t *testing.T) {
	jan := func() (time.Time, time.Time) { return date(2024, 1, 1), date(2024, 1, 31) }

	t.Run("matching plan loses allowance", func(t *testing.T) {
		from, to := jan()
		s := &fakeStore{plans: []core.Plan{newPlan(1, 7, "500", from, to, "Food")}}
		e := NewEngine(fixedNow(date(2024, 1, 5)))

		if err := e.DeductFromPlans(context.Background(), s, 7, "Food", decimal.RequireFromString("120")); err != nil {
			t.Fatal(err)
		}
		if got := s.left(1); !got.Equal(decimal.RequireFromString("380")) {
			t.Errorf("left_money = %s, want 380", got)
		}
	})

	t.Run("over-deduction floors at zero", func(t *testing.T) {
		from, to := jan()
		s := &fakeStore{plans: []core.Plan{newPlan(1, 7, "500", from, to, "Food")}}
		e := NewEngine(fixedNow(date(2024, 1, 5)))

		if err := e.DeductFromPlans(context.Background(), s, 7, "Food", decimal.RequireFromString("700")); err != nil {
			t.Fatal(err)
		}
		if got := s.left(1); !got.Equal(decimal.Zero) {
			t.Errorf("left_money = %s, want 0", got)
		}
		if got := s.left(1); got.IsNegative() {
			t.Errorf("left_money went negative: %s", got)
		}
	})

	t.Run("window not containing today is skipped", func(t *testing.T) {
		from, to := jan()
		s := &fakeStore{plans: []core.Plan{newPlan(1, 7, "500", from, to, "Food")}}
		e := NewEngine(fixedNow(date(2024, 2, 10)))

		if err := e.DeductFromPlans(context.Background(), s, 7, "Food", decimal.RequireFromString("120")); err != nil {
			t.Fatal(err)
		}
		if got := s.left(1); !got.Equal(decimal.RequireFromString("500")) {
			t.Errorf("left_money = %s, want untouched 500", got)
		}
	})

	t.Run("non-matching category is skipped", func(t *testing.T) {
		from, to := jan()
		s := &fakeStore{plans: []core.Plan{newPlan(1, 7, "500", from, to, "Rent")}}
		e := NewEngine(fixedNow(date(2024, 1, 5)))

		if err := e.DeductFromPlans(context.Background(), s, 7, "Food", decimal.RequireFromString("120")); err != nil {
			t.Fatal(err)
		}
		if got := s.left(1); !got.Equal(decimal.RequireFromString("500")) {
			t.Errorf("left_money = %s, want untouched 500", got)
		}
	})

	t.Run("wildcard plan matches every category", func(t *testing.T) {
		from, to := jan()
		s := &fakeStore{plans: []core.Plan{newPlan(1, 7, "500", from, to, "All")}}
		e := NewEngine(fixedNow(date(2024, 1, 5)))

		if err := e.DeductFromPlans(context.Background(), s, 7, "Anything", decimal.RequireFromString("50")); err != nil {
			t.Fatal(err)
		}
		if got := s.left(1); !got.Equal(decimal.RequireFromString("450")) {
			t.Errorf("left_money = %s, want 450", got)
		}
	})

	t.Run("other users' plans are untouched", func(t *testing.T) {
		from, to := jan()
		s := &fakeStore{plans: []core.Plan{
			newPlan(1, 7, "500", from, to, "Food"),
			newPlan(2, 8, "500", from, to, "Food"),
		}}
		e := NewEngine(fixedNow(date(2024, 1, 5)))

		if err := e.DeductFromPlans(context.Background(), s, 7, "Food", decimal.RequireFromString("100")); err != nil {
			t.Fatal(err)
		}
		if got := s.left(2); !got.Equal(decimal.RequireFromString("500")) {
			t.Errorf("user 8 plan left_money = %s, want untouched 500", got)
		}
	})
}

func TestEngine_AddToPlans(t *testing.T) {
	t.Run("restores even after the window closed", func(t *testing.T) {
		p := newPlan(1, 7, "500", date(2024, 1, 1), date(2024, 1, 31), "Food")
		p.LeftMoney = decimal.RequireFromString("30")
		s := &fakeStore{plans: []core.Plan{p}}
		e := NewEngine(fixedNow(date(2024, 3, 1)))

		if err := e.AddToPlans(context.Background(), s, 7, "Food", decimal.RequireFromString("120")); err != nil {
			t.Fatal(err)
		}
		if got := s.left(1); !got.Equal(decimal.RequireFromString("150")) {
			t.Errorf("left_money = %s, want 150", got)
		}
	})

	t.Run("no ceiling on restoration", func(t *testing.T) {
		p := newPlan(1, 7, "500", date(2024, 1, 1), date(2024, 1, 31), "Food")
		s := &fakeStore{plans: []core.Plan{p}}
		e := NewEngine(fixedNow(date(2024, 1, 10)))

		if err := e.AddToPlans(context.Background(), s, 7, "Food", decimal.RequireFromString("120")); err != nil {
			t.Fatal(err)
		}
		if got := s.left(1); !got.Equal(decimal.RequireFromString("620")) {
			t.Errorf("left_money = %s, want 620 (restoration may exceed the ceiling)", got)
		}
	})

	t.Run("non-matching plans are untouched", func(t *testing.T) {
		p := newPlan(1, 7, "500", date(2024, 1, 1), date(2024, 1, 31), "Rent")
		s := &fakeStore{plans: []core.Plan{p}}
		e := NewEngine(fixedNow(date(2024, 1, 10)))

		if err := e.AddToPlans(context.Background(), s, 7, "Food", decimal.RequireFromString("120")); err != nil {
			t.Fatal(err)
		}
		if got := s.left(1); !got.Equal(decimal.RequireFromString("500")) {
			t.Errorf("left_money = %s, want untouched 500", got)
		}
	})
}

// Conservation: editing a transaction N times must leave matching plans at
// the same allowance as deleting it and recreating it with the final
// fields, as long as no deduction floors at zero along the way.
func TestEngine_ConservationAcrossEdits(t *testing.T) {
	ctx := context.Background()
	from, to := date(2024, 1, 1), date(2024, 1, 31)
	e := NewEngine(fixedNow(date(2024, 1, 10)))

	apply := func(s *fakeStore, steps []Step) {
		t.Helper()
		if err := e.Apply(ctx, s, 7, steps); err != nil {
			t.Fatal(err)
		}
	}

	versions := []core.Transaction{
		tx(core.StatusSpent, "Food", "120"),
		tx(core.StatusSpent, "Food", "80"),
		tx(core.StatusSpent, "Travel", "80"),
		tx(core.StatusSpent, "Travel", "95.50"),
		tx(core.StatusSpent, "Food", "60"),
	}

	// Path A: create the first version, then edit through every version.
	edited := &fakeStore{plans: []core.Plan{
		newPlan(1, 7, "10000", from, to, "Food"),
		newPlan(2, 7, "10000", from, to, "Travel"),
		newPlan(3, 7, "10000", from, to, "all"),
	}}
	apply(edited, CreateSteps(versions[0]))
	for i := 1; i < len(versions); i++ {
		apply(edited, UpdateSteps(versions[i-1], versions[i]))
	}

	// Path B: create the final version directly.
	direct := &fakeStore{plans: []core.Plan{
		newPlan(1, 7, "10000", from, to, "Food"),
		newPlan(2, 7, "10000", from, to, "Travel"),
		newPlan(3, 7, "10000", from, to, "all"),
	}}
	apply(direct, CreateSteps(versions[len(versions)-1]))

	for _, id := range []int64{1, 2, 3} {
		if a, b := edited.left(id), direct.left(id); !a.Equal(b) {
			t.Errorf("plan %d drifted: edited path %s, direct path %s", id, a, b)
		}
	}

	// Deleting after all the edits must return every plan to its ceiling.
	apply(edited, DeleteSteps(versions[len(versions)-1]))
	for _, id := range []int64{1, 2, 3} {
		if got := edited.left(id); !got.Equal(decimal.RequireFromString("10000")) {
			t.Errorf("plan %d after delete = %s, want 10000", id, got)
		}
	}
}

// Flipping earned to spent with unchanged fields restores an amount that
// was never deducted, so the edit nets to zero. This mirrors the observed
// protocol exactly; the restoration branch fires on the prior status alone.
func TestEngine_EarnedToSpentNetsToZero(t *testing.T) {
	ctx := context.Background()
	s := &fakeStore{plans: []core.Plan{
		newPlan(1, 7, "500", date(2024, 1, 1), date(2024, 1, 31), "Food"),
	}}
	e := NewEngine(fixedNow(date(2024, 1, 10)))

	old := tx(core.StatusEarned, "Food", "120")
	updated := tx(core.StatusSpent, "Food", "120")
	if err := e.Apply(ctx, s, 7, UpdateSteps(old, updated)); err != nil {
		t.Fatal(err)
	}
	if got := s.left(1); !got.Equal(decimal.RequireFromString("500")) {
		t.Errorf("left_money = %s, want 500 (deduct and restore cancel)", got)
	}
}
