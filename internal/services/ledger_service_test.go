package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"spendtrack/internal/amqp"
	"spendtrack/internal/core"
	"spendtrack/internal/plan"
	"spendtrack/internal/store"
	"spendtrack/internal/store/memory"
)

type capturingPublisher struct {
	events []*amqp.LedgerEventMessage
}

func (p *capturingPublisher) PublishLedgerEvent(_ context.Context, msg *amqp.LedgerEventMessage) error {
	p.events = append(p.events, msg)
	return nil
}

func fixedNow() time.Time {
	return time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
}

func newTestEngine() *plan.Engine {
	return plan.NewEngine(fixedNow)
}

func listAll() store.TransactionFilter {
	return store.TransactionFilter{}
}

func newLedgerFixture(t *testing.T) (*LedgerService, *memory.Repository, *capturingPublisher) {
	t.Helper()
	repo := memory.New()
	pub := &capturingPublisher{}
	svc := NewLedgerService(repo, plan.NewEngine(fixedNow), pub)
	return svc, repo, pub
}

func seedPlan(t *testing.T, repo *memory.Repository, userID int64, category string, amount int64) core.Plan {
	t.Helper()
	ctx := context.Background()
	cat, err := repo.GetOrCreateCategory(ctx, userID, category)
	if err != nil {
		t.Fatalf("seed category: %v", err)
	}
	p, err := repo.CreatePlan(ctx, core.Plan{
		UserID:    userID,
		Type:      core.PlanMonthly,
		Amount:    decimal.NewFromInt(amount),
		FromDate:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		ToDate:    time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
		LeftMoney: decimal.NewFromInt(amount),
		Status:    core.PlanActive,
	})
	if err != nil {
		t.Fatalf("seed plan: %v", err)
	}
	if err := repo.SetPlanCategories(ctx, userID, p.ID, []int64{cat.ID}); err != nil {
		t.Fatalf("seed plan categories: %v", err)
	}
	return p
}

func planLeft(t *testing.T, repo *memory.Repository, userID, planID int64) decimal.Decimal {
	t.Helper()
	p, err := repo.GetPlan(context.Background(), userID, planID)
	if err != nil {
		t.Fatalf("get plan: %v", err)
	}
	return p.LeftMoney
}

func TestLedgerCreate_DeductsFromMatchingPlan(t *testing.T) {
	svc, repo, pub := newLedgerFixture(t)
	const userID = 7
	p := seedPlan(t, repo, userID, "Food", 500)

	tx, err := svc.Create(context.Background(), userID, TransactionInput{
		Date:     "2025-03-10",
		Status:   "spent",
		Category: "Food",
		Amount:   "120",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if tx.ID == 0 {
		t.Fatal("created transaction has no ID")
	}
	if tx.Currency != core.DefaultCurrency {
		t.Fatalf("currency defaulted to %q, want %q", tx.Currency, core.DefaultCurrency)
	}

	if left := planLeft(t, repo, userID, p.ID); !left.Equal(decimal.NewFromInt(380)) {
		t.Fatalf("left_money = %s, want 380", left)
	}
	if len(pub.events) != 1 || pub.events[0].Kind != amqp.EventCreated {
		t.Fatalf("published events = %+v, want one created event", pub.events)
	}
}

func TestLedgerCreate_EarnedHasNoPlanEffect(t *testing.T) {
	svc, repo, _ := newLedgerFixture(t)
	const userID = 7
	p := seedPlan(t, repo, userID, "Salary", 500)

	_, err := svc.Create(context.Background(), userID, TransactionInput{
		Date:     "2025-03-10",
		Status:   "earned",
		Category: "Salary",
		Amount:   "3000",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if left := planLeft(t, repo, userID, p.ID); !left.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("left_money = %s, want untouched 500", left)
	}
}

func TestLedgerCreate_ValidationRunsBeforeAnyWrite(t *testing.T) {
	svc, repo, pub := newLedgerFixture(t)
	const userID = 7
	p := seedPlan(t, repo, userID, "Food", 500)

	tests := []struct {
		name  string
		input TransactionInput
	}{
		{"negative amount", TransactionInput{Date: "2025-03-10", Status: "spent", Category: "Food", Amount: "-5"}},
		{"malformed amount", TransactionInput{Date: "2025-03-10", Status: "spent", Category: "Food", Amount: "abc"}},
		{"bad status", TransactionInput{Date: "2025-03-10", Status: "wasted", Category: "Food", Amount: "5"}},
		{"empty category", TransactionInput{Date: "2025-03-10", Status: "spent", Category: "  ", Amount: "5"}},
		{"bad date", TransactionInput{Date: "10/03/2025", Status: "spent", Category: "Food", Amount: "5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), userID, tt.input)
			if !core.IsValidation(err) {
				t.Fatalf("err = %v, want validation error", err)
			}
		})
	}

	if left := planLeft(t, repo, userID, p.ID); !left.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("left_money = %s, want untouched 500", left)
	}
	if txs, _ := svc.List(context.Background(), userID, store.TransactionFilter{}); len(txs) != 0 {
		t.Fatalf("ledger has %d transactions, want 0", len(txs))
	}
	if len(pub.events) != 0 {
		t.Fatalf("published %d events, want 0", len(pub.events))
	}
}

func TestLedgerUpdate_CompensatesOldEffect(t *testing.T) {
	svc, repo, _ := newLedgerFixture(t)
	const userID = 7
	p := seedPlan(t, repo, userID, "Food", 500)

	tx, err := svc.Create(context.Background(), userID, TransactionInput{
		Date: "2025-03-10", Status: "spent", Category: "Food", Amount: "120",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// 380 after create; edit to 80 deducts 80 then restores 120.
	if _, err := svc.Update(context.Background(), userID, tx.ID, TransactionInput{
		Date: "2025-03-10", Status: "spent", Category: "Food", Amount: "80",
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if left := planLeft(t, repo, userID, p.ID); !left.Equal(decimal.NewFromInt(420)) {
		t.Fatalf("left_money after edit = %s, want 420", left)
	}

	if err := svc.Delete(context.Background(), userID, tx.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if left := planLeft(t, repo, userID, p.ID); !left.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("left_money after delete = %s, want restored 500", left)
	}
}

func TestLedgerUpdate_UnchangedSpentEditDoubleCharges(t *testing.T) {
	svc, repo, _ := newLedgerFixture(t)
	const userID = 7
	p := seedPlan(t, repo, userID, "Food", 500)

	tx, err := svc.Create(context.Background(), userID, TransactionInput{
		Date: "2025-03-10", Status: "spent", Category: "Food", Amount: "120",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Only the description changes: the protocol deducts again without
	// restoring, so the plan is charged twice.
	if _, err := svc.Update(context.Background(), userID, tx.ID, TransactionInput{
		Date: "2025-03-10", Status: "spent", Category: "Food", Amount: "120",
		Description: "team lunch",
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if left := planLeft(t, repo, userID, p.ID); !left.Equal(decimal.NewFromInt(260)) {
		t.Fatalf("left_money = %s, want 260", left)
	}
}

func TestLedgerUpdate_NotFound(t *testing.T) {
	svc, _, _ := newLedgerFixture(t)
	_, err := svc.Update(context.Background(), 7, 999, TransactionInput{
		Date: "2025-03-10", Status: "spent", Category: "Food", Amount: "5",
	})
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLedgerCreate_ReusesExistingCategory(t *testing.T) {
	svc, repo, _ := newLedgerFixture(t)
	const userID = 7

	for i := 0; i < 2; i++ {
		if _, err := svc.Create(context.Background(), userID, TransactionInput{
			Date: "2025-03-10", Status: "spent", Category: "Food", Amount: "5",
		}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	cats, err := repo.ListCategories(context.Background(), userID)
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(cats) != 1 {
		t.Fatalf("got %d categories, want 1", len(cats))
	}
}

func TestLedgerCreate_OtherUsersPlansUntouched(t *testing.T) {
	svc, repo, _ := newLedgerFixture(t)
	mine := seedPlan(t, repo, 7, "Food", 500)
	theirs := seedPlan(t, repo, 8, "Food", 500)

	if _, err := svc.Create(context.Background(), 7, TransactionInput{
		Date: "2025-03-10", Status: "spent", Category: "Food", Amount: "100",
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if left := planLeft(t, repo, 7, mine.ID); !left.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("my plan left = %s, want 400", left)
	}
	if left := planLeft(t, repo, 8, theirs.ID); !left.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("their plan left = %s, want 500", left)
	}
}
