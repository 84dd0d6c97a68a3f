package plan

import (
	"testing"

	"github.com/shopspring/decimal"

	"spendtrack/internal/core"
)

func tx(status core.TransactionStatus, category, amount string) core.Transaction {
	return core.Transaction{
		Status:   status,
		Category: category,
		Amount:   decimal.RequireFromString(amount),
	}
}

func TestCreateSteps(t *testing.T) {
	t.Run("spent deducts", func(t *testing.T) {
		steps := CreateSteps(tx(core.StatusSpent, "Food", "120"))
		if len(steps) != 1 {
			t.Fatalf("got %d steps, want 1", len(steps))
		}
		if steps[0].Kind != Deduct || steps[0].Category != "Food" || !steps[0].Amount.Equal(decimal.RequireFromString("120")) {
			t.Errorf("unexpected step: %+v", steps[0])
		}
	})

	t.Run("earned has no plan effect", func(t *testing.T) {
		if steps := CreateSteps(tx(core.StatusEarned, "Salary", "5000")); len(steps) != 0 {
			t.Errorf("got %d steps, want 0", len(steps))
		}
	})
}

func TestDeleteSteps(t *testing.T) {
	t.Run("spent restores", func(t *testing.T) {
		steps := DeleteSteps(tx(core.StatusSpent, "Food", "120"))
		if len(steps) != 1 || steps[0].Kind != Restore {
			t.Fatalf("unexpected steps: %+v", steps)
		}
	})

	t.Run("earned has no plan effect", func(t *testing.T) {
		if steps := DeleteSteps(tx(core.StatusEarned, "Salary", "5000")); len(steps) != 0 {
			t.Errorf("got %d steps, want 0", len(steps))
		}
	})
}

func TestUpdateSteps(t *testing.T) {
	tests := []struct {
		name string
		old  core.Transaction
		new  core.Transaction
		want []Step
	}{
		{
			name: "spent to spent, nothing changed - deduct only",
			old:  tx(core.StatusSpent, "Food", "120"),
			new:  tx(core.StatusSpent, "Food", "120"),
			want: []Step{
				{Kind: Deduct, Category: "Food", Amount: decimal.RequireFromString("120")},
			},
		},
		{
			name: "spent to spent, amount changed - deduct new then restore old",
			old:  tx(core.StatusSpent, "Food", "120"),
			new:  tx(core.StatusSpent, "Food", "80"),
			want: []Step{
				{Kind: Deduct, Category: "Food", Amount: decimal.RequireFromString("80")},
				{Kind: Restore, Category: "Food", Amount: decimal.RequireFromString("120")},
			},
		},
		{
			name: "spent to spent, category changed - deduct new then restore old",
			old:  tx(core.StatusSpent, "Food", "120"),
			new:  tx(core.StatusSpent, "Travel", "120"),
			want: []Step{
				{Kind: Deduct, Category: "Travel", Amount: decimal.RequireFromString("120")},
				{Kind: Restore, Category: "Food", Amount: decimal.RequireFromString("120")},
			},
		},
		{
			name: "earned to spent always restores old",
			old:  tx(core.StatusEarned, "Food", "120"),
			new:  tx(core.StatusSpent, "Food", "120"),
			want: []Step{
				{Kind: Deduct, Category: "Food", Amount: decimal.RequireFromString("120")},
				{Kind: Restore, Category: "Food", Amount: decimal.RequireFromString("120")},
			},
		},
		{
			name: "spent to earned is pure restoration",
			old:  tx(core.StatusSpent, "Food", "120"),
			new:  tx(core.StatusEarned, "Food", "200"),
			want: []Step{
				{Kind: Restore, Category: "Food", Amount: decimal.RequireFromString("120")},
			},
		},
		{
			name: "earned to earned has no plan effect",
			old:  tx(core.StatusEarned, "Salary", "5000"),
			new:  tx(core.StatusEarned, "Bonus", "1000"),
			want: nil,
		},
		{
			name: "empty old category does not count as a category change",
			old:  tx(core.StatusSpent, "", "120"),
			new:  tx(core.StatusSpent, "Food", "120"),
			want: []Step{
				{Kind: Deduct, Category: "Food", Amount: decimal.RequireFromString("120")},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UpdateSteps(tt.old, tt.new)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d steps %+v, want %d", len(got), got, len(tt.want))
			}
			for i := range got {
				if got[i].Kind != tt.want[i].Kind ||
					got[i].Category != tt.want[i].Category ||
					!got[i].Amount.Equal(tt.want[i].Amount) {
					t.Errorf("step %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

// The table must cover every combination of statuses and change flags.
func TestUpdateTableIsExhaustive(t *testing.T) {
	statuses := []core.TransactionStatus{core.StatusSpent, core.StatusEarned}
	bools := []bool{false, true}
	for _, oldS := range statuses {
		for _, newS := range statuses {
			for _, cat := range bools {
				for _, amt := range bools {
					key := changeKey{oldS, newS, cat, amt}
					if _, ok := updateTable[key]; !ok {
						t.Errorf("missing table entry for %+v", key)
					}
				}
			}
		}
	}
	if len(updateTable) != 16 {
		t.Errorf("table has %d entries, want 16", len(updateTable))
	}
}
