// Package plan implements the budget-plan consumption engine: the rules
// that charge a transaction's monetary effect against matching plans,
// reverse that effect on edit or delete, and derive plan lifecycle status.
package plan

import (
	"github.com/shopspring/decimal"

	"spendtrack/internal/core"
)

// StepKind distinguishes the two compensating operations.
type StepKind int

const (
	// Deduct lowers the remaining allowance of matching active plans,
	// flooring at zero.
	Deduct StepKind = iota
	// Restore raises the remaining allowance of matching plans regardless
	// of their status or window.
	Restore
)

func (k StepKind) String() string {
	if k == Deduct {
		return "deduct"
	}
	return "restore"
}

// Step is one plan adjustment implied by a ledger mutation. Steps are
// ordered: they must be applied in slice order.
type Step struct {
	Kind     StepKind
	Category string
	Amount   decimal.Decimal
}

// changeKey identifies a transaction update in terms the compensation
// protocol cares about. The full table below is keyed on it.
type changeKey struct {
	oldStatus       core.TransactionStatus
	newStatus       core.TransactionStatus
	categoryChanged bool
	amountChanged   bool
}

// actions says which adjustments an update triggers. When both fire the
// order is fixed: deduct the new effect, then restore the old one.
type actions struct {
	deductNew  bool
	restoreOld bool
}

// updateTable is the full compensation decision table for transaction
// updates. It is intentionally asymmetric: staying "spent" restores the old
// effect only when the category or the amount actually changed, while
// arriving at "spent" from "earned" always restores, and leaving "spent"
// for "earned" is a pure restoration. The branch conditions decide whether
// left_money conserves across an edit, so they are spelled out exhaustively
// rather than folded into conditionals.
var updateTable = map[changeKey]actions{
	{core.StatusSpent, core.StatusSpent, false, false}: {deductNew: true},
	{core.StatusSpent, core.StatusSpent, false, true}:  {deductNew: true, restoreOld: true},
	{core.StatusSpent, core.StatusSpent, true, false}:  {deductNew: true, restoreOld: true},
	{core.StatusSpent, core.StatusSpent, true, true}:   {deductNew: true, restoreOld: true},

	{core.StatusEarned, core.StatusSpent, false, false}: {deductNew: true, restoreOld: true},
	{core.StatusEarned, core.StatusSpent, false, true}:  {deductNew: true, restoreOld: true},
	{core.StatusEarned, core.StatusSpent, true, false}:  {deductNew: true, restoreOld: true},
	{core.StatusEarned, core.StatusSpent, true, true}:   {deductNew: true, restoreOld: true},

	{core.StatusSpent, core.StatusEarned, false, false}: {restoreOld: true},
	{core.StatusSpent, core.StatusEarned, false, true}:  {restoreOld: true},
	{core.StatusSpent, core.StatusEarned, true, false}:  {restoreOld: true},
	{core.StatusSpent, core.StatusEarned, true, true}:   {restoreOld: true},

	{core.StatusEarned, core.StatusEarned, false, false}: {},
	{core.StatusEarned, core.StatusEarned, false, true}:  {},
	{core.StatusEarned, core.StatusEarned, true, false}:  {},
	{core.StatusEarned, core.StatusEarned, true, true}:   {},
}

// CreateSteps returns the plan adjustments for a freshly created
// transaction. Earned transactions have no plan effect.
func CreateSteps(tx core.Transaction) []Step {
	if tx.Status != core.StatusSpent {
		return nil
	}
	return []Step{{Kind: Deduct, Category: tx.Category, Amount: tx.Amount}}
}

// DeleteSteps returns the plan adjustments for a deleted transaction. The
// amount a spent transaction had been charged is given back.
func DeleteSteps(tx core.Transaction) []Step {
	if tx.Status != core.StatusSpent {
		return nil
	}
	return []Step{{Kind: Restore, Category: tx.Category, Amount: tx.Amount}}
}

// UpdateSteps returns the ordered plan adjustments for an edit from old to
// new, looked up in the compensation decision table.
func UpdateSteps(old, updated core.Transaction) []Step {
	key := changeKey{
		oldStatus: old.Status,
		newStatus: updated.Status,
		// The old category counts as changed only when it was set at all.
		categoryChanged: old.Category != "" && old.Category != updated.Category,
		amountChanged:   !old.Amount.Equal(updated.Amount),
	}

	act, ok := updateTable[key]
	if !ok {
		return nil
	}

	var steps []Step
	if act.deductNew {
		steps = append(steps, Step{Kind: Deduct, Category: updated.Category, Amount: updated.Amount})
	}
	if act.restoreOld {
		steps = append(steps, Step{Kind: Restore, Category: old.Category, Amount: old.Amount})
	}
	return steps
}
