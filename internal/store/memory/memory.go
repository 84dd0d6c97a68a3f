// Package memory is an in-process store.Repository used by tests and the
// local development backend. WithinTx is implemented by snapshotting the
// whole state and restoring it when fn fails.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"spendtrack/internal/core"
	"spendtrack/internal/store"
)

type summaryKey struct {
	UserID int64
	Year   int
	Month  int
}

type state struct {
	categories   map[int64]core.Category
	transactions map[int64]core.Transaction
	plans        map[int64]core.Plan
	planCats     map[int64][]int64 // plan id -> category ids
	summaries    map[summaryKey]core.MonthlySummary
	nextID       int64
}

type Repository struct {
	mu sync.Mutex
	st *state
}

var _ store.Repository = (*Repository)(nil)

func New() *Repository {
	return &Repository{st: &state{
		categories:   make(map[int64]core.Category),
		transactions: make(map[int64]core.Transaction),
		plans:        make(map[int64]core.Plan),
		planCats:     make(map[int64][]int64),
		summaries:    make(map[summaryKey]core.MonthlySummary),
		nextID:       1,
	}}
}

func (r *Repository) Close() error { return nil }

func (s *state) clone() *state {
	c := &state{
		categories:   make(map[int64]core.Category, len(s.categories)),
		transactions: make(map[int64]core.Transaction, len(s.transactions)),
		plans:        make(map[int64]core.Plan, len(s.plans)),
		planCats:     make(map[int64][]int64, len(s.planCats)),
		summaries:    make(map[summaryKey]core.MonthlySummary, len(s.summaries)),
		nextID:       s.nextID,
	}
	for k, v := range s.categories {
		c.categories[k] = v
	}
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	for k, v := range s.plans {
		p := v
		p.Categories = append([]core.Category(nil), v.Categories...)
		c.plans[k] = p
	}
	for k, v := range s.planCats {
		c.planCats[k] = append([]int64(nil), v...)
	}
	for k, v := range s.summaries {
		c.summaries[k] = v
	}
	return c
}

// WithinTx runs fn against a copy of the state and swaps the copy in only
// when fn succeeds. Nested calls operate on the already-open copy.
func (r *Repository) WithinTx(_ context.Context, fn func(store.Store) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	work := &txStore{st: r.st.clone()}
	if err := fn(work); err != nil {
		return err
	}
	r.st = work.st
	return nil
}

func (r *Repository) allocID() int64 {
	id := r.st.nextID
	r.st.nextID++
	return id
}

// txStore is the transaction-scoped view. It reuses the same method bodies
// through an embedded unlocked repository.
type txStore struct {
	st *state
}

var _ store.Store = (*txStore)(nil)

func (t *txStore) repo() *Repository {
	// Unlocked view over the working copy; the outer WithinTx holds the lock.
	return &Repository{st: t.st}
}

func (t *txStore) GetOrCreateCategory(ctx context.Context, userID int64, name string) (core.Category, error) {
	return t.repo().getOrCreateCategory(userID, name)
}
func (t *txStore) GetCategory(ctx context.Context, userID, id int64) (core.Category, error) {
	return t.repo().getCategory(userID, id)
}
func (t *txStore) ListCategories(ctx context.Context, userID int64) ([]core.Category, error) {
	return t.repo().listCategories(userID)
}
func (t *txStore) CategoryNameTaken(ctx context.Context, userID int64, name string, excludeID int64) (bool, error) {
	return t.repo().categoryNameTaken(userID, name, excludeID)
}
func (t *txStore) RenameCategory(ctx context.Context, userID, id int64, newName string) error {
	return t.repo().renameCategory(userID, id, newName)
}
func (t *txStore) DeleteCategory(ctx context.Context, userID, id int64) error {
	return t.repo().deleteCategory(userID, id)
}
func (t *txStore) DeleteTransactionsByCategory(ctx context.Context, userID, categoryID int64) (int64, error) {
	return t.repo().deleteTransactionsByCategory(userID, categoryID)
}
func (t *txStore) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	return t.repo().createTransaction(tx)
}
func (t *txStore) GetTransaction(ctx context.Context, userID, id int64) (core.Transaction, error) {
	return t.repo().getTransaction(userID, id)
}
func (t *txStore) UpdateTransaction(ctx context.Context, tx core.Transaction) error {
	return t.repo().updateTransaction(tx)
}
func (t *txStore) DeleteTransaction(ctx context.Context, userID, id int64) error {
	return t.repo().deleteTransaction(userID, id)
}
func (t *txStore) ListTransactions(ctx context.Context, userID int64, f store.TransactionFilter) ([]core.Transaction, error) {
	return t.repo().listTransactions(userID, f)
}
func (t *txStore) ListUserIDs(ctx context.Context) ([]int64, error) {
	return t.repo().listUserIDs()
}
func (t *txStore) CreatePlan(ctx context.Context, p core.Plan) (core.Plan, error) {
	return t.repo().createPlan(p)
}
func (t *txStore) GetPlan(ctx context.Context, userID, id int64) (core.Plan, error) {
	return t.repo().getPlan(userID, id)
}
func (t *txStore) UpdatePlan(ctx context.Context, p core.Plan) error {
	return t.repo().updatePlan(p)
}
func (t *txStore) DeletePlan(ctx context.Context, userID, id int64) error {
	return t.repo().deletePlan(userID, id)
}
func (t *txStore) ListPlans(ctx context.Context, userID int64) ([]core.Plan, error) {
	return t.repo().listPlans(userID)
}
func (t *txStore) SetPlanCategories(ctx context.Context, userID, planID int64, categoryIDs []int64) error {
	return t.repo().setPlanCategories(userID, planID, categoryIDs)
}
func (t *txStore) UpdatePlanLeftMoney(ctx context.Context, userID, planID int64, left decimal.Decimal) error {
	return t.repo().updatePlanLeftMoney(userID, planID, left)
}
func (t *txStore) UpdatePlanStatus(ctx context.Context, userID, planID int64, status core.PlanStatus) error {
	return t.repo().updatePlanStatus(userID, planID, status)
}
func (t *txStore) UpsertMonthlySummary(ctx context.Context, s core.MonthlySummary) error {
	return t.repo().upsertMonthlySummary(s)
}
func (t *txStore) GetMonthlySummary(ctx context.Context, userID int64, year, month int) (core.MonthlySummary, error) {
	return t.repo().getMonthlySummary(userID, year, month)
}

// === Categories ===

func (r *Repository) GetOrCreateCategory(ctx context.Context, userID int64, name string) (core.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getOrCreateCategory(userID, name)
}

func (r *Repository) getOrCreateCategory(userID int64, name string) (core.Category, error) {
	for _, c := range r.st.categories {
		if c.UserID == userID && c.Name == name {
			return c, nil
		}
	}
	c := core.Category{ID: r.allocID(), UserID: userID, Name: name}
	r.st.categories[c.ID] = c
	return c, nil
}

func (r *Repository) GetCategory(ctx context.Context, userID, id int64) (core.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getCategory(userID, id)
}

func (r *Repository) getCategory(userID, id int64) (core.Category, error) {
	c, ok := r.st.categories[id]
	if !ok || c.UserID != userID {
		return core.Category{}, core.ErrNotFound
	}
	return c, nil
}

func (r *Repository) ListCategories(ctx context.Context, userID int64) ([]core.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listCategories(userID)
}

func (r *Repository) listCategories(userID int64) ([]core.Category, error) {
	var out []core.Category
	for _, c := range r.st.categories {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *Repository) CategoryNameTaken(ctx context.Context, userID int64, name string, excludeID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.categoryNameTaken(userID, name, excludeID)
}

func (r *Repository) categoryNameTaken(userID int64, name string, excludeID int64) (bool, error) {
	for _, c := range r.st.categories {
		if c.UserID == userID && c.ID != excludeID && strings.EqualFold(c.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (r *Repository) RenameCategory(ctx context.Context, userID, id int64, newName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.renameCategory(userID, id, newName)
}

func (r *Repository) renameCategory(userID, id int64, newName string) error {
	c, ok := r.st.categories[id]
	if !ok || c.UserID != userID {
		return core.ErrNotFound
	}
	c.Name = newName
	r.st.categories[id] = c
	return nil
}

func (r *Repository) DeleteCategory(ctx context.Context, userID, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleteCategory(userID, id)
}

func (r *Repository) deleteCategory(userID, id int64) error {
	c, ok := r.st.categories[id]
	if !ok || c.UserID != userID {
		return core.ErrNotFound
	}
	delete(r.st.categories, id)
	for planID, cats := range r.st.planCats {
		kept := cats[:0]
		for _, cid := range cats {
			if cid != id {
				kept = append(kept, cid)
			}
		}
		r.st.planCats[planID] = kept
		if p, ok := r.st.plans[planID]; ok {
			p.Categories = r.resolveCategories(kept)
			r.st.plans[planID] = p
		}
	}
	return nil
}

func (r *Repository) DeleteTransactionsByCategory(ctx context.Context, userID, categoryID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleteTransactionsByCategory(userID, categoryID)
}

func (r *Repository) deleteTransactionsByCategory(userID, categoryID int64) (int64, error) {
	var n int64
	for id, tx := range r.st.transactions {
		if tx.UserID == userID && tx.CategoryID == categoryID {
			delete(r.st.transactions, id)
			n++
		}
	}
	return n, nil
}

// === Transactions ===

func (r *Repository) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.createTransaction(tx)
}

func (r *Repository) createTransaction(tx core.Transaction) (core.Transaction, error) {
	tx.ID = r.allocID()
	r.st.transactions[tx.ID] = tx
	return tx, nil
}

func (r *Repository) GetTransaction(ctx context.Context, userID, id int64) (core.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getTransaction(userID, id)
}

func (r *Repository) getTransaction(userID, id int64) (core.Transaction, error) {
	tx, ok := r.st.transactions[id]
	if !ok || tx.UserID != userID {
		return core.Transaction{}, core.ErrNotFound
	}
	if c, ok := r.st.categories[tx.CategoryID]; ok {
		tx.Category = c.Name
	}
	return tx, nil
}

func (r *Repository) UpdateTransaction(ctx context.Context, tx core.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updateTransaction(tx)
}

func (r *Repository) updateTransaction(tx core.Transaction) error {
	old, ok := r.st.transactions[tx.ID]
	if !ok || old.UserID != tx.UserID {
		return core.ErrNotFound
	}
	r.st.transactions[tx.ID] = tx
	return nil
}

func (r *Repository) DeleteTransaction(ctx context.Context, userID, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleteTransaction(userID, id)
}

func (r *Repository) deleteTransaction(userID, id int64) error {
	tx, ok := r.st.transactions[id]
	if !ok || tx.UserID != userID {
		return core.ErrNotFound
	}
	delete(r.st.transactions, id)
	return nil
}

func (r *Repository) ListTransactions(ctx context.Context, userID int64, f store.TransactionFilter) ([]core.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listTransactions(userID, f)
}

func (r *Repository) listTransactions(userID int64, f store.TransactionFilter) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, tx := range r.st.transactions {
		if tx.UserID != userID {
			continue
		}
		if !f.StartDate.IsZero() && !f.EndDate.IsZero() {
			if tx.Date.Before(f.StartDate) || tx.Date.After(f.EndDate) {
				continue
			}
		}
		if f.Status != "" && f.Status != "all" && tx.Status != f.Status {
			continue
		}
		if c, ok := r.st.categories[tx.CategoryID]; ok {
			tx.Category = c.Name
		}
		if f.Category != "" && tx.Category != f.Category {
			continue
		}
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *Repository) ListUserIDs(ctx context.Context) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listUserIDs()
}

func (r *Repository) listUserIDs() ([]int64, error) {
	seen := make(map[int64]bool)
	var out []int64
	for _, tx := range r.st.transactions {
		if !seen[tx.UserID] {
			seen[tx.UserID] = true
			out = append(out, tx.UserID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// === Plans ===

func (r *Repository) CreatePlan(ctx context.Context, p core.Plan) (core.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.createPlan(p)
}

func (r *Repository) createPlan(p core.Plan) (core.Plan, error) {
	p.ID = r.allocID()
	r.st.plans[p.ID] = p
	return p, nil
}

func (r *Repository) GetPlan(ctx context.Context, userID, id int64) (core.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getPlan(userID, id)
}

func (r *Repository) getPlan(userID, id int64) (core.Plan, error) {
	p, ok := r.st.plans[id]
	if !ok || p.UserID != userID {
		return core.Plan{}, core.ErrNotFound
	}
	p.Categories = r.resolveCategories(r.st.planCats[id])
	return p, nil
}

func (r *Repository) ListPlans(ctx context.Context, userID int64) ([]core.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listPlans(userID)
}

func (r *Repository) listPlans(userID int64) ([]core.Plan, error) {
	var out []core.Plan
	for _, p := range r.st.plans {
		if p.UserID != userID {
			continue
		}
		p.Categories = r.resolveCategories(r.st.planCats[p.ID])
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Repository) resolveCategories(ids []int64) []core.Category {
	var cats []core.Category
	for _, cid := range ids {
		if c, ok := r.st.categories[cid]; ok {
			cats = append(cats, c)
		}
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].Name < cats[j].Name })
	return cats
}

func (r *Repository) UpdatePlan(ctx context.Context, p core.Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updatePlan(p)
}

func (r *Repository) updatePlan(p core.Plan) error {
	old, ok := r.st.plans[p.ID]
	if !ok || old.UserID != p.UserID {
		return core.ErrNotFound
	}
	r.st.plans[p.ID] = p
	return nil
}

func (r *Repository) DeletePlan(ctx context.Context, userID, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deletePlan(userID, id)
}

func (r *Repository) deletePlan(userID, id int64) error {
	p, ok := r.st.plans[id]
	if !ok || p.UserID != userID {
		return core.ErrNotFound
	}
	delete(r.st.plans, id)
	delete(r.st.planCats, id)
	return nil
}

func (r *Repository) SetPlanCategories(ctx context.Context, userID, planID int64, categoryIDs []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setPlanCategories(userID, planID, categoryIDs)
}

func (r *Repository) setPlanCategories(userID, planID int64, categoryIDs []int64) error {
	p, ok := r.st.plans[planID]
	if !ok || p.UserID != userID {
		return core.ErrNotFound
	}
	r.st.planCats[planID] = append([]int64(nil), categoryIDs...)
	p.Categories = r.resolveCategories(categoryIDs)
	r.st.plans[planID] = p
	return nil
}

func (r *Repository) UpdatePlanLeftMoney(ctx context.Context, userID, planID int64, left decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updatePlanLeftMoney(userID, planID, left)
}

func (r *Repository) updatePlanLeftMoney(userID, planID int64, left decimal.Decimal) error {
	p, ok := r.st.plans[planID]
	if !ok || p.UserID != userID {
		return core.ErrNotFound
	}
	p.LeftMoney = left
	r.st.plans[planID] = p
	return nil
}

func (r *Repository) UpdatePlanStatus(ctx context.Context, userID, planID int64, status core.PlanStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updatePlanStatus(userID, planID, status)
}

func (r *Repository) updatePlanStatus(userID, planID int64, status core.PlanStatus) error {
	p, ok := r.st.plans[planID]
	if !ok || p.UserID != userID {
		return core.ErrNotFound
	}
	p.Status = status
	r.st.plans[planID] = p
	return nil
}

// === Monthly summaries ===

func (r *Repository) UpsertMonthlySummary(ctx context.Context, s core.MonthlySummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.upsertMonthlySummary(s)
}

func (r *Repository) upsertMonthlySummary(s core.MonthlySummary) error {
	if s.RefreshedAt.IsZero() {
		s.RefreshedAt = time.Now()
	}
	r.st.summaries[summaryKey{s.UserID, s.Year, s.Month}] = s
	return nil
}

func (r *Repository) GetMonthlySummary(ctx context.Context, userID int64, year, month int) (core.MonthlySummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getMonthlySummary(userID, year, month)
}

func (r *Repository) getMonthlySummary(userID int64, year, month int) (core.MonthlySummary, error) {
	s, ok := r.st.summaries[summaryKey{userID, year, month}]
	if !ok {
		return core.MonthlySummary{}, core.ErrNotFound
	}
	return s, nil
}
