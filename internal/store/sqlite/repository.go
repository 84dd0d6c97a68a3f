// Package sqlite implements the store ports on an embedded SQLite
// database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"spendtrack/internal/core"
	"spendtrack/internal/store"
)

// querier is satisfied by both *sql.DB and *sql.Tx so every query method
// works identically inside and outside a unit of work.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Repository struct {
	db *sql.DB // nil when transaction-scoped
	q  querier
}

var _ store.Repository = (*Repository)(nil)

func New(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db, q: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// WithinTx runs fn inside a database transaction. The Store passed to fn
// shares the transaction, so a ledger mutation and its plan compensation
// commit or roll back together. Nested calls reuse the open transaction.
func (r *Repository) WithinTx(ctx context.Context, fn func(store.Store) error) error {
	if r.db == nil {
		return fn(r)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	scoped := &Repository{q: tx}
	if err := fn(scoped); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// === Categories ===

func (r *Repository) GetOrCreateCategory(ctx context.Context, userID int64, name string) (core.Category, error) {
	var c core.Category
	err := r.q.QueryRowContext(ctx, `
		SELECT id, user_id, name, is_global FROM categories
		WHERE user_id = ? AND name = ?
	`, userID, name).Scan(&c.ID, &c.UserID, &c.Name, &c.IsGlobal)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("find category: %w", err)
	}

	res, err := r.q.ExecContext(ctx, `
		INSERT INTO categories (user_id, name) VALUES (?, ?)
	`, userID, name)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Category{}, fmt.Errorf("category insert id: %w", err)
	}
	return core.Category{ID: id, UserID: userID, Name: name}, nil
}

func (r *Repository) GetCategory(ctx context.Context, userID, id int64) (core.Category, error) {
	var c core.Category
	err := r.q.QueryRowContext(ctx, `
		SELECT id, user_id, name, is_global FROM categories
		WHERE id = ? AND user_id = ?
	`, id, userID).Scan(&c.ID, &c.UserID, &c.Name, &c.IsGlobal)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.ErrNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (r *Repository) ListCategories(ctx context.Context, userID int64) ([]core.Category, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, user_id, name, is_global FROM categories
		WHERE user_id = ? ORDER BY name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.IsGlobal); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) CategoryNameTaken(ctx context.Context, userID int64, name string, excludeID int64) (bool, error) {
	var taken bool
	err := r.q.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM categories
			WHERE user_id = ? AND id <> ? AND LOWER(name) = LOWER(?)
		)
	`, userID, excludeID, name).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check category name: %w", err)
	}
	return taken, nil
}

func (r *Repository) RenameCategory(ctx context.Context, userID, id int64, newName string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE categories SET name = ? WHERE id = ? AND user_id = ?
	`, newName, id, userID)
	if err != nil {
		return fmt.Errorf("rename category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rename category rows: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteCategory(ctx context.Context, userID, id int64) error {
	res, err := r.q.ExecContext(ctx, `
		DELETE FROM categories WHERE id = ? AND user_id = ?
	`, id, userID)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete category rows: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteTransactionsByCategory(ctx context.Context, userID, categoryID int64) (int64, error) {
	res, err := r.q.ExecContext(ctx, `
		DELETE FROM transactions WHERE user_id = ? AND category_id = ?
	`, userID, categoryID)
	if err != nil {
		return 0, fmt.Errorf("delete transactions by category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete transactions rows: %w", err)
	}
	return n, nil
}

// === Transactions ===

func (r *Repository) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO transactions (user_id, date, status, category_id, amount, currency, description)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, tx.UserID, tx.Date.Format(core.DateLayout), tx.Status, tx.CategoryID,
		tx.Amount.String(), tx.Currency, tx.Description)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction insert id: %w", err)
	}
	tx.ID = id
	return tx, nil
}

const transactionColumns = `
	t.id, t.user_id, t.date, t.status, t.category_id, c.name, t.amount, t.currency, t.description
`

func (r *Repository) scanTransaction(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var (
		tx       core.Transaction
		dateStr  string
		amount   string
		category sql.NullString
	)
	if err := row.Scan(&tx.ID, &tx.UserID, &dateStr, &tx.Status, &tx.CategoryID,
		&category, &amount, &tx.Currency, &tx.Description); err != nil {
		return core.Transaction{}, err
	}
	var err error
	if tx.Date, err = time.Parse(core.DateLayout, dateStr); err != nil {
		return core.Transaction{}, fmt.Errorf("parse transaction date %q: %w", dateStr, err)
	}
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Transaction{}, fmt.Errorf("parse transaction amount %q: %w", amount, err)
	}
	tx.Category = category.String
	return tx, nil
}

func (r *Repository) GetTransaction(ctx context.Context, userID, id int64) (core.Transaction, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.id = ? AND t.user_id = ?
	`, id, userID)
	tx, err := r.scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

func (r *Repository) UpdateTransaction(ctx context.Context, tx core.Transaction) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE transactions
		SET date = ?, status = ?, category_id = ?, amount = ?, currency = ?, description = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND user_id = ?
	`, tx.Date.Format(core.DateLayout), tx.Status, tx.CategoryID, tx.Amount.String(),
		tx.Currency, tx.Description, tx.ID, tx.UserID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transaction rows: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteTransaction(ctx context.Context, userID, id int64) error {
	res, err := r.q.ExecContext(ctx, `
		DELETE FROM transactions WHERE id = ? AND user_id = ?
	`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction rows: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *Repository) ListTransactions(ctx context.Context, userID int64, f store.TransactionFilter) ([]core.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = ?`
	args := []any{userID}

	if !f.StartDate.IsZero() && !f.EndDate.IsZero() {
		query += " AND t.date >= ? AND t.date <= ?"
		args = append(args, f.StartDate.Format(core.DateLayout), f.EndDate.Format(core.DateLayout))
	}
	if f.Status != "" && f.Status != "all" {
		query += " AND t.status = ?"
		args = append(args, f.Status)
	}
	if f.Category != "" {
		query += " AND c.name = ?"
		args = append(args, f.Category)
	}
	query += " ORDER BY t.date DESC, t.id DESC"

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := r.scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (r *Repository) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT DISTINCT user_id FROM transactions ORDER BY user_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// === Plans ===

func (r *Repository) CreatePlan(ctx context.Context, p core.Plan) (core.Plan, error) {
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO plans (user_id, type, amount, description, from_date, to_date, left_money, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, p.UserID, p.Type, p.Amount.String(), p.Description,
		p.FromDate.Format(core.DateLayout), p.ToDate.Format(core.DateLayout),
		p.LeftMoney.String(), p.Status)
	if err != nil {
		return core.Plan{}, fmt.Errorf("create plan: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Plan{}, fmt.Errorf("plan insert id: %w", err)
	}
	p.ID = id
	return p, nil
}

func (r *Repository) scanPlan(row interface{ Scan(...any) error }) (core.Plan, error) {
	var (
		p              core.Plan
		amount, left   string
		fromStr, toStr string
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.Type, &amount, &p.Description,
		&fromStr, &toStr, &left, &p.Status); err != nil {
		return core.Plan{}, err
	}
	var err error
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Plan{}, fmt.Errorf("parse plan amount %q: %w", amount, err)
	}
	if p.LeftMoney, err = decimal.NewFromString(left); err != nil {
		return core.Plan{}, fmt.Errorf("parse plan left_money %q: %w", left, err)
	}
	if p.FromDate, err = time.Parse(core.DateLayout, fromStr); err != nil {
		return core.Plan{}, fmt.Errorf("parse plan from_date %q: %w", fromStr, err)
	}
	if p.ToDate, err = time.Parse(core.DateLayout, toStr); err != nil {
		return core.Plan{}, fmt.Errorf("parse plan to_date %q: %w", toStr, err)
	}
	return p, nil
}

func (r *Repository) GetPlan(ctx context.Context, userID, id int64) (core.Plan, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, user_id, type, amount, description, from_date, to_date, left_money, status
		FROM plans WHERE id = ? AND user_id = ?
	`, id, userID)
	p, err := r.scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Plan{}, core.ErrNotFound
	}
	if err != nil {
		return core.Plan{}, fmt.Errorf("get plan: %w", err)
	}
	if err := r.loadPlanCategories(ctx, map[int64]*core.Plan{p.ID: &p}); err != nil {
		return core.Plan{}, err
	}
	return p, nil
}

func (r *Repository) ListPlans(ctx context.Context, userID int64) ([]core.Plan, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, user_id, type, amount, description, from_date, to_date, left_money, status
		FROM plans WHERE user_id = ? ORDER BY id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var out []core.Plan
	for rows.Next() {
		p, err := r.scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	byID := make(map[int64]*core.Plan, len(out))
	for i := range out {
		byID[out[i].ID] = &out[i]
	}
	if err := r.loadPlanCategories(ctx, byID); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) loadPlanCategories(ctx context.Context, plans map[int64]*core.Plan) error {
	if len(plans) == 0 {
		return nil
	}
	query := `
		SELECT pc.plan_id, c.id, c.user_id, c.name, c.is_global
		FROM plan_categories pc
		JOIN categories c ON c.id = pc.category_id
		WHERE pc.plan_id IN (`
	args := make([]any, 0, len(plans))
	for id := range plans {
		if len(args) > 0 {
			query += ", "
		}
		query += "?"
		args = append(args, id)
	}
	query += ") ORDER BY c.name"

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("load plan categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			planID int64
			c      core.Category
		)
		if err := rows.Scan(&planID, &c.ID, &c.UserID, &c.Name, &c.IsGlobal); err != nil {
			return fmt.Errorf("scan plan category: %w", err)
		}
		if p, ok := plans[planID]; ok {
			p.Categories = append(p.Categories, c)
		}
	}
	return rows.Err()
}

func (r *Repository) UpdatePlan(ctx context.Context, p core.Plan) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE plans
		SET type = ?, amount = ?, description = ?, from_date = ?, to_date = ?, left_money = ?, status = ?
		WHERE id = ? AND user_id = ?
	`, p.Type, p.Amount.String(), p.Description,
		p.FromDate.Format(core.DateLayout), p.ToDate.Format(core.DateLayout),
		p.LeftMoney.String(), p.Status, p.ID, p.UserID)
	if err != nil {
		return fmt.Errorf("update plan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update plan rows: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *Repository) DeletePlan(ctx context.Context, userID, id int64) error {
	res, err := r.q.ExecContext(ctx, `
		DELETE FROM plans WHERE id = ? AND user_id = ?
	`, id, userID)
	if err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete plan rows: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *Repository) SetPlanCategories(ctx context.Context, userID, planID int64, categoryIDs []int64) error {
	if _, err := r.q.ExecContext(ctx, `
		DELETE FROM plan_categories
		WHERE plan_id = ? AND plan_id IN (SELECT id FROM plans WHERE user_id = ?)
	`, planID, userID); err != nil {
		return fmt.Errorf("clear plan categories: %w", err)
	}
	for _, cid := range categoryIDs {
		if _, err := r.q.ExecContext(ctx, `
			INSERT OR IGNORE INTO plan_categories (plan_id, category_id) VALUES (?, ?)
		`, planID, cid); err != nil {
			return fmt.Errorf("set plan category %d: %w", cid, err)
		}
	}
	return nil
}

func (r *Repository) UpdatePlanLeftMoney(ctx context.Context, userID, planID int64, left decimal.Decimal) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE plans SET left_money = ? WHERE id = ? AND user_id = ?
	`, left.String(), planID, userID)
	if err != nil {
		return fmt.Errorf("update plan left_money: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update plan left_money rows: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *Repository) UpdatePlanStatus(ctx context.Context, userID, planID int64, status core.PlanStatus) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE plans SET status = ? WHERE id = ? AND user_id = ?
	`, status, planID, userID)
	if err != nil {
		return fmt.Errorf("update plan status: %w", err)
	}
	return nil
}

// === Monthly summaries ===

func (r *Repository) UpsertMonthlySummary(ctx context.Context, s core.MonthlySummary) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO monthly_summaries (user_id, year, month, currency, total_spent, total_earned, tx_count, refreshed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, year, month) DO UPDATE SET
			currency = excluded.currency,
			total_spent = excluded.total_spent,
			total_earned = excluded.total_earned,
			tx_count = excluded.tx_count,
			refreshed_at = excluded.refreshed_at
	`, s.UserID, s.Year, s.Month, s.Currency, s.TotalSpent.String(), s.TotalEarned.String(),
		s.TransactionCount, s.RefreshedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert monthly summary: %w", err)
	}
	return nil
}

func (r *Repository) GetMonthlySummary(ctx context.Context, userID int64, year, month int) (core.MonthlySummary, error) {
	var (
		s            core.MonthlySummary
		spent        string
		earned       string
		refreshedRaw string
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT user_id, year, month, currency, total_spent, total_earned, tx_count, refreshed_at
		FROM monthly_summaries WHERE user_id = ? AND year = ? AND month = ?
	`, userID, year, month).Scan(&s.UserID, &s.Year, &s.Month, &s.Currency,
		&spent, &earned, &s.TransactionCount, &refreshedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return core.MonthlySummary{}, core.ErrNotFound
	}
	if err != nil {
		return core.MonthlySummary{}, fmt.Errorf("get monthly summary: %w", err)
	}
	if s.TotalSpent, err = decimal.NewFromString(spent); err != nil {
		return core.MonthlySummary{}, fmt.Errorf("parse summary total_spent %q: %w", spent, err)
	}
	if s.TotalEarned, err = decimal.NewFromString(earned); err != nil {
		return core.MonthlySummary{}, fmt.Errorf("parse summary total_earned %q: %w", earned, err)
	}
	if s.RefreshedAt, err = time.Parse(time.RFC3339, refreshedRaw); err != nil {
		return core.MonthlySummary{}, fmt.Errorf("parse summary refreshed_at %q: %w", refreshedRaw, err)
	}
	return s, nil
}
