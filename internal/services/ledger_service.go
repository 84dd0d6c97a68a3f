// Package services orchestrates the domain: ledger writes with plan
// compensation, category lifecycle, plan lifecycle and reporting.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"spendtrack/internal/amqp"
	"spendtrack/internal/core"
	"spendtrack/internal/plan"
	"spendtrack/internal/store"
)

// EventPublisher is the slice of the AMQP client the ledger needs. Nil
// publishers are tolerated so the service runs without a broker.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error
}

// TransactionInput is the untrusted form of a ledger write. Everything is a
// string; parsing and validation happen before any state change.
type TransactionInput struct {
	Date        string
	Status      string
	Category    string
	Amount      string
	Currency    string
	Description string
}

// LedgerService owns transaction writes. Every mutation and its plan
// compensation run in one unit of work; summary refresh events are
// published after commit and never fail the request.
type LedgerService struct {
	repo   store.Repository
	engine *plan.Engine
	events EventPublisher
}

func NewLedgerService(repo store.Repository, engine *plan.Engine, events EventPublisher) *LedgerService {
	return &LedgerService{repo: repo, engine: engine, events: events}
}

// parse turns input into a validated transaction. The amount check runs
// here so a malformed or negative amount is rejected before compensation.
func (s *LedgerService) parse(userID int64, in TransactionInput) (core.Transaction, error) {
	date, err := core.ParseDate(in.Date)
	if err != nil {
		return core.Transaction{}, &core.ValidationError{Field: "date", Reason: "expected YYYY-MM-DD"}
	}
	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		return core.Transaction{}, err
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = core.DefaultCurrency
	}

	tx := core.Transaction{
		UserID:      userID,
		Date:        date,
		Status:      core.TransactionStatus(strings.ToLower(strings.TrimSpace(in.Status))),
		Category:    strings.TrimSpace(in.Category),
		Amount:      amount,
		Currency:    currency,
		Description: strings.TrimSpace(in.Description),
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

func (s *LedgerService) Create(ctx context.Context, userID int64, in TransactionInput) (core.Transaction, error) {
	tx, err := s.parse(userID, in)
	if err != nil {
		return core.Transaction{}, err
	}

	var created core.Transaction
	err = s.repo.WithinTx(ctx, func(st store.Store) error {
		cat, err := st.GetOrCreateCategory(ctx, userID, tx.Category)
		if err != nil {
			return err
		}
		tx.CategoryID = cat.ID

		created, err = st.CreateTransaction(ctx, tx)
		if err != nil {
			return err
		}
		return s.engine.Apply(ctx, st, userID, plan.CreateSteps(created))
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	s.publish(ctx, amqp.EventCreated, userID, created.Date)
	return created, nil
}

func (s *LedgerService) Update(ctx context.Context, userID, id int64, in TransactionInput) (core.Transaction, error) {
	old, err := s.repo.GetTransaction(ctx, userID, id)
	if err != nil {
		return core.Transaction{}, err
	}

	updated, err := s.parse(userID, in)
	if err != nil {
		return core.Transaction{}, err
	}
	updated.ID = id

	err = s.repo.WithinTx(ctx, func(st store.Store) error {
		cat, err := st.GetOrCreateCategory(ctx, userID, updated.Category)
		if err != nil {
			return err
		}
		updated.CategoryID = cat.ID

		if err := st.UpdateTransaction(ctx, updated); err != nil {
			return err
		}
		return s.engine.Apply(ctx, st, userID, plan.UpdateSteps(old, updated))
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	s.publish(ctx, amqp.EventUpdated, userID, old.Date, updated.Date)
	return updated, nil
}

func (s *LedgerService) Delete(ctx context.Context, userID, id int64) error {
	old, err := s.repo.GetTransaction(ctx, userID, id)
	if err != nil {
		return err
	}

	err = s.repo.WithinTx(ctx, func(st store.Store) error {
		if err := st.DeleteTransaction(ctx, userID, id); err != nil {
			return err
		}
		return s.engine.Apply(ctx, st, userID, plan.DeleteSteps(old))
	})
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	s.publish(ctx, amqp.EventDeleted, userID, old.Date)
	return nil
}

func (s *LedgerService) Get(ctx context.Context, userID, id int64) (core.Transaction, error) {
	return s.repo.GetTransaction(ctx, userID, id)
}

func (s *LedgerService) List(ctx context.Context, userID int64, f store.TransactionFilter) ([]core.Transaction, error) {
	return s.repo.ListTransactions(ctx, userID, f)
}

// publish emits a summary refresh event after a committed mutation. A
// broker outage must not fail the ledger write.
func (s *LedgerService) publish(ctx context.Context, kind string, userID int64, dates ...time.Time) {
	if s.events == nil {
		return
	}
	strs := make([]string, len(dates))
	for i, d := range dates {
		strs[i] = d.Format(core.DateLayout)
	}
	if err := s.events.PublishLedgerEvent(ctx, amqp.NewLedgerEventMessage(kind, userID, strs...)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"kind", kind, "user_id", userID, "error", err)
	}
}
