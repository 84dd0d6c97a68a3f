package worker

import (
	"context"
	"errors"
	"testing"

	"spendtrack/internal/amqp"
)

type refreshCall struct {
	userID int64
	year   int
	month  int
}

type fakeRefresher struct {
	calls []refreshCall
	err   error
}

func (f *fakeRefresher) RefreshMonthlySummary(_ context.Context, userID int64, year, month int) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, refreshCall{userID, year, month})
	return nil
}

func TestHandleLedgerEvent_CollapsesDuplicateMonths(t *testing.T) {
	refresher := &fakeRefresher{}
	w := NewSummaryWorker(refresher)

	msg := amqp.NewLedgerEventMessage(amqp.EventUpdated, 7, "2025-03-10", "2025-03-22")
	if err := w.HandleLedgerEvent(context.Background(), msg); err != nil {
		t.Fatalf("HandleLedgerEvent: %v", err)
	}

	if len(refresher.calls) != 1 {
		t.Fatalf("got %d refreshes, want 1: %+v", len(refresher.calls), refresher.calls)
	}
	if got := refresher.calls[0]; got != (refreshCall{7, 2025, 3}) {
		t.Fatalf("refresh = %+v, want user 7 2025-03", got)
	}
}

func TestHandleLedgerEvent_CrossMonthEditRefreshesBoth(t *testing.T) {
	refresher := &fakeRefresher{}
	w := NewSummaryWorker(refresher)

	msg := amqp.NewLedgerEventMessage(amqp.EventUpdated, 7, "2025-03-31", "2025-04-01")
	if err := w.HandleLedgerEvent(context.Background(), msg); err != nil {
		t.Fatalf("HandleLedgerEvent: %v", err)
	}

	if len(refresher.calls) != 2 {
		t.Fatalf("got %d refreshes, want 2: %+v", len(refresher.calls), refresher.calls)
	}
}

func TestHandleLedgerEvent_BadDateFails(t *testing.T) {
	w := NewSummaryWorker(&fakeRefresher{})

	msg := amqp.NewLedgerEventMessage(amqp.EventCreated, 7, "not-a-date")
	if err := w.HandleLedgerEvent(context.Background(), msg); err == nil {
		t.Fatal("expected error for malformed date")
	}
}

func TestHandleLedgerEvent_RefreshFailurePropagates(t *testing.T) {
	boom := errors.New("database gone")
	w := NewSummaryWorker(&fakeRefresher{err: boom})

	msg := amqp.NewLedgerEventMessage(amqp.EventCreated, 7, "2025-03-10")
	if err := w.HandleLedgerEvent(context.Background(), msg); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
}
