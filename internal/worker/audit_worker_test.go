package worker

import (
	"context"
	"errors"
	"testing"

	"peppermint/internal/amqp"
	auditmem "peppermint/internal/audit/memory"
)

func TestHandleEventAppendsRow(t *testing.T) {
	store := auditmem.New()
	w := NewAuditWorker(store)

	ev := amqp.NewTransactionEvent(amqp.ActionDeleted, "acc-1", "tx-1")
	if err := w.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	rows := store.Rows()
	if len(rows) != 1 || rows[0].TransactionID != "tx-1" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestHandleEventNilAppenderIsNoop(t *testing.T) {
	w := NewAuditWorker(nil)
	ev := amqp.NewTransactionEvent(amqp.ActionCreated, "acc-1", "tx-1")
	if err := w.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestHandleEventDropsInvalidEvent(t *testing.T) {
	store := auditmem.New()
	w := NewAuditWorker(store)

	// Invalid events are dropped, not retried forever.
	if err := w.HandleEvent(context.Background(), &amqp.TransactionEventMessage{}); err != nil {
		t.Fatalf("invalid event should be swallowed, got %v", err)
	}
	if len(store.Rows()) != 0 {
		t.Fatal("invalid event should not be recorded")
	}
}

type failingAppender struct{}

func (failingAppender) Append(context.Context, *amqp.TransactionEventMessage) (string, error) {
	return "", errors.New("sheet unavailable")
}

func TestHandleEventPropagatesAppendFailure(t *testing.T) {
	w := NewAuditWorker(failingAppender{})
	ev := amqp.NewTransactionEvent(amqp.ActionUpdated, "acc-1", "tx-1")
	if err := w.HandleEvent(context.Background(), ev); err == nil {
		t.Fatal("append failure should surface so the event is redelivered")
	}
}
