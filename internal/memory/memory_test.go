package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"peppermint/internal/core"
)

func TestStoreRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()
	acc := s.AddAccount("Bank", "checking", decimal.Zero)

	tx, err := s.CreateTransaction(ctx, acc, core.TransactionDraft{
		Date:        time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		Description: "test",
		Category:    "Misc",
		Amount:      decimal.NewFromInt(-5),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	txs, err := s.ListTransactions(ctx, acc)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 1 || txs[0].ID != tx.ID {
		t.Fatalf("unexpected transactions: %+v", txs)
	}

	if err := s.DeleteTransaction(ctx, acc, tx.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	txs, _ = s.ListTransactions(ctx, acc)
	if len(txs) != 0 {
		t.Fatalf("expected empty after delete, got %d", len(txs))
	}
}

func TestStoreUnknownAccount(t *testing.T) {
	s := New()
	ctx := context.Background()
	if _, err := s.ListTransactions(ctx, "nope"); !core.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := s.DeleteTransaction(ctx, "nope", "tx"); !core.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDemoDataIsNonEmpty(t *testing.T) {
	s := NewWithDemoData()
	accounts, err := s.ListAccounts(context.Background())
	if err != nil || len(accounts) == 0 {
		t.Fatalf("expected seeded accounts, got %d (%v)", len(accounts), err)
	}
	total := 0
	for _, a := range accounts {
		txs, err := s.ListTransactions(context.Background(), a.ID)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		total += len(txs)
	}
	if total == 0 {
		t.Fatal("expected seeded transactions")
	}
}
