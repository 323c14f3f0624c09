// Package backend defines the outbound ports consumed by the aggregation
// service and a factory that wires the concrete adapter (REST or memory).
package backend

import (
	"context"

	"peppermint/internal/core"
)

// Ports for outbound adapters.
type (
	// AccountLister resolves the account directory for the current
	// session's user. Returned order is unspecified.
	AccountLister interface {
		ListAccounts(ctx context.Context) ([]core.Account, error)
	}

	// TransactionLister fetches the transaction collection of a single
	// account. An empty result is a valid success.
	TransactionLister interface {
		ListTransactions(ctx context.Context, accountID string) ([]core.Transaction, error)
	}

	// TransactionWriter creates and edits transactions.
	TransactionWriter interface {
		CreateTransaction(ctx context.Context, accountID string, d core.TransactionDraft) (core.Transaction, error)
		UpdateTransaction(ctx context.Context, accountID, transactionID string, d core.TransactionDraft) (core.Transaction, error)
	}

	// TransactionDeleter removes a single transaction.
	TransactionDeleter interface {
		DeleteTransaction(ctx context.Context, accountID, transactionID string) error
	}
)

// Backend is the unified interface the client runs against.
type Backend interface {
	AccountLister
	TransactionLister
	TransactionWriter
	TransactionDeleter
}

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// Result contains the backend instance and optional cleanup function.
type Result struct {
	Backend Backend
	Cleanup CleanupFunc
}
