// Package memory is an in-process backend used for demo mode and tests. It
// implements the same ports as the REST adapter, so the rest of the client
// cannot tell them apart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"peppermint/internal/core"
)

type Store struct {
	mu       sync.Mutex
	accounts []core.Account
	txs      map[string][]core.Transaction // account ID -> transactions
}

func New() *Store {
	return &Store{txs: make(map[string][]core.Transaction)}
}

// NewWithDemoData returns a store seeded with a small realistic data set
// so the web UI has something to render out of the box.
func NewWithDemoData() *Store {
	s := New()
	checking := s.AddAccount("Demo Bank", "checking", decimal.NewFromInt(1250))
	savings := s.AddAccount("Demo Bank", "savings", decimal.NewFromInt(8000))

	now := time.Now().UTC().Truncate(time.Minute)
	seed := []struct {
		account     string
		daysAgo     int
		description string
		category    string
		amount      string
	}{
		{checking, 1, "Grocery store", "Food", "-54.20"},
		{checking, 2, "Salary", "Income", "2300.00"},
		{checking, 4, "Electric bill", "Utilities", "-89.95"},
		{checking, 7, "Restaurant", "Food", "-36.40"},
		{savings, 3, "Monthly transfer", "Savings", "250.00"},
		{savings, 20, "Interest", "Income", "4.31"},
	}
	for _, row := range seed {
		amount, _ := decimal.NewFromString(row.amount)
		_, _ = s.CreateTransaction(context.Background(), row.account, core.TransactionDraft{
			Date:        now.AddDate(0, 0, -row.daysAgo),
			Description: row.description,
			Category:    row.category,
			Amount:      amount,
		})
	}
	return s
}

// AddAccount registers an account and returns its generated ID.
func (s *Store) AddAccount(institution, accountType string, balance decimal.Decimal) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.accounts = append(s.accounts, core.Account{
		ID:             id,
		Institution:    institution,
		Type:           accountType,
		CurrentBalance: balance,
	})
	return id
}

func (s *Store) ListAccounts(_ context.Context) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Account(nil), s.accounts...), nil
}

func (s *Store) ListTransactions(_ context.Context, accountID string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasAccount(accountID) {
		return nil, core.ErrNotFound
	}
	return append([]core.Transaction(nil), s.txs[accountID]...), nil
}

func (s *Store) CreateTransaction(_ context.Context, accountID string, d core.TransactionDraft) (core.Transaction, error) {
	if err := d.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasAccount(accountID) {
		return core.Transaction{}, core.ErrNotFound
	}
	tx := core.Transaction{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		Date:        d.Date,
		Description: d.Description,
		Category:    d.Category,
		Amount:      d.Amount,
	}
	s.txs[accountID] = append(s.txs[accountID], tx)
	return tx, nil
}

func (s *Store) UpdateTransaction(_ context.Context, accountID, transactionID string, d core.TransactionDraft) (core.Transaction, error) {
	if err := d.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, tx := range s.txs[accountID] {
		if tx.ID == transactionID {
			tx.Date = d.Date
			tx.Description = d.Description
			tx.Category = d.Category
			tx.Amount = d.Amount
			s.txs[accountID][i] = tx
			return tx, nil
		}
	}
	return core.Transaction{}, core.ErrNotFound
}

func (s *Store) DeleteTransaction(_ context.Context, accountID, transactionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.txs[accountID]
	for i, tx := range list {
		if tx.ID == transactionID {
			s.txs[accountID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return core.ErrNotFound
}

func (s *Store) hasAccount(accountID string) bool {
	for _, a := range s.accounts {
		if a.ID == accountID {
			return true
		}
	}
	return false
}
