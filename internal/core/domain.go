package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type (
	// Account is a financial account owned by the authenticated user.
	// Accounts are immutable from the client's perspective within a session;
	// the directory is re-resolved at the start of every refresh pass.
	Account struct {
		ID             string
		Institution    string
		Type           string
		CurrentBalance decimal.Decimal
	}

	// Transaction is a dated, signed monetary entry belonging to exactly
	// one account. Amount keeps the backend's decimal value verbatim; the
	// sign distinguishes debit from credit.
	Transaction struct {
		ID          string
		AccountID   string
		Date        time.Time
		Description string
		Category    string
		Amount      decimal.Decimal
	}

	// TransactionDraft carries the user-editable fields for create and
	// edit operations.
	TransactionDraft struct {
		Date        time.Time
		Description string
		Category    string
		Amount      decimal.Decimal
	}
)

var (
	ErrEmptyAccountID   = errors.New("empty account id")
	ErrZeroDate         = errors.New("transaction date cannot be zero")
	ErrEmptyDescription = errors.New("empty description")
	ErrZeroAmount       = errors.New("amount cannot be zero")
)

func (a Account) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return ErrEmptyAccountID
	}
	return nil
}

func (d TransactionDraft) Validate() error {
	if d.Date.IsZero() {
		return ErrZeroDate
	}
	if len(strings.TrimSpace(d.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(d.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if d.Amount.IsZero() {
		return ErrZeroAmount
	}
	return nil
}
