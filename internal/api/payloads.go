package api

import (
	"time"

	"github.com/shopspring/decimal"

	"peppermint/internal/core"
)

// Wire types mirror the backend's JSON schema. Amounts decode through
// decimal.Decimal so the literal value survives without a float64 round
// trip.
type (
	accountPayload struct {
		ID             string          `json:"id"`
		Institution    string          `json:"institution"`
		AccountType    string          `json:"account_type"`
		CurrentBalance decimal.Decimal `json:"current_balance"`
		UserID         string          `json:"user_id"`
	}

	transactionPayload struct {
		ID          string          `json:"id"`
		AccountID   string          `json:"account_id"`
		Date        time.Time       `json:"transaction_date"`
		Description string          `json:"transaction_description"`
		Category    string          `json:"transaction_category"`
		Amount      decimal.Decimal `json:"transaction_amount"`
	}

	transactionDraftPayload struct {
		Date        time.Time       `json:"transaction_date"`
		Description string          `json:"transaction_description"`
		Category    string          `json:"transaction_category"`
		Amount      decimal.Decimal `json:"transaction_amount"`
	}
)

func (p accountPayload) toDomain() core.Account {
	return core.Account{
		ID:             p.ID,
		Institution:    p.Institution,
		Type:           p.AccountType,
		CurrentBalance: p.CurrentBalance,
	}
}

func (p transactionPayload) toDomain() core.Transaction {
	return core.Transaction{
		ID:          p.ID,
		AccountID:   p.AccountID,
		Date:        p.Date,
		Description: p.Description,
		Category:    p.Category,
		Amount:      p.Amount,
	}
}

func draftPayload(d core.TransactionDraft) transactionDraftPayload {
	return transactionDraftPayload{
		Date:        d.Date,
		Description: d.Description,
		Category:    d.Category,
		Amount:      d.Amount,
	}
}
