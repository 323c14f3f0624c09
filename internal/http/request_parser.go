// Form parsing for the transaction create/edit handlers.

package http

import (
	"fmt"
	"net/url"

	"peppermint/internal/core"
)

// ParseDraftForm builds a TransactionDraft from an HTML form. Field names
// match the backend wire names so the templates stay symmetric with the API.
func ParseDraftForm(form url.Values) (core.TransactionDraft, error) {
	var d core.TransactionDraft

	date, err := parseDate(form.Get("transaction_date"))
	if err != nil {
		return d, fmt.Errorf("invalid date: %w", err)
	}
	amount, err := parseAmount(form.Get("transaction_amount"))
	if err != nil {
		return d, fmt.Errorf("invalid amount: %w", err)
	}

	d = core.TransactionDraft{
		Date:        date,
		Description: sanitizeInput(form.Get("transaction_description")),
		Category:    sanitizeInput(form.Get("transaction_category")),
		Amount:      amount,
	}
	if err := d.Validate(); err != nil {
		return d, err
	}
	return d, nil
}
