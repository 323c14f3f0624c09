package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"peppermint/internal/services"
)

// handleTransactions routes the /transactions/ subtree:
//
//	POST /transactions/{accountID}              create
//	POST /transactions/{accountID}/{id}         edit
//	POST /transactions/{accountID}/{id}/delete  delete
//
// Everything is POST because the callers are HTML forms.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowedError("POST").Write(w)
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/transactions/"), "/")
	parts := strings.Split(rest, "/")
	switch {
	case len(parts) == 1 && parts[0] != "":
		s.handleCreateTransaction(w, r, parts[0])
	case len(parts) == 2:
		s.handleUpdateTransaction(w, r, parts[0], parts[1])
	case len(parts) == 3 && parts[2] == "delete":
		s.handleDeleteTransaction(w, r, parts[0], parts[1])
	default:
		http.NotFound(w, r)
	}
}

// committed reports whether the mutation reached the backend. A stale-view
// error still counts as committed: only the follow-up refresh failed.
func committed(err error) bool {
	return err == nil || errors.Is(err, services.ErrViewStale)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request, accountID string) {
	if err := r.ParseForm(); err != nil {
		slog.ErrorContext(r.Context(), "Parse form error", "error", err, "method", r.Method, "url", r.URL.Path)
		BadRequestError("Invalid request format").Write(w)
		return
	}

	draft, err := ParseDraftForm(r.Form)
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	created, err := s.agg.CreateTransaction(r.Context(), accountID, draft)
	if !committed(err) {
		slog.ErrorContext(r.Context(), "Create failed", "error", err, "account_id", accountID)
		s.refreshOutcome(r.Context(), err, "").Write(w)
		return
	}

	slog.InfoContext(r.Context(), "Transaction created",
		"account_id", accountID,
		"transaction_id", created.ID,
		"amount", created.Amount.String(),
		"operation", "create")

	s.refreshOutcome(r.Context(), err, "Added "+draft.Description+" ("+formatAmount(draft.Amount)+")").
		TriggerTransactionCreated(accountID).
		TriggerFormReset().
		Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request, accountID, transactionID string) {
	if err := r.ParseForm(); err != nil {
		slog.ErrorContext(r.Context(), "Parse form error", "error", err, "method", r.Method, "url", r.URL.Path)
		BadRequestError("Invalid request format").Write(w)
		return
	}

	draft, err := ParseDraftForm(r.Form)
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	updated, err := s.agg.UpdateTransaction(r.Context(), accountID, transactionID, draft)
	if !committed(err) {
		slog.ErrorContext(r.Context(), "Update failed",
			"error", err, "account_id", accountID, "transaction_id", transactionID)
		s.refreshOutcome(r.Context(), err, "").Write(w)
		return
	}

	slog.InfoContext(r.Context(), "Transaction updated",
		"account_id", accountID,
		"transaction_id", updated.ID,
		"operation", "update")

	s.refreshOutcome(r.Context(), err, "Saved "+draft.Description).
		TriggerTransactionUpdated(accountID, transactionID).
		Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request, accountID, transactionID string) {
	err := s.agg.DeleteTransaction(r.Context(), accountID, transactionID)
	if !committed(err) {
		slog.ErrorContext(r.Context(), "Delete failed",
			"error", err, "account_id", accountID, "transaction_id", transactionID)
		s.refreshOutcome(r.Context(), err, "").Write(w)
		return
	}

	slog.InfoContext(r.Context(), "Transaction deleted",
		"account_id", accountID,
		"transaction_id", transactionID,
		"operation", "delete")

	s.refreshOutcome(r.Context(), err, "Transaction removed").
		TriggerTransactionDeleted(accountID, transactionID).
		Write(w)
}
