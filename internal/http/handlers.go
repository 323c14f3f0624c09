package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"peppermint/internal/core"
	applog "peppermint/internal/log"
	"peppermint/internal/services"
	"peppermint/internal/session"
)

// transactionRow is a display-ready transaction for the templates.
type transactionRow struct {
	AccountID   string
	ID          string
	Date        string
	Description string
	Category    string
	Amount      string
	Negative    bool
}

// viewPage carries everything the index and partial templates render.
type viewPage struct {
	Rows        []transactionRow
	HasData     bool
	Empty       bool
	Stale       bool
	PublishedAt string
	// Failed holds account IDs whose fetch failed on the last pass.
	Failed []string
	// ErrorMessage is set for non-partial refresh failures.
	ErrorMessage string
	Accounts     []core.Account
	Today        string
}

func (s *Server) buildViewPage(ctx context.Context) viewPage {
	state := s.agg.State()

	page := viewPage{
		HasData: state.HasData,
		Empty:   state.HasData && state.View.Empty(),
		Stale:   state.Stale,
		Today:   time.Now().Format("2006-01-02"),
	}
	if !state.PublishedAt.IsZero() {
		page.PublishedAt = state.PublishedAt.Format("2006-01-02 15:04")
	}
	if state.LastErr != nil {
		if pe, ok := core.IsPartial(state.LastErr); ok {
			page.Failed = pe.Failed
		} else if !core.IsUnauthorized(state.LastErr) {
			page.ErrorMessage = "The transaction service could not be reached."
		}
	}
	for _, tx := range state.View.Transactions {
		page.Rows = append(page.Rows, transactionRow{
			AccountID:   tx.AccountID,
			ID:          tx.ID,
			Date:        tx.Date.Format("2006-01-02"),
			Description: tx.Description,
			Category:    tx.Category,
			Amount:      formatAmount(tx.Amount),
			Negative:    tx.Amount.IsNegative(),
		})
	}

	if s.accounts != nil {
		accounts, err := s.accounts.ListAccounts(ctx)
		if err != nil {
			slog.WarnContext(ctx, "Account list for form failed", "error", err)
		} else {
			page.Accounts = accounts
		}
	}
	return page
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if s.templates == nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded",
			applog.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	// First page load with nothing published yet triggers a synchronous
	// refresh so the user lands on data, not a blank table.
	if _, ok := s.agg.View(); !ok {
		if _, err := s.agg.Refresh(r.Context()); err != nil {
			if core.IsUnauthorized(err) || errors.Is(err, session.ErrNoCredential) {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			slog.ErrorContext(r.Context(), "Initial refresh failed", "error", err)
		}
	}

	page := s.buildViewPage(r.Context())
	if err := s.templates.ExecuteTemplate(w, "index.html", page); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Index template execution failed",
			applog.FieldError, err, "template", "index.html")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleTransactionsPartial re-renders the transactions table section.
// HTMX fetches it after every view:refreshed trigger.
func (s *Server) handleTransactionsPartial(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if s.templates == nil {
		_, _ = w.Write([]byte(`<section id="transactions"><div class="placeholder">No data yet</div></section>`))
		return
	}
	page := s.buildViewPage(r.Context())
	if err := s.templates.ExecuteTemplate(w, "transactions.html", page); err != nil {
		slog.ErrorContext(r.Context(), "Template execution error", "error", err, "template", "transactions.html")
		_, _ = w.Write([]byte(`<section id="transactions"><div class="placeholder">Error rendering transactions</div></section>`))
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	if err := s.templates.ExecuteTemplate(w, "login.html", nil); err != nil {
		slog.ErrorContext(r.Context(), "Login template execution failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleHealth performs a basic liveness check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	}
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(health)
}

// handleReady performs a readiness check with dependency verification.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if s.accounts != nil {
		if _, err := s.accounts.ListAccounts(ctx); err != nil {
			// Missing credentials are a login problem, not an outage.
			if core.IsUnauthorized(err) || errors.Is(err, session.ErrNoCredential) {
				checks["backend"] = "awaiting_login"
			} else {
				checks["backend"] = fmt.Sprintf("failed: %v", err)
				status = "not_ready"
				httpStatus = http.StatusServiceUnavailable
			}
		} else {
			checks["backend"] = "ok"
		}
	} else {
		checks["backend"] = "not_configured"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	state := s.agg.State()
	checks["view"] = map[string]interface{}{
		"has_data": state.HasData,
		"stale":    state.Stale,
	}

	response := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(response)
}

// refreshOutcome converts a refresh or mutation error into the matching
// HTMX response; successMsg is the toast for the clean-success case.
func (s *Server) refreshOutcome(ctx context.Context, err error, successMsg string) *HTMXResponseBuilder {
	if err == nil {
		return NewHTMXResponse().TriggerViewRefreshed().TriggerSuccessNotification(successMsg)
	}
	if core.IsUnauthorized(err) || errors.Is(err, session.ErrNoCredential) {
		return NewHTMXResponse().Status(http.StatusUnauthorized).Redirect("/login")
	}
	if errors.Is(err, services.ErrViewStale) {
		// The mutation committed; only the follow-up refresh failed.
		return NewHTMXResponse().
			TriggerViewRefreshed().
			TriggerWarningNotification("Saved, but the view could not be refreshed and may be out of date")
	}
	if pe, ok := core.IsPartial(err); ok {
		msg := "Some accounts could not be refreshed: " + strings.Join(pe.Failed, ", ")
		return NewHTMXResponse().TriggerViewRefreshed().TriggerWarningNotification(msg)
	}
	slog.ErrorContext(ctx, "Refresh failed", "error", err)
	return BadGatewayError("The transaction service could not be reached").TriggerViewRefreshed()
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowedError("POST").Write(w)
		return
	}
	_, err := s.agg.Refresh(r.Context())
	s.refreshOutcome(r.Context(), err, "Transactions refreshed").Write(w)
}
