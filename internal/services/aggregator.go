package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"peppermint/internal/amqp"
	"peppermint/internal/backend"
	"peppermint/internal/core"
)

// ErrViewStale means a mutation was committed at the backend but the
// follow-up refresh failed, so the displayed view no longer reflects the
// backend. The mutation itself is done; only the view is behind.
var ErrViewStale = errors.New("view may be stale")

// EventPublisher emits mutation events after a commit. Best-effort: a
// publish failure never fails the mutation.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, msg *amqp.TransactionEventMessage) error
}

// ViewSnapshots persists the last published view across restarts.
type ViewSnapshots interface {
	SaveView(ctx context.Context, v core.View, publishedAt time.Time) error
	LoadView(ctx context.Context) (core.View, time.Time, error)
}

// ViewState is what the presentation layer needs to render the aggregated
// view and its freshness.
type ViewState struct {
	View        core.View
	HasData     bool
	Stale       bool
	PublishedAt time.Time
	LastErr     error
}

// Aggregator orchestrates account resolution and per-account transaction
// fetches into one consistent, atomically published view, and owns the
// mutation path that re-synchronizes it.
type Aggregator struct {
	backend   backend.Backend
	snapshots ViewSnapshots  // optional
	events    EventPublisher // optional

	// reqSeq numbers refresh requests; only the highest sequence ever
	// seen is allowed to publish, so a superseded refresh can never
	// overwrite a newer result.
	reqSeq atomic.Uint64

	mu           sync.RWMutex
	view         core.View
	hasView      bool
	stale        bool
	publishedAt  time.Time
	publishedSeq uint64
	lastErr      error
}

func NewAggregator(b backend.Backend, snapshots ViewSnapshots, events EventPublisher) *Aggregator {
	return &Aggregator{
		backend:   b,
		snapshots: snapshots,
		events:    events,
	}
}

// RestoreSnapshot loads the persisted view, if any, and installs it as the
// current view flagged stale. Called once at startup, before serving.
func (a *Aggregator) RestoreSnapshot(ctx context.Context) error {
	if a.snapshots == nil {
		return nil
	}
	view, publishedAt, err := a.snapshots.LoadView(ctx)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.hasView {
		// A refresh already landed; the snapshot is older by definition.
		return nil
	}
	a.view = view
	a.hasView = true
	a.stale = true
	a.publishedAt = publishedAt
	slog.InfoContext(ctx, "Restored view snapshot",
		"transactions", view.Len(), "published_at", publishedAt)
	return nil
}

// Refresh runs one complete aggregation pass: resolve accounts, fan out
// per-account fetches, merge, sort, publish. On any failure the previously
// published view is retained unchanged.
func (a *Aggregator) Refresh(ctx context.Context) (core.View, error) {
	seq := a.reqSeq.Add(1)

	accounts, err := a.backend.ListAccounts(ctx)
	if err != nil {
		// Unauthorized propagates immediately: without a valid session
		// there is nothing meaningful to aggregate.
		if !core.IsUnauthorized(err) {
			err = fmt.Errorf("resolve accounts: %w", err)
		}
		a.recordFailure(seq, err)
		return core.View{}, err
	}

	type outcome struct {
		txs []core.Transaction
		err error
	}
	outcomes := make([]outcome, len(accounts))

	// Per-account fetches are independent reads; dispatch them in
	// parallel and wait for every one to settle. Partial results are
	// never merged.
	var g errgroup.Group
	for i, account := range accounts {
		g.Go(func() error {
			txs, err := a.backend.ListTransactions(ctx, account.ID)
			outcomes[i] = outcome{txs: txs, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var merged []core.Transaction
	var failed []string
	for i, out := range outcomes {
		switch {
		case out.err == nil:
			merged = append(merged, out.txs...)
		case core.IsUnauthorized(out.err):
			// The session is globally invalid, not per-account.
			a.recordFailure(seq, core.ErrUnauthorized)
			return core.View{}, core.ErrUnauthorized
		default:
			// Includes the account-deleted-mid-pass race: a vanished
			// account counts as one failed fetch, not a failed refresh.
			slog.WarnContext(ctx, "Account fetch failed",
				"account_id", accounts[i].ID, "error", out.err)
			failed = append(failed, accounts[i].ID)
		}
	}

	if len(failed) > 0 {
		err := core.NewPartialError(failed)
		a.recordFailure(seq, err)
		return core.View{}, err
	}

	view := core.BuildView(merged)
	if a.publish(ctx, seq, view) {
		slog.InfoContext(ctx, "Published aggregated view",
			"accounts", len(accounts), "transactions", view.Len())
	} else {
		slog.DebugContext(ctx, "Refresh superseded, result discarded", "seq", seq)
	}
	return view, nil
}

// DeleteTransaction removes one transaction and re-synchronizes the view.
// A backend not-found is benign: the item is gone either way, and the
// refresh still runs. If the refresh fails after the delete committed, the
// returned error wraps ErrViewStale.
func (a *Aggregator) DeleteTransaction(ctx context.Context, accountID, transactionID string) error {
	err := a.backend.DeleteTransaction(ctx, accountID, transactionID)
	switch {
	case err == nil:
	case core.IsNotFound(err):
		slog.WarnContext(ctx, "Transaction already absent",
			"account_id", accountID, "transaction_id", transactionID)
	default:
		return fmt.Errorf("delete transaction: %w", err)
	}

	a.publishEvent(ctx, amqp.ActionDeleted, accountID, transactionID, nil)
	return a.refreshAfterMutation(ctx)
}

// CreateTransaction adds a transaction and re-synchronizes the view.
func (a *Aggregator) CreateTransaction(ctx context.Context, accountID string, d core.TransactionDraft) (core.Transaction, error) {
	if err := d.Validate(); err != nil {
		return core.Transaction{}, err
	}
	tx, err := a.backend.CreateTransaction(ctx, accountID, d)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	a.publishEvent(ctx, amqp.ActionCreated, accountID, tx.ID, &d)
	return tx, a.refreshAfterMutation(ctx)
}

// UpdateTransaction edits a transaction and re-synchronizes the view.
func (a *Aggregator) UpdateTransaction(ctx context.Context, accountID, transactionID string, d core.TransactionDraft) (core.Transaction, error) {
	if err := d.Validate(); err != nil {
		return core.Transaction{}, err
	}
	tx, err := a.backend.UpdateTransaction(ctx, accountID, transactionID, d)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	a.publishEvent(ctx, amqp.ActionUpdated, accountID, transactionID, &d)
	return tx, a.refreshAfterMutation(ctx)
}

// View returns the current published view and whether one exists yet.
func (a *Aggregator) View() (core.View, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.view, a.hasView
}

// LastError returns the failure recorded by the most recent refresh
// attempt, or nil if it succeeded.
func (a *Aggregator) LastError() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastErr
}

// State snapshots everything the presentation layer renders, under one
// lock so the pieces are mutually consistent.
func (a *Aggregator) State() ViewState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return ViewState{
		View:        a.view,
		HasData:     a.hasView,
		Stale:       a.stale,
		PublishedAt: a.publishedAt,
		LastErr:     a.lastErr,
	}
}

func (a *Aggregator) refreshAfterMutation(ctx context.Context) error {
	if _, err := a.Refresh(ctx); err != nil {
		// The mutation committed server-side; the wrapped cause stays
		// matchable so unauthorized still triggers the login redirect.
		return fmt.Errorf("%w: %w", ErrViewStale, err)
	}
	return nil
}

// publish atomically replaces the view if this refresh is still the newest
// one. Returns whether the view was installed.
func (a *Aggregator) publish(ctx context.Context, seq uint64, view core.View) bool {
	now := time.Now().UTC()

	a.mu.Lock()
	if seq <= a.publishedSeq {
		a.mu.Unlock()
		return false
	}
	a.publishedSeq = seq
	a.view = view
	a.hasView = true
	a.stale = false
	a.publishedAt = now
	a.lastErr = nil
	a.mu.Unlock()

	if a.snapshots != nil {
		if err := a.snapshots.SaveView(ctx, view, now); err != nil {
			slog.ErrorContext(ctx, "Failed to persist view snapshot", "error", err)
		}
	}
	return true
}

// recordFailure notes a refresh failure without touching the published
// view. Failures of superseded refreshes are ignored so an old slow pass
// cannot mark a newer successful view stale.
func (a *Aggregator) recordFailure(seq uint64, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if seq != a.reqSeq.Load() || seq <= a.publishedSeq {
		return
	}
	a.lastErr = err
	if a.hasView {
		a.stale = true
	}
}

func (a *Aggregator) publishEvent(ctx context.Context, action amqp.EventAction, accountID, transactionID string, d *core.TransactionDraft) {
	if a.events == nil {
		return
	}
	msg := amqp.NewTransactionEvent(action, accountID, transactionID)
	if d != nil {
		msg.Description = d.Description
		msg.Category = d.Category
		msg.Amount = d.Amount.String()
	}
	if err := a.events.PublishTransactionEvent(ctx, msg); err != nil {
		// The mutation is committed; the event stream is best-effort.
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"action", action, "transaction_id", transactionID, "error", err)
	}
}
