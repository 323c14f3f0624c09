package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"peppermint/internal/amqp"
	"peppermint/internal/core"
)

// fakeBackend implements backend.Backend with injectable failures and a
// fetch hook for timing-sensitive tests.
type fakeBackend struct {
	mu          sync.Mutex
	accounts    []core.Account
	txs         map[string][]core.Transaction
	accountsErr error
	fetchErr    map[string]error
	deleteErr   error
	fetchCount  atomic.Int64
	onFetch     func(accountID string)
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		txs:      make(map[string][]core.Transaction),
		fetchErr: make(map[string]error),
	}
}

func (b *fakeBackend) addAccount(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts = append(b.accounts, core.Account{ID: id, Institution: "Bank"})
}

func (b *fakeBackend) addTransaction(accountID, id string, date time.Time, description string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.txs[accountID] = append(b.txs[accountID], core.Transaction{
		ID:          id,
		AccountID:   accountID,
		Date:        date,
		Description: description,
		Amount:      decimal.NewFromInt(-1),
	})
}

func (b *fakeBackend) setAll(accountID string, txs []core.Transaction) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.txs[accountID] = txs
}

func (b *fakeBackend) ListAccounts(context.Context) ([]core.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.accountsErr != nil {
		return nil, b.accountsErr
	}
	return append([]core.Account(nil), b.accounts...), nil
}

func (b *fakeBackend) ListTransactions(_ context.Context, accountID string) ([]core.Transaction, error) {
	b.fetchCount.Add(1)
	b.mu.Lock()
	hook := b.onFetch
	err := b.fetchErr[accountID]
	txs := append([]core.Transaction(nil), b.txs[accountID]...)
	b.mu.Unlock()

	if hook != nil {
		hook(accountID)
	}
	if err != nil {
		return nil, err
	}
	return txs, nil
}

func (b *fakeBackend) CreateTransaction(_ context.Context, accountID string, d core.TransactionDraft) (core.Transaction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	tx := core.Transaction{
		ID:          fmt.Sprintf("tx-%d", len(b.txs[accountID])+1),
		AccountID:   accountID,
		Date:        d.Date,
		Description: d.Description,
		Category:    d.Category,
		Amount:      d.Amount,
	}
	b.txs[accountID] = append(b.txs[accountID], tx)
	return tx, nil
}

func (b *fakeBackend) UpdateTransaction(_ context.Context, accountID, transactionID string, d core.TransactionDraft) (core.Transaction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, tx := range b.txs[accountID] {
		if tx.ID == transactionID {
			tx.Date, tx.Description, tx.Category, tx.Amount = d.Date, d.Description, d.Category, d.Amount
			b.txs[accountID][i] = tx
			return tx, nil
		}
	}
	return core.Transaction{}, core.ErrNotFound
}

func (b *fakeBackend) DeleteTransaction(_ context.Context, accountID, transactionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deleteErr != nil {
		return b.deleteErr
	}
	for i, tx := range b.txs[accountID] {
		if tx.ID == transactionID {
			b.txs[accountID] = append(b.txs[accountID][:i], b.txs[accountID][i+1:]...)
			return nil
		}
	}
	return core.ErrNotFound
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []*amqp.TransactionEventMessage
}

func (p *capturingPublisher) PublishTransactionEvent(_ context.Context, msg *amqp.TransactionEventMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, msg)
	return nil
}

func date(day int) time.Time {
	return time.Date(2025, 6, day, 12, 0, 0, 0, time.UTC)
}

func TestRefreshIsDeterministic(t *testing.T) {
	b := newFakeBackend()
	b.addAccount("acc-b")
	b.addAccount("acc-a")
	b.addTransaction("acc-a", "1", date(1), "a1")
	b.addTransaction("acc-a", "2", date(3), "a2")
	b.addTransaction("acc-b", "1", date(3), "b1")
	agg := NewAggregator(b, nil, nil)
	ctx := context.Background()

	first, err := agg.Refresh(ctx)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	second, err := agg.Refresh(ctx)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if first.Len() != second.Len() {
		t.Fatalf("lengths differ: %d vs %d", first.Len(), second.Len())
	}
	for i := range first.Transactions {
		a, b := first.Transactions[i], second.Transactions[i]
		if a.AccountID != b.AccountID || a.ID != b.ID {
			t.Fatalf("position %d: (%s,%s) vs (%s,%s)", i, a.AccountID, a.ID, b.AccountID, b.ID)
		}
	}
	// Date desc, ties by (account, id) asc.
	want := []string{"acc-a/2", "acc-b/1", "acc-a/1"}
	for i, w := range want {
		got := first.Transactions[i].AccountID + "/" + first.Transactions[i].ID
		if got != w {
			t.Fatalf("position %d: got %s, want %s", i, got, w)
		}
	}
}

func TestRefreshEmptyIsTerminalNotError(t *testing.T) {
	t.Run("zero accounts", func(t *testing.T) {
		agg := NewAggregator(newFakeBackend(), nil, nil)
		view, err := agg.Refresh(context.Background())
		if err != nil {
			t.Fatalf("expected ok, got %v", err)
		}
		if !view.Empty() {
			t.Fatal("expected empty view")
		}
		if _, ok := agg.View(); !ok {
			t.Fatal("empty view should still be published")
		}
	})

	t.Run("accounts with no transactions", func(t *testing.T) {
		b := newFakeBackend()
		b.addAccount("acc-1")
		b.addAccount("acc-2")
		agg := NewAggregator(b, nil, nil)
		view, err := agg.Refresh(context.Background())
		if err != nil {
			t.Fatalf("expected ok, got %v", err)
		}
		if !view.Empty() {
			t.Fatal("expected empty view")
		}
		if agg.LastError() != nil {
			t.Fatalf("expected no recorded error, got %v", agg.LastError())
		}
	})
}

func TestRefreshUnauthorizedShortCircuits(t *testing.T) {
	b := newFakeBackend()
	b.addAccount("acc-1")
	b.accountsErr = core.ErrUnauthorized
	agg := NewAggregator(b, nil, nil)

	_, err := agg.Refresh(context.Background())
	if !core.IsUnauthorized(err) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if n := b.fetchCount.Load(); n != 0 {
		t.Fatalf("expected no per-account fetches, got %d", n)
	}
}

func TestRefreshPerAccountUnauthorizedFailsWholeRefresh(t *testing.T) {
	b := newFakeBackend()
	b.addAccount("acc-1")
	b.addAccount("acc-2")
	b.fetchErr["acc-2"] = core.ErrUnauthorized
	agg := NewAggregator(b, nil, nil)

	_, err := agg.Refresh(context.Background())
	if !core.IsUnauthorized(err) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, ok := agg.View(); ok {
		t.Fatal("no view should be published")
	}
}

func TestRefreshPartialFailurePreservesPreviousView(t *testing.T) {
	b := newFakeBackend()
	b.addAccount("acc-a")
	b.addAccount("acc-b")
	b.addTransaction("acc-a", "1", date(1), "a1")
	b.addTransaction("acc-b", "1", date(2), "b1")
	agg := NewAggregator(b, nil, nil)
	ctx := context.Background()

	before, err := agg.Refresh(ctx)
	if err != nil {
		t.Fatalf("first refresh: %v", err)
	}

	b.mu.Lock()
	b.fetchErr["acc-a"] = errors.New("connection refused")
	b.mu.Unlock()

	_, err = agg.Refresh(ctx)
	pe, ok := core.IsPartial(err)
	if !ok {
		t.Fatalf("expected partial failure, got %v", err)
	}
	if len(pe.Failed) != 1 || pe.Failed[0] != "acc-a" {
		t.Fatalf("unexpected failed set: %v", pe.Failed)
	}

	current, hasView := agg.View()
	if !hasView {
		t.Fatal("previous view should remain")
	}
	if current.Len() != before.Len() {
		t.Fatalf("view changed: %d vs %d", current.Len(), before.Len())
	}
	state := agg.State()
	if !state.Stale {
		t.Fatal("view should be flagged stale")
	}
	if _, ok := core.IsPartial(state.LastErr); !ok {
		t.Fatalf("last error should be the partial failure, got %v", state.LastErr)
	}
}

func TestRefreshPartialFailureWithNoPriorViewStaysEmpty(t *testing.T) {
	b := newFakeBackend()
	b.addAccount("acc-a")
	b.fetchErr["acc-a"] = errors.New("timeout")
	agg := NewAggregator(b, nil, nil)

	_, err := agg.Refresh(context.Background())
	if _, ok := core.IsPartial(err); !ok {
		t.Fatalf("expected partial failure, got %v", err)
	}
	if _, hasView := agg.View(); hasView {
		t.Fatal("no view should appear out of a failed first refresh")
	}
}

func TestDeleteTriggersRefreshAndRemovesTransaction(t *testing.T) {
	b := newFakeBackend()
	b.addAccount("acc-a")
	b.addTransaction("acc-a", "keep", date(1), "keep")
	b.addTransaction("acc-a", "gone", date(2), "gone")
	events := &capturingPublisher{}
	agg := NewAggregator(b, nil, events)
	ctx := context.Background()

	if _, err := agg.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if err := agg.DeleteTransaction(ctx, "acc-a", "gone"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	view, _ := agg.View()
	for _, tx := range view.Transactions {
		if tx.ID == "gone" {
			t.Fatal("deleted transaction still in view")
		}
	}
	if view.Len() != 1 {
		t.Fatalf("expected 1 transaction, got %d", view.Len())
	}

	if len(events.events) != 1 || events.events[0].Action != amqp.ActionDeleted {
		t.Fatalf("expected one deleted event, got %+v", events.events)
	}
}

func TestDeleteNotFoundIsBenign(t *testing.T) {
	b := newFakeBackend()
	b.addAccount("acc-a")
	agg := NewAggregator(b, nil, nil)

	if err := agg.DeleteTransaction(context.Background(), "acc-a", "absent"); err != nil {
		t.Fatalf("not-found delete should succeed, got %v", err)
	}
	if _, hasView := agg.View(); !hasView {
		t.Fatal("refresh should still have run")
	}
}

func TestDeleteCommittedButRefreshFailedReportsStaleView(t *testing.T) {
	b := newFakeBackend()
	b.addAccount("acc-a")
	b.addTransaction("acc-a", "1", date(1), "t")
	agg := NewAggregator(b, nil, nil)
	ctx := context.Background()

	if _, err := agg.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	// Delete succeeds, but the follow-up refresh cannot reach the backend.
	b.mu.Lock()
	b.fetchErr["acc-a"] = errors.New("connection reset")
	b.mu.Unlock()

	err := agg.DeleteTransaction(ctx, "acc-a", "1")
	if !errors.Is(err, ErrViewStale) {
		t.Fatalf("expected ErrViewStale, got %v", err)
	}
	if _, ok := core.IsPartial(err); !ok {
		t.Fatalf("cause should stay matchable, got %v", err)
	}

	// Backend-side the delete happened even though the view is behind.
	b.mu.Lock()
	remaining := len(b.txs["acc-a"])
	b.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("delete should have committed, %d left", remaining)
	}
}

func TestCreateTriggersRefresh(t *testing.T) {
	b := newFakeBackend()
	b.addAccount("acc-a")
	events := &capturingPublisher{}
	agg := NewAggregator(b, nil, events)
	ctx := context.Background()

	tx, err := agg.CreateTransaction(ctx, "acc-a", core.TransactionDraft{
		Date:        date(5),
		Description: "rent",
		Category:    "Housing",
		Amount:      decimal.NewFromInt(-900),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	view, _ := agg.View()
	if view.Len() != 1 || view.Transactions[0].ID != tx.ID {
		t.Fatalf("view not refreshed after create: %+v", view.Transactions)
	}
	if len(events.events) != 1 || events.events[0].Action != amqp.ActionCreated {
		t.Fatalf("expected one created event, got %+v", events.events)
	}
	if events.events[0].Amount != "-900" {
		t.Fatalf("event amount: got %q", events.events[0].Amount)
	}
}

func TestStaleRefreshCannotSupersedeNewerResult(t *testing.T) {
	b := newFakeBackend()
	b.addAccount("acc-a")
	b.addTransaction("acc-a", "old", date(1), "first data set")
	agg := NewAggregator(b, nil, nil)
	ctx := context.Background()

	release := make(chan struct{})
	var gateFired atomic.Bool
	gated := make(chan struct{})
	b.mu.Lock()
	b.onFetch = func(string) {
		if gateFired.CompareAndSwap(false, true) {
			close(gated)
			<-release
		}
	}
	b.mu.Unlock()

	// R1 starts and blocks inside its fetch.
	r1Done := make(chan struct{})
	go func() {
		defer close(r1Done)
		_, _ = agg.Refresh(ctx)
	}()
	<-gated

	// The data changes and R2 runs to completion while R1 is stuck.
	b.setAll("acc-a", []core.Transaction{{
		ID: "new", AccountID: "acc-a", Date: date(2),
		Description: "second data set", Amount: decimal.NewFromInt(-1),
	}})
	if _, err := agg.Refresh(ctx); err != nil {
		t.Fatalf("r2: %v", err)
	}

	// R1 finishes late; its stale result must not be published.
	close(release)
	<-r1Done

	view, _ := agg.View()
	if view.Len() != 1 || view.Transactions[0].ID != "new" {
		t.Fatalf("published view is not R2's result: %+v", view.Transactions)
	}
}

func TestConcurrentReadersNeverSeeMixedView(t *testing.T) {
	b := newFakeBackend()
	b.addAccount("acc-a")
	b.addAccount("acc-b")
	agg := NewAggregator(b, nil, nil)
	ctx := context.Background()

	setGeneration := func(gen string) {
		for _, acc := range []string{"acc-a", "acc-b"} {
			b.setAll(acc, []core.Transaction{
				{ID: "1", AccountID: acc, Date: date(1), Description: gen, Amount: decimal.NewFromInt(-1)},
				{ID: "2", AccountID: acc, Date: date(2), Description: gen, Amount: decimal.NewFromInt(-1)},
			})
		}
	}

	setGeneration("gen-0")
	if _, err := agg.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			view, ok := agg.View()
			if !ok {
				t.Error("view disappeared")
				return
			}
			if view.Len() != 4 {
				t.Errorf("view length %d: partial view observed", view.Len())
				return
			}
			gen := view.Transactions[0].Description
			for _, tx := range view.Transactions {
				if tx.Description != gen {
					t.Errorf("mixed view: %s and %s", gen, tx.Description)
					return
				}
			}
		}
	}()

	for i := 1; i <= 20; i++ {
		setGeneration(fmt.Sprintf("gen-%d", i))
		if _, err := agg.Refresh(ctx); err != nil {
			t.Fatalf("refresh %d: %v", i, err)
		}
	}
	close(stop)
	wg.Wait()
}

func TestRestoreSnapshotInstallsStaleView(t *testing.T) {
	stored := core.View{Transactions: []core.Transaction{
		{ID: "1", AccountID: "acc-a", Date: date(1), Description: "from disk", Amount: decimal.NewFromInt(-1)},
	}}
	snaps := &fakeSnapshots{view: stored, publishedAt: date(2)}
	b := newFakeBackend()
	b.addAccount("acc-a")
	agg := NewAggregator(b, snaps, nil)
	ctx := context.Background()

	if err := agg.RestoreSnapshot(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}
	state := agg.State()
	if !state.HasData || !state.Stale {
		t.Fatalf("expected stale restored view, got %+v", state)
	}
	if state.View.Len() != 1 || state.View.Transactions[0].Description != "from disk" {
		t.Fatalf("unexpected restored view: %+v", state.View.Transactions)
	}

	// A successful refresh replaces the snapshot and clears staleness.
	if _, err := agg.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	state = agg.State()
	if state.Stale {
		t.Fatal("refresh should clear staleness")
	}
	if !snaps.saved {
		t.Fatal("refresh should persist a new snapshot")
	}
}

type fakeSnapshots struct {
	mu          sync.Mutex
	view        core.View
	publishedAt time.Time
	saved       bool
}

func (s *fakeSnapshots) SaveView(_ context.Context, v core.View, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view, s.publishedAt, s.saved = v, at, true
	return nil
}

func (s *fakeSnapshots) LoadView(context.Context) (core.View, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view, s.publishedAt, nil
}
