package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"peppermint/internal/core"
	"peppermint/internal/session"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, session.Static("test-token"))
}

func TestListAccountsAttachesBearerToken(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/peppermint/account/my_accounts" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": "acc-1", "institution": "First Bank", "account_type": "checking", "current_balance": 120.50},
		})
	})

	accounts, err := c.ListAccounts(context.Background())
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if gotAuth != "Bearer test-token" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
	if len(accounts) != 1 || accounts[0].ID != "acc-1" {
		t.Fatalf("unexpected accounts: %+v", accounts)
	}
	if accounts[0].CurrentBalance.String() != "120.5" {
		t.Fatalf("unexpected balance: %s", accounts[0].CurrentBalance)
	}
}

func TestListAccountsUnauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.ListAccounts(context.Background())
	if !core.IsUnauthorized(err) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestMissingCredentialIsUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be sent without a credential")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, session.Static(""))
	if _, err := c.ListAccounts(context.Background()); !core.IsUnauthorized(err) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestListTransactionsEmptyIsValid(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/peppermint/account/acc-1/transactions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]any{})
	})

	txs, err := c.ListTransactions(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if len(txs) != 0 {
		t.Fatalf("expected empty slice, got %d", len(txs))
	}
}

func TestListTransactionsDecodesAmountExactly(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"tx-1","account_id":"acc-1",
			"transaction_date":"2025-03-10T09:30:00Z",
			"transaction_description":"coffee",
			"transaction_category":"Food",
			"transaction_amount":-3.10}]`))
	})

	txs, err := c.ListTransactions(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if txs[0].Amount.String() != "-3.1" {
		t.Fatalf("amount lost precision: %s", txs[0].Amount)
	}
	want := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	if !txs[0].Date.Equal(want) {
		t.Fatalf("unexpected date %v", txs[0].Date)
	}
}

func TestDeleteTransactionNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("unexpected method %s", r.Method)
		}
		w.WriteHeader(http.StatusNotFound)
	})

	err := c.DeleteTransaction(context.Background(), "acc-1", "tx-9")
	if !core.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestServerErrorIsNeitherUnauthorizedNorNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.ListAccounts(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if core.IsUnauthorized(err) || core.IsNotFound(err) {
		t.Fatalf("500 should be an unreachable-class error, got %v", err)
	}
}

func TestCreateTransactionPostsDraft(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/peppermint/acc-1" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["transaction_description"] != "rent" {
			t.Errorf("unexpected body: %v", body)
		}
		w.Write([]byte(`{"id":"tx-new","account_id":"acc-1",
			"transaction_date":"2025-04-01T00:00:00Z",
			"transaction_description":"rent",
			"transaction_category":"Housing",
			"transaction_amount":-900}`))
	})

	tx, err := c.CreateTransaction(context.Background(), "acc-1", core.TransactionDraft{
		Date:        time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		Description: "rent",
		Category:    "Housing",
		Amount:      mustDecimal(t, "-900"),
	})
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if tx.ID != "tx-new" {
		t.Fatalf("unexpected transaction: %+v", tx)
	}
}
