// Package api is the REST adapter for the remote peppermint backend. It
// implements the backend ports over plain HTTP with a bearer credential
// supplied by the session provider.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"peppermint/internal/core"
	"peppermint/internal/session"
)

const defaultTimeout = 30 * time.Second

type Client struct {
	baseURL    string
	sessions   session.Provider
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(baseURL string, sessions session.Provider, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		sessions:   sessions,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListAccounts resolves the directory of accounts owned by the current
// session's user. Order is not guaranteed by the backend and callers must
// not rely on it.
func (c *Client) ListAccounts(ctx context.Context) ([]core.Account, error) {
	var out []accountPayload
	if err := c.getJSON(ctx, "/peppermint/account/my_accounts", &out); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	accounts := make([]core.Account, 0, len(out))
	for _, p := range out {
		accounts = append(accounts, p.toDomain())
	}
	return accounts, nil
}

// ListTransactions fetches the transaction collection for one account. An
// empty collection is a valid success, not an error.
func (c *Client) ListTransactions(ctx context.Context, accountID string) ([]core.Transaction, error) {
	var out []transactionPayload
	path := "/peppermint/account/" + url.PathEscape(accountID) + "/transactions"
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, fmt.Errorf("list transactions for account %s: %w", accountID, err)
	}
	txs := make([]core.Transaction, 0, len(out))
	for _, p := range out {
		txs = append(txs, p.toDomain())
	}
	return txs, nil
}

// CreateTransaction adds a transaction to the given account.
func (c *Client) CreateTransaction(ctx context.Context, accountID string, d core.TransactionDraft) (core.Transaction, error) {
	var out transactionPayload
	path := "/peppermint/" + url.PathEscape(accountID)
	if err := c.doJSON(ctx, http.MethodPost, path, draftPayload(d), &out); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	return out.toDomain(), nil
}

// UpdateTransaction replaces the editable fields of one transaction.
func (c *Client) UpdateTransaction(ctx context.Context, accountID, transactionID string, d core.TransactionDraft) (core.Transaction, error) {
	var out transactionPayload
	path := "/peppermint/" + url.PathEscape(accountID) + "/" + url.PathEscape(transactionID)
	if err := c.doJSON(ctx, http.MethodPut, path, draftPayload(d), &out); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %s: %w", transactionID, err)
	}
	return out.toDomain(), nil
}

// DeleteTransaction removes one transaction at the backend.
func (c *Client) DeleteTransaction(ctx context.Context, accountID, transactionID string) error {
	path := "/peppermint/" + url.PathEscape(accountID) + "/" + url.PathEscape(transactionID)
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("delete transaction %s: %w", transactionID, err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	token, err := c.sessions.Token(ctx)
	if err != nil {
		if errors.Is(err, session.ErrNoCredential) {
			return core.ErrUnauthorized
		}
		return fmt.Errorf("resolve credential: %w", err)
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return core.ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return core.ErrNotFound
	case resp.StatusCode >= 300:
		// Read a bounded slice of the body for the log line only.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		slog.DebugContext(ctx, "backend returned error status",
			"method", method, "path", path,
			"status", resp.StatusCode, "body", string(snippet))
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
