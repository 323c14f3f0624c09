package core

import (
	"fmt"
	"testing"
)

func TestNewPartialErrorSortsAccounts(t *testing.T) {
	pe := NewPartialError([]string{"b", "a", "c"})
	if pe.Failed[0] != "a" || pe.Failed[1] != "b" || pe.Failed[2] != "c" {
		t.Fatalf("expected sorted account ids, got %v", pe.Failed)
	}
}

func TestIsPartialUnwraps(t *testing.T) {
	wrapped := fmt.Errorf("refresh: %w", NewPartialError([]string{"a"}))
	pe, ok := IsPartial(wrapped)
	if !ok {
		t.Fatal("expected a PartialError")
	}
	if len(pe.Failed) != 1 || pe.Failed[0] != "a" {
		t.Fatalf("unexpected failed set: %v", pe.Failed)
	}
	if _, ok := IsPartial(fmt.Errorf("plain")); ok {
		t.Fatal("plain error should not be partial")
	}
}

func TestIsUnauthorized(t *testing.T) {
	if !IsUnauthorized(fmt.Errorf("list accounts: %w", ErrUnauthorized)) {
		t.Fatal("wrapped ErrUnauthorized should match")
	}
	if IsUnauthorized(ErrNotFound) {
		t.Fatal("ErrNotFound should not match")
	}
}
