package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnauthorized means the session credential was missing, expired,
	// or rejected by the backend. It always surfaces to the caller so the
	// re-authentication decision is made once, at the top.
	ErrUnauthorized = errors.New("session unauthorized")

	// ErrNotFound means the mutation target no longer exists at the
	// backend. For view-refresh purposes it is benign.
	ErrNotFound = errors.New("not found")
)

// PartialError reports a refresh pass in which one or more per-account
// fetches failed while others succeeded. The previous view is retained; an
// incomplete financial picture is never published as if it were complete.
type PartialError struct {
	// Failed holds the account IDs that could not be fetched, sorted.
	Failed []string
}

func NewPartialError(failed []string) *PartialError {
	ids := append([]string(nil), failed...)
	sort.Strings(ids)
	return &PartialError{Failed: ids}
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("partial fetch failure for accounts: %s", strings.Join(e.Failed, ", "))
}

func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsPartial reports whether err carries a PartialError and returns it.
func IsPartial(err error) (*PartialError, bool) {
	var pe *PartialError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
