// Package session holds the bearer credential boundary. The credential is
// opaque to the rest of the client: it is attached to outbound requests and
// never inspected or mutated.
package session

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
)

// ErrNoCredential means no bearer token is available. Callers treat it the
// same as a rejected credential: the session has ended.
var ErrNoCredential = errors.New("no session credential")

// Provider supplies the current bearer token for outbound requests.
type Provider interface {
	Token(ctx context.Context) (string, error)
}

// Static is a fixed-token provider, used for tests and for deployments
// where the token is injected through the environment.
type Static string

func (s Static) Token(context.Context) (string, error) {
	if s == "" {
		return "", ErrNoCredential
	}
	return string(s), nil
}

// FromEnv reads the token from the named environment variable once and
// returns a Static provider.
func FromEnv(name string) Provider {
	return Static(strings.TrimSpace(os.Getenv(name)))
}

// FileProvider reads the token from a file on first use and caches it.
// Clear drops the cached value so a rotated token file is picked up.
type FileProvider struct {
	Path string

	mu    sync.Mutex
	token string
}

func (p *FileProvider) Token(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token != "" {
		return p.token, nil
	}
	b, err := os.ReadFile(p.Path)
	if err != nil {
		return "", ErrNoCredential
	}
	tok := strings.TrimSpace(string(b))
	if tok == "" {
		return "", ErrNoCredential
	}
	p.token = tok
	return tok, nil
}

func (p *FileProvider) Clear() {
	p.mu.Lock()
	p.token = ""
	p.mu.Unlock()
}
