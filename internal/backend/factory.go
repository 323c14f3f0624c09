package backend

import (
	"fmt"
	"log/slog"

	"peppermint/internal/api"
	"peppermint/internal/memory"
	"peppermint/internal/session"
)

// Factory creates backends based on configuration.
type Factory interface {
	CreateBackend(cfg Config) (*Result, error)
}

// DefaultFactory implements the Factory interface.
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend implements Factory.CreateBackend.
func (f *DefaultFactory) CreateBackend(cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case RESTBackend:
		return f.createRESTBackend(cfg)
	case MemoryBackend:
		f.logger.Info("Initialized memory backend")
		return &Result{Backend: memory.NewWithDemoData()}, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}
}

func (f *DefaultFactory) createRESTBackend(cfg Config) (*Result, error) {
	var provider session.Provider
	if cfg.TokenFile != "" {
		provider = &session.FileProvider{Path: cfg.TokenFile}
	} else {
		provider = session.FromEnv(cfg.TokenEnv)
	}

	client := api.NewClient(cfg.BaseURL, provider)
	f.logger.Info("Initialized REST backend", "base_url", cfg.BaseURL)
	return &Result{Backend: client}, nil
}
