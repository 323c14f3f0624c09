package backend

import (
	"fmt"

	"peppermint/internal/config"
)

// Type selects the concrete backend adapter.
type Type string

const (
	// RESTBackend talks to the remote peppermint API.
	RESTBackend Type = "rest"
	// MemoryBackend is the in-process demo/test backend.
	MemoryBackend Type = "memory"
)

func (t Type) String() string {
	return string(t)
}

func (t Type) IsValid() bool {
	switch t {
	case RESTBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// Config holds what the factory needs to build a backend.
type Config struct {
	Type Type

	// REST specific
	BaseURL   string
	TokenEnv  string
	TokenFile string
}

// FromAppConfig converts the application config to backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	t := Type(appConfig.DataBackend)
	if !t.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:      t,
		BaseURL:   appConfig.BackendBaseURL,
		TokenEnv:  appConfig.SessionTokenEnv,
		TokenFile: appConfig.SessionTokenFile,
	}, nil
}

// Validate validates the backend configuration.
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if c.Type == RESTBackend {
		if c.BaseURL == "" {
			return fmt.Errorf("backend base URL is required for rest backend")
		}
		if c.TokenEnv == "" && c.TokenFile == "" {
			return fmt.Errorf("either a token env var or a token file must be configured for rest backend")
		}
	}
	return nil
}
