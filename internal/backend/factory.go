package backend

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config controls backend construction. Exactly one variant is selected at
// startup; the choice is immutable for the process lifetime.
type Config struct {
	Provider string // "hosted" or "local"
	APIKey   string
	BaseURL  string
	Host     string
	Model    string
	Timeout  time.Duration
}

func New(cfg Config) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "hosted":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, errors.New("hosted backend requires an API key")
		}
		return NewHostedBackend(HostedConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}), nil
	case "local":
		if strings.TrimSpace(cfg.Host) == "" {
			return nil, errors.New("local backend requires a host URL")
		}
		return NewLocalBackend(LocalConfig{
			Host:    cfg.Host,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported backend provider %q", cfg.Provider)
	}
}
