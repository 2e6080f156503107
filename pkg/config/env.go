package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/relay-io/relaycore/pkg/logger"
)

// FromEnv loads configuration from environment variables, reading a .env file
// first when present. Missing variables fall back to the envDefault tags,
// which match Default().
func FromEnv(opts ...Option) (*Config, error) {
	// A missing .env file is not an error; real environments set variables
	// directly.
	_ = godotenv.Load()

	cfg := Default()

	if err := env.Parse(&cfg.Retry); err != nil {
		return nil, fmt.Errorf("parsing retry config: %w", err)
	}
	if err := env.Parse(&cfg.Bulkhead); err != nil {
		return nil, fmt.Errorf("parsing bulkhead config: %w", err)
	}
	if err := env.Parse(&cfg.Breaker); err != nil {
		return nil, fmt.Errorf("parsing breaker config: %w", err)
	}
	if err := env.Parse(&cfg.Connections); err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}
	if err := env.Parse(&cfg.Queue); err != nil {
		return nil, fmt.Errorf("parsing queue config: %w", err)
	}
	if err := env.Parse(&cfg.Telemetry); err != nil {
		return nil, fmt.Errorf("parsing telemetry config: %w", err)
	}

	if cfg.LoggerInstance == nil {
		cfg.LoggerInstance = logger.Discard
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
