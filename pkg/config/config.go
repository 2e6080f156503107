// Package config provides the relaycore configuration surface: a typed
// Config assembled through functional options, with environment-variable
// loading for deployments.
package config

import (
	"fmt"
	"time"

	"github.com/relay-io/relaycore/pkg/logger"
)

// Config is the engine-wide configuration.
type Config struct {
	// Retry controls the resilience layer's backoff schedule.
	Retry RetryConfig `json:"retry"`

	// Bulkhead controls per-dependency concurrency isolation.
	Bulkhead BulkheadConfig `json:"bulkhead"`

	// Breaker controls circuit-breaker thresholds.
	Breaker BreakerConfig `json:"breaker"`

	// Connections controls the persistent connection manager.
	Connections ConnectionConfig `json:"connections"`

	// Queue controls the per-channel job queues.
	Queue QueueConfig `json:"queue"`

	// Telemetry controls the OpenTelemetry provider.
	Telemetry TelemetryConfig `json:"telemetry"`

	// LoggerInstance is the logger handed to every component.
	LoggerInstance logger.Logger `json:"-"`
}

// RetryConfig is the environment-facing retry surface.
type RetryConfig struct {
	Enabled      bool          `json:"enabled" env:"RELAY_RETRY_ENABLED" envDefault:"true"`
	MaxRetries   int           `json:"max_retries" env:"RELAY_RETRY_MAX" envDefault:"3"`
	InitialDelay time.Duration `json:"initial_delay" env:"RELAY_RETRY_INITIAL_DELAY" envDefault:"100ms"`
	MaxDelay     time.Duration `json:"max_delay" env:"RELAY_RETRY_MAX_DELAY" envDefault:"1s"`
	Multiplier   float64       `json:"multiplier" env:"RELAY_RETRY_MULTIPLIER" envDefault:"2.0"`
}

// BulkheadConfig is the environment-facing bulkhead surface.
type BulkheadConfig struct {
	Enabled              bool          `json:"enabled" env:"RELAY_BULKHEAD_ENABLED" envDefault:"true"`
	DefaultMaxConcurrent int           `json:"default_max_concurrent" env:"RELAY_BULKHEAD_MAX_CONCURRENT" envDefault:"10"`
	QueueTimeout         time.Duration `json:"queue_timeout" env:"RELAY_BULKHEAD_QUEUE_TIMEOUT" envDefault:"30s"`
}

// BreakerConfig is the environment-facing circuit-breaker surface.
type BreakerConfig struct {
	Enabled      bool          `json:"enabled" env:"RELAY_BREAKER_ENABLED" envDefault:"true"`
	MaxFailures  int           `json:"max_failures" env:"RELAY_BREAKER_MAX_FAILURES" envDefault:"5"`
	ResetTimeout time.Duration `json:"reset_timeout" env:"RELAY_BREAKER_RESET_TIMEOUT" envDefault:"30s"`
}

// ConnectionConfig is the environment-facing connection-manager surface.
type ConnectionConfig struct {
	ReconnectBaseDelay  time.Duration `json:"reconnect_base_delay" env:"RELAY_CONN_RECONNECT_BASE_DELAY" envDefault:"1s"`
	ReconnectAttempts   int           `json:"reconnect_attempts" env:"RELAY_CONN_RECONNECT_ATTEMPTS" envDefault:"5"`
	HealthCheckInterval time.Duration `json:"health_check_interval" env:"RELAY_CONN_HEALTH_INTERVAL" envDefault:"30s"`
	HandshakeTimeout    time.Duration `json:"handshake_timeout" env:"RELAY_CONN_HANDSHAKE_TIMEOUT" envDefault:"10s"`
	AckTimeout          time.Duration `json:"ack_timeout" env:"RELAY_CONN_ACK_TIMEOUT" envDefault:"10s"`
}

// QueueConfig is the environment-facing queue surface.
type QueueConfig struct {
	Backend   string `json:"backend" env:"RELAY_QUEUE_BACKEND" envDefault:"memory"`
	Capacity  int    `json:"capacity" env:"RELAY_QUEUE_CAPACITY" envDefault:"1000"`
	RedisAddr string `json:"redis_addr" env:"RELAY_QUEUE_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB   int    `json:"redis_db" env:"RELAY_QUEUE_REDIS_DB" envDefault:"0"`
	RedisPass string `json:"-" env:"RELAY_QUEUE_REDIS_PASSWORD"`
	KeyPrefix string `json:"key_prefix" env:"RELAY_QUEUE_KEY_PREFIX" envDefault:"relaycore:queue:"`
}

// TelemetryConfig is the environment-facing telemetry surface.
type TelemetryConfig struct {
	Enabled        bool    `json:"enabled" env:"RELAY_TELEMETRY_ENABLED" envDefault:"false"`
	ServiceName    string  `json:"service_name" env:"RELAY_TELEMETRY_SERVICE" envDefault:"relaycore"`
	ServiceVersion string  `json:"service_version" env:"RELAY_TELEMETRY_VERSION" envDefault:"0.1.0"`
	Environment    string  `json:"environment" env:"RELAY_TELEMETRY_ENV" envDefault:"development"`
	OTLPEndpoint   string  `json:"otlp_endpoint" env:"RELAY_TELEMETRY_OTLP_ENDPOINT" envDefault:"http://localhost:4318"`
	SampleRate     float64 `json:"sample_rate" env:"RELAY_TELEMETRY_SAMPLE_RATE" envDefault:"1.0"`
}

// Option is a functional option mutating the Config.
type Option func(*Config) error

// New creates a configuration from defaults plus options.
func New(opts ...Option) (*Config, error) {
	cfg := Default()

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

// Default returns the built-in defaults without validation.
func Default() *Config {
	return &Config{
		Retry: RetryConfig{
			Enabled:      true,
			MaxRetries:   3,
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     time.Second,
			Multiplier:   2.0,
		},
		Bulkhead: BulkheadConfig{
			Enabled:              true,
			DefaultMaxConcurrent: 10,
			QueueTimeout:         30 * time.Second,
		},
		Breaker: BreakerConfig{
			Enabled:      true,
			MaxFailures:  5,
			ResetTimeout: 30 * time.Second,
		},
		Connections: ConnectionConfig{
			ReconnectBaseDelay:  time.Second,
			ReconnectAttempts:   5,
			HealthCheckInterval: 30 * time.Second,
			HandshakeTimeout:    10 * time.Second,
			AckTimeout:          10 * time.Second,
		},
		Queue: QueueConfig{
			Backend:   "memory",
			Capacity:  1000,
			RedisAddr: "localhost:6379",
			KeyPrefix: "relaycore:queue:",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "relaycore",
			ServiceVersion: "0.1.0",
			Environment:    "development",
			OTLPEndpoint:   "http://localhost:4318",
			SampleRate:     1.0,
		},
		LoggerInstance: logger.Discard,
	}
}

// Validate rejects inconsistent configuration values.
func (c *Config) Validate() error {
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry max retries cannot be negative")
	}
	if c.Retry.Enabled && c.Retry.InitialDelay <= 0 {
		return fmt.Errorf("retry initial delay must be positive")
	}
	if c.Retry.Enabled && c.Retry.MaxDelay < c.Retry.InitialDelay {
		return fmt.Errorf("retry max delay must be >= initial delay")
	}
	if c.Bulkhead.Enabled && c.Bulkhead.DefaultMaxConcurrent <= 0 {
		return fmt.Errorf("bulkhead default max concurrent must be positive")
	}
	if c.Breaker.Enabled && c.Breaker.MaxFailures <= 0 {
		return fmt.Errorf("breaker max failures must be positive")
	}
	if c.Connections.ReconnectAttempts < 0 {
		return fmt.Errorf("reconnect attempts cannot be negative")
	}
	switch c.Queue.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown queue backend %q", c.Queue.Backend)
	}
	return nil
}
