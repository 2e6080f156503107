package config

import (
	"time"

	"github.com/relay-io/relaycore/pkg/logger"
)

// WithLogger sets the logger handed to every component.
func WithLogger(log logger.Logger) Option {
	return func(c *Config) error {
		c.LoggerInstance = log
		return nil
	}
}

// WithRetry replaces the retry configuration.
func WithRetry(cfg RetryConfig) Option {
	return func(c *Config) error {
		c.Retry = cfg
		return nil
	}
}

// WithoutRetry disables the inner retry layer.
func WithoutRetry() Option {
	return func(c *Config) error {
		c.Retry.Enabled = false
		return nil
	}
}

// WithBulkhead replaces the bulkhead configuration.
func WithBulkhead(cfg BulkheadConfig) Option {
	return func(c *Config) error {
		c.Bulkhead = cfg
		return nil
	}
}

// WithBreaker replaces the circuit-breaker configuration.
func WithBreaker(cfg BreakerConfig) Option {
	return func(c *Config) error {
		c.Breaker = cfg
		return nil
	}
}

// WithConnections replaces the connection-manager configuration.
func WithConnections(cfg ConnectionConfig) Option {
	return func(c *Config) error {
		c.Connections = cfg
		return nil
	}
}

// WithMemoryQueue selects the in-memory queue backend with the given capacity.
func WithMemoryQueue(capacity int) Option {
	return func(c *Config) error {
		c.Queue.Backend = "memory"
		c.Queue.Capacity = capacity
		return nil
	}
}

// WithRedisQueue selects the Redis queue backend.
func WithRedisQueue(addr, password string, db int) Option {
	return func(c *Config) error {
		c.Queue.Backend = "redis"
		c.Queue.RedisAddr = addr
		c.Queue.RedisPass = password
		c.Queue.RedisDB = db
		return nil
	}
}

// WithTelemetry enables the OpenTelemetry provider against an OTLP endpoint.
func WithTelemetry(serviceName, endpoint string) Option {
	return func(c *Config) error {
		c.Telemetry.Enabled = true
		c.Telemetry.ServiceName = serviceName
		c.Telemetry.OTLPEndpoint = endpoint
		return nil
	}
}

// WithAckTimeout overrides the acknowledged-send timeout.
func WithAckTimeout(d time.Duration) Option {
	return func(c *Config) error {
		c.Connections.AckTimeout = d
		return nil
	}
}
