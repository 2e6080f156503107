package resilience

import (
	"sync"
	"time"

	"github.com/relay-io/relaycore/pkg/errors"
	"github.com/relay-io/relaycore/pkg/logger"
)

// CircuitState is the state of one circuit breaker.
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // normal operation, failures counted
	CircuitOpen                         // rejecting calls until the cooldown elapses
	CircuitHalfOpen                     // one trial call allowed
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "CLOSED"
	case CircuitOpen:
		return "OPEN"
	case CircuitHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// BreakerConfig holds the operational thresholds. The defaults (5 consecutive
// failures, 30s cooldown) are configuration, not protocol.
type BreakerConfig struct {
	MaxFailures  int           `json:"max_failures"`
	ResetTimeout time.Duration `json:"reset_timeout"`
}

// DefaultBreakerConfig returns the conventional defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxFailures:  5,
		ResetTimeout: 30 * time.Second,
	}
}

// CircuitBreaker guards one service key.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	state        CircuitState
	failures     int
	lastFailTime time.Time
	trialActive  bool
	mutex        sync.Mutex
	logger       logger.Logger
}

// NewCircuitBreaker creates a breaker for the given service key.
func NewCircuitBreaker(name string, cfg BreakerConfig, log logger.Logger) *CircuitBreaker {
	if log == nil {
		log = logger.Discard
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return &CircuitBreaker{
		name:         name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		state:        CircuitClosed,
		logger:       log,
	}
}

// Execute runs op through the breaker. While OPEN, calls fail immediately
// with a CIRCUIT_OPEN error and op is never invoked. After the cooldown one
// trial call is admitted; its outcome decides the next state.
func (cb *CircuitBreaker) Execute(op func() error) error {
	if !cb.allowCall() {
		return errors.Newf(errors.ErrCircuitOpen, "circuit %q is open", cb.name).
			WithRetryable(true)
	}

	err := op()
	cb.recordResult(err)
	return err
}

func (cb *CircuitBreaker) allowCall() bool {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if time.Since(cb.lastFailTime) > cb.resetTimeout {
			cb.state = CircuitHalfOpen
			cb.trialActive = true
			cb.logger.Info("Circuit breaker half-open", "circuit", cb.name)
			return true
		}
		return false
	case CircuitHalfOpen:
		// Only the single trial call passes while half-open.
		if cb.trialActive {
			return false
		}
		cb.trialActive = true
		return true
	default:
		return false
	}
}

func (cb *CircuitBreaker) recordResult(err error) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if err != nil {
		cb.failures++
		cb.lastFailTime = time.Now()

		switch cb.state {
		case CircuitHalfOpen:
			cb.state = CircuitOpen
			cb.trialActive = false
			cb.logger.Warn("Circuit breaker reopened after failed trial",
				"circuit", cb.name, "error", err)
		case CircuitClosed:
			if cb.failures >= cb.maxFailures {
				cb.state = CircuitOpen
				cb.logger.Error("Circuit breaker opened",
					"circuit", cb.name, "failures", cb.failures)
			}
		}
		return
	}

	switch cb.state {
	case CircuitHalfOpen:
		cb.state = CircuitClosed
		cb.failures = 0
		cb.trialActive = false
		cb.logger.Info("Circuit breaker closed after successful trial", "circuit", cb.name)
	case CircuitClosed:
		cb.failures = 0
	}
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

// Failures returns the current consecutive-failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.failures
}

// BreakerGroup lazily creates one breaker per service key.
type BreakerGroup struct {
	config   BreakerConfig
	breakers map[string]*CircuitBreaker
	logger   logger.Logger
	mu       sync.Mutex
}

// NewBreakerGroup creates a group sharing one configuration.
func NewBreakerGroup(cfg BreakerConfig, log logger.Logger) *BreakerGroup {
	if log == nil {
		log = logger.Discard
	}
	return &BreakerGroup{
		config:   cfg,
		breakers: make(map[string]*CircuitBreaker),
		logger:   log,
	}
}

// Breaker returns the breaker for key, creating it on first use.
func (g *BreakerGroup) Breaker(key string) *CircuitBreaker {
	g.mu.Lock()
	defer g.mu.Unlock()

	cb, ok := g.breakers[key]
	if !ok {
		cb = NewCircuitBreaker(key, g.config, g.logger)
		g.breakers[key] = cb
	}
	return cb
}
