package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/relay-io/relaycore/pkg/errors"
	"github.com/relay-io/relaycore/pkg/logger"
)

// BulkheadConfig holds pool-creation defaults.
type BulkheadConfig struct {
	DefaultMaxConcurrent int           `json:"default_max_concurrent"`
	QueueTimeout         time.Duration `json:"queue_timeout"`
}

// DefaultBulkheadConfig returns the operational defaults.
func DefaultBulkheadConfig() BulkheadConfig {
	return BulkheadConfig{
		DefaultMaxConcurrent: 10,
		QueueTimeout:         30 * time.Second,
	}
}

// waiter is one FIFO wait-queue entry.
type waiter struct {
	ready      chan struct{}
	enqueuedAt time.Time
	granted    bool
}

// pool bounds concurrent executions for one named external dependency.
// Invariant: running <= maxConcurrent.
type pool struct {
	name          string
	maxConcurrent int
	running       int
	waitQueue     []*waiter
	mu            sync.Mutex
}

// Bulkhead manages named pools, created lazily on first use. One slow or
// failing dependency can exhaust only its own pool, never global capacity.
type Bulkhead struct {
	config BulkheadConfig
	pools  map[string]*pool
	logger logger.Logger
	mu     sync.Mutex
}

// NewBulkhead creates a bulkhead with the given defaults.
func NewBulkhead(cfg BulkheadConfig, log logger.Logger) *Bulkhead {
	if log == nil {
		log = logger.Discard
	}
	if cfg.DefaultMaxConcurrent <= 0 {
		cfg.DefaultMaxConcurrent = 10
	}
	if cfg.QueueTimeout <= 0 {
		cfg.QueueTimeout = 30 * time.Second
	}
	return &Bulkhead{
		config: cfg,
		pools:  make(map[string]*pool),
		logger: log,
	}
}

// Execute runs op inside the named pool. maxConcurrent applies only when the
// pool is created by this call; 0 means the configured default. When the pool
// is saturated the caller queues FIFO and is rejected with a QUEUE_TIMEOUT
// error once the queue deadline passes.
func (b *Bulkhead) Execute(ctx context.Context, poolName string, maxConcurrent int, op func(ctx context.Context) error) error {
	p := b.pool(poolName, maxConcurrent)

	if err := b.acquire(ctx, p); err != nil {
		return err
	}
	defer b.release(p)

	return op(ctx)
}

// PoolStats reports the current occupancy of a named pool.
type PoolStats struct {
	Name          string `json:"name"`
	MaxConcurrent int    `json:"max_concurrent"`
	Running       int    `json:"running"`
	Queued        int    `json:"queued"`
}

// Stats returns occupancy for the named pool, or zero stats if it does not exist.
func (b *Bulkhead) Stats(poolName string) PoolStats {
	b.mu.Lock()
	p, ok := b.pools[poolName]
	b.mu.Unlock()
	if !ok {
		return PoolStats{Name: poolName}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		Name:          p.name,
		MaxConcurrent: p.maxConcurrent,
		Running:       p.running,
		Queued:        len(p.waitQueue),
	}
}

func (b *Bulkhead) pool(name string, maxConcurrent int) *pool {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.pools[name]
	if !ok {
		if maxConcurrent <= 0 {
			maxConcurrent = b.config.DefaultMaxConcurrent
		}
		p = &pool{name: name, maxConcurrent: maxConcurrent}
		b.pools[name] = p
		b.logger.Debug("Bulkhead pool created", "pool", name, "maxConcurrent", maxConcurrent)
	}
	return p
}

func (b *Bulkhead) acquire(ctx context.Context, p *pool) error {
	p.mu.Lock()
	if p.running < p.maxConcurrent {
		p.running++
		p.mu.Unlock()
		return nil
	}

	w := &waiter{
		ready:      make(chan struct{}),
		enqueuedAt: time.Now(),
	}
	p.waitQueue = append(p.waitQueue, w)
	queued := len(p.waitQueue)
	p.mu.Unlock()

	b.logger.Debug("Bulkhead pool saturated, queued", "pool", p.name, "queueDepth", queued)

	timer := time.NewTimer(b.config.QueueTimeout)
	defer timer.Stop()

	select {
	case <-w.ready:
		// Slot ownership was transferred by release(); running already counts us.
		return nil
	case <-timer.C:
		if b.abandonWait(p, w) {
			return errors.Newf(errors.ErrQueueTimeout,
				"bulkhead %q queue wait exceeded %s", p.name, b.config.QueueTimeout).
				WithRetryable(true)
		}
		return nil
	case <-ctx.Done():
		if b.abandonWait(p, w) {
			return ctx.Err()
		}
		return nil
	}
}

// abandonWait removes w from the queue. It returns false when a slot was
// granted concurrently, in which case the caller owns the slot and proceeds.
func (b *Bulkhead) abandonWait(p *pool, w *waiter) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w.granted {
		return false
	}
	for i, queued := range p.waitQueue {
		if queued == w {
			p.waitQueue = append(p.waitQueue[:i], p.waitQueue[i+1:]...)
			break
		}
	}
	return true
}

func (b *Bulkhead) release(p *pool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Hand the slot to the oldest queued entry instead of decrementing, so
	// admission stays FIFO and running never exceeds maxConcurrent.
	if len(p.waitQueue) > 0 {
		w := p.waitQueue[0]
		p.waitQueue = p.waitQueue[1:]
		w.granted = true
		close(w.ready)
		return
	}
	p.running--
}
