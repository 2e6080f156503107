package queue

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/relay-io/relaycore/pkg/channel"
	"github.com/relay-io/relaycore/pkg/logger"
)

// memoryQueue is the in-process backend: one buffered channel per delivery
// channel, created lazily. The per-channel channels are never closed, so a
// producer racing Close cannot panic; closure is signalled through done.
type memoryQueue struct {
	capacity int
	channels map[channel.Channel]chan *Job
	done     chan struct{}
	closed   int32
	enqueued int64
	dequeued int64
	mu       sync.Mutex
	logger   logger.Logger
}

// NewMemoryQueue creates an in-memory queue with the given per-channel capacity.
func NewMemoryQueue(capacity int, log logger.Logger) Queue {
	if log == nil {
		log = logger.Discard
	}
	if capacity <= 0 {
		capacity = 1000
	}
	return &memoryQueue{
		capacity: capacity,
		channels: make(map[channel.Channel]chan *Job),
		done:     make(chan struct{}),
		logger:   log,
	}
}

func (q *memoryQueue) chanFor(ch channel.Channel) chan *Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	c, ok := q.channels[ch]
	if !ok {
		c = make(chan *Job, q.capacity)
		q.channels[ch] = c
	}
	return c
}

// Enqueue adds a job, rejecting when the channel buffer is full.
func (q *memoryQueue) Enqueue(ctx context.Context, job *Job) error {
	if job == nil {
		return ErrInvalidJob
	}
	if atomic.LoadInt32(&q.closed) == 1 {
		return ErrQueueClosed
	}

	select {
	case q.chanFor(job.Channel) <- job:
		atomic.AddInt64(&q.enqueued, 1)
		q.logger.Debug("Job enqueued", "jobID", job.ID, "channel", job.Channel.String())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Dequeue blocks until a job arrives or the context is cancelled.
func (q *memoryQueue) Dequeue(ctx context.Context, ch channel.Channel) (*Job, error) {
	if atomic.LoadInt32(&q.closed) == 1 {
		return nil, ErrQueueClosed
	}

	select {
	case job := <-q.chanFor(ch):
		atomic.AddInt64(&q.dequeued, 1)
		return job, nil
	case <-q.done:
		return nil, ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Size returns the number of pending jobs for the channel.
func (q *memoryQueue) Size(ch channel.Channel) int {
	return len(q.chanFor(ch))
}

// Stats returns queue counters.
func (q *memoryQueue) Stats() Stats {
	return Stats{
		Enqueued: atomic.LoadInt64(&q.enqueued),
		Dequeued: atomic.LoadInt64(&q.dequeued),
	}
}

// Close closes the queue. Blocked Dequeue callers return ErrQueueClosed.
func (q *memoryQueue) Close() error {
	if !atomic.CompareAndSwapInt32(&q.closed, 0, 1) {
		return nil
	}
	close(q.done)
	return nil
}
