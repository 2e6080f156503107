package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/relay-io/relaycore/pkg/channel"
	"github.com/relay-io/relaycore/pkg/logger"
)

// RedisOptions configures the Redis queue backend.
type RedisOptions struct {
	Addr         string
	Password     string
	DB           int
	KeyPrefix    string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
}

// redisQueue is the shared backend: one Redis list per delivery channel, so
// multiple process instances can consume the same pipeline.
type redisQueue struct {
	client    *redis.Client
	keyPrefix string
	closed    int32
	enqueued  int64
	dequeued  int64
	logger    logger.Logger
}

// NewRedisQueue creates a Redis-backed queue and verifies connectivity.
func NewRedisQueue(opts *RedisOptions, log logger.Logger) (Queue, error) {
	if log == nil {
		log = logger.Discard
	}
	if opts == nil {
		return nil, errors.New("redis options cannot be nil")
	}

	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "relaycore:queue:"
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 3 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 3 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		PoolSize:     opts.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "addr", opts.Addr, "error", err)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &redisQueue{
		client:    client,
		keyPrefix: opts.KeyPrefix,
		logger:    log,
	}, nil
}

func (q *redisQueue) key(ch channel.Channel) string {
	return q.keyPrefix + ch.String()
}

// Enqueue pushes the JSON-encoded job onto the channel list.
func (q *redisQueue) Enqueue(ctx context.Context, job *Job) error {
	if job == nil {
		return ErrInvalidJob
	}
	if atomic.LoadInt32(&q.closed) == 1 {
		return ErrQueueClosed
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshaling job: %w", err)
	}

	if err := q.client.LPush(ctx, q.key(job.Channel), data).Err(); err != nil {
		return fmt.Errorf("enqueueing job: %w", err)
	}
	atomic.AddInt64(&q.enqueued, 1)
	q.logger.Debug("Job enqueued", "jobID", job.ID, "channel", job.Channel.String())
	return nil
}

// Dequeue blocks on BRPOP until a job arrives or the context is cancelled.
func (q *redisQueue) Dequeue(ctx context.Context, ch channel.Channel) (*Job, error) {
	if atomic.LoadInt32(&q.closed) == 1 {
		return nil, ErrQueueClosed
	}

	// A short poll interval keeps context cancellation responsive; BRPOP with
	// a zero timeout would pin the connection.
	res, err := q.client.BRPop(ctx, time.Second, q.key(ch)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoJob
		}
		return nil, err
	}
	// res[0] is the key, res[1] the payload.
	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("unmarshaling job: %w", err)
	}
	atomic.AddInt64(&q.dequeued, 1)
	return &job, nil
}

// Size returns the channel list length.
func (q *redisQueue) Size(ch channel.Channel) int {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	n, err := q.client.LLen(ctx, q.key(ch)).Result()
	if err != nil {
		return 0
	}
	return int(n)
}

// Stats returns queue counters.
func (q *redisQueue) Stats() Stats {
	return Stats{
		Enqueued: atomic.LoadInt64(&q.enqueued),
		Dequeued: atomic.LoadInt64(&q.dequeued),
	}
}

// Close closes the Redis client.
func (q *redisQueue) Close() error {
	if !atomic.CompareAndSwapInt32(&q.closed, 0, 1) {
		return nil
	}
	return q.client.Close()
}
