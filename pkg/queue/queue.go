// Package queue provides the per-channel delivery job queues feeding the
// dispatch pipeline. Two backends are supported: in-memory (single process)
// and Redis (shared across process instances).
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/relay-io/relaycore/pkg/channel"
	"github.com/relay-io/relaycore/pkg/provider"
)

var (
	// ErrQueueFull is returned when the queue is at capacity.
	ErrQueueFull = errors.New("queue is full")

	// ErrQueueClosed is returned when operating on a closed queue.
	ErrQueueClosed = errors.New("queue is closed")

	// ErrInvalidJob is returned when the job is nil or malformed.
	ErrInvalidJob = errors.New("invalid job")

	// ErrNoJob is returned by polling backends when no job arrived within the
	// poll interval; consumers loop on it.
	ErrNoJob = errors.New("no job available")
)

// Job is the per-channel queue job schema. The outer queueing system owns
// redelivery; RetryCount/MaxRetries travel with the job so its policy can act.
type Job struct {
	ID               string                 `json:"id"`
	NotificationID   int64                  `json:"notificationId"`
	NotificationUUID string                 `json:"notificationUuid"`
	TenantID         string                 `json:"tenantId"`
	Channel          channel.Channel        `json:"channel"`
	Recipient        provider.Recipient     `json:"recipient"`
	Content          provider.Content       `json:"content"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
	RetryCount       int                    `json:"retryCount"`
	MaxRetries       int                    `json:"maxRetries"`
	EnqueuedAt       time.Time              `json:"enqueuedAt"`
}

// NewJob builds a job with a fresh id and enqueue timestamp.
func NewJob(notificationID int64, notificationUUID, tenantID string, ch channel.Channel, recipient provider.Recipient, content provider.Content) *Job {
	return &Job{
		ID:               uuid.NewString(),
		NotificationID:   notificationID,
		NotificationUUID: notificationUUID,
		TenantID:         tenantID,
		Channel:          ch,
		Recipient:        recipient,
		Content:          content,
		EnqueuedAt:       time.Now(),
	}
}

// Queue is the job transport between enqueuers and per-channel consumers.
type Queue interface {
	// Enqueue adds a job for its channel.
	Enqueue(ctx context.Context, job *Job) error

	// Dequeue blocks until a job for the channel is available, the context is
	// cancelled, or the queue closes.
	Dequeue(ctx context.Context, ch channel.Channel) (*Job, error)

	// Size returns the number of pending jobs for the channel.
	Size(ch channel.Channel) int

	// Stats returns queue counters.
	Stats() Stats

	// Close closes the queue and releases resources.
	Close() error
}

// Stats holds queue counters.
type Stats struct {
	Enqueued int64 `json:"enqueued"`
	Dequeued int64 `json:"dequeued"`
}
