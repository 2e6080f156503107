// Package notification defines the notification model owned by the external
// tenant-scoped datastore, the delivery-status state machine mutated by the
// dispatch pipeline, and the store port the pipeline writes through.
package notification

import (
	"context"
	"time"

	"github.com/relay-io/relaycore/pkg/channel"
)

// Status is the persisted delivery status of a notification. The numeric
// values are owned by the external store and must not be renumbered.
type Status int

const (
	StatusPending   Status = 1
	StatusQueued    Status = 2
	StatusSent      Status = 3
	StatusDelivered Status = 4
	StatusFailed    Status = 5
	StatusCancelled Status = 6
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusQueued:
		return "queued"
	case StatusSent:
		return "sent"
	case StatusDelivered:
		return "delivered"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Notification is the persisted notification row. The dispatch pipeline is
// its sole mutator; creation and redelivery are external concerns.
type Notification struct {
	ID            int64                  `json:"id"`
	UUID          string                 `json:"uuid"`
	TenantID      string                 `json:"tenant_id"`
	Channel       channel.Channel        `json:"channel"`
	Status        Status                 `json:"status"`
	RetryCount    int                    `json:"retry_count"`
	SentAt        *time.Time             `json:"sent_at,omitempty"`
	DeliveredAt   *time.Time             `json:"delivered_at,omitempty"`
	FailedAt      *time.Time             `json:"failed_at,omitempty"`
	FailureReason string                 `json:"failure_reason,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// Event is a delivery-event log entry appended alongside each status transition.
type Event struct {
	NotificationID int64                  `json:"notification_id"`
	TenantID       string                 `json:"tenant_id"`
	Type           string                 `json:"type"`
	Provider       string                 `json:"provider,omitempty"`
	MessageID      string                 `json:"message_id,omitempty"`
	Reason         string                 `json:"reason,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// Event type constants.
const (
	EventSent   = "sent"
	EventFailed = "failed"
)

// Store is the port to the external tenant-scoped datastore. Row-level
// security and session-variable mechanics live behind this interface.
type Store interface {
	// MarkSent transitions a notification to sent and stamps sentAt.
	MarkSent(ctx context.Context, tenantID string, notificationID int64, sentAt time.Time) error

	// MarkFailed transitions a notification to failed with the captured reason.
	MarkFailed(ctx context.Context, tenantID string, notificationID int64, failedAt time.Time, reason string) error

	// AppendEvent appends a delivery-event log entry.
	AppendEvent(ctx context.Context, event *Event) error
}
