// Package provider defines the unified provider contract, the tagged
// credential variants, and the factory/registry/selector stack that resolves
// a (tenant, channel) pair to exactly one validated provider instance.
package provider

import (
	"context"
	"time"

	"github.com/relay-io/relaycore/pkg/channel"
	"github.com/relay-io/relaycore/pkg/errors"
)

// Provider is the capability interface every channel provider implements.
//
// Send never returns a Go error for delivery failures: all failures are
// captured into the DeliveryResult so provider SDK error types never leak to
// callers. Validate performs the credential predicate plus, where the
// protocol allows it cheaply, a live connectivity check.
type Provider interface {
	// Name returns the registered provider name (e.g. "sendgrid").
	Name() string

	// Channel returns the channel this provider delivers on.
	Channel() channel.Channel

	// Send delivers a single request and reports the outcome as data.
	Send(ctx context.Context, req *DeliveryRequest) *DeliveryResult

	// Validate checks required credential fields and connectivity.
	Validate(ctx context.Context) error

	// RequiredCredentials lists the credential field names this provider needs.
	RequiredCredentials() []string

	// Metadata declares rate limits and feature flags for introspection.
	Metadata() Metadata
}

// Metadata declares a provider's operational envelope.
type Metadata struct {
	DisplayName       string   `json:"display_name"`
	RequestsPerSecond int      `json:"requests_per_second,omitempty"`
	RequestsPerDay    int      `json:"requests_per_day,omitempty"`
	MaxMessageSize    int      `json:"max_message_size,omitempty"`
	Features          []string `json:"features,omitempty"`
}

// Recipient carries channel-specific addressing for one delivery.
type Recipient struct {
	Email       string                 `json:"email,omitempty"`
	Phone       string                 `json:"phone,omitempty"`
	DeviceToken string                 `json:"deviceToken,omitempty"`
	UserID      string                 `json:"userId,omitempty"`
	Channel     string                 `json:"channel,omitempty"` // chat channel or socket room
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// Content is the channel-agnostic message body.
type Content struct {
	Subject  string                 `json:"subject,omitempty"`
	Body     string                 `json:"body"`
	HTMLBody string                 `json:"htmlBody,omitempty"`
	Data     map[string]interface{} `json:"data,omitempty"`
}

// DeliveryRequest is the uniform send input across all providers.
type DeliveryRequest struct {
	Recipient Recipient              `json:"recipient"`
	Content   Content                `json:"content"`
	Options   map[string]interface{} `json:"options,omitempty"`
}

// DeliveryError describes a send failure, including whether the outer
// redelivery policy should bother retrying it.
type DeliveryError struct {
	Code      errors.ErrorCode `json:"code"`
	Message   string           `json:"message"`
	Retryable bool             `json:"isRetryable"`
}

// Error implements the error interface.
func (e *DeliveryError) Error() string {
	return string(e.Code) + ": " + e.Message
}

// DeliveryResult is the uniform send outcome across all providers.
type DeliveryResult struct {
	Success   bool                   `json:"success"`
	MessageID string                 `json:"messageId,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Error     *DeliveryError         `json:"error,omitempty"`
}

// Succeed builds a successful result stamped with the current time.
func Succeed(messageID string) *DeliveryResult {
	return &DeliveryResult{
		Success:   true,
		MessageID: messageID,
		Timestamp: time.Now(),
	}
}

// Fail builds a failed result carrying a structured delivery error.
func Fail(code errors.ErrorCode, message string, retryable bool) *DeliveryResult {
	return &DeliveryResult{
		Success:   false,
		Timestamp: time.Now(),
		Error: &DeliveryError{
			Code:      code,
			Message:   message,
			Retryable: retryable,
		},
	}
}

// FailErr builds a failed result from an error value, preserving a structured
// code and retryability hint when err is a *errors.Error.
func FailErr(err error) *DeliveryResult {
	code := errors.CodeOf(err)
	if code == "" {
		code = errors.ErrSendFailed
	}
	return Fail(code, err.Error(), errors.IsRetryable(err))
}

// SessionManager is the shared long-lived resource stateful channel providers
// depend on. It is satisfied by connmgr.Manager; declaring it here keeps the
// factory decoupled from the connection package.
type SessionManager interface {
	// Session returns a live session handle for the given credentials,
	// incrementing its subscriber count.
	Session(ctx context.Context, creds Credentials) (Session, error)

	// Release decrements the subscriber count for the session key.
	Release(key string) error
}

// Session is the minimal send surface a stateful provider uses.
type Session interface {
	Key() string
	IsConnected() bool
	Emit(event string, data interface{}) error
	EmitWithAck(ctx context.Context, event string, data interface{}) error
	EmitToRoom(room, event string, data interface{}) error
}

// SessionAware is the capability interface the factory probes after
// construction. Providers needing the shared session manager implement it;
// the factory injects via the setter rather than knowing concrete types.
type SessionAware interface {
	SetSessionManager(sm SessionManager)
}
