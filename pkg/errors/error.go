package errors

import (
	"errors"
	"fmt"
	"time"
)

// Error is the structured error value used across relaycore. It carries a
// stable code, an optional provider attribution and a retryability hint that
// the resilience layer consults before spending retry budget.
type Error struct {
	Code     ErrorCode              `json:"code"`
	Message  string                 `json:"message"`
	Provider string                 `json:"provider,omitempty"`
	Tenant   string                 `json:"tenant,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	Timestamp time.Time `json:"timestamp"`
	Cause     error     `json:"-"`

	Retryable bool `json:"retryable"`
}

// New creates a new Error with the given code and message. Retryability
// defaults to false for configuration codes and true otherwise; use
// WithRetryable to override.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Retryable: !code.IsConfiguration(),
	}
}

// Newf creates a new Error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s (provider: %s)", e.Code, e.Message, e.Provider)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by code so callers can use errors.Is with sentinel values.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return e.Code == te.Code
	}
	return false
}

// WithCause attaches the underlying error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithProvider attributes the error to a provider.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// WithTenant attributes the error to a tenant.
func (e *Error) WithTenant(tenantID string) *Error {
	e.Tenant = tenantID
	return e
}

// WithMetadata adds a metadata entry.
func (e *Error) WithMetadata(key string, value interface{}) *Error {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// WithRetryable overrides the retryability hint.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// IsRetryable reports whether err may be retried. Unknown error types are
// treated as retryable; configuration-class errors never are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var re *Error
	if errors.As(err, &re) {
		return re.Retryable
	}
	return true
}

// CodeOf extracts the ErrorCode from err, or empty string if err is not a
// structured Error.
func CodeOf(err error) ErrorCode {
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// IsConfiguration reports whether err belongs to the fail-fast configuration group.
func IsConfiguration(err error) bool {
	return CodeOf(err).IsConfiguration()
}
