// Package errors provides structured error types and codes for relaycore.
package errors

// ErrorCode identifies a class of relaycore error.
type ErrorCode string

// Configuration error codes. Errors in this group are fatal and never retried.
const (
	// ErrProviderNotRegistered indicates no constructor is registered for a provider name.
	ErrProviderNotRegistered ErrorCode = "PROVIDER_NOT_REGISTERED"

	// ErrProviderValidationFailed indicates a provider failed credential or connectivity validation.
	ErrProviderValidationFailed ErrorCode = "PROVIDER_VALIDATION_FAILED"

	// ErrNoProviderConfigured indicates a tenant has no enabled provider for a channel.
	ErrNoProviderConfigured ErrorCode = "NO_PROVIDER_CONFIGURED"

	// ErrMissingCredentials indicates required credential fields are absent or empty.
	ErrMissingCredentials ErrorCode = "MISSING_CREDENTIALS"

	// ErrInvalidConfig indicates an invalid configuration value.
	ErrInvalidConfig ErrorCode = "INVALID_CONFIG"
)

// Send error codes. Errors in this group carry a retryability hint and are
// returned as data inside a DeliveryResult, never thrown out of Send.
const (
	// ErrSendFailed indicates a provider-specific delivery failure.
	ErrSendFailed ErrorCode = "SEND_FAILED"

	// ErrRateLimited indicates the external service rejected the call for rate reasons.
	ErrRateLimited ErrorCode = "RATE_LIMITED"

	// ErrProviderTimeout indicates an outbound call exceeded its deadline.
	ErrProviderTimeout ErrorCode = "PROVIDER_TIMEOUT"

	// ErrInvalidRecipient indicates the delivery request carries no usable recipient.
	ErrInvalidRecipient ErrorCode = "INVALID_RECIPIENT"
)

// Resilience error codes.
const (
	// ErrQueueTimeout indicates a bulkhead wait queue entry exceeded its deadline.
	ErrQueueTimeout ErrorCode = "QUEUE_TIMEOUT"

	// ErrCircuitOpen indicates the circuit breaker rejected the call without invoking it.
	ErrCircuitOpen ErrorCode = "CIRCUIT_OPEN"

	// ErrRetriesExhausted indicates all retry attempts failed.
	ErrRetriesExhausted ErrorCode = "RETRIES_EXHAUSTED"
)

// Connection error codes.
const (
	// ErrNotConnected indicates a send was attempted on a disconnected adapter.
	ErrNotConnected ErrorCode = "NOT_CONNECTED"

	// ErrConnectFailed indicates an adapter connect or reconnect attempt failed.
	ErrConnectFailed ErrorCode = "CONNECT_FAILED"

	// ErrAckTimeout indicates an acknowledged send received no correlated ack in time.
	ErrAckTimeout ErrorCode = "ACK_TIMEOUT"

	// ErrReconnectExhausted indicates the reconnect scheduler ran out of attempts.
	ErrReconnectExhausted ErrorCode = "RECONNECT_EXHAUSTED"
)

// configurationCodes is the set of codes that must never be retried.
var configurationCodes = map[ErrorCode]bool{
	ErrProviderNotRegistered:    true,
	ErrProviderValidationFailed: true,
	ErrNoProviderConfigured:     true,
	ErrMissingCredentials:       true,
	ErrInvalidConfig:            true,
}

// IsConfiguration reports whether the code belongs to the configuration
// group, which is fail-fast and excluded from retry.
func (c ErrorCode) IsConfiguration() bool {
	return configurationCodes[c]
}
