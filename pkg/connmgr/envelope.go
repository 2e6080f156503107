// Package connmgr manages long-lived external socket connections for
// real-time channels: pooling keyed by (protocol, url), subscriber
// refcounting, periodic health checks, exponential reconnect backoff, and
// acknowledged / request-response sends correlated by message id.
package connmgr

import "time"

// Envelope is the wire format exchanged over managed connections.
// Correlation between a send and its ack or response is strictly by ID.
type Envelope struct {
	Event       string      `json:"event"`
	Data        interface{} `json:"data,omitempty"`
	Timestamp   int64       `json:"timestamp"`
	ID          uint64      `json:"id,omitempty"`
	RequiresAck bool        `json:"requiresAck,omitempty"`
	Ack         bool        `json:"ack,omitempty"`
	Response    bool        `json:"response,omitempty"`
	Room        string      `json:"room,omitempty"`
}

// newEnvelope stamps an outbound envelope.
func newEnvelope(event string, data interface{}) *Envelope {
	return &Envelope{
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
}
