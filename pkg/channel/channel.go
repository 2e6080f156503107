// Package channel defines the closed set of notification delivery channels.
// The set is fixed at compile time and not extensible at runtime.
package channel

import "fmt"

// Channel identifies a notification delivery medium.
type Channel string

const (
	Email     Channel = "email"
	SMS       Channel = "sms"
	Push      Channel = "push"
	Chat      Channel = "chat"
	Messenger Channel = "messenger"
	Alert     Channel = "alert"
	Webhook   Channel = "webhook"
	IoT       Channel = "iot"
	WhatsApp  Channel = "whatsapp"
	WebSocket Channel = "websocket"
	Database  Channel = "database"
	FCM       Channel = "fcm"
)

// All lists every channel in the closed set.
var All = []Channel{
	Email, SMS, Push, Chat, Messenger, Alert,
	Webhook, IoT, WhatsApp, WebSocket, Database, FCM,
}

var valid = func() map[Channel]bool {
	m := make(map[Channel]bool, len(All))
	for _, c := range All {
		m[c] = true
	}
	return m
}()

// IsValid reports whether c is a member of the closed channel set.
func (c Channel) IsValid() bool {
	return valid[c]
}

// String returns the channel name.
func (c Channel) String() string {
	return string(c)
}

// Parse converts a string to a Channel, rejecting values outside the set.
func Parse(s string) (Channel, error) {
	c := Channel(s)
	if !c.IsValid() {
		return "", fmt.Errorf("unknown channel %q", s)
	}
	return c, nil
}
