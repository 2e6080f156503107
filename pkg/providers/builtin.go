// Package providers registers the built-in channel providers with a factory.
package providers

import (
	"github.com/relay-io/relaycore/pkg/provider"
	"github.com/relay-io/relaycore/pkg/providers/fcm"
	"github.com/relay-io/relaycore/pkg/providers/sendgrid"
	"github.com/relay-io/relaycore/pkg/providers/slack"
	"github.com/relay-io/relaycore/pkg/providers/smtp"
	"github.com/relay-io/relaycore/pkg/providers/socket"
	"github.com/relay-io/relaycore/pkg/providers/twilio"
	"github.com/relay-io/relaycore/pkg/providers/webhook"
	"github.com/relay-io/relaycore/pkg/providers/whatsapp"
)

// builtins is the closed dispatch table of provider constructors. The channel
// set is fixed; embedders may still register additional providers for a
// channel through the factory.
var builtins = map[string]provider.Constructor{
	"smtp":     smtp.New,
	"sendgrid": sendgrid.New,
	"twilio":   twilio.New,
	"fcm":      fcm.New,
	"slack":    slack.New,
	"whatsapp": whatsapp.New,
	"webhook":  webhook.New,
	"socket":   socket.New,
}

// RegisterBuiltins installs every built-in constructor on the factory. Called
// once at engine startup.
func RegisterBuiltins(f *provider.Factory) {
	for name, ctor := range builtins {
		f.Register(name, ctor)
	}
}

// BuiltinNames lists the built-in provider names.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	return names
}
