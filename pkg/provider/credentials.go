package provider

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/relay-io/relaycore/pkg/channel"
	"github.com/relay-io/relaycore/pkg/errors"
)

// Credentials is the tagged credential union, discriminated by provider type
// and channel. Each variant carries provider-specific fields plus a common
// enabled flag. Validity is a pure predicate over required fields.
type Credentials interface {
	// ProviderType returns the discriminator tag (provider name).
	ProviderType() string

	// Channel returns the channel the credentials apply to.
	Channel() channel.Channel

	// IsEnabled reports whether the configuration is switched on.
	IsEnabled() bool

	// Validate checks that every required field is present and non-empty.
	Validate() error
}

// requireFields is the shared validity predicate: every listed field must be
// non-empty.
func requireFields(providerType string, fields map[string]string) error {
	for name, value := range fields {
		if value == "" {
			return errors.Newf(errors.ErrMissingCredentials,
				"missing required credential field %q", name).
				WithProvider(providerType)
		}
	}
	return nil
}

// Fingerprint derives the provider-instance cache key from a provider name
// and its credentials: name + ":" + first 16 hex chars of sha256 over the
// canonical JSON encoding.
func Fingerprint(name string, creds Credentials) string {
	raw, err := json.Marshal(creds)
	if err != nil {
		// Credentials are plain structs; marshal only fails for exotic field
		// types, in which case the name alone still keys the cache.
		return name + ":unfingerprinted"
	}
	sum := sha256.Sum256(raw)
	return fmt.Sprintf("%s:%s", name, hex.EncodeToString(sum[:])[:16])
}

// SMTPCredentials configures the smtp email provider.
type SMTPCredentials struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
	UseTLS   bool   `json:"useTls"`
	Enabled  bool   `json:"enabled"`
}

func (c SMTPCredentials) ProviderType() string { return "smtp" }
func (c SMTPCredentials) Channel() channel.Channel { return channel.Email }
func (c SMTPCredentials) IsEnabled() bool { return c.Enabled }
func (c SMTPCredentials) Validate() error {
	if c.Port == 0 {
		return errors.New(errors.ErrMissingCredentials, `missing required credential field "port"`).
			WithProvider(c.ProviderType())
	}
	return requireFields(c.ProviderType(), map[string]string{
		"host": c.Host,
		"from": c.From,
	})
}

// SendGridCredentials configures the sendgrid email provider.
type SendGridCredentials struct {
	APIKey    string `json:"apiKey"`
	FromEmail string `json:"fromEmail"`
	FromName  string `json:"fromName,omitempty"`
	BaseURL   string `json:"baseUrl,omitempty"`
	Enabled   bool   `json:"enabled"`
}

func (c SendGridCredentials) ProviderType() string { return "sendgrid" }
func (c SendGridCredentials) Channel() channel.Channel { return channel.Email }
func (c SendGridCredentials) IsEnabled() bool { return c.Enabled }
func (c SendGridCredentials) Validate() error {
	return requireFields(c.ProviderType(), map[string]string{
		"apiKey":    c.APIKey,
		"fromEmail": c.FromEmail,
	})
}

// TwilioCredentials configures the twilio sms provider.
type TwilioCredentials struct {
	AccountSID string `json:"accountSid"`
	AuthToken  string `json:"authToken"`
	FromNumber string `json:"fromNumber"`
	Enabled    bool   `json:"enabled"`
}

func (c TwilioCredentials) ProviderType() string { return "twilio" }
func (c TwilioCredentials) Channel() channel.Channel { return channel.SMS }
func (c TwilioCredentials) IsEnabled() bool { return c.Enabled }
func (c TwilioCredentials) Validate() error {
	return requireFields(c.ProviderType(), map[string]string{
		"accountSid": c.AccountSID,
		"authToken":  c.AuthToken,
		"fromNumber": c.FromNumber,
	})
}

// FCMCredentials configures the fcm push provider.
type FCMCredentials struct {
	ProjectID string `json:"projectId"`
	ServerKey string `json:"serverKey"`
	Enabled   bool   `json:"enabled"`
}

func (c FCMCredentials) ProviderType() string { return "fcm" }
func (c FCMCredentials) Channel() channel.Channel { return channel.Push }
func (c FCMCredentials) IsEnabled() bool { return c.Enabled }
func (c FCMCredentials) Validate() error {
	return requireFields(c.ProviderType(), map[string]string{
		"projectId": c.ProjectID,
		"serverKey": c.ServerKey,
	})
}

// SlackCredentials configures the slack chat provider.
type SlackCredentials struct {
	WebhookURL     string `json:"webhookUrl"`
	DefaultChannel string `json:"defaultChannel,omitempty"`
	Enabled        bool   `json:"enabled"`
}

func (c SlackCredentials) ProviderType() string { return "slack" }
func (c SlackCredentials) Channel() channel.Channel { return channel.Chat }
func (c SlackCredentials) IsEnabled() bool { return c.Enabled }
func (c SlackCredentials) Validate() error {
	return requireFields(c.ProviderType(), map[string]string{
		"webhookUrl": c.WebhookURL,
	})
}

// WhatsAppCredentials configures the whatsapp cloud-api provider.
type WhatsAppCredentials struct {
	PhoneNumberID string `json:"phoneNumberId"`
	AccessToken   string `json:"accessToken"`
	Enabled       bool   `json:"enabled"`
}

func (c WhatsAppCredentials) ProviderType() string { return "whatsapp" }
func (c WhatsAppCredentials) Channel() channel.Channel { return channel.WhatsApp }
func (c WhatsAppCredentials) IsEnabled() bool { return c.Enabled }
func (c WhatsAppCredentials) Validate() error {
	return requireFields(c.ProviderType(), map[string]string{
		"phoneNumberId": c.PhoneNumberID,
		"accessToken":   c.AccessToken,
	})
}

// WebhookCredentials configures the generic signed-webhook provider.
type WebhookCredentials struct {
	URL         string `json:"url"`
	Secret      string `json:"secret,omitempty"`
	Method      string `json:"method,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Enabled     bool   `json:"enabled"`
}

func (c WebhookCredentials) ProviderType() string { return "webhook" }
func (c WebhookCredentials) Channel() channel.Channel { return channel.Webhook }
func (c WebhookCredentials) IsEnabled() bool { return c.Enabled }
func (c WebhookCredentials) Validate() error {
	return requireFields(c.ProviderType(), map[string]string{
		"url": c.URL,
	})
}

// SocketCredentials configures the realtime websocket provider and the
// connection manager sessions it rides on.
type SocketCredentials struct {
	URL       string `json:"url"`
	Protocol  string `json:"protocol,omitempty"` // defaults to "ws"
	AuthType  string `json:"authType,omitempty"` // "header", "query" or "basic"
	AuthToken string `json:"authToken,omitempty"`
	Username  string `json:"username,omitempty"`
	Password  string `json:"password,omitempty"`
	Enabled   bool   `json:"enabled"`
}

func (c SocketCredentials) ProviderType() string { return "socket" }
func (c SocketCredentials) Channel() channel.Channel { return channel.WebSocket }
func (c SocketCredentials) IsEnabled() bool { return c.Enabled }
func (c SocketCredentials) Validate() error {
	return requireFields(c.ProviderType(), map[string]string{
		"url": c.URL,
	})
}
