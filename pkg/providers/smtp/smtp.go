// Package smtp provides the direct-SMTP email provider.
package smtp

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/relay-io/relaycore/pkg/channel"
	"github.com/relay-io/relaycore/pkg/errors"
	"github.com/relay-io/relaycore/pkg/provider"
)

// Provider delivers email over SMTP.
type Provider struct {
	creds provider.SMTPCredentials
}

// New constructs the smtp provider from its credential variant.
func New(creds provider.Credentials) (provider.Provider, error) {
	smtpCreds, ok := creds.(provider.SMTPCredentials)
	if !ok {
		return nil, errors.Newf(errors.ErrInvalidConfig,
			"smtp provider requires SMTP credentials, got %q", creds.ProviderType())
	}
	return &Provider{creds: smtpCreds}, nil
}

// Name returns the registered provider name.
func (p *Provider) Name() string { return "smtp" }

// Channel returns the email channel.
func (p *Provider) Channel() channel.Channel { return channel.Email }

// RequiredCredentials lists the credential field names.
func (p *Provider) RequiredCredentials() []string {
	return []string{"host", "port", "from"}
}

// Metadata declares the provider's operational envelope.
func (p *Provider) Metadata() provider.Metadata {
	return provider.Metadata{
		DisplayName:       "SMTP",
		RequestsPerSecond: 10,
		Features:          []string{"html", "subject"},
	}
}

// Validate checks credential fields and performs a dial-level connectivity check.
func (p *Provider) Validate(ctx context.Context) error {
	if err := p.creds.Validate(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", p.creds.Host, p.creds.Port)
	dialer := net.Dialer{Timeout: 5 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return errors.Newf(errors.ErrProviderValidationFailed,
			"smtp server %s unreachable: %v", addr, err).
			WithProvider(p.Name()).WithCause(err)
	}
	return conn.Close()
}

// Send delivers one email. Failures are captured into the result; Send never
// returns a Go error.
func (p *Provider) Send(ctx context.Context, req *provider.DeliveryRequest) *provider.DeliveryResult {
	if req.Recipient.Email == "" {
		return provider.Fail(errors.ErrInvalidRecipient, "recipient email is empty", false)
	}

	msg := p.buildMessage(req)
	addr := fmt.Sprintf("%s:%d", p.creds.Host, p.creds.Port)

	var auth smtp.Auth
	if p.creds.Username != "" {
		auth = smtp.PlainAuth("", p.creds.Username, p.creds.Password, p.creds.Host)
	}

	if err := smtp.SendMail(addr, auth, p.creds.From, []string{req.Recipient.Email}, msg); err != nil {
		return provider.Fail(errors.ErrSendFailed,
			fmt.Sprintf("smtp send to %s failed: %v", req.Recipient.Email, err), true)
	}

	result := provider.Succeed("smtp-" + uuid.NewString())
	result.Metadata = map[string]interface{}{"host": p.creds.Host}
	return result
}

func (p *Provider) buildMessage(req *provider.DeliveryRequest) []byte {
	var b strings.Builder
	b.WriteString("From: " + p.creds.From + "\r\n")
	b.WriteString("To: " + req.Recipient.Email + "\r\n")
	b.WriteString("Subject: " + req.Content.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	if req.Content.HTMLBody != "" {
		b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
		b.WriteString(req.Content.HTMLBody)
	} else {
		b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
		b.WriteString(req.Content.Body)
	}
	return []byte(b.String())
}
