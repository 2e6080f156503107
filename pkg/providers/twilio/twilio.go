// Package twilio provides the Twilio SMS provider.
package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/relay-io/relaycore/pkg/channel"
	"github.com/relay-io/relaycore/pkg/errors"
	"github.com/relay-io/relaycore/pkg/provider"
)

const apiBase = "https://api.twilio.com/2010-04-01"

// Provider delivers SMS through the Twilio messages API.
type Provider struct {
	creds  provider.TwilioCredentials
	client *http.Client
}

// New constructs the twilio provider from its credential variant.
func New(creds provider.Credentials) (provider.Provider, error) {
	twCreds, ok := creds.(provider.TwilioCredentials)
	if !ok {
		return nil, errors.Newf(errors.ErrInvalidConfig,
			"twilio provider requires Twilio credentials, got %q", creds.ProviderType())
	}
	return &Provider{
		creds:  twCreds,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Name returns the registered provider name.
func (p *Provider) Name() string { return "twilio" }

// Channel returns the sms channel.
func (p *Provider) Channel() channel.Channel { return channel.SMS }

// RequiredCredentials lists the credential field names.
func (p *Provider) RequiredCredentials() []string {
	return []string{"accountSid", "authToken", "fromNumber"}
}

// Metadata declares the provider's operational envelope.
func (p *Provider) Metadata() provider.Metadata {
	return provider.Metadata{
		DisplayName:       "Twilio",
		RequestsPerSecond: 30,
		MaxMessageSize:    1600,
	}
}

// Validate checks credential fields.
func (p *Provider) Validate(_ context.Context) error {
	return p.creds.Validate()
}

// Send delivers one SMS via form-encoded POST to the messages endpoint.
func (p *Provider) Send(ctx context.Context, req *provider.DeliveryRequest) *provider.DeliveryResult {
	if req.Recipient.Phone == "" {
		return provider.Fail(errors.ErrInvalidRecipient, "recipient phone is empty", false)
	}

	form := url.Values{}
	form.Set("To", req.Recipient.Phone)
	form.Set("From", p.creds.FromNumber)
	form.Set("Body", req.Content.Body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", apiBase, p.creds.AccountSID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return provider.Fail(errors.ErrSendFailed, fmt.Sprintf("building request: %v", err), false)
	}
	httpReq.SetBasicAuth(p.creds.AccountSID, p.creds.AuthToken)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return provider.Fail(errors.ErrSendFailed, fmt.Sprintf("twilio request failed: %v", err), true)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return provider.Fail(errors.ErrRateLimited, "twilio rate limit exceeded", true)
	}
	if resp.StatusCode >= 500 {
		return provider.Fail(errors.ErrSendFailed,
			fmt.Sprintf("twilio server error: %d", resp.StatusCode), true)
	}

	var body struct {
		SID     string `json:"sid"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return provider.Fail(errors.ErrSendFailed, fmt.Sprintf("decoding twilio response: %v", err), true)
	}

	if resp.StatusCode >= 400 {
		return provider.Fail(errors.ErrSendFailed,
			fmt.Sprintf("twilio rejected message (%d): %s", resp.StatusCode, body.Message), false)
	}

	result := provider.Succeed(body.SID)
	result.Metadata = map[string]interface{}{"status": resp.StatusCode}
	return result
}
