// Package sendgrid provides the SendGrid v3 email provider.
package sendgrid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/relay-io/relaycore/pkg/channel"
	"github.com/relay-io/relaycore/pkg/errors"
	"github.com/relay-io/relaycore/pkg/provider"
)

const defaultAPIURL = "https://api.sendgrid.com/v3/mail/send"

// Provider delivers email through the SendGrid v3 API.
type Provider struct {
	creds  provider.SendGridCredentials
	apiURL string
	client *http.Client
}

// New constructs the sendgrid provider from its credential variant.
func New(creds provider.Credentials) (provider.Provider, error) {
	sgCreds, ok := creds.(provider.SendGridCredentials)
	if !ok {
		return nil, errors.Newf(errors.ErrInvalidConfig,
			"sendgrid provider requires SendGrid credentials, got %q", creds.ProviderType())
	}
	apiURL := sgCreds.BaseURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	return &Provider{
		creds:  sgCreds,
		apiURL: apiURL,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Name returns the registered provider name.
func (p *Provider) Name() string { return "sendgrid" }

// Channel returns the email channel.
func (p *Provider) Channel() channel.Channel { return channel.Email }

// RequiredCredentials lists the credential field names.
func (p *Provider) RequiredCredentials() []string {
	return []string{"apiKey", "fromEmail"}
}

// Metadata declares the provider's operational envelope.
func (p *Provider) Metadata() provider.Metadata {
	return provider.Metadata{
		DisplayName:       "SendGrid",
		RequestsPerSecond: 100,
		RequestsPerDay:    100000,
		Features:          []string{"html", "subject", "templates"},
	}
}

// Validate checks credential fields. The API offers no cheap unauthenticated
// liveness endpoint, so validation stays a field predicate.
func (p *Provider) Validate(_ context.Context) error {
	return p.creds.Validate()
}

// Send delivers one email through the v3 mail/send endpoint.
func (p *Provider) Send(ctx context.Context, req *provider.DeliveryRequest) *provider.DeliveryResult {
	if req.Recipient.Email == "" {
		return provider.Fail(errors.ErrInvalidRecipient, "recipient email is empty", false)
	}

	payload := p.buildPayload(req)
	body, err := json.Marshal(payload)
	if err != nil {
		return provider.Fail(errors.ErrSendFailed, fmt.Sprintf("encoding payload: %v", err), false)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return provider.Fail(errors.ErrSendFailed, fmt.Sprintf("building request: %v", err), false)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.creds.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return provider.Fail(errors.ErrSendFailed, fmt.Sprintf("sendgrid request failed: %v", err), true)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusAccepted:
		result := provider.Succeed(resp.Header.Get("X-Message-Id"))
		result.Metadata = map[string]interface{}{"status": resp.StatusCode}
		return result
	case resp.StatusCode == http.StatusTooManyRequests:
		return provider.Fail(errors.ErrRateLimited, "sendgrid rate limit exceeded", true)
	case resp.StatusCode >= 500:
		return provider.Fail(errors.ErrSendFailed,
			fmt.Sprintf("sendgrid server error: %d", resp.StatusCode), true)
	default:
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return provider.Fail(errors.ErrSendFailed,
			fmt.Sprintf("sendgrid rejected message (%d): %s", resp.StatusCode, respBody), false)
	}
}

func (p *Provider) buildPayload(req *provider.DeliveryRequest) map[string]interface{} {
	content := []map[string]string{{"type": "text/plain", "value": req.Content.Body}}
	if req.Content.HTMLBody != "" {
		content = append(content, map[string]string{"type": "text/html", "value": req.Content.HTMLBody})
	}
	return map[string]interface{}{
		"personalizations": []map[string]interface{}{
			{"to": []map[string]string{{"email": req.Recipient.Email}}},
		},
		"from": map[string]string{
			"email": p.creds.FromEmail,
			"name":  p.creds.FromName,
		},
		"subject": req.Content.Subject,
		"content": content,
	}
}
