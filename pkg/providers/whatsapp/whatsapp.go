// Package whatsapp provides the Meta Cloud API WhatsApp provider.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/relay-io/relaycore/pkg/channel"
	"github.com/relay-io/relaycore/pkg/errors"
	"github.com/relay-io/relaycore/pkg/provider"
)

const apiURLFormat = "https://graph.facebook.com/v19.0/%s/messages"

// Provider delivers WhatsApp messages through the Meta Cloud API.
type Provider struct {
	creds  provider.WhatsAppCredentials
	client *http.Client
}

// New constructs the whatsapp provider from its credential variant.
func New(creds provider.Credentials) (provider.Provider, error) {
	waCreds, ok := creds.(provider.WhatsAppCredentials)
	if !ok {
		return nil, errors.Newf(errors.ErrInvalidConfig,
			"whatsapp provider requires WhatsApp credentials, got %q", creds.ProviderType())
	}
	return &Provider{
		creds:  waCreds,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Name returns the registered provider name.
func (p *Provider) Name() string { return "whatsapp" }

// Channel returns the whatsapp channel.
func (p *Provider) Channel() channel.Channel { return channel.WhatsApp }

// RequiredCredentials lists the credential field names.
func (p *Provider) RequiredCredentials() []string {
	return []string{"phoneNumberId", "accessToken"}
}

// Metadata declares the provider's operational envelope.
func (p *Provider) Metadata() provider.Metadata {
	return provider.Metadata{
		DisplayName:       "WhatsApp Cloud API",
		RequestsPerSecond: 80,
		MaxMessageSize:    4096,
	}
}

// Validate checks credential fields.
func (p *Provider) Validate(_ context.Context) error {
	return p.creds.Validate()
}

// Send delivers one text message to the recipient phone number.
func (p *Provider) Send(ctx context.Context, req *provider.DeliveryRequest) *provider.DeliveryResult {
	if req.Recipient.Phone == "" {
		return provider.Fail(errors.ErrInvalidRecipient, "recipient phone is empty", false)
	}

	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                req.Recipient.Phone,
		"type":              "text",
		"text":              map[string]string{"body": req.Content.Body},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return provider.Fail(errors.ErrSendFailed, fmt.Sprintf("encoding payload: %v", err), false)
	}

	endpoint := fmt.Sprintf(apiURLFormat, p.creds.PhoneNumberID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return provider.Fail(errors.ErrSendFailed, fmt.Sprintf("building request: %v", err), false)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.creds.AccessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return provider.Fail(errors.ErrSendFailed, fmt.Sprintf("whatsapp request failed: %v", err), true)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return provider.Fail(errors.ErrRateLimited, "whatsapp rate limit exceeded", true)
	}
	if resp.StatusCode >= 500 {
		return provider.Fail(errors.ErrSendFailed,
			fmt.Sprintf("whatsapp server error: %d", resp.StatusCode), true)
	}

	var parsed struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return provider.Fail(errors.ErrSendFailed, fmt.Sprintf("decoding whatsapp response: %v", err), true)
	}

	if resp.StatusCode >= 400 || parsed.Error != nil {
		msg := fmt.Sprintf("whatsapp rejected message: %d", resp.StatusCode)
		if parsed.Error != nil {
			msg = "whatsapp rejected message: " + parsed.Error.Message
		}
		return provider.Fail(errors.ErrSendFailed, msg, false)
	}

	messageID := ""
	if len(parsed.Messages) > 0 {
		messageID = parsed.Messages[0].ID
	}
	return provider.Succeed(messageID)
}
