// Package slack provides the Slack incoming-webhook chat provider.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/relay-io/relaycore/pkg/channel"
	"github.com/relay-io/relaycore/pkg/errors"
	"github.com/relay-io/relaycore/pkg/provider"
)

// Provider delivers chat messages through a Slack incoming webhook.
type Provider struct {
	creds  provider.SlackCredentials
	client *http.Client
}

// New constructs the slack provider from its credential variant.
func New(creds provider.Credentials) (provider.Provider, error) {
	slackCreds, ok := creds.(provider.SlackCredentials)
	if !ok {
		return nil, errors.Newf(errors.ErrInvalidConfig,
			"slack provider requires Slack credentials, got %q", creds.ProviderType())
	}
	return &Provider{
		creds:  slackCreds,
		client: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// Name returns the registered provider name.
func (p *Provider) Name() string { return "slack" }

// Channel returns the chat channel.
func (p *Provider) Channel() channel.Channel { return channel.Chat }

// RequiredCredentials lists the credential field names.
func (p *Provider) RequiredCredentials() []string {
	return []string{"webhookUrl"}
}

// Metadata declares the provider's operational envelope.
func (p *Provider) Metadata() provider.Metadata {
	return provider.Metadata{
		DisplayName:       "Slack",
		RequestsPerSecond: 1,
		Features:          []string{"markdown", "channel-override"},
	}
}

// Validate checks credential fields.
func (p *Provider) Validate(_ context.Context) error {
	return p.creds.Validate()
}

// Send posts one message to the incoming webhook. The recipient channel
// overrides the configured default when present.
func (p *Provider) Send(ctx context.Context, req *provider.DeliveryRequest) *provider.DeliveryResult {
	text := req.Content.Body
	if req.Content.Subject != "" {
		text = "*" + req.Content.Subject + "*\n" + text
	}

	payload := map[string]interface{}{"text": text}
	if ch := req.Recipient.Channel; ch != "" {
		payload["channel"] = ch
	} else if p.creds.DefaultChannel != "" {
		payload["channel"] = p.creds.DefaultChannel
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return provider.Fail(errors.ErrSendFailed, fmt.Sprintf("encoding payload: %v", err), false)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.creds.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return provider.Fail(errors.ErrSendFailed, fmt.Sprintf("building request: %v", err), false)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return provider.Fail(errors.ErrSendFailed, fmt.Sprintf("slack request failed: %v", err), true)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		return provider.Succeed("slack-" + uuid.NewString())
	case resp.StatusCode == http.StatusTooManyRequests:
		return provider.Fail(errors.ErrRateLimited, "slack rate limit exceeded", true)
	case resp.StatusCode >= 500:
		return provider.Fail(errors.ErrSendFailed,
			fmt.Sprintf("slack server error: %d", resp.StatusCode), true)
	default:
		return provider.Fail(errors.ErrSendFailed,
			fmt.Sprintf("slack rejected message: %d", resp.StatusCode), false)
	}
}
