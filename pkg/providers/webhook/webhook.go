// Package webhook provides the generic signed-webhook provider.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/relay-io/relaycore/pkg/channel"
	"github.com/relay-io/relaycore/pkg/errors"
	"github.com/relay-io/relaycore/pkg/provider"
)

// Payload is the JSON body posted to the configured endpoint.
type Payload struct {
	MessageID string                 `json:"message_id"`
	Subject   string                 `json:"subject,omitempty"`
	Body      string                 `json:"body"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Recipient string                 `json:"recipient,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// Provider posts notifications to a tenant-configured HTTP endpoint, signing
// the body with HMAC-SHA256 when a secret is configured.
type Provider struct {
	creds  provider.WebhookCredentials
	client *http.Client
}

// New constructs the webhook provider from its credential variant.
func New(creds provider.Credentials) (provider.Provider, error) {
	whCreds, ok := creds.(provider.WebhookCredentials)
	if !ok {
		return nil, errors.Newf(errors.ErrInvalidConfig,
			"webhook provider requires Webhook credentials, got %q", creds.ProviderType())
	}
	if whCreds.Method == "" {
		whCreds.Method = http.MethodPost
	}
	if whCreds.ContentType == "" {
		whCreds.ContentType = "application/json"
	}
	return &Provider{
		creds:  whCreds,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Name returns the registered provider name.
func (p *Provider) Name() string { return "webhook" }

// Channel returns the webhook channel.
func (p *Provider) Channel() channel.Channel { return channel.Webhook }

// RequiredCredentials lists the credential field names.
func (p *Provider) RequiredCredentials() []string {
	return []string{"url"}
}

// Metadata declares the provider's operational envelope.
func (p *Provider) Metadata() provider.Metadata {
	return provider.Metadata{
		DisplayName:       "Generic Webhook",
		RequestsPerSecond: 50,
		Features:          []string{"hmac-signature", "custom-method"},
	}
}

// Validate checks credential fields.
func (p *Provider) Validate(_ context.Context) error {
	return p.creds.Validate()
}

// Send posts the payload, treating any 2xx status as delivered.
func (p *Provider) Send(ctx context.Context, req *provider.DeliveryRequest) *provider.DeliveryResult {
	messageID := "wh-" + uuid.NewString()
	payload := Payload{
		MessageID: messageID,
		Subject:   req.Content.Subject,
		Body:      req.Content.Body,
		Data:      req.Content.Data,
		Recipient: req.Recipient.UserID,
		Timestamp: time.Now().Unix(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return provider.Fail(errors.ErrSendFailed, fmt.Sprintf("encoding payload: %v", err), false)
	}

	httpReq, err := http.NewRequestWithContext(ctx, p.creds.Method, p.creds.URL, bytes.NewReader(body))
	if err != nil {
		return provider.Fail(errors.ErrSendFailed, fmt.Sprintf("building request: %v", err), false)
	}
	httpReq.Header.Set("Content-Type", p.creds.ContentType)
	if p.creds.Secret != "" {
		httpReq.Header.Set("X-Relay-Signature", sign(p.creds.Secret, body))
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if os.IsTimeout(err) || stderrors.Is(err, context.DeadlineExceeded) {
			return provider.Fail(errors.ErrProviderTimeout,
				fmt.Sprintf("webhook request timed out: %v", err), true)
		}
		return provider.Fail(errors.ErrSendFailed, fmt.Sprintf("webhook request failed: %v", err), true)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		result := provider.Succeed(messageID)
		result.Metadata = map[string]interface{}{"status": resp.StatusCode}
		return result
	case resp.StatusCode == http.StatusTooManyRequests:
		return provider.Fail(errors.ErrRateLimited, "webhook endpoint rate limited", true)
	case resp.StatusCode >= 500:
		return provider.Fail(errors.ErrSendFailed,
			fmt.Sprintf("webhook endpoint error: %d", resp.StatusCode), true)
	default:
		return provider.Fail(errors.ErrSendFailed,
			fmt.Sprintf("webhook endpoint rejected payload: %d", resp.StatusCode), false)
	}
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
