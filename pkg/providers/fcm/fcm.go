// Package fcm provides the Firebase Cloud Messaging push provider.
package fcm

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

const sendURLFormat = "https://fcm.googleapis.com/v1/projects/%s/messages:send"

// Provider delivers push notifications through FCM.
type Provider struct {
	creds  provider.FCMCredentials
	client *http.Client
}

// New constructs the fcm provider from its credential variant.
func New(creds provider.Credentials) (provider.Provider, error) {
	fcmCreds, ok := creds.(provider.FCMCredentials)
	if !ok {
		return nil, errors.Newf(errors.ErrInvalidConfig,
			"fcm provider requires FCM credentials, got %q", creds.ProviderType())
	}
	return &Provider{
		creds:  fcmCreds,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Name returns the registered provider name.
func (p *Provider) Name() string { return "fcm" }

// Channel returns the push channel.
func (p *Provider) Channel() channel.Channel { return channel.Push }

// RequiredCredentials lists the credential field names.
func (p *Provider) RequiredCredentials() []string {
	return []string{"projectId", "serverKey"}
}

// Metadata declares the provider's operational envelope.
func (p *Provider) Metadata() provider.Metadata {
	return provider.Metadata{
		DisplayName:       "Firebase Cloud Messaging",
		RequestsPerSecond: 500,
		MaxMessageSize:    4096,
		Features:          []string{"data", "priority"},
	}
}

// Validate checks credential fields.
func (p *Provider) Validate(_ context.Context) error {
	return p.creds.Validate()
}

// Send delivers one push message to the recipient device token.
func (p *Provider) Send(ctx context.Context, req *provider.DeliveryRequest) *provider.DeliveryResult {
	if req.Recipient.DeviceToken == "" {
		return provider.Fail(errors.ErrInvalidRecipient, "recipient device token is empty", false)
	}

	payload := map[string]interface{}{
		"message": map[string]interface{}{
			"token": req.Recipient.DeviceToken,
			"notification": map[string]string{
				"title": req.Content.Subject,
				"body":  req.Content.Body,
			},
			"data": stringify(req.Content.Data),
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return provider.Fail(errors.ErrSendFailed, fmt.Sprintf("encoding payload: %v", err), false)
	}

	endpoint := fmt.Sprintf(sendURLFormat, p.creds.ProjectID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return provider.Fail(errors.ErrSendFailed, fmt.Sprintf("building request: %v", err), false)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.creds.ServerKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return provider.Fail(errors.ErrSendFailed, fmt.Sprintf("fcm request failed: %v", err), true)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		var parsed struct {
			Name string `json:"name"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&parsed)
		messageID := parsed.Name
		if messageID == "" {
			messageID = "fcm-" + uuid.NewString()
		}
		return provider.Succeed(messageID)
	case resp.StatusCode == http.StatusTooManyRequests:
		return provider.Fail(errors.ErrRateLimited, "fcm quota exceeded", true)
	case resp.StatusCode >= 500:
		return provider.Fail(errors.ErrSendFailed,
			fmt.Sprintf("fcm server error: %d", resp.StatusCode), true)
	default:
		return provider.Fail(errors.ErrSendFailed,
			fmt.Sprintf("fcm rejected message: %d", resp.StatusCode), false)
	}
}

// stringify converts free-form data to the string map FCM requires.
func stringify(data map[string]interface{}) map[string]string {
	if len(data) == 0 {
		return nil
	}
	out := make(map[string]string, len(data))
	for k, v := range data {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}
