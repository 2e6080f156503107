package sendgrid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relay-io/relaycore/pkg/errors"
	"github.com/relay-io/relaycore/pkg/provider"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := New(provider.SendGridCredentials{
		APIKey:    "sg-key",
		FromEmail: "no-reply@example.com",
		FromName:  "Relay",
		Enabled:   true,
	})
	require.NoError(t, err)
	return p.(*Provider)
}

func newServerBackedProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := New(provider.SendGridCredentials{
		APIKey:    "sg-key",
		FromEmail: "no-reply@example.com",
		BaseURL:   srv.URL,
		Enabled:   true,
	})
	require.NoError(t, err)
	return p.(*Provider)
}

func emailRequest() *provider.DeliveryRequest {
	return &provider.DeliveryRequest{
		Recipient: provider.Recipient{Email: "user@example.com"},
		Content:   provider.Content{Subject: "Welcome", Body: "hello"},
	}
}

func TestSendAccepted(t *testing.T) {
	var gotAuth string
	p := newServerBackedProvider(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("X-Message-Id", "msg-123")
		w.WriteHeader(http.StatusAccepted)
	})

	result := p.Send(context.Background(), emailRequest())

	require.True(t, result.Success)
	assert.Equal(t, "msg-123", result.MessageID)
	assert.Equal(t, "Bearer sg-key", gotAuth)
}

func TestSendStatusMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCode  errors.ErrorCode
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, errors.ErrRateLimited, true},
		{"server error", http.StatusBadGateway, errors.ErrSendFailed, true},
		{"bad request", http.StatusBadRequest, errors.ErrSendFailed, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newServerBackedProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			result := p.Send(context.Background(), emailRequest())

			require.False(t, result.Success)
			assert.Equal(t, tt.wantCode, result.Error.Code)
			assert.Equal(t, tt.retryable, result.Error.Retryable)
		})
	}
}

func TestSendEmptyRecipient(t *testing.T) {
	p := newTestProvider(t)

	result := p.Send(context.Background(), &provider.DeliveryRequest{
		Content: provider.Content{Subject: "s", Body: "b"},
	})

	require.False(t, result.Success)
	assert.Equal(t, errors.ErrInvalidRecipient, result.Error.Code)
	assert.False(t, result.Error.Retryable)
}

func TestBuildPayloadPlainText(t *testing.T) {
	p := newTestProvider(t)

	payload := p.buildPayload(&provider.DeliveryRequest{
		Recipient: provider.Recipient{Email: "user@example.com"},
		Content:   provider.Content{Subject: "Welcome", Body: "hello"},
	})

	assert.Equal(t, "Welcome", payload["subject"])
	assert.Equal(t, map[string]string{"email": "no-reply@example.com", "name": "Relay"}, payload["from"])

	content, ok := payload["content"].([]map[string]string)
	require.True(t, ok)
	require.Len(t, content, 1)
	assert.Equal(t, "text/plain", content[0]["type"])
}

func TestBuildPayloadWithHTML(t *testing.T) {
	p := newTestProvider(t)

	payload := p.buildPayload(&provider.DeliveryRequest{
		Recipient: provider.Recipient{Email: "user@example.com"},
		Content:   provider.Content{Body: "hello", HTMLBody: "<b>hello</b>"},
	})

	content, ok := payload["content"].([]map[string]string)
	require.True(t, ok)
	require.Len(t, content, 2)
	assert.Equal(t, "text/html", content[1]["type"])
	assert.Equal(t, "<b>hello</b>", content[1]["value"])
}

func TestNewRejectsWrongCredentialVariant(t *testing.T) {
	_, err := New(provider.SMTPCredentials{Host: "h", Port: 25, From: "f@x"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrInvalidConfig, errors.CodeOf(err))
}

func TestMetadata(t *testing.T) {
	p := newTestProvider(t)
	md := p.Metadata()
	assert.Equal(t, "SendGrid", md.DisplayName)
	assert.Contains(t, md.Features, "html")
}
