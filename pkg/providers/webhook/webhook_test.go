package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relay-io/relaycore/pkg/errors"
	"github.com/relay-io/relaycore/pkg/provider"
)

func newProvider(t *testing.T, creds provider.WebhookCredentials) provider.Provider {
	t.Helper()
	p, err := New(creds)
	require.NoError(t, err)
	return p
}

func deliveryRequest() *provider.DeliveryRequest {
	return &provider.DeliveryRequest{
		Recipient: provider.Recipient{UserID: "user-1"},
		Content:   provider.Content{Subject: "s", Body: "hello", Data: map[string]interface{}{"k": "v"}},
	}
}

func TestSendSuccess(t *testing.T) {
	var received Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := newProvider(t, provider.WebhookCredentials{URL: srv.URL, Enabled: true})
	result := p.Send(context.Background(), deliveryRequest())

	require.True(t, result.Success)
	assert.NotEmpty(t, result.MessageID)
	assert.Equal(t, "hello", received.Body)
	assert.Equal(t, "user-1", received.Recipient)
	assert.Equal(t, result.MessageID, received.MessageID)
}

func TestSendSignsBodyWhenSecretConfigured(t *testing.T) {
	const secret = "whsec_test"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(body)
		want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
		assert.Equal(t, want, r.Header.Get("X-Relay-Signature"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := newProvider(t, provider.WebhookCredentials{URL: srv.URL, Secret: secret, Enabled: true})
	result := p.Send(context.Background(), deliveryRequest())
	assert.True(t, result.Success)
}

func TestSendNoSignatureWithoutSecret(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("X-Relay-Signature"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := newProvider(t, provider.WebhookCredentials{URL: srv.URL, Enabled: true})
	assert.True(t, p.Send(context.Background(), deliveryRequest()).Success)
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
		{"client error", http.StatusUnprocessableEntity, errors.ErrSendFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			p := newProvider(t, provider.WebhookCredentials{URL: srv.URL, Enabled: true})
			result := p.Send(context.Background(), deliveryRequest())

			require.False(t, result.Success)
			require.NotNil(t, result.Error)
			assert.Equal(t, tt.wantCode, result.Error.Code)
			assert.Equal(t, tt.retryable, result.Error.Retryable)
		})
	}
}

func TestSendTimeoutMapsToProviderTimeout(t *testing.T) {
	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer srv.Close()
	defer close(blocked)

	p := newProvider(t, provider.WebhookCredentials{URL: srv.URL, Enabled: true})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	result := p.Send(ctx, deliveryRequest())

	require.False(t, result.Success)
	assert.Equal(t, errors.ErrProviderTimeout, result.Error.Code)
	assert.True(t, result.Error.Retryable)
}

func TestSendConnectionFailureIsRetryable(t *testing.T) {
	p := newProvider(t, provider.WebhookCredentials{URL: "http://127.0.0.1:1/hook", Enabled: true})

	result := p.Send(context.Background(), deliveryRequest())
	require.False(t, result.Success)
	assert.True(t, result.Error.Retryable)
}

func TestNewRejectsWrongCredentialVariant(t *testing.T) {
	_, err := New(provider.SlackCredentials{WebhookURL: "https://hooks.slack.com/x"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrInvalidConfig, errors.CodeOf(err))
}

func TestNewDefaultsMethodAndContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := newProvider(t, provider.WebhookCredentials{URL: srv.URL, Enabled: true})
	assert.True(t, p.Send(context.Background(), deliveryRequest()).Success)
}
