package slack

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relay-io/relaycore/pkg/errors"
	"github.com/relay-io/relaycore/pkg/provider"
)

func capturePayload(t *testing.T, status int) (*httptest.Server, *map[string]interface{}) {
	t.Helper()
	payload := &map[string]interface{}{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, payload))
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, payload
}

func TestSendFormatsSubjectAsBold(t *testing.T) {
	srv, payload := capturePayload(t, http.StatusOK)
	p, err := New(provider.SlackCredentials{WebhookURL: srv.URL, Enabled: true})
	require.NoError(t, err)

	result := p.Send(context.Background(), &provider.DeliveryRequest{
		Content: provider.Content{Subject: "Deploy done", Body: "v1.2 live"},
	})

	require.True(t, result.Success)
	assert.Equal(t, "*Deploy done*\nv1.2 live", (*payload)["text"])
}

func TestSendChannelOverride(t *testing.T) {
	srv, payload := capturePayload(t, http.StatusOK)
	p, err := New(provider.SlackCredentials{WebhookURL: srv.URL, DefaultChannel: "#general", Enabled: true})
	require.NoError(t, err)

	result := p.Send(context.Background(), &provider.DeliveryRequest{
		Recipient: provider.Recipient{Channel: "#alerts"},
		Content:   provider.Content{Body: "fire"},
	})

	require.True(t, result.Success)
	assert.Equal(t, "#alerts", (*payload)["channel"])
}

func TestSendDefaultChannel(t *testing.T) {
	srv, payload := capturePayload(t, http.StatusOK)
	p, err := New(provider.SlackCredentials{WebhookURL: srv.URL, DefaultChannel: "#general", Enabled: true})
	require.NoError(t, err)

	result := p.Send(context.Background(), &provider.DeliveryRequest{
		Content: provider.Content{Body: "hello"},
	})

	require.True(t, result.Success)
	assert.Equal(t, "#general", (*payload)["channel"])
}

func TestSendRateLimited(t *testing.T) {
	srv, _ := capturePayload(t, http.StatusTooManyRequests)
	p, err := New(provider.SlackCredentials{WebhookURL: srv.URL, Enabled: true})
	require.NoError(t, err)

	result := p.Send(context.Background(), &provider.DeliveryRequest{Content: provider.Content{Body: "x"}})
	require.False(t, result.Success)
	assert.Equal(t, errors.ErrRateLimited, result.Error.Code)
	assert.True(t, result.Error.Retryable)
}

func TestNewRejectsWrongCredentialVariant(t *testing.T) {
	_, err := New(provider.WebhookCredentials{URL: "https://example.com"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrInvalidConfig, errors.CodeOf(err))
}
