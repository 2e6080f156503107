// Package socket provides the realtime websocket channel provider. It is the
// one stateful built-in: deliveries ride on long-lived connections owned by
// the connection manager, injected by the factory through the SessionAware
// capability.
package socket

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/relay-io/relaycore/pkg/channel"
	"github.com/relay-io/relaycore/pkg/errors"
	"github.com/relay-io/relaycore/pkg/provider"
)

// Provider delivers realtime events over managed websocket sessions.
type Provider struct {
	creds    provider.SocketCredentials
	sessions provider.SessionManager
	mu       sync.Mutex
}

// New constructs the socket provider from its credential variant. The session
// manager arrives afterwards via SetSessionManager.
func New(creds provider.Credentials) (provider.Provider, error) {
	sockCreds, ok := creds.(provider.SocketCredentials)
	if !ok {
		return nil, errors.Newf(errors.ErrInvalidConfig,
			"socket provider requires Socket credentials, got %q", creds.ProviderType())
	}
	return &Provider{creds: sockCreds}, nil
}

// SetSessionManager implements the SessionAware capability.
func (p *Provider) SetSessionManager(sm provider.SessionManager) {
	p.mu.Lock()
	p.sessions = sm
	p.mu.Unlock()
}

// Name returns the registered provider name.
func (p *Provider) Name() string { return "socket" }

// Channel returns the websocket channel.
func (p *Provider) Channel() channel.Channel { return channel.WebSocket }

// RequiredCredentials lists the credential field names.
func (p *Provider) RequiredCredentials() []string {
	return []string{"url"}
}

// Metadata declares the provider's operational envelope.
func (p *Provider) Metadata() provider.Metadata {
	return provider.Metadata{
		DisplayName: "Realtime Socket",
		Features:    []string{"rooms", "ack"},
	}
}

// Validate checks credential fields and that the session manager was injected.
func (p *Provider) Validate(_ context.Context) error {
	if err := p.creds.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sessions == nil {
		return errors.New(errors.ErrInvalidConfig,
			"socket provider has no session manager").WithProvider(p.Name())
	}
	return nil
}

// Send emits the notification as a realtime event. A recipient channel (room)
// routes to that room; a user id emits an acked direct event. Connection
// failures surface as retryable send errors, never as thrown errors.
func (p *Provider) Send(ctx context.Context, req *provider.DeliveryRequest) *provider.DeliveryResult {
	p.mu.Lock()
	sessions := p.sessions
	p.mu.Unlock()
	if sessions == nil {
		return provider.Fail(errors.ErrInvalidConfig, "socket provider has no session manager", false)
	}

	session, err := sessions.Session(ctx, p.creds)
	if err != nil {
		return provider.FailErr(err)
	}
	defer func() { _ = sessions.Release(session.Key()) }()

	if !session.IsConnected() {
		return provider.Fail(errors.ErrNotConnected,
			fmt.Sprintf("session %s not connected", session.Key()), true)
	}

	event := "notification"
	if v, ok := req.Options["event"].(string); ok && v != "" {
		event = v
	}
	payload := map[string]interface{}{
		"subject": req.Content.Subject,
		"body":    req.Content.Body,
		"data":    req.Content.Data,
	}

	switch {
	case req.Recipient.Channel != "":
		err = session.EmitToRoom(req.Recipient.Channel, event, payload)
	case req.Recipient.UserID != "":
		payload["userId"] = req.Recipient.UserID
		err = session.EmitWithAck(ctx, event, payload)
	default:
		return provider.Fail(errors.ErrInvalidRecipient,
			"socket delivery needs a room or user id", false)
	}
	if err != nil {
		return provider.FailErr(err)
	}

	return provider.Succeed("sock-" + uuid.NewString())
}
