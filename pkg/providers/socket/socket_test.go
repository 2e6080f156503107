package socket

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relay-io/relaycore/pkg/errors"
	"github.com/relay-io/relaycore/pkg/provider"
)

type fakeSession struct {
	connected bool
	emitErr   error
	roomEmits []string
	ackEmits  []string
	lastData  interface{}
}

func (s *fakeSession) Key() string { return "ws|wss://rt.example.com" }
func (s *fakeSession) IsConnected() bool { return s.connected }

func (s *fakeSession) Emit(event string, data interface{}) error { return s.emitErr }

func (s *fakeSession) EmitWithAck(ctx context.Context, event string, data interface{}) error {
	s.ackEmits = append(s.ackEmits, event)
	s.lastData = data
	return s.emitErr
}

func (s *fakeSession) EmitToRoom(room, event string, data interface{}) error {
	s.roomEmits = append(s.roomEmits, room+"/"+event)
	s.lastData = data
	return s.emitErr
}

type fakeSessions struct {
	session  *fakeSession
	err      error
	released []string
}

func (m *fakeSessions) Session(ctx context.Context, creds provider.Credentials) (provider.Session, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.session, nil
}

func (m *fakeSessions) Release(key string) error {
	m.released = append(m.released, key)
	return nil
}

func socketCreds() provider.SocketCredentials {
	return provider.SocketCredentials{URL: "wss://rt.example.com", Enabled: true}
}

func newSocketProvider(t *testing.T, sessions provider.SessionManager) provider.Provider {
	t.Helper()
	p, err := New(socketCreds())
	require.NoError(t, err)
	if sessions != nil {
		p.(*Provider).SetSessionManager(sessions)
	}
	return p
}

func TestValidateRequiresSessionManager(t *testing.T) {
	p, err := New(socketCreds())
	require.NoError(t, err)
	require.Error(t, p.Validate(context.Background()))

	p.(*Provider).SetSessionManager(&fakeSessions{session: &fakeSession{connected: true}})
	assert.NoError(t, p.Validate(context.Background()))
}

func TestSendToRoom(t *testing.T) {
	sessions := &fakeSessions{session: &fakeSession{connected: true}}
	p := newSocketProvider(t, sessions)

	result := p.Send(context.Background(), &provider.DeliveryRequest{
		Recipient: provider.Recipient{Channel: "tenant-1"},
		Content:   provider.Content{Body: "hello"},
	})

	require.True(t, result.Success)
	assert.Equal(t, []string{"tenant-1/notification"}, sessions.session.roomEmits)
	// The session is released after the send.
	assert.Len(t, sessions.released, 1)
}

func TestSendDirectWithAck(t *testing.T) {
	sessions := &fakeSessions{session: &fakeSession{connected: true}}
	p := newSocketProvider(t, sessions)

	result := p.Send(context.Background(), &provider.DeliveryRequest{
		Recipient: provider.Recipient{UserID: "user-1"},
		Content:   provider.Content{Body: "hello"},
	})

	require.True(t, result.Success)
	assert.Equal(t, []string{"notification"}, sessions.session.ackEmits)

	payload, ok := sessions.session.lastData.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "user-1", payload["userId"])
}

func TestSendCustomEventName(t *testing.T) {
	sessions := &fakeSessions{session: &fakeSession{connected: true}}
	p := newSocketProvider(t, sessions)

	result := p.Send(context.Background(), &provider.DeliveryRequest{
		Recipient: provider.Recipient{Channel: "room-1"},
		Content:   provider.Content{Body: "hello"},
		Options:   map[string]interface{}{"event": "alert"},
	})

	require.True(t, result.Success)
	assert.Equal(t, []string{"room-1/alert"}, sessions.session.roomEmits)
}

func TestSendNoRecipient(t *testing.T) {
	p := newSocketProvider(t, &fakeSessions{session: &fakeSession{connected: true}})

	result := p.Send(context.Background(), &provider.DeliveryRequest{
		Content: provider.Content{Body: "hello"},
	})

	require.False(t, result.Success)
	assert.Equal(t, errors.ErrInvalidRecipient, result.Error.Code)
	assert.False(t, result.Error.Retryable)
}

func TestSendDisconnectedSessionIsRetryable(t *testing.T) {
	p := newSocketProvider(t, &fakeSessions{session: &fakeSession{connected: false}})

	result := p.Send(context.Background(), &provider.DeliveryRequest{
		Recipient: provider.Recipient{UserID: "user-1"},
		Content:   provider.Content{Body: "hello"},
	})

	require.False(t, result.Success)
	assert.Equal(t, errors.ErrNotConnected, result.Error.Code)
	assert.True(t, result.Error.Retryable)
}

func TestSendSessionErrorSurfacesAsResult(t *testing.T) {
	p := newSocketProvider(t, &fakeSessions{
		err: errors.New(errors.ErrConnectFailed, "dial refused"),
	})

	result := p.Send(context.Background(), &provider.DeliveryRequest{
		Recipient: provider.Recipient{UserID: "user-1"},
		Content:   provider.Content{Body: "hello"},
	})

	require.False(t, result.Success)
	assert.Equal(t, errors.ErrConnectFailed, result.Error.Code)
}

func TestSendWithoutSessionManager(t *testing.T) {
	p, err := New(socketCreds())
	require.NoError(t, err)

	result := p.Send(context.Background(), &provider.DeliveryRequest{
		Recipient: provider.Recipient{UserID: "user-1"},
	})

	require.False(t, result.Success)
	assert.Equal(t, errors.ErrInvalidConfig, result.Error.Code)
	assert.False(t, result.Error.Retryable)
}
