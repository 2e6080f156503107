package connmgr

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relay-io/relaycore/pkg/errors"
	"github.com/relay-io/relaycore/pkg/logger"
	"github.com/relay-io/relaycore/pkg/provider"
)

// wsAdapter drives one websocket connection via gorilla/websocket.
type wsAdapter struct {
	creds provider.SocketCredentials
	opts  Options

	conn      *websocket.Conn
	connected int32
	writeMu   sync.Mutex

	nextID       uint64
	pending      *pendingTable
	subscribers  *subscriberSet
	onDisconnect func(err error)
	hookMu       sync.Mutex

	logger logger.Logger
}

// NewWebSocketAdapter creates a websocket adapter for the given credentials.
func NewWebSocketAdapter(creds provider.SocketCredentials, opts Options, log logger.Logger) Adapter {
	if log == nil {
		log = logger.Discard
	}
	return &wsAdapter{
		creds:       creds,
		opts:        opts,
		pending:     newPendingTable(),
		subscribers: newSubscriberSet(),
		logger:      log,
	}
}

// Connect dials the endpoint with derived options: handshake timeout,
// compression, and header/query/basic auth depending on the credentials.
func (a *wsAdapter) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout:  a.opts.HandshakeTimeout,
		EnableCompression: true,
	}

	endpoint := a.creds.URL
	header := http.Header{}

	switch a.creds.AuthType {
	case "header":
		header.Set("Authorization", "Bearer "+a.creds.AuthToken)
	case "basic":
		req := &http.Request{Header: header}
		req.SetBasicAuth(a.creds.Username, a.creds.Password)
	case "query":
		u, err := url.Parse(endpoint)
		if err != nil {
			return errors.Newf(errors.ErrConnectFailed, "invalid socket url %q: %v", endpoint, err)
		}
		q := u.Query()
		q.Set("token", a.creds.AuthToken)
		u.RawQuery = q.Encode()
		endpoint = u.String()
	}

	conn, resp, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return errors.Newf(errors.ErrConnectFailed,
			"dialing %s failed (status %d): %v", a.creds.URL, status, err).WithCause(err)
	}

	a.writeMu.Lock()
	a.conn = conn
	a.writeMu.Unlock()
	atomic.StoreInt32(&a.connected, 1)

	go a.readLoop(conn)

	a.logger.Info("WebSocket connected", "url", a.creds.URL)
	return nil
}

// Disconnect closes the connection and rejects all outstanding correlations.
func (a *wsAdapter) Disconnect() error {
	if !atomic.CompareAndSwapInt32(&a.connected, 1, 0) {
		return nil
	}

	a.writeMu.Lock()
	conn := a.conn
	a.conn = nil
	a.writeMu.Unlock()

	a.pending.rejectAll()
	a.subscribers.cancelAll()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		return conn.Close()
	}
	return nil
}

// IsConnected reports transport liveness.
func (a *wsAdapter) IsConnected() bool {
	return atomic.LoadInt32(&a.connected) == 1
}

// OnDisconnect registers the connection manager's reconnect hook.
func (a *wsAdapter) OnDisconnect(fn func(err error)) {
	a.hookMu.Lock()
	a.onDisconnect = fn
	a.hookMu.Unlock()
}

// Send emits an event, optionally waiting for a correlated ack.
func (a *wsAdapter) Send(ctx context.Context, event string, data interface{}, withAck bool) error {
	env := newEnvelope(event, data)
	if !withAck {
		return a.write(env)
	}

	env.ID = atomic.AddUint64(&a.nextID, 1)
	env.RequiresAck = true

	wait := a.pending.register(env.ID)
	if err := a.write(env); err != nil {
		a.pending.drop(env.ID)
		return err
	}
	_, err := a.await(ctx, wait, env.ID, a.opts.AckTimeout)
	return err
}

// SendToRoom emits an event scoped to a room.
func (a *wsAdapter) SendToRoom(ctx context.Context, room, event string, data interface{}) error {
	env := newEnvelope(event, data)
	env.Room = room
	return a.write(env)
}

// SendWithResponse emits an event and waits for the correlated response.
func (a *wsAdapter) SendWithResponse(ctx context.Context, event string, data interface{}, timeout time.Duration) (*Envelope, error) {
	env := newEnvelope(event, data)
	env.ID = atomic.AddUint64(&a.nextID, 1)

	wait := a.pending.register(env.ID)
	if err := a.write(env); err != nil {
		a.pending.drop(env.ID)
		return nil, err
	}
	return a.await(ctx, wait, env.ID, timeout)
}

// JoinRoom subscribes the connection to a room.
func (a *wsAdapter) JoinRoom(ctx context.Context, room string) error {
	return a.Send(ctx, "room:join", map[string]string{"room": room}, true)
}

// LeaveRoom unsubscribes the connection from a room.
func (a *wsAdapter) LeaveRoom(ctx context.Context, room string) error {
	return a.Send(ctx, "room:leave", map[string]string{"room": room}, true)
}

// Subscribe returns a cancellable handle on inbound envelopes for event.
func (a *wsAdapter) Subscribe(event string) *Subscription {
	return a.subscribers.subscribe(event, false)
}

// await blocks until the correlated envelope arrives, the timeout fires, or
// ctx is cancelled. Timed-out and cancelled waits clear the pending entry.
func (a *wsAdapter) await(ctx context.Context, wait <-chan *Envelope, id uint64, timeout time.Duration) (*Envelope, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case env, ok := <-wait:
		if !ok {
			return nil, errors.Newf(errors.ErrNotConnected,
				"connection to %s lost while awaiting id %d", a.creds.URL, id)
		}
		return env, nil
	case <-timer.C:
		a.pending.drop(id)
		return nil, errors.Newf(errors.ErrAckTimeout,
			"no ack/response for id %d within %s", id, timeout)
	case <-ctx.Done():
		a.pending.drop(id)
		return nil, ctx.Err()
	}
}

func (a *wsAdapter) write(env *Envelope) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	if a.conn == nil || !a.IsConnected() {
		return errors.Newf(errors.ErrNotConnected, "not connected to %s", a.creds.URL)
	}
	return a.conn.WriteJSON(env)
}

// readLoop parses inbound envelopes: acks and responses resolve their
// correlation entry; everything else is dispatched to subscribers, answering
// peer ack requests first.
func (a *wsAdapter) readLoop(conn *websocket.Conn) {
	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			a.handleReadError(err)
			return
		}

		if (env.Ack || env.Response) && env.ID != 0 {
			if !a.pending.resolve(env.ID, &env) {
				a.logger.Debug("Uncorrelated ack/response dropped", "id", env.ID)
			}
			continue
		}

		if env.RequiresAck && env.ID != 0 {
			ack := &Envelope{Event: env.Event, ID: env.ID, Ack: true, Timestamp: time.Now().UnixMilli()}
			if err := a.write(ack); err != nil {
				a.logger.Warn("Failed to ack inbound envelope", "id", env.ID, "error", err)
			}
		}

		a.subscribers.dispatch(&env)
	}
}

func (a *wsAdapter) handleReadError(err error) {
	// A deliberate Disconnect already flipped the flag; only transport
	// failures reach the manager's reconnect hook.
	if !atomic.CompareAndSwapInt32(&a.connected, 1, 0) {
		return
	}

	a.logger.Warn("WebSocket read failed", "url", a.creds.URL, "error", err)
	a.pending.rejectAll()

	a.hookMu.Lock()
	hook := a.onDisconnect
	a.hookMu.Unlock()
	if hook != nil {
		hook(fmt.Errorf("connection lost: %w", err))
	}
}
