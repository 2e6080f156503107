package connmgr

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/relay-io/relaycore/pkg/errors"
	"github.com/relay-io/relaycore/pkg/logger"
	"github.com/relay-io/relaycore/pkg/provider"
)

// Options configures the connection manager and the adapters it creates.
type Options struct {
	ReconnectBaseDelay  time.Duration
	ReconnectAttempts   int
	ReconnectDisabled   bool
	HealthCheckInterval time.Duration
	HandshakeTimeout    time.Duration
	AckTimeout          time.Duration
}

// DefaultOptions returns the operational defaults.
func DefaultOptions() Options {
	return Options{
		ReconnectBaseDelay:  time.Second,
		ReconnectAttempts:   5,
		HealthCheckInterval: 30 * time.Second,
		HandshakeTimeout:    10 * time.Second,
		AckTimeout:          10 * time.Second,
	}
}

// AdapterFactory builds a protocol adapter for a connection. Production wiring
// uses NewWebSocketAdapter; tests substitute fakes.
type AdapterFactory func(creds provider.SocketCredentials, opts Options, log logger.Logger) Adapter

// Manager owns the pool of managed connections, keyed by (protocol, url).
// It has an explicit lifecycle: construct, use by handle, Shutdown.
type Manager struct {
	opts    Options
	factory AdapterFactory
	conns   map[string]*ManagedConnection
	logger  logger.Logger
	mu      sync.Mutex
}

// NewManager creates a connection manager. A nil factory defaults to the
// websocket adapter.
func NewManager(opts Options, factory AdapterFactory, log logger.Logger) *Manager {
	if log == nil {
		log = logger.Discard
	}
	if factory == nil {
		factory = NewWebSocketAdapter
	}
	if opts.ReconnectBaseDelay <= 0 {
		opts.ReconnectBaseDelay = time.Second
	}
	if opts.HealthCheckInterval <= 0 {
		opts.HealthCheckInterval = 30 * time.Second
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = 10 * time.Second
	}
	return &Manager{
		opts:    opts,
		factory: factory,
		conns:   make(map[string]*ManagedConnection),
		logger:  log,
	}
}

// ConnectionKey derives the pool key for credentials.
func ConnectionKey(creds provider.SocketCredentials) string {
	protocol := creds.Protocol
	if protocol == "" {
		protocol = "ws"
	}
	return protocol + "|" + creds.URL
}

// GetConnection returns the managed connection for the credentials' key,
// creating and connecting it on first use. An existing but disconnected
// connection is reconnected immediately before being returned. The
// subscriber count is incremented either way.
func (m *Manager) GetConnection(ctx context.Context, creds provider.SocketCredentials) (*ManagedConnection, error) {
	key := ConnectionKey(creds)

	m.mu.Lock()
	mc, ok := m.conns[key]
	if !ok {
		mc = m.newManagedConnection(key, creds)
		m.conns[key] = mc
	}
	m.mu.Unlock()

	return mc, mc.acquire(ctx, !ok)
}

// ReleaseConnection decrements the subscriber count for key and tears the
// connection down once it reaches zero, clearing health-check and reconnect
// timers.
func (m *Manager) ReleaseConnection(key string) error {
	m.mu.Lock()
	mc, ok := m.conns[key]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("no managed connection for key %q", key)
	}

	closed, err := mc.release()
	if closed {
		m.mu.Lock()
		delete(m.conns, key)
		m.mu.Unlock()
	}
	return err
}

// ConnectionCount returns the number of pooled connections.
func (m *Manager) ConnectionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns)
}

// Shutdown tears down every pooled connection regardless of subscribers.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	conns := make([]*ManagedConnection, 0, len(m.conns))
	for _, mc := range m.conns {
		conns = append(conns, mc)
	}
	m.conns = make(map[string]*ManagedConnection)
	m.mu.Unlock()

	var lastErr error
	for _, mc := range conns {
		if err := mc.teardown(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Session implements provider.SessionManager for factory injection into
// session-aware providers.
func (m *Manager) Session(ctx context.Context, creds provider.Credentials) (provider.Session, error) {
	socketCreds, ok := creds.(provider.SocketCredentials)
	if !ok {
		return nil, errors.Newf(errors.ErrInvalidConfig,
			"session manager requires socket credentials, got %q", creds.ProviderType())
	}
	return m.GetConnection(ctx, socketCreds)
}

// Release implements provider.SessionManager.
func (m *Manager) Release(key string) error {
	return m.ReleaseConnection(key)
}

// ManagedConnection wraps one adapter with subscriber refcounting, health
// checking and reconnect scheduling. Invariant: the adapter is closed only
// when the subscriber count reaches zero.
type ManagedConnection struct {
	key     string
	creds   provider.SocketCredentials
	adapter Adapter
	mgr     *Manager

	subscribers       int
	reconnectAttempts int
	reconnectTimer    *time.Timer
	healthStop        chan struct{}
	healthy           bool
	lastConnectedAt   time.Time
	closed            bool
	terminalErr       error
	mu                sync.Mutex
}

func (m *Manager) newManagedConnection(key string, creds provider.SocketCredentials) *ManagedConnection {
	adapter := m.factory(creds, m.opts, m.logger)
	mc := &ManagedConnection{
		key:        key,
		creds:      creds,
		adapter:    adapter,
		mgr:        m,
		healthStop: make(chan struct{}),
	}
	adapter.OnDisconnect(mc.handleDisconnect)
	return mc
}

// acquire increments the subscriber count and ensures the adapter is
// connected, dialing fresh connections and immediately reconnecting stale
// ones.
func (mc *ManagedConnection) acquire(ctx context.Context, fresh bool) error {
	mc.mu.Lock()
	mc.subscribers++
	mc.mu.Unlock()

	if mc.adapter.IsConnected() {
		return nil
	}

	if err := mc.connect(ctx); err != nil {
		mc.mu.Lock()
		mc.subscribers--
		mc.mu.Unlock()
		return err
	}

	if fresh {
		go mc.healthLoop()
	}
	return nil
}

func (mc *ManagedConnection) connect(ctx context.Context) error {
	dialCtx := ctx
	if mc.mgr.opts.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, mc.mgr.opts.HandshakeTimeout)
		defer cancel()
	}

	if err := mc.adapter.Connect(dialCtx); err != nil {
		return err
	}

	mc.mu.Lock()
	mc.healthy = true
	mc.reconnectAttempts = 0
	mc.lastConnectedAt = time.Now()
	mc.terminalErr = nil
	mc.mu.Unlock()
	return nil
}

// release decrements the subscriber count, tearing down at zero. It reports
// whether the connection was closed.
func (mc *ManagedConnection) release() (bool, error) {
	mc.mu.Lock()
	if mc.subscribers > 0 {
		mc.subscribers--
	}
	remaining := mc.subscribers
	mc.mu.Unlock()

	if remaining > 0 {
		return false, nil
	}
	return true, mc.teardown()
}

func (mc *ManagedConnection) teardown() error {
	mc.mu.Lock()
	if mc.closed {
		mc.mu.Unlock()
		return nil
	}
	mc.closed = true
	if mc.reconnectTimer != nil {
		mc.reconnectTimer.Stop()
		mc.reconnectTimer = nil
	}
	close(mc.healthStop)
	mc.mu.Unlock()

	mc.mgr.logger.Info("Managed connection closed", "key", mc.key)
	return mc.adapter.Disconnect()
}

// handleDisconnect marks the connection unhealthy and schedules a reconnect
// unless reconnection is disabled or nobody is subscribed anymore.
func (mc *ManagedConnection) handleDisconnect(err error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.closed {
		return
	}
	mc.healthy = false
	mc.mgr.logger.Warn("Managed connection lost", "key", mc.key, "error", err)

	if mc.mgr.opts.ReconnectDisabled || mc.subscribers == 0 {
		return
	}
	mc.scheduleReconnectLocked()
}

// scheduleReconnectLocked arms the reconnect timer with delay
// base·2^attempt. Exceeding the attempt budget stops further scheduling.
func (mc *ManagedConnection) scheduleReconnectLocked() {
	if mc.reconnectTimer != nil {
		return
	}
	if mc.reconnectAttempts >= mc.mgr.opts.ReconnectAttempts {
		mc.mgr.logger.Error("Reconnect attempts exhausted",
			"key", mc.key, "attempts", mc.reconnectAttempts)
		mc.terminalErr = errors.Newf(errors.ErrReconnectExhausted,
			"connection %s gave up after %d reconnect attempts", mc.key, mc.reconnectAttempts)
		return
	}

	delay := time.Duration(float64(mc.mgr.opts.ReconnectBaseDelay) *
		math.Pow(2, float64(mc.reconnectAttempts)))
	mc.mgr.logger.Info("Scheduling reconnect",
		"key", mc.key, "attempt", mc.reconnectAttempts, "delay", delay)

	mc.reconnectTimer = time.AfterFunc(delay, mc.attemptReconnect)
}

func (mc *ManagedConnection) attemptReconnect() {
	mc.mu.Lock()
	mc.reconnectTimer = nil
	if mc.closed {
		mc.mu.Unlock()
		return
	}
	mc.reconnectAttempts++
	mc.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), mc.mgr.opts.HandshakeTimeout)
	defer cancel()

	if err := mc.adapter.Connect(ctx); err != nil {
		mc.mgr.logger.Warn("Reconnect failed", "key", mc.key, "error", err)
		mc.mu.Lock()
		mc.scheduleReconnectLocked()
		mc.mu.Unlock()
		return
	}

	mc.mu.Lock()
	mc.healthy = true
	mc.reconnectAttempts = 0
	mc.lastConnectedAt = time.Now()
	mc.terminalErr = nil
	mc.mu.Unlock()
	mc.mgr.logger.Info("Reconnected", "key", mc.key)
}

// healthLoop re-verifies liveness at a fixed interval, scheduling a reconnect
// when the adapter reports disconnected.
func (mc *ManagedConnection) healthLoop() {
	ticker := time.NewTicker(mc.mgr.opts.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-mc.healthStop:
			return
		case <-ticker.C:
			if !mc.adapter.IsConnected() {
				mc.handleDisconnect(fmt.Errorf("health check: adapter disconnected"))
			}
		}
	}
}

// Key returns the pool key; part of the provider.Session surface.
func (mc *ManagedConnection) Key() string { return mc.key }

// IsConnected reports adapter liveness.
func (mc *ManagedConnection) IsConnected() bool { return mc.adapter.IsConnected() }

// IsHealthy reports the manager's view of the connection.
func (mc *ManagedConnection) IsHealthy() bool {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.healthy
}

// Subscribers returns the current subscriber refcount.
func (mc *ManagedConnection) Subscribers() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.subscribers
}

// Adapter exposes the underlying adapter handle.
func (mc *ManagedConnection) Adapter() Adapter { return mc.adapter }

// sendState returns the terminal error recorded once the reconnect budget is
// spent; sends fail with it instead of silently hitting a dead adapter.
func (mc *ManagedConnection) sendState() error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.terminalErr
}

// Emit sends a fire-and-forget event.
func (mc *ManagedConnection) Emit(event string, data interface{}) error {
	if err := mc.sendState(); err != nil {
		return err
	}
	return mc.adapter.Send(context.Background(), event, data, false)
}

// EmitWithAck sends an event and waits for its correlated ack.
func (mc *ManagedConnection) EmitWithAck(ctx context.Context, event string, data interface{}) error {
	if err := mc.sendState(); err != nil {
		return err
	}
	return mc.adapter.Send(ctx, event, data, true)
}

// EmitToRoom sends a room-scoped event.
func (mc *ManagedConnection) EmitToRoom(room, event string, data interface{}) error {
	if err := mc.sendState(); err != nil {
		return err
	}
	return mc.adapter.SendToRoom(context.Background(), room, event, data)
}
