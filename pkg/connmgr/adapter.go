package connmgr

import (
	"context"
	"sync"
	"time"
)

// Adapter is the protocol-agnostic contract a managed connection drives. One
// adapter owns one underlying transport connection.
type Adapter interface {
	// Connect establishes the underlying connection.
	Connect(ctx context.Context) error

	// Disconnect tears the connection down. Outstanding acknowledged sends
	// are rejected.
	Disconnect() error

	// IsConnected reports transport liveness.
	IsConnected() bool

	// Send emits an event. With withAck set it blocks until a correlated ack
	// arrives or the ack timeout elapses.
	Send(ctx context.Context, event string, data interface{}, withAck bool) error

	// SendToRoom emits an event scoped to a room.
	SendToRoom(ctx context.Context, room, event string, data interface{}) error

	// SendWithResponse emits an event and waits for the correlated response
	// envelope, bounded by timeout.
	SendWithResponse(ctx context.Context, event string, data interface{}, timeout time.Duration) (*Envelope, error)

	// JoinRoom subscribes the connection to a room.
	JoinRoom(ctx context.Context, room string) error

	// LeaveRoom unsubscribes the connection from a room.
	LeaveRoom(ctx context.Context, room string) error

	// Subscribe returns a subscription handle for inbound envelopes of the
	// given event. Cancel the handle to stop delivery.
	Subscribe(event string) *Subscription

	// OnDisconnect registers the single disconnect hook the connection
	// manager uses to schedule reconnects.
	OnDisconnect(fn func(err error))
}

// Subscription is an explicit handle on an inbound event stream. Envelopes
// arrive on C; Cancel stops delivery and releases the handle.
type Subscription struct {
	C      <-chan *Envelope
	once   bool
	cancel func()
}

// Cancel stops delivery; safe to call more than once.
func (s *Subscription) Cancel() {
	s.cancel()
}

// subscriberSet fans inbound envelopes out to subscriptions per event.
type subscriberSet struct {
	subs map[string]map[*Subscription]chan *Envelope
	mu   sync.Mutex
}

func newSubscriberSet() *subscriberSet {
	return &subscriberSet{subs: make(map[string]map[*Subscription]chan *Envelope)}
}

// subscribe registers a handle for event. With once set the handle cancels
// itself after the first delivery.
func (s *subscriberSet) subscribe(event string, once bool) *Subscription {
	ch := make(chan *Envelope, 16)
	sub := &Subscription{C: ch, once: once}

	var cancelOnce sync.Once
	sub.cancel = func() {
		cancelOnce.Do(func() {
			s.mu.Lock()
			if set, ok := s.subs[event]; ok {
				delete(set, sub)
				if len(set) == 0 {
					delete(s.subs, event)
				}
			}
			// Closing under the lock keeps dispatch from sending on a
			// closed channel.
			close(ch)
			s.mu.Unlock()
		})
	}

	s.mu.Lock()
	set, ok := s.subs[event]
	if !ok {
		set = make(map[*Subscription]chan *Envelope)
		s.subs[event] = set
	}
	set[sub] = ch
	s.mu.Unlock()

	return sub
}

// dispatch delivers env to every subscription for its event. Slow consumers
// drop rather than block the read loop. Delivery happens under the set lock
// so it serializes with Cancel's channel close.
func (s *subscriberSet) dispatch(env *Envelope) {
	s.mu.Lock()
	var onceSubs []*Subscription
	for sub, ch := range s.subs[env.Event] {
		select {
		case ch <- env:
		default:
		}
		if sub.once {
			onceSubs = append(onceSubs, sub)
		}
	}
	s.mu.Unlock()

	for _, sub := range onceSubs {
		sub.cancel()
	}
}

// cancelAll cancels every subscription, used on final teardown.
func (s *subscriberSet) cancelAll() {
	s.mu.Lock()
	var all []*Subscription
	for _, set := range s.subs {
		for sub := range set {
			all = append(all, sub)
		}
	}
	s.mu.Unlock()

	for _, sub := range all {
		sub.cancel()
	}
}
