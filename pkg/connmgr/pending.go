package connmgr

import "sync"

// pendingTable correlates outbound acknowledged/request-response sends with
// their inbound ack or response by message id. Every entry resolves or
// rejects exactly once; a disconnect rejects all outstanding entries so no
// waiter leaks.
type pendingTable struct {
	entries map[uint64]chan *Envelope
	mu      sync.Mutex
}

func newPendingTable() *pendingTable {
	return &pendingTable{entries: make(map[uint64]chan *Envelope)}
}

// register creates a correlation entry for id. The returned channel receives
// the matching envelope, or is closed without a value on rejection.
func (t *pendingTable) register(id uint64) <-chan *Envelope {
	ch := make(chan *Envelope, 1)
	t.mu.Lock()
	t.entries[id] = ch
	t.mu.Unlock()
	return ch
}

// resolve delivers env to the waiter registered for id and clears the entry.
// It reports whether an entry existed.
func (t *pendingTable) resolve(id uint64, env *Envelope) bool {
	t.mu.Lock()
	ch, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	ch <- env
	close(ch)
	return true
}

// drop removes the entry for id without delivering, used when the waiter
// times out. It reports whether an entry existed.
func (t *pendingTable) drop(id uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[id]; !ok {
		return false
	}
	delete(t.entries, id)
	return true
}

// rejectAll closes every outstanding entry, signalling rejection to waiters.
func (t *pendingTable) rejectAll() {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[uint64]chan *Envelope)
	t.mu.Unlock()

	for _, ch := range entries {
		close(ch)
	}
}

// size returns the number of outstanding entries.
func (t *pendingTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
