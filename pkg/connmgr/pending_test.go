package connmgr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingTableResolve(t *testing.T) {
	table := newPendingTable()

	wait := table.register(1)
	require.Equal(t, 1, table.size())

	resolved := table.resolve(1, &Envelope{ID: 1, Ack: true})
	require.True(t, resolved)
	assert.Equal(t, 0, table.size())

	env, ok := <-wait
	require.True(t, ok)
	assert.Equal(t, uint64(1), env.ID)
}

func TestPendingTableResolveUnknownID(t *testing.T) {
	table := newPendingTable()
	assert.False(t, table.resolve(99, &Envelope{ID: 99, Ack: true}))
}

func TestPendingTableDropClearsEntry(t *testing.T) {
	table := newPendingTable()

	table.register(7)
	require.True(t, table.drop(7))
	assert.Equal(t, 0, table.size())

	// A late ack for the dropped id finds no entry.
	assert.False(t, table.resolve(7, &Envelope{ID: 7, Ack: true}))
	assert.False(t, table.drop(7))
}

func TestPendingTableRejectAll(t *testing.T) {
	table := newPendingTable()

	a := table.register(1)
	b := table.register(2)
	table.rejectAll()

	// Rejection is a closed channel without a value.
	env, ok := <-a
	assert.False(t, ok)
	assert.Nil(t, env)
	_, ok = <-b
	assert.False(t, ok)

	assert.Equal(t, 0, table.size())
}

func TestSubscriberSetDispatch(t *testing.T) {
	set := newSubscriberSet()

	sub := set.subscribe("alert", false)
	other := set.subscribe("noise", false)

	set.dispatch(&Envelope{Event: "alert", Data: "payload"})

	env := <-sub.C
	assert.Equal(t, "alert", env.Event)
	assert.Empty(t, other.C)

	sub.Cancel()
	_, ok := <-sub.C
	assert.False(t, ok)

	// Cancel is idempotent.
	sub.Cancel()
}

func TestSubscriberSetCancelDuringDispatch(t *testing.T) {
	set := newSubscriberSet()
	env := &Envelope{Event: "tick"}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 2000; i++ {
			set.dispatch(env)
		}
	}()

	// Cancelling while the read-loop side delivers must never panic with a
	// send on a closed channel.
	for i := 0; i < 500; i++ {
		sub := set.subscribe("tick", false)
		sub.Cancel()
	}
	<-done

	set.mu.Lock()
	assert.Empty(t, set.subs)
	set.mu.Unlock()
}

func TestSubscriberSetOnceAutoCancels(t *testing.T) {
	set := newSubscriberSet()

	sub := set.subscribe("alert", true)
	set.dispatch(&Envelope{Event: "alert"})
	set.dispatch(&Envelope{Event: "alert"})

	first, ok := <-sub.C
	require.True(t, ok)
	assert.Equal(t, "alert", first.Event)

	// The handle self-cancelled after the first delivery.
	_, ok = <-sub.C
	assert.False(t, ok)
}
