package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribePublishUnsubscribe(t *testing.T) {
	bus := NewEventBus()

	id1, ch1 := bus.Subscribe()
	_, ch2 := bus.Subscribe()
	assert.Equal(t, 2, bus.SubscriberCount())

	bus.Publish(NewConnectivityChanged(true, "probe"))

	got1 := <-ch1
	got2 := <-ch2
	assert.Equal(t, EventConnectivityOnline, got1.Type())
	assert.Equal(t, EventConnectivityOnline, got2.Type())

	assert.True(t, bus.Unsubscribe(id1))
	assert.False(t, bus.Unsubscribe(id1), "double unsubscribe must report false")
	assert.Equal(t, 1, bus.SubscriberCount())

	// unsubscribed channel is closed
	_, open := <-ch1
	assert.False(t, open)

	bus.Publish(NewSyncCompleted(3))
	event := <-ch2
	require.Equal(t, EventSyncCompleted, event.Type())
	assert.Equal(t, 3, event.(*SyncCompleted).Confirmed())
}

func TestPublishSkipsSlowSubscribers(t *testing.T) {
	bus := NewEventBus()
	_, slow := bus.Subscribe()

	// fill the buffer and then some; the publisher must never block
	for i := 0; i < 40; i++ {
		bus.Publish(NewConnectivityChanged(false, "probe"))
	}

	assert.Len(t, slow, 16, "overflow events are dropped, not queued")
}

func TestConnectivityChangedCarriesEdge(t *testing.T) {
	online := NewConnectivityChanged(true, "assetcache")
	assert.Equal(t, EventConnectivityOnline, online.Type())
	assert.True(t, online.Online())
	assert.Equal(t, "assetcache", online.Source())
	assert.False(t, online.Timestamp().IsZero())

	offline := NewConnectivityChanged(false, "probe")
	assert.Equal(t, EventConnectivityOffline, offline.Type())
	assert.False(t, offline.Online())
}
