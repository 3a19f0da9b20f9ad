package ws

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/queue-api/pkg/metrics"
)

var testMetrics = metrics.NewMetrics("ws_test")

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func assertNoMessage(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.send:
		t.Fatalf("unexpected message: %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastReachesOnlyRoomMembers(t *testing.T) {
	hub := startHub(t)

	c1 := newClient(hub, nil, zerolog.Nop())
	c2 := newClient(hub, nil, zerolog.Nop())
	other := newClient(hub, nil, zerolog.Nop())

	hub.Join(c1, "482913")
	hub.Join(c2, "482913")
	hub.Join(other, "111111")

	hub.Broadcast("482913", []byte("hello"))

	assert.Equal(t, "hello", string(receive(t, c1)))
	assert.Equal(t, "hello", string(receive(t, c2)))
	assertNoMessage(t, other)
}

func TestClientCanObserveMultipleRooms(t *testing.T) {
	hub := startHub(t)

	c := newClient(hub, nil, zerolog.Nop())
	hub.Join(c, "482913")
	hub.Join(c, "111111")

	hub.Broadcast("482913", []byte("a"))
	hub.Broadcast("111111", []byte("b"))

	assert.Equal(t, "a", string(receive(t, c)))
	assert.Equal(t, "b", string(receive(t, c)))
}

func TestLeaveStopsDelivery(t *testing.T) {
	hub := startHub(t)

	c := newClient(hub, nil, zerolog.Nop())
	hub.Join(c, "482913")
	hub.Leave(c, "482913")

	hub.Broadcast("482913", []byte("hello"))
	assertNoMessage(t, c)
}

func TestUnregisterRemovesFromAllRoomsAndClosesSend(t *testing.T) {
	hub := startHub(t)

	c := newClient(hub, nil, zerolog.Nop())
	hub.Join(c, "482913")
	hub.Join(c, "111111")
	hub.Unregister(c)

	hub.Broadcast("482913", []byte("hello"))
	hub.Broadcast("111111", []byte("hello"))

	// The send channel is closed and carries nothing.
	deadline := time.After(time.Second)
	for {
		select {
		case msg, ok := <-c.send:
			require.False(t, ok, "expected closed channel, got %q", msg)
			return
		case <-deadline:
			t.Fatal("send channel never closed")
		}
	}
}

func TestSlowConsumerIsDroppedFromRoom(t *testing.T) {
	hub := startHub(t)

	slow := &Client{hub: hub, send: make(chan []byte, 1)}
	hub.Join(slow, "482913")

	hub.Broadcast("482913", []byte("one"))
	hub.Broadcast("482913", []byte("two")) // buffer full, client dropped

	// Give the hub time to process both broadcasts.
	time.Sleep(50 * time.Millisecond)
	hub.Broadcast("482913", []byte("three"))

	assert.Equal(t, "one", string(receive(t, slow)))
	assertNoMessage(t, slow)
}
