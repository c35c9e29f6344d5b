package websocket

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmapulse/pkg/contracts/events"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStartedHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(quietLogger(), nil)
	hub.Start()
	t.Cleanup(hub.Stop)
	return hub
}

func newTestClient(hub *Hub, buffer int) *Client {
	c := NewClient(hub, newFakeConn(), "trace-test", quietLogger())
	if buffer > 0 {
		c.send = make(chan []byte, buffer)
	}
	return c
}

func nextEvent(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		var ev Event
		require.NoError(t, json.Unmarshal(msg, &ev))
		return ev
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
	return Event{}
}

func registered(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.ClientCount() == n },
		time.Second, 5*time.Millisecond)
}

func TestHubStartStop(t *testing.T) {
	hub := NewHub(quietLogger(), nil)

	hub.Start()
	hub.Start()
	assert.True(t, hub.running)

	hub.Stop()
	hub.Stop()
	assert.False(t, hub.running)

	// a stopped hub stays stopped
	hub.Start()
	assert.False(t, hub.running)
}

func TestHubRegisterSendsConnectionEvent(t *testing.T) {
	hub := newStartedHub(t)
	client := newTestClient(hub, 0)

	hub.Register(client)
	registered(t, hub, 1)

	ev := nextEvent(t, client)
	assert.Equal(t, events.TypeConnection, ev.Type)
	assert.Equal(t, "trace-test", ev.TraceID)
	data := ev.Data.(map[string]interface{})
	assert.Equal(t, "connected", data["status"])
	assert.Equal(t, client.ID(), data["client_id"])

	hub.Unregister(client)
	registered(t, hub, 0)

	_, ok := <-client.send
	assert.False(t, ok)
	assert.Equal(t, int64(1), hub.Stats().TotalConnections)
}

func TestHubBroadcast(t *testing.T) {
	hub := newStartedHub(t)

	clients := make([]*Client, 3)
	for i := range clients {
		clients[i] = newTestClient(hub, 0)
		hub.Register(clients[i])
	}
	registered(t, hub, 3)

	hub.Broadcast("snapshot.rebuilt", map[string]interface{}{"rows": 42})

	for _, c := range clients {
		assert.Equal(t, events.TypeConnection, nextEvent(t, c).Type)
		ev := nextEvent(t, c)
		assert.Equal(t, "snapshot.rebuilt", ev.Type)
		assert.EqualValues(t, 42, ev.Data.(map[string]interface{})["rows"])
		assert.NotEmpty(t, ev.Timestamp)
	}

	require.Eventually(t, func() bool { return hub.Stats().MessagesSent == 3 },
		time.Second, 5*time.Millisecond)
}

func TestHubBroadcastWithTrace(t *testing.T) {
	hub := newStartedHub(t)
	client := newTestClient(hub, 0)
	hub.Register(client)
	registered(t, hub, 1)
	nextEvent(t, client)

	hub.BroadcastWithTrace("ingest.completed", nil, "trace-abc")

	ev := nextEvent(t, client)
	assert.Equal(t, "ingest.completed", ev.Type)
	assert.Equal(t, "trace-abc", ev.TraceID)
	assert.Nil(t, ev.Data)
}

func TestHubBroadcastWhenNotRunning(t *testing.T) {
	hub := NewHub(quietLogger(), nil)

	done := make(chan struct{})
	go func() {
		hub.Broadcast("ingest.failed", "boom")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked on a hub that is not running")
	}
	assert.Zero(t, len(hub.broadcast))
}

func TestHubDisconnectsSlowClient(t *testing.T) {
	hub := newStartedHub(t)

	// the connection event fills the single slot
	slow := newTestClient(hub, 1)
	fast := newTestClient(hub, 0)
	hub.Register(slow)
	hub.Register(fast)
	registered(t, hub, 2)

	hub.Broadcast("snapshot.rebuilt", nil)

	registered(t, hub, 1)
	assert.Equal(t, int64(1), hub.Stats().MessagesDropped)

	assert.Equal(t, events.TypeConnection, nextEvent(t, slow).Type)
	_, ok := <-slow.send
	assert.False(t, ok, "slow client queue should be closed")

	assert.Equal(t, events.TypeConnection, nextEvent(t, fast).Type)
	assert.Equal(t, "snapshot.rebuilt", nextEvent(t, fast).Type)
}

func TestHubStopClosesClients(t *testing.T) {
	hub := NewHub(quietLogger(), nil)
	hub.Start()

	client := newTestClient(hub, 0)
	hub.Register(client)
	registered(t, hub, 1)
	nextEvent(t, client)

	hub.Stop()

	_, ok := <-client.send
	assert.False(t, ok)
	assert.Zero(t, hub.ClientCount())

	// must not block once stopped
	hub.Register(newTestClient(hub, 0))
	hub.Unregister(client)
}

func TestEncodeEvent(t *testing.T) {
	payload, err := encodeEvent("ingest.completed", map[string]int{"files": 2}, "")
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &raw))
	assert.Equal(t, "ingest.completed", raw["type"])
	assert.NotContains(t, raw, "trace_id")
	_, err = time.Parse(time.RFC3339, raw["timestamp"].(string))
	assert.NoError(t, err)

	_, err = encodeEvent("bad", make(chan int), "")
	assert.Error(t, err)
}
