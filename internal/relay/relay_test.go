package relay

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// logBuffer is a goroutine-safe sink for slog output under test.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testHub() *Hub {
	return NewHub(DefaultConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// testClient registers a connectionless client directly with the hub's
// registry so routing can be exercised synchronously, without pumps.
func testClient(h *Hub, addr string) *Client {
	c := newClient(nil, h, addr)
	h.registry.Add(c)
	return c
}

func routeEvent(t *testing.T, h *Hub, c *Client, name string, payload any) {
	t.Helper()

	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		raw = data
	}
	h.route(inboundEvent{sender: c, event: Event{Name: name, Payload: raw}})
}

// setupClient completes the setup handshake for the given identity and
// consumes the connected ack.
func setupClient(t *testing.T, h *Hub, c *Client, identity string) {
	t.Helper()

	routeEvent(t, h, c, EventSetup, UserRef{ID: identity})
	ack := receiveEvent(t, c)
	require.Equal(t, EventConnected, ack.Name)
}

// receiveEvent pops the next delivery off the client's send buffer. Routing
// is synchronous, so anything delivered is already buffered.
func receiveEvent(t *testing.T, c *Client) Event {
	t.Helper()

	select {
	case data, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		var ev Event
		require.NoError(t, json.Unmarshal(data, &ev))
		return ev
	default:
		t.Fatal("expected a delivered event, got none")
		return Event{}
	}
}

func assertNoEvent(t *testing.T, c *Client) {
	t.Helper()

	select {
	case data, ok := <-c.send:
		if ok {
			t.Fatalf("expected no delivery, got %s", data)
		}
	default:
	}
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
