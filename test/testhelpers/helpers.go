// Package testhelpers provides common utilities for testing the Text relay.
//
// It contains reusable helpers shared across integration tests: starting a
// relay instance on a test server, dialing WebSocket connections, and
// exchanging protocol events, to reduce duplication in test files.
package testhelpers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Rushikesh-Raval/Text/internal/relay"
)

// DefaultOrigin is an origin the default configuration allows.
const DefaultOrigin = "http://localhost:3000"

// StartRelay starts a hub and its HTTP handler on an httptest server. Both
// are torn down when the test finishes.
func StartRelay(t *testing.T, cfg relay.Config) (*httptest.Server, *relay.Hub) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := relay.NewHub(cfg, logger)
	go hub.Run()

	handler := relay.NewHandler(hub, logger)
	server := httptest.NewServer(handler.Routes())

	t.Cleanup(func() {
		server.Close()
		_ = hub.Shutdown(2 * time.Second)
	})

	return server, hub
}

// WebSocketURL converts a test server's base URL into its ws:// endpoint.
func WebSocketURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
}

// Dial opens a WebSocket connection with the given Origin header.
func Dial(t *testing.T, url, origin string) *websocket.Conn {
	t.Helper()

	conn, err := TryDial(url, origin)
	if err != nil {
		t.Fatalf("Failed to dial %s: %v", url, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// TryDial opens a WebSocket connection and surfaces the handshake error, for
// tests that expect the upgrade to be rejected.
func TryDial(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// SendEvent writes one protocol envelope to the connection.
func SendEvent(t *testing.T, conn *websocket.Conn, name string, payload any) {
	t.Helper()

	ev := relay.Event{Name: name}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("Failed to marshal payload: %v", err)
		}
		ev.Payload = data
	}
	if err := conn.WriteJSON(ev); err != nil {
		t.Fatalf("Failed to send %q event: %v", name, err)
	}
}

// ReceiveEvent reads the next envelope from the connection, failing the test
// if nothing arrives within the timeout.
func ReceiveEvent(t *testing.T, conn *websocket.Conn, timeout time.Duration) relay.Event {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}

	var ev relay.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("Failed to read event: %v", err)
	}
	return ev
}

// ExpectEvent reads the next envelope and asserts its name.
func ExpectEvent(t *testing.T, conn *websocket.Conn, name string, timeout time.Duration) relay.Event {
	t.Helper()

	ev := ReceiveEvent(t, conn, timeout)
	if ev.Name != name {
		t.Fatalf("Expected %q event, got %q", name, ev.Name)
	}
	return ev
}

// ExpectNoEvent asserts that nothing arrives on the connection within the
// given window. The timed-out read poisons the connection's read side, so
// this must be the last read a test performs on conn.
func ExpectNoEvent(t *testing.T, conn *websocket.Conn, window time.Duration) {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(window)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}

	var ev relay.Event
	if err := conn.ReadJSON(&ev); err == nil {
		t.Fatalf("Expected no event, got %q", ev.Name)
	}
}

// Setup completes the setup handshake for the given user and waits for the
// connected acknowledgment.
func Setup(t *testing.T, conn *websocket.Conn, userID string) {
	t.Helper()

	SendEvent(t, conn, relay.EventSetup, map[string]string{"_id": userID})
	ExpectEvent(t, conn, relay.EventConnected, 2*time.Second)
}

// MessagePayload builds a new-message payload for the given sender,
// recipients, and content.
func MessagePayload(sender string, recipients []string, content string) map[string]any {
	users := []map[string]string{{"_id": sender}}
	for _, r := range recipients {
		users = append(users, map[string]string{"_id": r})
	}
	return map[string]any{
		"sender":  map[string]string{"_id": sender},
		"chat":    map[string]any{"users": users},
		"content": content,
	}
}

// WaitFor polls until the condition holds or the deadline passes.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}
