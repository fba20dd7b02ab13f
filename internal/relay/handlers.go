// Package relay exposes the HTTP surface: the WebSocket upgrade endpoint,
// health check, and the built-in test page.
package relay

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

// Handler bundles the hub with its HTTP endpoints. Construct one per hub;
// nothing here is process-wide state.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler wires the HTTP endpoints to the given hub, enforcing the
// configured origin allow-list on upgrades.
func NewHandler(hub *Hub, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	policy := newOriginPolicy(hub.cfg.AllowedOrigins, logger)

	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     policy.check,
		},
		logger: logger,
	}
}

// WebSocket upgrades the request and registers the resulting connection with
// the hub, which launches its pump goroutines.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := newClient(conn, h.hub, r.RemoteAddr)
	h.hub.register <- client
}

// Health reports that the service is up, matching what the Text front end
// probes for.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "API Is Running Successfully")
}

// TestPage serves a small HTML page that speaks the relay's event protocol,
// for poking at the service without the front end.
func (h *Handler) TestPage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, testPageHTML); err != nil {
		h.logger.Warn("writing test page", "error", err)
	}
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Text Relay Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #log {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
            font-family: monospace;
            font-size: 12px;
        }
        input[type="text"] { padding: 5px; margin-right: 5px; }
        button { padding: 5px 15px; cursor: pointer; }
    </style>
</head>
<body>
    <h1>Text Relay Test</h1>

    <div>
        <input type="text" id="userId" placeholder="user _id" value="u1">
        <button onclick="connectAndSetup()">Connect + setup</button>
    </div>
    <div>
        <input type="text" id="roomId" placeholder="room (user _id)">
        <button onclick="sendTyping()">typing</button>
        <button onclick="sendStopTyping()">stop typing</button>
    </div>
    <div>
        <input type="text" id="recipient" placeholder="recipient _id">
        <input type="text" id="content" placeholder="message content">
        <button onclick="sendMessage()">new message</button>
    </div>

    <div id="log"></div>

    <script>
        let ws = null;
        const logDiv = document.getElementById('log');

        function log(line) {
            const el = document.createElement('div');
            el.textContent = line;
            logDiv.appendChild(el);
            logDiv.scrollTop = logDiv.scrollHeight;
        }

        function emit(event, payload) {
            if (!ws || ws.readyState !== WebSocket.OPEN) {
                log('not connected');
                return;
            }
            const frame = JSON.stringify({event: event, payload: payload});
            ws.send(frame);
            log('>> ' + frame);
        }

        function connectAndSetup() {
            const userId = document.getElementById('userId').value.trim();
            ws = new WebSocket('ws://' + location.host + '/ws');
            ws.onopen = () => {
                log('connected to relay');
                emit('setup', {_id: userId});
            };
            ws.onmessage = (e) => log('<< ' + e.data);
            ws.onclose = () => { log('connection closed'); ws = null; };
            ws.onerror = (e) => log('connection error');
        }

        function sendTyping() {
            emit('typing', document.getElementById('roomId').value.trim());
        }

        function sendStopTyping() {
            emit('stop typing', document.getElementById('roomId').value.trim());
        }

        function sendMessage() {
            const sender = document.getElementById('userId').value.trim();
            const recipient = document.getElementById('recipient').value.trim();
            emit('new message', {
                sender: {_id: sender},
                chat: {users: [{_id: sender}, {_id: recipient}]},
                content: document.getElementById('content').value
            });
        }
    </script>
</body>
</html>`
