// Package relay manages individual WebSocket connections, handling read/write
// pumps, rate limiting, and lifecycle control for each connection.
package relay

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Client represents one live connection to the relay. A connection has no
// identity and belongs to no room until its setup handshake completes.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
	addr string
	log  *slog.Logger

	// identity and closed are guarded by the hub's registry lock; joined is
	// guarded by the hub's room index lock.
	identity string
	closed   bool
	joined   map[string]struct{}

	maxMessageSize int64
	pingTimeout    time.Duration
	limiter        *rateLimiter
	rateLimit      RateLimitConfig
}

func newClient(conn *websocket.Conn, hub *Hub, addr string) *Client {
	cfg := hub.cfg
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}
	id := uuid.New().String()

	return &Client{
		id:             id,
		conn:           conn,
		send:           make(chan []byte, cfg.SendBuffer),
		hub:            hub,
		addr:           addr,
		log:            hub.logger.With("conn", id, "addr", addr),
		joined:         make(map[string]struct{}),
		maxMessageSize: cfg.MaxMessageSize,
		pingTimeout:    cfg.PingTimeout,
		limiter:        newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		rateLimit:      cfg.RateLimit,
	}
}

// ID returns the unique connection identifier.
func (c *Client) ID() string {
	return c.id
}

// Identity returns the user identity bound by setup, empty until then.
func (c *Client) Identity() string {
	return c.hub.registry.identityOf(c)
}

func (c *Client) pingPeriod() time.Duration {
	// Pings must go out comfortably before the peer's read deadline.
	return c.pingTimeout * 9 / 10
}

func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.pingTimeout)); err != nil {
		c.log.Error("setting initial read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.pingTimeout)); err != nil {
			c.log.Error("setting read deadline in pong handler", "error", err)
		}
		return nil
	})
}

// handleReadError logs the error appropriately and reports whether the read
// loop should stop.
func (c *Client) handleReadError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, websocket.ErrReadLimit) {
		c.log.Warn("message exceeded maximum size", "limit", c.maxMessageSize)
		return true
	}

	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		c.log.Info("client disconnected", "error", err)
		return true
	}

	if errors.Is(err, io.EOF) || isExpectedCloseError(err) {
		c.log.Info("connection closed", "error", err)
		return true
	}

	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig) {
		c.log.Warn("unexpected websocket error", "error", err)
		return true
	}

	c.log.Warn("websocket read error", "error", err)
	return true
}

func (c *Client) checkRateLimit() bool {
	if c.limiter != nil && !c.limiter.allow() {
		c.log.Warn("rate limit exceeded; discarding event",
			"burst", c.rateLimit.Burst, "interval", c.rateLimit.RefillInterval)
		return false
	}
	return true
}

// forwardEvent decodes the envelope and hands it to the hub's event loop.
// Malformed frames are logged and dropped; they never stop the connection.
func (c *Client) forwardEvent(raw []byte) bool {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		c.log.Warn("invalid event frame", "error", err)
		return false
	}
	if ev.Name == "" {
		c.log.Warn("event frame missing event name")
		return false
	}

	// The hub may already have stopped; never block on a loop that is gone.
	select {
	case c.hub.inbound <- inboundEvent{sender: c, event: ev}:
		return true
	case <-c.hub.done:
		return false
	}
}

// readPump reads frames from the transport until it closes. Disconnect
// cleanup is bound here, to the transport's actual close/error signal, so it
// fires regardless of what application events the client did or did not send.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		if err := c.conn.Close(); err != nil {
			if !isExpectedCloseError(err) {
				c.log.Warn("closing connection in read pump", "error", err)
			}
		}
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if c.handleReadError(err) {
				break
			}
		}

		if !c.checkRateLimit() {
			continue
		}

		c.forwardEvent(raw)
	}
}

// writePump drains the send channel onto the transport, one frame per event,
// and keeps the connection alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingPeriod())
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.Warn("setting write deadline", "error", err)
				return
			}
			if !ok {
				c.writeCloseMessage()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				if !isExpectedCloseError(err) {
					c.log.Warn("writing event", "error", err)
				}
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.Warn("setting write deadline for ping", "error", err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.hub.ctx.Done():
			// Hub is stopping; don't linger until the next ping tick.
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err == nil {
				c.writeCloseMessage()
			}
			return
		}
	}
}

func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("closing connection in write pump", "error", err)
		}
	}
}

func (c *Client) writeCloseMessage() {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("writing close message", "error", err)
		}
	}
}

// isExpectedCloseError checks if an error is expected during connection
// closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
