// Package relay coordinates connection registration, event routing, and
// cleanup through the Hub event loop.
package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// inboundEvent pairs a decoded event with the connection it arrived on.
type inboundEvent struct {
	sender *Client
	event  Event
}

// Hub owns the connection registry and room membership index and serializes
// every mutation through a single event loop: register, unregister, and
// inbound application events are handled to completion, one at a time. Events
// from a single connection keep their order; no ordering is guaranteed across
// connections.
type Hub struct {
	cfg    Config
	logger *slog.Logger

	registry *Registry
	rooms    *RoomIndex

	register   chan *Client
	unregister chan *Client
	inbound    chan inboundEvent

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates a Hub ready to run. A nil logger falls back to the default.
func NewHub(cfg Config, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		cfg:        cfg.withDefaults(),
		logger:     logger,
		registry:   NewRegistry(),
		rooms:      NewRoomIndex(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundEvent),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Config returns the sanitized configuration the hub runs with.
func (h *Hub) Config() Config {
	return h.cfg
}

// Rooms exposes the room membership index for observability.
func (h *Hub) Rooms() *RoomIndex {
	return h.rooms
}

// Registry exposes the connection registry for observability.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Run starts the hub's event loop. It should be called in its own goroutine
// as it runs until Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.logger.Warn("nil client registration; skipping")
				continue
			}
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case in := <-h.inbound:
			h.route(in)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.registry.Add(client)
	h.logger.Info("client connected", "conn", client.id, "addr", client.addr,
		"total", h.registry.Len())

	// A client without a transport has no pumps to run.
	if client.conn == nil {
		return
	}

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

// removeClient drops the connection from every room it had joined and deletes
// its record. Removing an already-removed connection is a no-op.
func (h *Hub) removeClient(client *Client) {
	if client == nil || !h.registry.Remove(client) {
		return
	}
	h.rooms.LeaveAll(client)
	close(client.send)
	h.logger.Info("client disconnected", "conn", client.id,
		"total", h.registry.Len())
}

// deliver queues an event for one connection. A connection that is gone or
// cannot buffer the event is dropped; delivery is best-effort at-most-once.
func (h *Hub) deliver(client *Client, data []byte) {
	if !h.safeSend(client, data) {
		h.logger.Warn("dropping unresponsive client", "conn", client.id)
		h.removeClient(client)
	}
}

func (h *Hub) safeSend(client *Client, data []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("recovered from panic in safeSend", "panic", r)
		}
	}()

	if !h.registry.alive(client) {
		return false
	}

	select {
	case client.send <- data:
		return true
	default:
		return false
	}
}

func (h *Hub) shutdownClients() {
	clients := h.registry.snapshot()
	h.logger.Info("closing client connections", "count", len(clients))

	for _, client := range clients {
		if client.conn == nil {
			continue
		}
		if err := client.conn.Close(); err != nil {
			if !isExpectedCloseError(err) {
				h.logger.Warn("closing client connection", "conn", client.id, "error", err)
			}
		}
	}
}

// Shutdown stops the event loop, closes every live connection, and waits for
// the pump goroutines to finish or the timeout to pass.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.logger.Info("initiating hub shutdown")

	h.cancel()
	<-h.done

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		h.logger.Info("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.logger.Warn("hub shutdown timeout reached")
		return context.DeadlineExceeded
	}
}
