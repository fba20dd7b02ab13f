// Package relay routes inbound events to the right rooms and connections.
// The router is stateless over the registry and room index; every rule below
// excludes the sending connection from its own fanout.
package relay

import "encoding/json"

func (h *Hub) route(in inboundEvent) {
	switch in.event.Name {
	case EventSetup:
		h.handleSetup(in.sender, in.event.Payload)
	case EventTyping, EventStopTyping:
		h.relayToRoom(in.sender, in.event.Name, in.event.Payload)
	case EventNewMessage:
		h.handleNewMessage(in.sender, in.event.Payload)
	default:
		h.logger.Debug("dropping unknown event", "event", in.event.Name,
			"conn", in.sender.id)
	}
}

// handleSetup binds the claimed identity to the connection, joins it to the
// identity's room, and acknowledges with a connected event to that connection
// only. What happens to a previously bound identity depends on SetupPolicy.
func (h *Hub) handleSetup(c *Client, payload json.RawMessage) {
	var user UserRef
	if err := json.Unmarshal(payload, &user); err != nil {
		h.logger.Warn("malformed setup payload", "conn", c.id, "error", err)
		return
	}
	if user.ID == "" {
		h.logger.Warn("setup payload missing _id", "conn", c.id)
		return
	}

	previous := h.registry.identityOf(c)
	if previous != "" && previous != user.ID && h.cfg.SetupPolicy == SetupPolicySingle {
		h.rooms.Leave(c, previous)
	}

	h.registry.bindIdentity(c, user.ID)
	h.rooms.Join(c, user.ID)
	h.logger.Info("user setup", "user", user.ID, "conn", c.id)

	ack, err := encodeEvent(EventConnected, nil)
	if err != nil {
		h.logger.Error("encoding connected ack", "error", err)
		return
	}
	h.deliver(c, ack)
}

// relayToRoom forwards an ephemeral signal to every member of the named room
// except the sender's own connection. No state, no acknowledgment.
func (h *Hub) relayToRoom(c *Client, name string, payload json.RawMessage) {
	var roomID string
	if err := json.Unmarshal(payload, &roomID); err != nil || roomID == "" {
		h.logger.Warn("malformed room payload", "event", name, "conn", c.id)
		return
	}

	data, err := encodeEvent(name, payload)
	if err != nil {
		h.logger.Error("encoding room event", "event", name, "error", err)
		return
	}

	for _, member := range h.rooms.Members(roomID) {
		if member == c {
			continue
		}
		h.deliver(member, data)
	}
}

// handleNewMessage fans a message out to the room of every chat member except
// the sender. Addressing by user room rather than by connection means a user
// on several devices receives the message on all of them.
func (h *Hub) handleNewMessage(c *Client, payload json.RawMessage) {
	var msg MessagePayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		h.logger.Warn("malformed new message payload", "conn", c.id, "error", err)
		return
	}
	if msg.Chat == nil || len(msg.Chat.Users) == 0 {
		h.logger.Warn("chat.users not defined", "conn", c.id)
		return
	}

	data, err := encodeEvent(EventMessageReceived, payload)
	if err != nil {
		h.logger.Error("encoding message received event", "error", err)
		return
	}

	for _, user := range msg.Chat.Users {
		if user.ID == "" || user.ID == msg.Sender.ID {
			continue
		}
		for _, member := range h.rooms.Members(user.ID) {
			if member == c {
				continue
			}
			h.deliver(member, data)
		}
	}
}
