// Package relay defines the wire protocol shared with the Text front end:
// a small JSON envelope carrying a named event and an opaque payload.
package relay

import "encoding/json"

// Event names spoken by the Text front end. Inbound names arrive from
// clients; the relay emits the outbound ones.
const (
	EventSetup      = "setup"
	EventTyping     = "typing"
	EventStopTyping = "stop typing"
	EventNewMessage = "new message"

	EventConnected       = "connected"
	EventMessageReceived = "message received"
)

// Event is the envelope for every frame exchanged with a client. The payload
// stays raw: the relay only ever inspects the handful of fields it routes on
// and forwards the rest verbatim.
type Event struct {
	Name    string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// UserRef identifies a user inside event payloads.
type UserRef struct {
	ID string `json:"_id"`
}

// ChatRef carries the membership list of the chat a message belongs to.
type ChatRef struct {
	Users []UserRef `json:"users"`
}

// MessagePayload is the subset of a new-message payload the router needs to
// decide fanout. The full payload is forwarded untouched.
type MessagePayload struct {
	Sender UserRef  `json:"sender"`
	Chat   *ChatRef `json:"chat"`
}

func encodeEvent(name string, payload json.RawMessage) ([]byte, error) {
	return json.Marshal(Event{Name: name, Payload: payload})
}
