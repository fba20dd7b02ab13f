package relay

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type messageBody struct {
	Sender  UserRef `json:"sender"`
	Chat    ChatRef `json:"chat"`
	Content string  `json:"content"`
}

func TestSetupAcksOnlyTheSetupConnection(t *testing.T) {
	h := testHub()
	sender := testClient(h, "127.0.0.1:1001")
	bystander := testClient(h, "127.0.0.1:1002")

	routeEvent(t, h, sender, EventSetup, UserRef{ID: "u1"})

	ack := receiveEvent(t, sender)
	assert.Equal(t, EventConnected, ack.Name)
	assert.Equal(t, "u1", sender.Identity())
	assertNoEvent(t, bystander)
}

func TestSetupWithoutIDIsDropped(t *testing.T) {
	h := testHub()
	c := testClient(h, "127.0.0.1:1001")

	routeEvent(t, h, c, EventSetup, map[string]string{"name": "no id here"})
	routeEvent(t, h, c, EventSetup, nil)

	assertNoEvent(t, c)
	assert.Empty(t, c.Identity())
	assert.Zero(t, h.rooms.RoomCount())
}

func TestTypingReachesRoomMembersExceptSender(t *testing.T) {
	h := testHub()
	alice := testClient(h, "127.0.0.1:1001")
	bobPhone := testClient(h, "127.0.0.1:1002")
	bobLaptop := testClient(h, "127.0.0.1:1003")
	carol := testClient(h, "127.0.0.1:1004")

	setupClient(t, h, alice, "alice")
	setupClient(t, h, bobPhone, "bob")
	setupClient(t, h, bobLaptop, "bob")
	setupClient(t, h, carol, "carol")

	routeEvent(t, h, alice, EventTyping, "bob")

	for _, c := range []*Client{bobPhone, bobLaptop} {
		ev := receiveEvent(t, c)
		assert.Equal(t, EventTyping, ev.Name)

		var room string
		require.NoError(t, json.Unmarshal(ev.Payload, &room))
		assert.Equal(t, "bob", room)
	}

	// Neither the sender nor anyone outside the room hears anything.
	assertNoEvent(t, alice)
	assertNoEvent(t, carol)
}

func TestTypingInOwnRoomExcludesSender(t *testing.T) {
	h := testHub()
	phone := testClient(h, "127.0.0.1:1001")
	laptop := testClient(h, "127.0.0.1:1002")

	setupClient(t, h, phone, "bob")
	setupClient(t, h, laptop, "bob")

	routeEvent(t, h, phone, EventTyping, "bob")

	ev := receiveEvent(t, laptop)
	assert.Equal(t, EventTyping, ev.Name)
	assertNoEvent(t, phone)
}

func TestStopTypingUsesSameExclusionRule(t *testing.T) {
	h := testHub()
	alice := testClient(h, "127.0.0.1:1001")
	bob := testClient(h, "127.0.0.1:1002")

	setupClient(t, h, alice, "alice")
	setupClient(t, h, bob, "bob")

	routeEvent(t, h, alice, EventStopTyping, "bob")

	ev := receiveEvent(t, bob)
	assert.Equal(t, EventStopTyping, ev.Name)
	assertNoEvent(t, alice)
}

func TestTypingWithMalformedRoomIsDropped(t *testing.T) {
	h := testHub()
	alice := testClient(h, "127.0.0.1:1001")
	bob := testClient(h, "127.0.0.1:1002")

	setupClient(t, h, alice, "alice")
	setupClient(t, h, bob, "bob")

	routeEvent(t, h, alice, EventTyping, 42)
	routeEvent(t, h, alice, EventTyping, "")

	assertNoEvent(t, bob)
}

func TestNewMessageFansOutToRecipientsOnly(t *testing.T) {
	h := testHub()
	sender := testClient(h, "127.0.0.1:1001")
	recipient := testClient(h, "127.0.0.1:1002")

	setupClient(t, h, sender, "u1")
	setupClient(t, h, recipient, "u2")

	body := messageBody{
		Sender:  UserRef{ID: "u1"},
		Chat:    ChatRef{Users: []UserRef{{ID: "u1"}, {ID: "u2"}}},
		Content: "hello",
	}
	routeEvent(t, h, sender, EventNewMessage, body)

	ev := receiveEvent(t, recipient)
	require.Equal(t, EventMessageReceived, ev.Name)

	// The full original payload is forwarded verbatim.
	var forwarded messageBody
	require.NoError(t, json.Unmarshal(ev.Payload, &forwarded))
	assert.Equal(t, body, forwarded)

	// Exactly one delivery: nothing further for the recipient, nothing at
	// all for the sender's own room.
	assertNoEvent(t, recipient)
	assertNoEvent(t, sender)
}

func TestNewMessageReachesEveryRecipientConnection(t *testing.T) {
	h := testHub()
	sender := testClient(h, "127.0.0.1:1001")
	phone := testClient(h, "127.0.0.1:1002")
	laptop := testClient(h, "127.0.0.1:1003")

	setupClient(t, h, sender, "u1")
	setupClient(t, h, phone, "u2")
	setupClient(t, h, laptop, "u2")

	routeEvent(t, h, sender, EventNewMessage, messageBody{
		Sender: UserRef{ID: "u1"},
		Chat:   ChatRef{Users: []UserRef{{ID: "u1"}, {ID: "u2"}}},
	})

	assert.Equal(t, EventMessageReceived, receiveEvent(t, phone).Name)
	assert.Equal(t, EventMessageReceived, receiveEvent(t, laptop).Name)
	assertNoEvent(t, sender)
}

func TestNewMessageWithoutChatUsersBroadcastsNothing(t *testing.T) {
	h := testHub()
	sender := testClient(h, "127.0.0.1:1001")
	recipient := testClient(h, "127.0.0.1:1002")

	setupClient(t, h, sender, "u1")
	setupClient(t, h, recipient, "u2")

	routeEvent(t, h, sender, EventNewMessage, map[string]any{
		"sender":  UserRef{ID: "u1"},
		"content": "orphan message",
	})
	routeEvent(t, h, sender, EventNewMessage, map[string]any{
		"sender": UserRef{ID: "u1"},
		"chat":   map[string]any{"users": []UserRef{}},
	})
	routeEvent(t, h, sender, EventNewMessage, json.RawMessage(`"not an object"`))

	assertNoEvent(t, recipient)

	// The relay stays responsive after the malformed events.
	routeEvent(t, h, sender, EventTyping, "u2")
	assert.Equal(t, EventTyping, receiveEvent(t, recipient).Name)
}

func TestNewMessageRecordsDiagnosticForMissingChatUsers(t *testing.T) {
	var buf logBuffer
	h := NewHub(DefaultConfig(), slog.New(slog.NewTextHandler(&buf, nil)))
	sender := testClient(h, "127.0.0.1:1001")
	setupClient(t, h, sender, "u1")

	routeEvent(t, h, sender, EventNewMessage, map[string]any{
		"sender": UserRef{ID: "u1"},
	})

	assert.Contains(t, buf.String(), "chat.users not defined")
}

func TestUnknownEventIsDropped(t *testing.T) {
	h := testHub()
	alice := testClient(h, "127.0.0.1:1001")
	bob := testClient(h, "127.0.0.1:1002")

	setupClient(t, h, alice, "alice")
	setupClient(t, h, bob, "bob")

	routeEvent(t, h, alice, "presence ping", "bob")

	assertNoEvent(t, bob)
	assertNoEvent(t, alice)
}

func TestResetupWithMultiPolicyKeepsBothRooms(t *testing.T) {
	h := testHub()
	c := testClient(h, "127.0.0.1:1001")

	setupClient(t, h, c, "u1")
	setupClient(t, h, c, "u2")

	require.Len(t, h.rooms.Members("u1"), 1)
	require.Len(t, h.rooms.Members("u2"), 1)
	assert.Equal(t, "u2", c.Identity())
}

func TestResetupWithSinglePolicyLeavesPreviousRoom(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SetupPolicy = SetupPolicySingle
	h := NewHub(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c := testClient(h, "127.0.0.1:1001")

	setupClient(t, h, c, "u1")
	setupClient(t, h, c, "u2")

	assert.False(t, h.rooms.Contains("u1"))
	require.Len(t, h.rooms.Members("u2"), 1)
	assert.Equal(t, "u2", c.Identity())
}
