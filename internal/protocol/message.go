// Package protocol defines the websocket wire contract shared by the
// WatchTogether server and client. Every message is a small JSON envelope
// with a type tag and an event-specific payload.
package protocol

import "encoding/json"

// Message is the envelope for all C2S (client to server) and S2C
// (server to client) websocket messages.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client to server intents.
const (
	EventJoinRoom    = "join-room"
	EventLeaveRoom   = "leave-room"
	EventSignal      = "signal"
	EventSendMessage = "send-message"
	EventMicStatus   = "mic-status"
)

// Server to client events. EventHostStartedSharing / EventHostStoppedSharing
// double as the host's inbound intents, matching their broadcast names.
const (
	EventSession            = "session"
	EventRoomJoined         = "room-joined"
	EventUserJoined         = "user-joined"
	EventUserLeft           = "user-left"
	EventReceiveMessage     = "receive-message"
	EventHostStartedSharing = "host-started-sharing"
	EventHostStoppedSharing = "host-stopped-sharing"
	EventMicStatusUpdate    = "mic-status-update"
	EventNewHost            = "new-host"
	EventError              = "error"
)

// NewMessage marshals payload into an envelope of the given type.
// A nil payload produces an empty-payload message.
func NewMessage(eventType string, payload any) (*Message, error) {
	msg := &Message{Type: eventType}
	if payload == nil {
		return msg, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	msg.Payload = raw
	return msg, nil
}

// MustMessage is NewMessage for payload types that cannot fail to marshal.
func MustMessage(eventType string, payload any) *Message {
	msg, err := NewMessage(eventType, payload)
	if err != nil {
		panic(err)
	}
	return msg
}
