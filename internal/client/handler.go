package client

import (
	"encoding/json"

	"github.com/Ajaxkicker/WatchTogether/internal/protocol"
)

// Empty-payload server events get marker types so a type switch can tell
// them apart.
type (
	// HostStartedSharing signals that the host began a screen share.
	HostStartedSharing struct{}
	// HostStoppedSharing signals that the share ended (explicitly or because
	// the host left).
	HostStoppedSharing struct{}
)

// DecodeEvent turns a raw server message into its typed payload. Unknown
// event types decode to nil and are skipped.
func DecodeEvent(msg *protocol.Message) (any, error) {
	switch msg.Type {
	case protocol.EventSession:
		return decodeAs[protocol.SessionInfo](msg.Payload)
	case protocol.EventRoomJoined:
		return decodeAs[protocol.RoomJoined](msg.Payload)
	case protocol.EventUserJoined:
		return decodeAs[protocol.UserJoined](msg.Payload)
	case protocol.EventUserLeft:
		return decodeAs[protocol.UserLeft](msg.Payload)
	case protocol.EventSignal:
		return decodeAs[protocol.Signal](msg.Payload)
	case protocol.EventReceiveMessage:
		return decodeAs[protocol.ChatMessage](msg.Payload)
	case protocol.EventHostStartedSharing:
		return HostStartedSharing{}, nil
	case protocol.EventHostStoppedSharing:
		return HostStoppedSharing{}, nil
	case protocol.EventMicStatusUpdate:
		return decodeAs[protocol.MicStatusUpdate](msg.Payload)
	case protocol.EventNewHost:
		return decodeAs[protocol.NewHost](msg.Payload)
	case protocol.EventError:
		return decodeAs[protocol.ErrorInfo](msg.Payload)
	default:
		return nil, nil
	}
}

func decodeAs[T any](raw json.RawMessage) (*T, error) {
	var v T
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
	}
	return &v, nil
}

// Handler drains the client's incoming messages into a stream of typed
// events for the session loop.
type Handler struct {
	client *Client
	events chan any
}

func NewHandler(c *Client) *Handler {
	return &Handler{
		client: c,
		events: make(chan any, 32),
	}
}

// Start decodes until the connection drops, then closes the event stream.
func (h *Handler) Start() {
	defer close(h.events)
	for msg := range h.client.Incoming() {
		ev, err := DecodeEvent(msg)
		if err != nil || ev == nil {
			continue
		}
		h.events <- ev
	}
}

// Events returns the typed event stream. The channel closes when the
// connection is gone.
func (h *Handler) Events() <-chan any {
	return h.events
}
