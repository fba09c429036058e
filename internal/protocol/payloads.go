package protocol

import "encoding/json"

// SessionInfo is sent once, right after the websocket is established, so the
// client learns the session id the server will use for it in all room events.
type SessionInfo struct {
	SocketID string `json:"socketId"`
}

// JoinRoom asks to join (or implicitly create) a room.
type JoinRoom struct {
	RoomCode string `json:"roomCode"`
	Username string `json:"username"`
}

// Participant is the wire snapshot of one room member.
type Participant struct {
	SocketID string `json:"socketId"`
	Username string `json:"username"`
	Muted    bool   `json:"muted"`
	IsHost   bool   `json:"isHost"`
}

// RoomJoined is the full room snapshot sent to the joining session only.
// Everyone else gets the UserJoined delta.
type RoomJoined struct {
	RoomCode      string        `json:"roomCode"`
	Participants  []Participant `json:"participants"`
	IsHost        bool          `json:"isHost"`
	HostSocketID  string        `json:"hostSocketId"`
	IsHostSharing bool          `json:"isHostSharing"`
}

// UserJoined announces a new member to the rest of the room.
type UserJoined struct {
	SocketID string `json:"socketId"`
	Username string `json:"username"`
}

// UserLeft announces a departed member to the rest of the room.
type UserLeft struct {
	SocketID string `json:"socketId"`
	Username string `json:"username"`
}

// Signal carries an opaque negotiation payload between two sessions. The
// sender fills To; the server rewrites it to From before relaying. The server
// never inspects Signal.
type Signal struct {
	To     string          `json:"to,omitempty"`
	From   string          `json:"from,omitempty"`
	Signal json.RawMessage `json:"signal"`
}

// SignalData is the client-side interpretation of Signal.Signal: either an
// SDP description or a trickled ICE candidate.
type SignalData struct {
	Type      string          `json:"type,omitempty"`
	SDP       string          `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// SendMessage is the chat intent.
type SendMessage struct {
	Message string `json:"message"`
}

// Chat message kinds.
const (
	ChatKindUser   = "user"
	ChatKindSystem = "system"
)

// ChatMessage is a single chat entry, immutable once created.
type ChatMessage struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
	Kind      string `json:"type"`
}

// MicStatus is the client-reported microphone intent.
type MicStatus struct {
	Muted bool `json:"muted"`
}

// MicStatusUpdate fans a mic change out to the rest of the room.
type MicStatusUpdate struct {
	SocketID string `json:"socketId"`
	Muted    bool   `json:"muted"`
}

// NewHost announces the successor after the previous host left.
type NewHost struct {
	HostSocketID string `json:"hostSocketId"`
}

// ErrorInfo reports a rejected intent to its sender.
type ErrorInfo struct {
	Message string `json:"message"`
}
