package client

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Ajaxkicker/WatchTogether/internal/protocol"
)

// RoomState is the client's locally cached projection of the room: rebuilt
// from the room-joined snapshot and kept current by the per-event deltas.
// The server remains authoritative; this copy only feeds the view and the
// peer orchestrator.
type RoomState struct {
	mu sync.RWMutex

	selfID       string
	roomCode     string
	participants []protocol.Participant
	isHost       bool
	hostID       string
	hostSharing  bool
	messages     []protocol.ChatMessage
}

func NewRoomState() *RoomState {
	return &RoomState{}
}

// SetSelf records the session id the server assigned to this connection.
func (st *RoomState) SetSelf(sessionID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.selfID = sessionID
}

// ApplyRoomJoined replaces the projection with the server snapshot.
func (st *RoomState) ApplyRoomJoined(ev *protocol.RoomJoined) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.roomCode = ev.RoomCode
	st.participants = append([]protocol.Participant(nil), ev.Participants...)
	st.isHost = ev.IsHost
	st.hostID = ev.HostSocketID
	st.hostSharing = ev.IsHostSharing
}

// ApplyUserJoined appends the new member (joiners start muted) and a system
// chat line.
func (st *RoomState) ApplyUserJoined(ev *protocol.UserJoined) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, p := range st.participants {
		if p.SocketID == ev.SocketID {
			return
		}
	}
	st.participants = append(st.participants, protocol.Participant{
		SocketID: ev.SocketID,
		Username: ev.Username,
		Muted:    true,
	})
	st.appendSystemLocked(ev.Username + " joined the room")
}

// ApplyUserLeft drops the member and appends a system chat line.
func (st *RoomState) ApplyUserLeft(ev *protocol.UserLeft) {
	st.mu.Lock()
	defer st.mu.Unlock()
	kept := st.participants[:0]
	for _, p := range st.participants {
		if p.SocketID != ev.SocketID {
			kept = append(kept, p)
		}
	}
	st.participants = kept
	st.appendSystemLocked(ev.Username + " left the room")
}

// ApplySharing tracks the host's sharing flag.
func (st *RoomState) ApplySharing(sharing bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.hostSharing = sharing
}

// ApplyMicUpdate records another participant's reported mic state.
func (st *RoomState) ApplyMicUpdate(ev *protocol.MicStatusUpdate) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for i := range st.participants {
		if st.participants[i].SocketID == ev.SocketID {
			st.participants[i].Muted = ev.Muted
		}
	}
}

// ApplyNewHost moves the host pointer after a failover, including to
// ourselves.
func (st *RoomState) ApplyNewHost(ev *protocol.NewHost) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.hostID = ev.HostSocketID
	st.isHost = st.selfID == ev.HostSocketID
	for i := range st.participants {
		st.participants[i].IsHost = st.participants[i].SocketID == ev.HostSocketID
	}
}

// SetSelfMuted mirrors the local mic toggle into the projection.
func (st *RoomState) SetSelfMuted(muted bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for i := range st.participants {
		if st.participants[i].SocketID == st.selfID {
			st.participants[i].Muted = muted
		}
	}
}

// AppendMessage appends a chat message received from the server.
func (st *RoomState) AppendMessage(msg protocol.ChatMessage) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.messages = append(st.messages, msg)
}

func (st *RoomState) appendSystemLocked(body string) {
	st.messages = append(st.messages, protocol.ChatMessage{
		ID:        "sys-" + uuid.NewString(),
		Username:  "System",
		Message:   body,
		Timestamp: time.Now().UnixMilli(),
		Kind:      protocol.ChatKindSystem,
	})
}

func (st *RoomState) SelfID() string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.selfID
}

func (st *RoomState) RoomCode() string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.roomCode
}

func (st *RoomState) IsHost() bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.isHost
}

func (st *RoomState) HostID() string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.hostID
}

func (st *RoomState) IsHostSharing() bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.hostSharing
}

// Participants returns a copy of the participant list in join order.
func (st *RoomState) Participants() []protocol.Participant {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return append([]protocol.Participant(nil), st.participants...)
}

// Messages returns a copy of the chat log.
func (st *RoomState) Messages() []protocol.ChatMessage {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return append([]protocol.ChatMessage(nil), st.messages...)
}
