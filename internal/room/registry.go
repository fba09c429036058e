package room

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Ajaxkicker/WatchTogether/internal/protocol"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomExists   = errors.New("room already exists")
	// ErrCodeSpaceExhausted means code generation kept colliding with live
	// rooms. With a 36^6 code space this indicates a misconfigured deployment,
	// not an expected runtime condition.
	ErrCodeSpaceExhausted = errors.New("room code space exhausted")
)

// Registry owns the mapping of room code to live Room. The registry mutex
// guards only the map; each room carries its own lock, so operations on
// unrelated rooms never serialize against each other.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

func (reg *Registry) lookup(code string) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.rooms[code]
}

// Get returns a consistent snapshot of the room, or false if no such room is
// live. Pure lookup, no mutation.
func (reg *Registry) Get(code string) (Snapshot, bool) {
	r := reg.lookup(code)
	if r == nil {
		return Snapshot{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return Snapshot{}, false
	}
	return r.snapshotLocked(), true
}

// CreateRoom creates a room with a single participant who becomes host.
// Atomic-or-reject: a concurrent creator of the same code loses with
// ErrRoomExists.
func (reg *Registry) CreateRoom(code, hostSessionID, username string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, ok := reg.rooms[code]; ok {
		return ErrRoomExists
	}
	reg.rooms[code] = newRoom(code, hostSessionID, username)
	return nil
}

// JoinResult reports a join along with the audience for the user-joined
// delta.
type JoinResult struct {
	Created  bool
	Snapshot Snapshot
	// Others lists every member except the joiner.
	Others []string
}

// JoinOrCreate adds the session to the room, creating the room (with the
// session as host) if the code is not live. New participants join muted.
func (reg *Registry) JoinOrCreate(code, sessionID, username string) JoinResult {
	for {
		reg.mu.Lock()
		r, ok := reg.rooms[code]
		if !ok {
			r = newRoom(code, sessionID, username)
			reg.rooms[code] = r
			reg.mu.Unlock()
			r.mu.Lock()
			snap := r.snapshotLocked()
			r.mu.Unlock()
			return JoinResult{Created: true, Snapshot: snap}
		}
		reg.mu.Unlock()

		r.mu.Lock()
		if r.destroyed {
			// Lost a race with the last leaver; the code is free again.
			r.mu.Unlock()
			continue
		}
		if _, ok := r.participants[sessionID]; !ok {
			r.participants[sessionID] = &participant{username: username, muted: true}
			r.order = append(r.order, sessionID)
		}
		snap := r.snapshotLocked()
		others := r.memberIDsLocked(sessionID)
		r.mu.Unlock()
		return JoinResult{Snapshot: snap, Others: others}
	}
}

// LeaveResult reports the outcome of a leave and who must hear about it.
type LeaveResult struct {
	// Left is false when the session was not a member (duplicate leave,
	// stale disconnect); nothing happened and nothing should be broadcast.
	Left      bool
	Username  string
	WasHost   bool
	NewHostID string
	Destroyed bool
	// Remaining lists the surviving members, in join order.
	Remaining []string
}

// Leave removes the participant. If the host leaves a surviving room, the
// earliest remaining joiner is promoted and sharing is reset unconditionally:
// a share cannot outlive its host, and the successor holds no outbound
// stream. The last leaver destroys the room.
func (reg *Registry) Leave(code, sessionID string) LeaveResult {
	r := reg.lookup(code)
	if r == nil {
		return LeaveResult{}
	}

	r.mu.Lock()
	p, ok := r.participants[sessionID]
	if !ok || r.destroyed {
		r.mu.Unlock()
		return LeaveResult{}
	}
	delete(r.participants, sessionID)
	r.removeFromOrderLocked(sessionID)

	res := LeaveResult{
		Left:     true,
		Username: p.username,
		WasHost:  r.hostID == sessionID,
	}
	if len(r.order) == 0 {
		r.destroyed = true
		res.Destroyed = true
	} else if res.WasHost {
		r.hostID = r.order[0]
		r.sharing = false
		res.NewHostID = r.hostID
	}
	res.Remaining = r.memberIDsLocked()
	r.mu.Unlock()

	if res.Destroyed {
		reg.mu.Lock()
		if reg.rooms[code] == r {
			delete(reg.rooms, code)
		}
		reg.mu.Unlock()
	}
	return res
}

// ShareResult reports a sharing-flag change and its broadcast audience.
type ShareResult struct {
	Changed  bool
	Audience []string
}

// SetSharing flips the sharing flag, but only for the room's current host.
// The host check and the write happen under the same room lock so a racing
// host change cannot leave a stale sharing flag behind. No-op for unknown
// rooms, non-host senders, and duplicate intents that would not change the
// flag.
func (reg *Registry) SetSharing(code, sessionID string, sharing bool) ShareResult {
	r := reg.lookup(code)
	if r == nil {
		return ShareResult{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed || r.hostID != sessionID || r.sharing == sharing {
		return ShareResult{}
	}
	r.sharing = sharing
	return ShareResult{Changed: true, Audience: r.memberIDsLocked(sessionID)}
}

// MicResult reports a mic change and its broadcast audience.
type MicResult struct {
	Updated  bool
	Audience []string
}

// SetMuted records the participant's reported mic state. No-op if the room
// or participant is already gone.
func (reg *Registry) SetMuted(code, sessionID string, muted bool) MicResult {
	r := reg.lookup(code)
	if r == nil {
		return MicResult{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[sessionID]
	if !ok || r.destroyed {
		return MicResult{}
	}
	p.muted = muted
	return MicResult{Updated: true, Audience: r.memberIDsLocked(sessionID)}
}

// ChatResult carries the appended message and the full room audience
// (chat echoes back to the sender).
type ChatResult struct {
	Message  protocol.ChatMessage
	Audience []string
}

// AppendChat builds a user chat message for the sender and appends it to the
// room log. Returns false if the sender is not a current member.
func (reg *Registry) AppendChat(code, sessionID, body string) (ChatResult, bool) {
	r := reg.lookup(code)
	if r == nil {
		return ChatResult{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[sessionID]
	if !ok || r.destroyed {
		return ChatResult{}, false
	}
	msg := protocol.ChatMessage{
		ID:        uuid.NewString(),
		Username:  p.username,
		Message:   body,
		Timestamp: time.Now().UnixMilli(),
		Kind:      protocol.ChatKindUser,
	}
	r.chat = append(r.chat, msg)
	if len(r.chat) > maxChatLog {
		r.chat = r.chat[len(r.chat)-maxChatLog:]
	}
	return ChatResult{Message: msg, Audience: r.memberIDsLocked()}, true
}
