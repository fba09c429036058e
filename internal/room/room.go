// Package room owns the authoritative room state: the registry of live
// rooms, their participant sets, host pointers and sharing flags. It does no
// network I/O; every mutator returns everything the signaling layer needs to
// fan out, so host failover and room destruction are plain state transitions.
package room

import (
	"sync"

	"github.com/Ajaxkicker/WatchTogether/internal/protocol"
)

// maxChatLog bounds the per-room chat log. The log dies with the room.
const maxChatLog = 500

type participant struct {
	username string
	muted    bool
}

// Room is one live room. All fields are guarded by mu; rooms are only
// reachable through the Registry.
type Room struct {
	mu   sync.Mutex
	code string

	hostID string
	// participants keyed by session id; order tracks join order for
	// deterministic host succession.
	participants map[string]*participant
	order        []string

	sharing bool
	chat    []protocol.ChatMessage

	// destroyed marks a room that emptied out. A destroyed room rejects all
	// operations even if a racing lookup still holds a pointer to it.
	destroyed bool
}

func newRoom(code, hostID, username string) *Room {
	return &Room{
		code:         code,
		hostID:       hostID,
		participants: map[string]*participant{hostID: {username: username, muted: true}},
		order:        []string{hostID},
	}
}

// Snapshot is a consistent copy of a room's externally visible state.
type Snapshot struct {
	Code         string
	HostID       string
	Sharing      bool
	Participants []protocol.Participant
}

// snapshotLocked serializes the participant map in join order. Callers must
// hold r.mu.
func (r *Room) snapshotLocked() Snapshot {
	list := make([]protocol.Participant, 0, len(r.order))
	for _, id := range r.order {
		p := r.participants[id]
		list = append(list, protocol.Participant{
			SocketID: id,
			Username: p.username,
			Muted:    p.muted,
			IsHost:   id == r.hostID,
		})
	}
	return Snapshot{Code: r.code, HostID: r.hostID, Sharing: r.sharing, Participants: list}
}

// memberIDsLocked returns all session ids in join order, excluding any ids
// given in except. Callers must hold r.mu.
func (r *Room) memberIDsLocked(except ...string) []string {
	ids := make([]string, 0, len(r.order))
outer:
	for _, id := range r.order {
		for _, ex := range except {
			if id == ex {
				continue outer
			}
		}
		ids = append(ids, id)
	}
	return ids
}

func (r *Room) removeFromOrderLocked(sessionID string) {
	for i, id := range r.order {
		if id == sessionID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}
