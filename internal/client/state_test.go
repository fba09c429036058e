package client

import (
	"encoding/json"
	"testing"

	"github.com/Ajaxkicker/WatchTogether/internal/protocol"
)

func seededState() *RoomState {
	st := NewRoomState()
	st.SetSelf("me")
	st.ApplyRoomJoined(&protocol.RoomJoined{
		RoomCode: "MOVIE1",
		Participants: []protocol.Participant{
			{SocketID: "host", Username: "alice", IsHost: true},
			{SocketID: "me", Username: "bob", Muted: true},
		},
		IsHost:       false,
		HostSocketID: "host",
	})
	return st
}

func TestRoomJoinedSnapshotReplacesProjection(t *testing.T) {
	st := seededState()

	if st.RoomCode() != "MOVIE1" {
		t.Errorf("room code = %q", st.RoomCode())
	}
	if st.IsHost() {
		t.Error("guest projected as host")
	}
	if st.HostID() != "host" {
		t.Errorf("host id = %q", st.HostID())
	}
	if got := len(st.Participants()); got != 2 {
		t.Fatalf("%d participants, want 2", got)
	}

	// A later snapshot fully replaces the previous one.
	st.ApplyRoomJoined(&protocol.RoomJoined{
		RoomCode:     "OTHER2",
		Participants: []protocol.Participant{{SocketID: "me", Username: "bob", IsHost: true}},
		IsHost:       true,
		HostSocketID: "me",
	})
	if st.RoomCode() != "OTHER2" || !st.IsHost() || len(st.Participants()) != 1 {
		t.Errorf("snapshot not replaced: code=%q host=%v n=%d",
			st.RoomCode(), st.IsHost(), len(st.Participants()))
	}
}

func TestUserJoinedAddsMutedAndSystemLine(t *testing.T) {
	st := seededState()

	st.ApplyUserJoined(&protocol.UserJoined{SocketID: "c", Username: "carol"})
	parts := st.Participants()
	if len(parts) != 3 {
		t.Fatalf("%d participants, want 3", len(parts))
	}
	if !parts[2].Muted {
		t.Error("new participant not muted")
	}

	// Duplicate announcements are ignored.
	st.ApplyUserJoined(&protocol.UserJoined{SocketID: "c", Username: "carol"})
	if got := len(st.Participants()); got != 3 {
		t.Fatalf("duplicate join grew the list to %d", got)
	}

	msgs := st.Messages()
	if len(msgs) != 1 {
		t.Fatalf("%d chat lines, want 1", len(msgs))
	}
	if msgs[0].Kind != protocol.ChatKindSystem || msgs[0].Username != "System" {
		t.Errorf("system line = %+v", msgs[0])
	}
	if msgs[0].Message != "carol joined the room" {
		t.Errorf("system line text = %q", msgs[0].Message)
	}
}

func TestUserLeftRemovesAndAnnounces(t *testing.T) {
	st := seededState()

	st.ApplyUserLeft(&protocol.UserLeft{SocketID: "host", Username: "alice"})
	parts := st.Participants()
	if len(parts) != 1 || parts[0].SocketID != "me" {
		t.Errorf("participants after leave = %+v", parts)
	}
	msgs := st.Messages()
	if len(msgs) != 1 || msgs[0].Message != "alice left the room" {
		t.Errorf("chat after leave = %+v", msgs)
	}
}

func TestNewHostPromotesSelf(t *testing.T) {
	st := seededState()
	st.ApplyUserLeft(&protocol.UserLeft{SocketID: "host", Username: "alice"})

	st.ApplyNewHost(&protocol.NewHost{HostSocketID: "me"})
	if !st.IsHost() {
		t.Error("self not promoted to host")
	}
	if st.HostID() != "me" {
		t.Errorf("host id = %q", st.HostID())
	}
	parts := st.Participants()
	if len(parts) != 1 || !parts[0].IsHost {
		t.Errorf("participant flags after promotion = %+v", parts)
	}
}

func TestNewHostToAnotherParticipant(t *testing.T) {
	st := seededState()
	st.ApplyUserJoined(&protocol.UserJoined{SocketID: "c", Username: "carol"})
	st.ApplyUserLeft(&protocol.UserLeft{SocketID: "host", Username: "alice"})

	st.ApplyNewHost(&protocol.NewHost{HostSocketID: "c"})
	if st.IsHost() {
		t.Error("self wrongly promoted")
	}
	for _, p := range st.Participants() {
		want := p.SocketID == "c"
		if p.IsHost != want {
			t.Errorf("participant %s IsHost = %v, want %v", p.SocketID, p.IsHost, want)
		}
	}
}

func TestMicUpdates(t *testing.T) {
	st := seededState()

	st.ApplyMicUpdate(&protocol.MicStatusUpdate{SocketID: "host", Muted: false})
	st.SetSelfMuted(false)
	for _, p := range st.Participants() {
		if p.Muted {
			t.Errorf("participant %s still muted", p.SocketID)
		}
	}

	// Updates for unknown ids are dropped without effect.
	st.ApplyMicUpdate(&protocol.MicStatusUpdate{SocketID: "ghost", Muted: true})
	if got := len(st.Participants()); got != 2 {
		t.Fatalf("unknown mic update changed the list: %d", got)
	}
}

func TestSharingFlag(t *testing.T) {
	st := seededState()
	if st.IsHostSharing() {
		t.Error("sharing set before any event")
	}
	st.ApplySharing(true)
	if !st.IsHostSharing() {
		t.Error("sharing flag not set")
	}
	st.ApplySharing(false)
	if st.IsHostSharing() {
		t.Error("sharing flag not cleared")
	}
}

func TestChatLogOrder(t *testing.T) {
	st := seededState()
	st.AppendMessage(protocol.ChatMessage{ID: "1", Username: "alice", Message: "hi", Kind: protocol.ChatKindUser})
	st.ApplyUserJoined(&protocol.UserJoined{SocketID: "c", Username: "carol"})
	st.AppendMessage(protocol.ChatMessage{ID: "2", Username: "carol", Message: "hello", Kind: protocol.ChatKindUser})

	msgs := st.Messages()
	if len(msgs) != 3 {
		t.Fatalf("%d chat lines, want 3", len(msgs))
	}
	if msgs[0].ID != "1" || msgs[1].Kind != protocol.ChatKindSystem || msgs[2].ID != "2" {
		t.Errorf("chat order = %+v", msgs)
	}
}

func TestDecodeEvent(t *testing.T) {
	msg := protocol.MustMessage(protocol.EventRoomJoined, protocol.RoomJoined{
		RoomCode:     "MOVIE1",
		HostSocketID: "host",
	})
	ev, err := DecodeEvent(msg)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	joined, ok := ev.(*protocol.RoomJoined)
	if !ok {
		t.Fatalf("decoded %T, want *protocol.RoomJoined", ev)
	}
	if joined.RoomCode != "MOVIE1" || joined.HostSocketID != "host" {
		t.Errorf("decoded payload = %+v", joined)
	}

	// Empty-payload events map to their marker types.
	ev, err = DecodeEvent(&protocol.Message{Type: protocol.EventHostStartedSharing})
	if err != nil {
		t.Fatalf("decode marker: %v", err)
	}
	if _, ok := ev.(HostStartedSharing); !ok {
		t.Fatalf("decoded %T, want HostStartedSharing", ev)
	}

	// Unknown events are skipped, not errors.
	ev, err = DecodeEvent(&protocol.Message{Type: "no-such-event"})
	if err != nil || ev != nil {
		t.Errorf("unknown event decoded to (%v, %v)", ev, err)
	}

	// Malformed payloads surface the error.
	if _, err := DecodeEvent(&protocol.Message{
		Type:    protocol.EventRoomJoined,
		Payload: json.RawMessage(`{"participants":42}`),
	}); err == nil {
		t.Error("malformed payload decoded without error")
	}
}
