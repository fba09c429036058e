// Package signaling terminates client websocket connections, validates and
// dispatches inbound intents against the room registry, and fans resulting
// events out to the right audience. It holds no room state of its own: the
// registry is authoritative, and the hub only maps session ids to live
// connections.
package signaling

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Ajaxkicker/WatchTogether/internal/protocol"
	"github.com/Ajaxkicker/WatchTogether/internal/room"
)

// Hub routes join/leave/signal/chat/mic/share traffic between sessions and
// the room registry.
type Hub struct {
	registry *room.Registry
	log      *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewHub(registry *room.Registry, log *zap.Logger) *Hub {
	return &Hub{
		registry: registry,
		log:      log,
		sessions: make(map[string]*Session),
	}
}

// HandleConnection adopts an upgraded websocket connection: assigns it a
// session id, announces the id to the client, and starts its pumps.
func (h *Hub) HandleConnection(conn *websocket.Conn) {
	s := &Session{
		ID:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan *protocol.Message, sendBuffer),
	}
	s.log = h.log.With(zap.String("session_id", s.ID))

	h.mu.Lock()
	h.sessions[s.ID] = s
	h.mu.Unlock()
	s.log.Debug("session connected", zap.String("remote", conn.RemoteAddr().String()))

	go s.writePump()
	go s.readPump()

	s.trySend(protocol.MustMessage(protocol.EventSession, protocol.SessionInfo{SocketID: s.ID}))
}

// disconnect runs on read-pump exit: a dropped channel is equivalent to
// an explicit leave.
func (h *Hub) disconnect(s *Session) {
	h.handleLeave(s)

	h.mu.Lock()
	delete(h.sessions, s.ID)
	h.mu.Unlock()
	s.closeSend()
	s.log.Debug("session disconnected")
}

// sendTo delivers a message to exactly one session, if it is still live.
func (h *Hub) sendTo(sessionID string, msg *protocol.Message) {
	h.mu.RLock()
	target := h.sessions[sessionID]
	h.mu.RUnlock()
	if target != nil {
		target.trySend(msg)
	}
}

// fanOut delivers a message to every listed session. Recipients that are
// gone or backed up simply miss the message.
func (h *Hub) fanOut(sessionIDs []string, msg *protocol.Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, id := range sessionIDs {
		if s := h.sessions[id]; s != nil {
			s.trySend(msg)
		}
	}
}

func (h *Hub) dispatch(s *Session, msg *protocol.Message) {
	switch msg.Type {
	case protocol.EventJoinRoom:
		h.handleJoin(s, msg.Payload)
	case protocol.EventSignal:
		h.handleSignal(s, msg.Payload)
	case protocol.EventSendMessage:
		h.handleChat(s, msg.Payload)
	case protocol.EventHostStartedSharing:
		h.handleSharing(s, true)
	case protocol.EventHostStoppedSharing:
		h.handleSharing(s, false)
	case protocol.EventMicStatus:
		h.handleMic(s, msg.Payload)
	case protocol.EventLeaveRoom:
		h.handleLeave(s)
	default:
		s.log.Debug("unknown message type", zap.String("type", msg.Type))
	}
}

func (h *Hub) handleJoin(s *Session, payload json.RawMessage) {
	var req protocol.JoinRoom
	if err := json.Unmarshal(payload, &req); err != nil {
		h.sendError(s, "Invalid join-room payload.")
		return
	}
	code := strings.ToUpper(strings.TrimSpace(req.RoomCode))
	username := strings.TrimSpace(req.Username)
	if code == "" || username == "" {
		h.sendError(s, "Room code and username are required.")
		return
	}
	if s.roomCode != "" {
		// One room per connection; a second join is a protocol error.
		h.sendError(s, "Already in a room.")
		return
	}

	res := h.registry.JoinOrCreate(code, s.ID, username)
	s.roomCode = code
	s.username = username

	if res.Created {
		s.log.Info("room created", zap.String("room", code), zap.String("username", username))
	} else {
		s.log.Info("joined room", zap.String("room", code), zap.String("username", username))
	}

	s.trySend(protocol.MustMessage(protocol.EventRoomJoined, protocol.RoomJoined{
		RoomCode:      code,
		Participants:  res.Snapshot.Participants,
		IsHost:        res.Snapshot.HostID == s.ID,
		HostSocketID:  res.Snapshot.HostID,
		IsHostSharing: res.Snapshot.Sharing,
	}))
	h.fanOut(res.Others, protocol.MustMessage(protocol.EventUserJoined, protocol.UserJoined{
		SocketID: s.ID,
		Username: username,
	}))
}

// handleSignal relays an opaque negotiation payload to exactly the addressed
// session. The relay does not check room membership: the payload is between
// the two peers.
func (h *Hub) handleSignal(s *Session, payload json.RawMessage) {
	var sig protocol.Signal
	if err := json.Unmarshal(payload, &sig); err != nil || sig.To == "" {
		return
	}
	h.sendTo(sig.To, protocol.MustMessage(protocol.EventSignal, protocol.Signal{
		From:   s.ID,
		Signal: sig.Signal,
	}))
}

func (h *Hub) handleChat(s *Session, payload json.RawMessage) {
	if s.roomCode == "" {
		return
	}
	var req protocol.SendMessage
	if err := json.Unmarshal(payload, &req); err != nil {
		return
	}
	body := strings.TrimSpace(req.Message)
	if body == "" {
		return
	}
	res, ok := h.registry.AppendChat(s.roomCode, s.ID, body)
	if !ok {
		// Benign race with a concurrent leave.
		return
	}
	// Chat echoes to the whole room, sender included.
	h.fanOut(res.Audience, protocol.MustMessage(protocol.EventReceiveMessage, res.Message))
}

func (h *Hub) handleSharing(s *Session, sharing bool) {
	if s.roomCode == "" {
		return
	}
	res := h.registry.SetSharing(s.roomCode, s.ID, sharing)
	if !res.Changed {
		// Non-host sender or a duplicate intent; either way nothing to announce.
		s.log.Debug("share intent dropped", zap.String("room", s.roomCode))
		return
	}
	event := protocol.EventHostStoppedSharing
	if sharing {
		event = protocol.EventHostStartedSharing
	}
	s.log.Info("sharing changed", zap.String("room", s.roomCode), zap.Bool("sharing", sharing))
	h.fanOut(res.Audience, protocol.MustMessage(event, struct{}{}))
}

func (h *Hub) handleMic(s *Session, payload json.RawMessage) {
	if s.roomCode == "" {
		return
	}
	var req protocol.MicStatus
	if err := json.Unmarshal(payload, &req); err != nil {
		return
	}
	res := h.registry.SetMuted(s.roomCode, s.ID, req.Muted)
	if !res.Updated {
		return
	}
	h.fanOut(res.Audience, protocol.MustMessage(protocol.EventMicStatusUpdate, protocol.MicStatusUpdate{
		SocketID: s.ID,
		Muted:    req.Muted,
	}))
}

// handleLeave removes the session from its room and tells the survivors.
// On host departure the survivors hear host-stopped-sharing first, then the
// successor announcement, so no guest ever holds a link to a dead host.
func (h *Hub) handleLeave(s *Session) {
	if s.roomCode == "" {
		return
	}
	code := s.roomCode
	s.roomCode = ""

	res := h.registry.Leave(code, s.ID)
	if !res.Left {
		return
	}
	s.log.Info("left room", zap.String("room", code), zap.String("username", res.Username))

	h.fanOut(res.Remaining, protocol.MustMessage(protocol.EventUserLeft, protocol.UserLeft{
		SocketID: s.ID,
		Username: res.Username,
	}))
	if res.WasHost {
		h.fanOut(res.Remaining, protocol.MustMessage(protocol.EventHostStoppedSharing, struct{}{}))
		if !res.Destroyed {
			h.fanOut(res.Remaining, protocol.MustMessage(protocol.EventNewHost, protocol.NewHost{
				HostSocketID: res.NewHostID,
			}))
		}
	}
	if res.Destroyed {
		s.log.Info("room destroyed", zap.String("room", code))
	}
}

func (h *Hub) sendError(s *Session, message string) {
	s.trySend(protocol.MustMessage(protocol.EventError, protocol.ErrorInfo{Message: message}))
}
