package signaling

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Ajaxkicker/WatchTogether/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. 64 KB fits any SDP payload.
	maxMessageSize = 64 * 1024

	// Outbound buffer per session. A session that falls this far behind
	// starts losing broadcasts; delivery is best-effort by design.
	sendBuffer = 256
)

// Session wraps a single websocket connection. The server identifies the
// connection by ID in every room event and signal relay.
type Session struct {
	ID string

	hub  *Hub
	conn *websocket.Conn
	log  *zap.Logger

	// roomCode and username are owned by the read goroutine: every intent
	// that touches them is dispatched inline from readPump.
	roomCode string
	username string

	send    chan *protocol.Message
	closeMu sync.Mutex
	closed  bool
}

// trySend queues a message for delivery, dropping it if the session is gone
// or its buffer is full. Fire-and-forget: no acknowledgment, no retry.
func (s *Session) trySend(msg *protocol.Message) {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.send <- msg:
	default:
	}
}

// closeSend stops the write pump. Safe against concurrent trySend callers.
func (s *Session) closeSend() {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}

// readPump pumps messages from the websocket connection into the hub's
// dispatch. There is at most one reader per connection; room intents for
// this session are serialized here.
func (s *Session) readPump() {
	defer func() {
		s.hub.disconnect(s)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg protocol.Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.Debug("read error", zap.Error(err))
			}
			break
		}
		s.hub.dispatch(s, &msg)
	}
}

// writePump pumps messages from the send channel to the websocket
// connection and keeps the connection alive with pings. There is at most one
// writer per connection.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteJSON(msg); err != nil {
				s.log.Debug("write error", zap.Error(err))
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
