// Package client implements the WatchTogether client transport: the
// websocket connection to the signaling server, typed decoding of server
// events, and the locally cached room projection the view layer reads.
package client

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Ajaxkicker/WatchTogether/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client manages the websocket connection to the signaling server.
type Client struct {
	conn      *websocket.Conn
	serverURL string
	incoming  chan *protocol.Message
	outgoing  chan *protocol.Message
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		incoming:  make(chan *protocol.Message, 32),
		outgoing:  make(chan *protocol.Message, 32),
		done:      make(chan struct{}),
	}
}

// Connect establishes the websocket connection and starts the pumps.
func (c *Client) Connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.serverURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	c.conn = conn

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()
	return nil
}

func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	for {
		var msg protocol.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		c.incoming <- &msg
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// SendMessage queues a message for the server.
func (c *Client) SendMessage(msg *protocol.Message) {
	select {
	case c.outgoing <- msg:
	case <-c.done:
	}
}

// Incoming returns the channel of raw server messages.
func (c *Client) Incoming() <-chan *protocol.Message {
	return c.incoming
}

// Close shuts the connection down. Idempotent.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Intent helpers, one per client-to-server event.

func (c *Client) JoinRoom(roomCode, username string) {
	c.SendMessage(protocol.MustMessage(protocol.EventJoinRoom, protocol.JoinRoom{
		RoomCode: roomCode,
		Username: username,
	}))
}

func (c *Client) LeaveRoom() {
	c.SendMessage(protocol.MustMessage(protocol.EventLeaveRoom, nil))
}

// SendSignal relays an opaque negotiation payload to one remote session.
func (c *Client) SendSignal(to string, data protocol.SignalData) {
	raw, err := json.Marshal(data)
	if err != nil {
		return
	}
	c.SendMessage(protocol.MustMessage(protocol.EventSignal, protocol.Signal{
		To:     to,
		Signal: raw,
	}))
}

func (c *Client) SendChat(body string) {
	c.SendMessage(protocol.MustMessage(protocol.EventSendMessage, protocol.SendMessage{Message: body}))
}

func (c *Client) SendMicStatus(muted bool) {
	c.SendMessage(protocol.MustMessage(protocol.EventMicStatus, protocol.MicStatus{Muted: muted}))
}

func (c *Client) SendShareStarted() {
	c.SendMessage(protocol.MustMessage(protocol.EventHostStartedSharing, struct{}{}))
}

func (c *Client) SendShareStopped() {
	c.SendMessage(protocol.MustMessage(protocol.EventHostStoppedSharing, struct{}{}))
}
