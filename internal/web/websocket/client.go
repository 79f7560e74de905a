package websocket

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// staleAfter drops clients whose pongs stopped arriving.
	staleAfter = pongWait + pingPeriod/2

	// Snapshots carry whole documents.
	maxMessageSize = 4 * 1024 * 1024

	sendBuffer = 256
)

// ErrClientClosed is returned when sending to a disconnected client.
var ErrClientClosed = errors.New("client closed")

// Client is one connected editor window.
type Client struct {
	ID string

	conn *websocket.Conn
	hub  *Hub

	// outbound frames, closed by the hub on removal
	send chan []byte

	ctx    context.Context
	cancel context.CancelFunc

	connectedAt time.Time

	mu       sync.RWMutex
	lastSeen time.Time

	closed atomic.Bool
}

// NewClient creates a client bound to hub. The client lives until the hub
// or the connection ends.
func NewClient(id string, conn *websocket.Conn, hub *Hub) *Client {
	ctx, cancel := context.WithCancel(hub.ctx)
	now := time.Now()
	return &Client{
		ID:          id,
		conn:        conn,
		hub:         hub,
		send:        make(chan []byte, sendBuffer),
		ctx:         ctx,
		cancel:      cancel,
		connectedAt: now,
		lastSeen:    now,
	}
}

// ReadPump dispatches incoming frames to the hub's handlers until the
// connection fails. A failing handler answers with an error message.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.touch()
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for c.ctx.Err() == nil {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.WithError(err).Warn("websocket read failed", map[string]interface{}{"client": c.ID})
			}
			return
		}
		c.touch()

		if err := c.hub.HandleMessage(c.ctx, c, frame); err != nil {
			c.hub.log.WithError(err).Debug("message handling failed", map[string]interface{}{"client": c.ID})
			c.SendError(err)
		}
	}
}

// WritePump writes queued messages, one frame each, and keeps the
// connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.writeClose()
			return

		case frame, ok := <-c.send:
			if !ok {
				c.writeClose()
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) writeClose() {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// Send queues message for this client only. It never blocks; a full queue
// drops the message.
func (c *Client) Send(message *Message) (err error) {
	data, err := marshalMessage(message)
	if err != nil {
		return err
	}

	// the hub closes send when it removes the client
	defer func() {
		if recover() != nil {
			err = ErrClientClosed
		}
	}()
	if c.closed.Load() {
		return ErrClientClosed
	}

	select {
	case c.send <- data:
		return nil
	case <-c.ctx.Done():
		return ErrClientClosed
	default:
		c.hub.log.Warn("send queue full, message dropped", map[string]interface{}{
			"client": c.ID,
			"type":   message.Type,
		})
		return errors.New("send queue full")
	}
}

// SendError reports a failed request back to the client.
func (c *Client) SendError(err error) {
	_ = c.Send(&Message{Type: TypeError, Payload: errorPayload{Message: err.Error()}})
}

// SendJSON sends payload as a message of the given type.
func (c *Client) SendJSON(messageType string, payload interface{}) error {
	return c.Send(&Message{Type: messageType, Payload: payload})
}

// JoinRoom subscribes the client to room broadcasts.
func (c *Client) JoinRoom(room string) {
	c.hub.JoinRoom(c, room)
}

// LeaveRoom unsubscribes the client from room.
func (c *Client) LeaveRoom(room string) {
	c.hub.LeaveRoom(c, room)
}

// Rooms lists the rooms the client is in.
func (c *Client) Rooms() []string {
	return c.hub.ClientRooms(c)
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastSeen = time.Now()
	c.mu.Unlock()
}

// LastSeen is when the client last sent a frame or a pong.
func (c *Client) LastSeen() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSeen
}

// Connected returns how long the client has been connected.
func (c *Client) Connected() time.Duration {
	return time.Since(c.connectedAt)
}

// Close disconnects the client.
func (c *Client) Close() {
	c.closed.Store(true)
	c.cancel()
	c.hub.unregister <- c
}
