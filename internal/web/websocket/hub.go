// Package websocket carries editor messages between the server and the
// editor windows. Clients join rooms; the hub fans messages out to every
// client of a room from a single event loop.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/easyblocks/easyblocks/internal/logger"
	"github.com/easyblocks/easyblocks/internal/metrics"
)

const (
	staleCheckInterval = 30 * time.Second
	outboxSize         = 1024
)

// MessageHandler answers one message type. A returned error is sent back to
// the client as an error message.
type MessageHandler func(ctx context.Context, client *Client, message *Message) error

// outbound is a queued fan-out. An empty room means every client.
type outbound struct {
	room    string
	message *Message
}

// Hub owns the connected clients and their room memberships. Only the Run
// loop closes a client's send queue.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}

	handlers sync.Map // message type -> MessageHandler

	register   chan *Client
	unregister chan *Client
	outbox     chan outbound

	// OnLeave runs after a client left a room, including by disconnecting.
	OnLeave func(client *Client, room string)

	log logger.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	running atomic.Bool
	stopped chan struct{}
}

// NewHub creates a hub that stops when ctx is done or Shutdown is called.
func NewHub(ctx context.Context, log logger.Logger) *Hub {
	hubCtx, cancel := context.WithCancel(ctx)
	return &Hub{
		clients:    make(map[*Client]struct{}),
		rooms:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client, sendBuffer),
		unregister: make(chan *Client, sendBuffer),
		outbox:     make(chan outbound, outboxSize),
		log:        logger.OrNop(log).With(map[string]interface{}{"component": "websocket"}),
		ctx:        hubCtx,
		cancel:     cancel,
		stopped:    make(chan struct{}),
	}
}

// RegisterHandler sets the handler for messageType, replacing any earlier one.
func (h *Hub) RegisterHandler(messageType string, handler MessageHandler) {
	h.handlers.Store(messageType, handler)
}

// Run is the hub's event loop. It returns once the hub is shut down.
func (h *Hub) Run() {
	h.running.Store(true)
	defer close(h.stopped)

	ticker := time.NewTicker(staleCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.add(client)
		case client := <-h.unregister:
			h.remove(client)
		case out := <-h.outbox:
			h.fanOut(out)
		case <-ticker.C:
			h.dropStale()
		}
	}
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()
	h.log.Debug("client registered", map[string]interface{}{"client": client.ID, "total": total})
}

// remove forgets client and every room it was in. Removing twice is a no-op.
func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.closed.Store(true)
		close(client.send)
	}
	var left []string
	for name, members := range h.rooms {
		if _, ok := members[client]; !ok {
			continue
		}
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, name)
		}
		left = append(left, name)
	}
	total := len(h.clients)
	h.mu.Unlock()

	for _, room := range left {
		h.left(client, room)
	}
	h.log.Debug("client unregistered", map[string]interface{}{"client": client.ID, "total": total})
}

func (h *Hub) left(client *Client, room string) {
	if h.OnLeave != nil {
		h.OnLeave(client, room)
	}
}

func (h *Hub) fanOut(out outbound) {
	data, err := marshalMessage(out.message)
	if err != nil {
		h.log.WithError(err).Error("dropping unencodable message", map[string]interface{}{"room": out.room})
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	targets := h.clients
	if out.room != "" {
		targets = h.rooms[out.room]
	}
	for client := range targets {
		select {
		case client.send <- data:
			metrics.WebsocketMessages.WithLabelValues("out", out.message.Type).Inc()
		default:
			h.log.Warn("client queue full, message dropped", map[string]interface{}{
				"client": client.ID,
				"type":   out.message.Type,
			})
		}
	}
}

func (h *Hub) enqueue(out outbound) {
	select {
	case h.outbox <- out:
	case <-h.ctx.Done():
	default:
		h.log.Warn("hub outbox full, message dropped", map[string]interface{}{
			"room": out.room,
			"type": out.message.Type,
		})
	}
}

// Broadcast queues message for every connected client.
func (h *Hub) Broadcast(message *Message) {
	h.enqueue(outbound{message: message})
}

// BroadcastToRoom queues message for the clients in room.
func (h *Hub) BroadcastToRoom(room string, message *Message) {
	h.enqueue(outbound{room: room, message: message})
}

// JoinRoom subscribes client to room. Joining twice is a no-op.
func (h *Hub) JoinRoom(client *Client, room string) {
	h.mu.Lock()
	members := h.rooms[room]
	if members == nil {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[client] = struct{}{}
	h.mu.Unlock()

	h.log.Debug("client joined room", map[string]interface{}{"client": client.ID, "room": room})
}

// LeaveRoom unsubscribes client from room and fires OnLeave if it was a
// member. Empty rooms are dropped.
func (h *Hub) LeaveRoom(client *Client, room string) {
	h.mu.Lock()
	members := h.rooms[room]
	_, member := members[client]
	if member {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	h.mu.Unlock()

	if member {
		h.left(client, room)
		h.log.Debug("client left room", map[string]interface{}{"client": client.ID, "room": room})
	}
}

// RoomSize is the number of clients in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// ClientRooms lists the rooms client is in, sorted.
func (h *Hub) ClientRooms(client *Client) []string {
	h.mu.RLock()
	rooms := make([]string, 0)
	for name, members := range h.rooms {
		if _, ok := members[client]; ok {
			rooms = append(rooms, name)
		}
	}
	h.mu.RUnlock()
	sort.Strings(rooms)
	return rooms
}

// ClientCount is the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomCount is the number of rooms with at least one client.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// HandleMessage decodes a frame and dispatches it. Unknown types are
// ignored.
func (h *Hub) HandleMessage(ctx context.Context, client *Client, frame []byte) error {
	var message Message
	if err := json.Unmarshal(frame, &message); err != nil {
		return fmt.Errorf("malformed message: %w", err)
	}
	metrics.WebsocketMessages.WithLabelValues("in", message.Type).Inc()

	handler, ok := h.handlers.Load(message.Type)
	if !ok {
		h.log.Debug("unhandled message type", map[string]interface{}{"type": message.Type, "client": client.ID})
		return nil
	}
	return handler.(MessageHandler)(ctx, client, &message)
}

// closeAll drops every connection. Write pumps stop through the client
// contexts, which derive from the hub's.
func (h *Hub) closeAll() {
	h.mu.Lock()
	count := len(h.clients)
	for client := range h.clients {
		client.closed.Store(true)
		if client.conn != nil {
			client.conn.Close()
		}
	}
	h.clients = make(map[*Client]struct{})
	h.rooms = make(map[string]map[*Client]struct{})
	h.mu.Unlock()

	h.log.Info("hub stopped", map[string]interface{}{"clients": count})
}

func (h *Hub) dropStale() {
	var stale []*Client
	h.mu.RLock()
	for client := range h.clients {
		if time.Since(client.LastSeen()) > staleAfter {
			stale = append(stale, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range stale {
		h.log.Info("dropping silent client", map[string]interface{}{
			"client":    client.ID,
			"last_seen": client.LastSeen().Format(time.RFC3339),
		})
		h.remove(client)
	}
}

// Shutdown stops the hub and waits for Run to return.
func (h *Hub) Shutdown() {
	h.cancel()
	if h.running.Load() {
		<-h.stopped
	}
}
