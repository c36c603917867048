package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/harborchat/harbor-backend/internal/logger"
)

// Conn is the write side of a client socket. *websocket.Conn satisfies it.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
}

// text frame opcode, matching websocket.TextMessage
const textMessage = 1

// frame is what actually goes down a socket: the event name plus the
// standard envelope.
type frame struct {
	Event   string   `json:"event"`
	Payload Envelope `json:"payload"`
}

// Client is one registered socket. A client connects to exactly one process,
// so all of its room memberships live in that process's hub.
type Client struct {
	ID     string
	UserID string

	conn    Conn
	writeMu sync.Mutex
}

// Send writes an event to this client only.
func (c *Client) Send(event string, env Envelope) error {
	data, err := json.Marshal(frame{Event: event, Payload: env})
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(textMessage, data)
}

// Hub tracks this process's sockets and their room memberships. Cross-process
// delivery is the backplane's job; the hub only ever fans out locally.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	// room name -> socket ids
	rooms map[string]map[string]struct{}
	// socket id -> room names, for O(rooms) cleanup on disconnect
	memberships map[string]map[string]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:     make(map[string]*Client),
		rooms:       make(map[string]map[string]struct{}),
		memberships: make(map[string]map[string]struct{}),
	}
}

// Register adds a socket and subscribes it to the user's personal room.
func (h *Hub) Register(userID string, conn Conn) *Client {
	client := &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		conn:   conn,
	}

	h.mu.Lock()
	h.clients[client.ID] = client
	h.memberships[client.ID] = make(map[string]struct{})
	h.mu.Unlock()

	h.Join(client.ID, UserRoom(userID))

	logger.Info().
		Str("socket_id", client.ID).
		Str("user_id", userID).
		Int("total", h.Count()).
		Msg("socket registered")
	return client
}

// Unregister drops the socket and all of its room memberships. A disconnected
// client immediately stops receiving fan-out deliveries.
func (h *Hub) Unregister(socketID string) {
	h.mu.Lock()
	client, ok := h.clients[socketID]
	if ok {
		for room := range h.memberships[socketID] {
			delete(h.rooms[room], socketID)
			if len(h.rooms[room]) == 0 {
				delete(h.rooms, room)
			}
		}
		delete(h.memberships, socketID)
		delete(h.clients, socketID)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if ok {
		logger.Info().
			Str("socket_id", socketID).
			Str("user_id", client.UserID).
			Int("total", total).
			Msg("socket unregistered")
	}
}

func (h *Hub) Join(socketID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[socketID]; !ok {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]struct{})
	}
	h.rooms[room][socketID] = struct{}{}
	h.memberships[socketID][room] = struct{}{}
}

func (h *Hub) Leave(socketID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms[room], socketID)
	if len(h.rooms[room]) == 0 {
		delete(h.rooms, room)
	}
	if m, ok := h.memberships[socketID]; ok {
		delete(m, room)
	}
}

// RoomSize returns the number of local sockets in a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Count returns the number of local sockets.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// emitLocal delivers an event to every local socket in the room. Write
// failures only cost that one socket its delivery; the connection reader will
// notice the dead socket and unregister it.
func (h *Hub) emitLocal(room, event string, env Envelope) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[room]))
	for socketID := range h.rooms[room] {
		if client, ok := h.clients[socketID]; ok {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range targets {
		if err := client.Send(event, env); err != nil {
			logger.Warn().
				Err(err).
				Str("socket_id", client.ID).
				Str("room", room).
				Str("event", event).
				Msg("local fanout write failed")
		}
	}
}
