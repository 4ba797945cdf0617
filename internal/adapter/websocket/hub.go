package websocket

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Hub owns room membership for every live connection. Rooms are transient:
// the maps live and die with the process and each connection's lifetime.
// Indexed both by room and by connection so join, leave and the disconnect
// prune are all O(1).
type Hub struct {
	mu          sync.RWMutex
	clients     map[string]*Client
	rooms       map[string]map[string]*Client
	memberships map[string]map[string]struct{}
	log         *zap.SugaredLogger
}

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		clients:     make(map[string]*Client),
		rooms:       make(map[string]map[string]*Client),
		memberships: make(map[string]map[string]struct{}),
		log:         log,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c.ID] = c
	h.memberships[c.ID] = make(map[string]struct{})
	h.log.Infow("connection registered", "conn_id", c.ID, "subject", c.Subject)
}

// Unregister removes the connection from every room it joined and closes
// its send channel. Safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	for room := range h.memberships[c.ID] {
		h.leaveLocked(c.ID, room)
	}
	delete(h.memberships, c.ID)
	delete(h.clients, c.ID)
	close(c.Send)
	h.log.Infow("connection unregistered", "conn_id", c.ID)
}

func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]*Client)
	}
	h.rooms[room][c.ID] = c
	h.memberships[c.ID][room] = struct{}{}
}

// Leave is idempotent; removing a non-member is not an error.
func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.memberships[c.ID]; ok {
		delete(members, room)
	}
	h.leaveLocked(c.ID, room)
}

func (h *Hub) leaveLocked(connID, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// BroadcastToRoom fans a frame out to every member. Fire and forget: a
// member whose send buffer is full is dropped rather than awaited, so one
// slow consumer cannot delay the rest.
//
// Sends happen under the read lock. Unregister closes Send under the write
// lock, so a send can never interleave with the close; the drop itself is
// deferred until the lock is released.
func (h *Hub) BroadcastToRoom(room string, frame any) {
	data, err := json.Marshal(frame)
	if err != nil {
		h.log.Errorw("failed to marshal broadcast frame", "room", room, "error", err)
		return
	}

	h.mu.RLock()
	var slow []*Client
	for _, c := range h.rooms[room] {
		select {
		case c.Send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warnw("dropping slow connection", "conn_id", c.ID, "room", room)
		h.Unregister(c)
	}
}

// SendToConn delivers one frame to a single connection with the same
// drop-when-full contract as BroadcastToRoom. A connection that already
// unregistered is skipped; its channel is closed.
func (h *Hub) SendToConn(c *Client, data []byte) {
	full := false

	h.mu.RLock()
	if _, ok := h.clients[c.ID]; ok {
		select {
		case c.Send <- data:
		default:
			full = true
		}
	}
	h.mu.RUnlock()

	if full {
		h.log.Warnw("dropping slow connection", "conn_id", c.ID)
		h.Unregister(c)
	}
}

// RoomSize reports the current member count of a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Rooms returns the rooms a connection currently belongs to.
func (h *Hub) Rooms(c *Client) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []string
	for room := range h.memberships[c.ID] {
		out = append(out, room)
	}
	return out
}
