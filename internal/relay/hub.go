package relay

import (
	"sort"
	"sync"
	"time"

	"social_realtime_client/internal/realtime/domain"
	errprocess "social_realtime_client/pkg/err"
)

// client one registered websocket connection
// 寫入需要鎖，因為廣播來自其他連線的 read goroutine
type client struct {
	mu   sync.Mutex
	conn WSConn
}

// WSConn minimal websocket surface the hub needs
type WSConn interface {
	WriteJSON(v interface{}) error
}

func (c *client) send(event domain.WSEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(event)
}

// callRoom parties of one tracked call attempt
type callRoom struct {
	CallerID string
	CalleeID string
}

// Hub 管理所有在線連線
// 一個 user 可以有多個連線（多分頁），全部斷線才算離線
type Hub struct {
	mu       sync.RWMutex
	conns    map[string]map[int64]*client
	nextID   int64
	lastSeen map[string]time.Time
	rooms    map[string]callRoom
}

// NewHub create Hub
func NewHub() *Hub {
	return &Hub{
		conns:    make(map[string]map[int64]*client),
		lastSeen: make(map[string]time.Time),
		rooms:    make(map[string]callRoom),
	}
}

// Register add one connection for userID, returns the connection id
func (h *Hub) Register(userID string, conn WSConn) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[userID]; !ok {
		h.conns[userID] = make(map[int64]*client)
	}
	h.nextID++
	h.conns[userID][h.nextID] = &client{conn: conn}
	h.lastSeen[userID] = time.Now()
	return h.nextID
}

// Unregister remove one connection.
// 回傳 user 是否因此完全離線
func (h *Hub) Unregister(userID string, id int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.conns[userID]; ok {
		delete(conns, id)
		if len(conns) == 0 {
			delete(h.conns, userID)
			delete(h.lastSeen, userID)
			return true
		}
	}
	return false
}

// Heartbeat refresh the liveness deadline for userID
func (h *Hub) Heartbeat(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[userID]; ok {
		h.lastSeen[userID] = time.Now()
	}
}

// OnlineUsers snapshot of connected user ids, sorted
func (h *Hub) OnlineUsers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.conns))
	for id := range h.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SendToUser best-effort delivery to every connection of userID
func (h *Hub) SendToUser(userID string, event domain.WSEvent) error {
	h.mu.RLock()
	conns, ok := h.conns[userID]
	targets := make([]*client, 0, len(conns))
	for _, c := range conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	if !ok || len(targets) == 0 {
		return errprocess.Setf("relay: user %s not connected", userID)
	}

	var firstErr error
	for _, c := range targets {
		if err := c.send(event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Broadcast deliver to every connection, optionally skipping one connection id
func (h *Hub) Broadcast(event domain.WSEvent, exceptID int64) {
	h.mu.RLock()
	targets := make([]*client, 0)
	for _, conns := range h.conns {
		for id, c := range conns {
			if id == exceptID {
				continue
			}
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		// best effort，壞掉的連線由它自己的 read loop 收掉
		_ = c.send(event)
	}
}

// TrackRoom remember the parties of a call attempt for decline routing
func (h *Hub) TrackRoom(roomID, callerID, calleeID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rooms[roomID] = callRoom{CallerID: callerID, CalleeID: calleeID}
}

// RoomPeer the other party of roomID as seen from senderID
func (h *Hub) RoomPeer(roomID, senderID string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	room, ok := h.rooms[roomID]
	if !ok {
		return "", false
	}
	if room.CallerID == senderID {
		return room.CalleeID, true
	}
	if room.CalleeID == senderID {
		return room.CallerID, true
	}
	return "", false
}

// EndRoom forget a finished call attempt
func (h *Hub) EndRoom(roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms, roomID)
}

// ExpiredUsers users whose heartbeat is older than ttl
func (h *Hub) ExpiredUsers(ttl time.Duration) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	cutoff := time.Now().Add(-ttl)
	var expired []string
	for userID, seen := range h.lastSeen {
		if seen.Before(cutoff) {
			expired = append(expired, userID)
		}
	}
	sort.Strings(expired)
	return expired
}
