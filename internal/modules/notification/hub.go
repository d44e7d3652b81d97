package notification

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

type FeedMessage struct {
	Type   string    `json:"type"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (cl *client) write(fn func() error) error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return fn()
}

// Hub keeps one live staff websocket per user and broadcasts notifications to all of them.
type Hub struct {
	connections map[int64]*client
	mutex       sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		connections: make(map[int64]*client),
	}
}

func (h *Hub) Register(userID int64, conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if old, exists := h.connections[userID]; exists && old != nil {
		_ = old.conn.Close()
	}

	h.connections[userID] = &client{conn: conn}
}

// Unregister drops the user's connection if it is still conn.
func (h *Hub) Unregister(userID int64, conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if cl, exists := h.connections[userID]; exists && cl.conn == conn {
		_ = cl.conn.Close()
		delete(h.connections, userID)
	}
}

func (h *Hub) Ping(userID int64) error {
	h.mutex.RLock()
	cl, exists := h.connections[userID]
	h.mutex.RUnlock()
	if !exists {
		return websocket.ErrCloseSent
	}
	return cl.write(func() error { return cl.conn.WriteMessage(websocket.PingMessage, nil) })
}

func (h *Hub) OnlineCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return len(h.connections)
}

// Send broadcasts text to every connected staff member. Connections that
// fail to write are dropped. It never fails: an empty feed is not an error.
func (h *Hub) Send(_ context.Context, text string) error {
	msg := FeedMessage{Type: "notification", Text: text, SentAt: time.Now().UTC()}

	h.mutex.RLock()
	targets := make(map[int64]*client, len(h.connections))
	for id, cl := range h.connections {
		targets[id] = cl
	}
	h.mutex.RUnlock()

	for id, cl := range targets {
		if err := cl.write(func() error { return cl.conn.WriteJSON(msg) }); err != nil {
			h.Unregister(id, cl.conn)
		}
	}
	return nil
}

func (h *Hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for userID, cl := range h.connections {
		_ = cl.conn.Close()
		delete(h.connections, userID)
	}
}
