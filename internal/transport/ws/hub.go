package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	MsgSessionChanged MessageType = "session_changed"
	MsgConnected      MessageType = "connected"
)

// Message is the WebSocket envelope format
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ChangePayload tells a client which session moved and to what version.
// Clients re-read the session over REST.
type ChangePayload struct {
	SessionID string `json:"sessionId"`
	Version   int64  `json:"version"`
}

// Hub manages WebSocket connections per session
type Hub struct {
	// sessionID -> userID -> conn
	conns map[string]map[string]*Connection

	mu     sync.RWMutex
	logger *slog.Logger

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *BroadcastMessage
	done       chan struct{}
	closeOnce  sync.Once
}

// Connection represents a WebSocket connection
type Connection struct {
	SessionID string
	UserID    string
	Send      chan []byte
	Hub       *Hub
}

// BroadcastMessage is a message for every connection of a session
type BroadcastMessage struct {
	SessionID string
	Message   *Message
}

// NewHub creates a new WebSocket hub
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		conns:      make(map[string]map[string]*Connection),
		logger:     logger.With("component", "ws"),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		broadcast:  make(chan *BroadcastMessage, 256),
		done:       make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for _, users := range h.conns {
				for _, conn := range users {
					close(conn.Send)
				}
			}
			h.conns = make(map[string]map[string]*Connection)
			h.mu.Unlock()
			return

		case conn := <-h.register:
			h.mu.Lock()
			if h.conns[conn.SessionID] == nil {
				h.conns[conn.SessionID] = make(map[string]*Connection)
			}
			// A second tab of the same user replaces the first.
			if old, ok := h.conns[conn.SessionID][conn.UserID]; ok {
				close(old.Send)
			}
			h.conns[conn.SessionID][conn.UserID] = conn
			h.mu.Unlock()
			h.logger.Debug("client connected", "session", conn.SessionID, "user", conn.UserID)

		case conn := <-h.unregister:
			h.mu.Lock()
			if users, ok := h.conns[conn.SessionID]; ok {
				if existing, ok := users[conn.UserID]; ok && existing == conn {
					delete(users, conn.UserID)
					close(conn.Send)
					if len(users) == 0 {
						delete(h.conns, conn.SessionID)
					}
					h.logger.Debug("client disconnected", "session", conn.SessionID, "user", conn.UserID)
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			data, _ := json.Marshal(msg.Message)
			h.mu.RLock()
			for _, conn := range h.conns[msg.SessionID] {
				select {
				case conn.Send <- data:
				default:
					// Drop message if buffer full
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.done:
		close(conn.Send)
	}
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Count returns the number of live connections for a session
func (h *Hub) Count(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[sessionID])
}

// SessionChanged pushes a change signal to everyone watching the session (implements service.Notifier)
func (h *Hub) SessionChanged(sessionID string, version int64) {
	payload, _ := json.Marshal(ChangePayload{SessionID: sessionID, Version: version})
	msg := &BroadcastMessage{
		SessionID: sessionID,
		Message:   &Message{Type: MsgSessionChanged, Payload: payload},
	}
	select {
	case h.broadcast <- msg:
	case <-h.done:
	default:
		h.logger.Warn("broadcast queue full, dropping change signal", "session", sessionID, "version", version)
	}
}

// Close disconnects every client and stops the hub
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}
