package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/futbolpi/harmonic-realm-sub000/internal/game"
	"github.com/futbolpi/harmonic-realm-sub000/internal/model"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Server-to-client message types
const (
	MsgTick             MessageType = "tick"
	MsgPaused           MessageType = "paused"
	MsgResumed          MessageType = "resumed"
	MsgCompleted        MessageType = "completed"
	MsgSessionCompleted MessageType = "session_completed"
	MsgNodeStatus       MessageType = "node_status"
	MsgError            MessageType = "error"
)

// Client-to-server message types
const (
	MsgGeofence MessageType = "geofence"
	MsgComplete MessageType = "complete"
)

// Message is the WebSocket envelope format
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub manages WebSocket connections for sessions and node watchers
type Hub struct {
	// sessionID -> connection; one countdown connection per session
	sessionConns map[string]*Connection
	// nodeID -> connection set of map watchers
	watcherConns map[string]map[*Connection]bool

	mu sync.RWMutex

	// sessionID -> countdown timer. Timers outlive connections so a
	// reconnect resumes the countdown instead of restarting it.
	timers   map[string]*game.SessionTimer
	timersMu sync.Mutex

	// Channels for coordination
	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *BroadcastMessage
}

// Connection represents a WebSocket connection
type Connection struct {
	SessionID string // Empty for watcher connections
	NodeID    string
	UserID    string
	Send      chan []byte
	Hub       *Hub
}

// BroadcastMessage is a message to broadcast
type BroadcastMessage struct {
	SessionID string // Target session connection
	NodeID    string // Target node watchers when SessionID is empty
	Message   *Message
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	h := &Hub{
		sessionConns: make(map[string]*Connection),
		watcherConns: make(map[string]map[*Connection]bool),
		timers:       make(map[string]*game.SessionTimer),
		register:     make(chan *Connection),
		unregister:   make(chan *Connection),
		broadcast:    make(chan *BroadcastMessage, 256),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			if h.watcherConns[conn.NodeID] == nil {
				h.watcherConns[conn.NodeID] = make(map[*Connection]bool)
			}
			h.watcherConns[conn.NodeID][conn] = true
			h.mu.Unlock()
			log.Printf("Watcher connected for node %s", conn.NodeID)

		case conn := <-h.unregister:
			h.mu.Lock()
			if conn.SessionID != "" {
				if existing, ok := h.sessionConns[conn.SessionID]; ok && existing == conn {
					delete(h.sessionConns, conn.SessionID)
					close(conn.Send)
					log.Printf("Miner %s disconnected from session %s", conn.UserID, conn.SessionID)
				}
			} else {
				if watchers, ok := h.watcherConns[conn.NodeID]; ok {
					if watchers[conn] {
						delete(watchers, conn)
						close(conn.Send)
					}
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			data, _ := json.Marshal(msg.Message)

			if msg.SessionID != "" {
				if conn, ok := h.sessionConns[msg.SessionID]; ok {
					select {
					case conn.Send <- data:
					default:
						// Drop message if buffer full
					}
				}
			} else {
				for conn := range h.watcherConns[msg.NodeID] {
					select {
					case conn.Send <- data:
					default:
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a watcher connection. Session connections go through
// RegisterSession so the slot claim is atomic.
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// RegisterSession claims the session's countdown slot for conn. It returns
// false when another connection already holds it; checking and claiming are
// one step so two simultaneous connects cannot both pass.
func (h *Hub) RegisterSession(conn *Connection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessionConns[conn.SessionID]; ok {
		return false
	}
	h.sessionConns[conn.SessionID] = conn
	log.Printf("Miner %s connected for session %s", conn.UserID, conn.SessionID)
	return true
}

// SessionTimer returns the countdown timer for the session, creating it on
// first sight. A reconnect gets the same instance back; the identity key
// inside the timer decides whether anything resets.
func (h *Hub) SessionTimer(session *model.MiningSession) *game.SessionTimer {
	h.timersMu.Lock()
	defer h.timersMu.Unlock()
	if t, ok := h.timers[session.ID]; ok {
		t.Observe(session)
		return t
	}
	t := game.NewSessionTimer(session, nil)
	h.timers[session.ID] = t
	return t
}

// ReleaseTimer drops the session's timer once the session is terminal.
func (h *Hub) ReleaseTimer(sessionID string) {
	h.timersMu.Lock()
	defer h.timersMu.Unlock()
	delete(h.timers, sessionID)
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// HasSession reports whether a countdown connection already exists for the
// session. One timer per session per process.
func (h *Hub) HasSession(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.sessionConns[sessionID]
	return ok
}

// BroadcastToSession sends a message to the session's connection (implements service.Broadcaster)
func (h *Hub) BroadcastToSession(sessionID string, msgType string, payload interface{}) {
	data, _ := json.Marshal(payload)
	h.broadcast <- &BroadcastMessage{
		SessionID: sessionID,
		Message: &Message{
			Type:    MessageType(msgType),
			Payload: data,
		},
	}
}

// BroadcastToNodeWatchers sends a message to a node's watchers (implements service.Broadcaster)
func (h *Hub) BroadcastToNodeWatchers(nodeID string, msgType string, payload interface{}) {
	data, _ := json.Marshal(payload)
	h.broadcast <- &BroadcastMessage{
		NodeID: nodeID,
		Message: &Message{
			Type:    MessageType(msgType),
			Payload: data,
		},
	}
}
