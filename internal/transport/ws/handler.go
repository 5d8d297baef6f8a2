package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/futbolpi/harmonic-realm-sub000/internal/model"
	"github.com/futbolpi/harmonic-realm-sub000/internal/service"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for dev
	},
}

// Handler handles WebSocket connections
type Handler struct {
	hub        *Hub
	authSvc    *service.AuthService
	sessionSvc *service.SessionService
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub, authSvc *service.AuthService, sessionSvc *service.SessionService) *Handler {
	return &Handler{
		hub:        hub,
		authSvc:    authSvc,
		sessionSvc: sessionSvc,
	}
}

// geofencePayload is the client's location report
type geofencePayload struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionWS handles GET /v1/ws/sessions/{id}. The connection streams
// geofence samples up and countdown ticks down; the runner it spawns owns
// the session's timer for the lifetime of the connection.
func (h *Handler) SessionWS(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	token := r.URL.Query().Get("token")

	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.authSvc.ValidateMinerToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	session, err := h.sessionSvc.Get(r.Context(), sessionID, claims.UserID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if session.Status != model.SessionActive {
		http.Error(w, "session is not active", http.StatusConflict)
		return
	}

	node, err := h.sessionSvc.Node(r.Context(), session.NodeID)
	if err != nil {
		http.Error(w, "node not found", http.StatusNotFound)
		return
	}

	conn := &Connection{
		SessionID: sessionID,
		NodeID:    session.NodeID,
		UserID:    claims.UserID,
		Send:      make(chan []byte, 256),
		Hub:       h.hub,
	}

	// One countdown connection per session in this process.
	if !h.hub.RegisterSession(conn) {
		http.Error(w, "session already has a live countdown connection", http.StatusConflict)
		return
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.hub.Unregister(conn)
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	log.Printf("Miner %s opened countdown for session %s", claims.UserID, sessionID)

	run := newRunner(h.sessionSvc, session, node, conn)

	// The request context dies when this handler returns; the runner lives
	// until the socket does.
	ctx, cancel := context.WithCancel(context.Background())

	go h.writePump(wsConn, conn)
	go func() {
		h.readPump(wsConn, conn, run)
		cancel()
	}()
	go func() {
		run.run(ctx)
		// Completion or cancellation of the runner closes the socket; the
		// server-side session state is untouched by the disconnect.
		wsConn.Close()
	}()
}

func (h *Handler) readPump(wsConn *websocket.Conn, conn *Connection, run *runner) {
	defer func() {
		h.hub.Unregister(conn)
		wsConn.Close()
	}()

	wsConn.SetReadLimit(maxMessageSize)
	wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case MsgGeofence:
			var p geofencePayload
			if err := json.Unmarshal(msg.Payload, &p); err != nil {
				continue
			}
			if p.Timestamp.IsZero() {
				p.Timestamp = time.Now()
			}
			sample := model.GeofenceSample{Lat: p.Lat, Lng: p.Lng, Timestamp: p.Timestamp}
			select {
			case run.samples <- sample:
			default:
				// Drop when the runner is behind; a newer sample follows.
			}

		case MsgComplete:
			select {
			case run.manual <- struct{}{}:
			default:
			}
		}
	}
}

func (h *Handler) writePump(wsConn *websocket.Conn, conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		wsConn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				wsConn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := wsConn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
