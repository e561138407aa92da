package push

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Payload is one frame delivered to widget viewers. Every connected viewer
// receives every frame; the widget filters by email on its side. The server
// does not track which connection belongs to which identity.
type Payload struct {
	Email     string    `json:"email"`
	Text      string    `json:"text"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub is the registry of live widget connections.
type Hub struct {
	logger *slog.Logger
	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		logger: log.With(slog.String("component", "push")),
		conns:  make(map[*websocket.Conn]struct{}),
	}
}

func (h *Hub) Register(conn *websocket.Conn) {
	if conn == nil {
		return
	}
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("viewer connected", slog.String("remote", conn.RemoteAddr().String()))
}

// Unregister removes and closes a connection. Safe to call for connections
// the hub has already dropped.
func (h *Hub) Unregister(conn *websocket.Conn) {
	if conn == nil {
		return
	}
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	_ = conn.Close()
}

// Broadcast sends the payload to every live connection. A connection whose
// write fails is dropped and closed on the spot so a dead peer cannot
// accumulate errors across broadcasts.
func (h *Hub) Broadcast(payload Payload) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("marshal payload failed", slog.Any("error", err))
		return
	}

	h.mu.Lock()
	for conn := range h.conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Warn("broadcast write failed, dropping connection",
				slog.String("remote", conn.RemoteAddr().String()),
				slog.Any("error", err))
			delete(h.conns, conn)
			_ = conn.Close()
		}
	}
	h.mu.Unlock()
}

// Count reports the number of live connections.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// CloseAll drops every connection, for shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	for conn := range h.conns {
		_ = conn.Close()
		delete(h.conns, conn)
	}
	h.mu.Unlock()
}
