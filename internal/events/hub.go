package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/terra-clan/challenge-engine/internal/models"
)

const (
	writeTimeout = 10 * time.Second
	clientBuffer = 32
)

// Hub broadcasts domain events to connected WebSocket clients. Slow
// clients are disconnected rather than allowed to back-pressure the
// publisher.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
}

// NewHub creates a hub and wires it into the dispatcher
func NewHub(dispatcher *Dispatcher) *Hub {
	h := &Hub{clients: make(map[*websocket.Conn]chan []byte)}
	dispatcher.SubscribeAll(h.broadcast)
	return h
}

// Attach registers a connection and starts its write pump. Blocks until
// the connection drops.
func (h *Hub) Attach(conn *websocket.Conn) {
	send := make(chan []byte, clientBuffer)

	h.mu.Lock()
	h.clients[conn] = send
	count := len(h.clients)
	h.mu.Unlock()

	slog.Info("event stream client connected", "clients", count)

	go h.writePump(conn, send)

	// Read loop: we only care about close/error to detect disconnects
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.detach(conn)
}

func (h *Hub) writePump(conn *websocket.Conn, send chan []byte) {
	for msg := range send {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			slog.Debug("event stream write failed", "error", err)
			h.detach(conn)
			return
		}
	}
}

func (h *Hub) detach(conn *websocket.Conn) {
	h.mu.Lock()
	send, ok := h.clients[conn]
	if ok {
		delete(h.clients, conn)
		close(send)
	}
	h.mu.Unlock()

	if ok {
		conn.Close()
		slog.Info("event stream client disconnected")
	}
}

// broadcast fans an event out to all connected clients
func (h *Hub) broadcast(_ context.Context, event models.DomainEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal event for broadcast", "event_id", event.ID, "error", err)
		return
	}

	h.mu.RLock()
	stale := make([]*websocket.Conn, 0)
	for conn, send := range h.clients {
		select {
		case send <- data:
		default:
			// Buffer full: the client is too slow, drop it
			stale = append(stale, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range stale {
		h.detach(conn)
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
