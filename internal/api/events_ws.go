package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleEventsWS upgrades the connection and attaches it to the event
// hub, which streams every domain event as JSON until the client
// disconnects
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}

	client := ClientFromContext(r.Context())
	if client != nil {
		slog.Info("event stream opened", "client", client.Name)
	}

	// Blocks until the connection drops; Attach handles cleanup
	s.eventHub.Attach(conn)
}
