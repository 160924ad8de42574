package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const streamWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The dashboard is served from another origin in development.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleStreamSession upgrades to a websocket and pushes session
// snapshots after every state change until the session terminates or
// the client goes away.
func (s *Server) handleStreamSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	updates, unsubscribe, err := s.orch.Subscribe(id)
	if err != nil {
		s.mapError(w, err)
		return
	}
	defer unsubscribe()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "session_id", id, "error", err)
		return
	}
	defer conn.Close()

	// Reads are only consumed to detect the client closing.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				deadline := time.Now().Add(streamWriteTimeout)
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session terminal"), deadline)
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(snap); err != nil {
				s.logger.Debug("websocket write failed", "session_id", id, "error", err)
				return
			}
		case <-closed:
			return
		}
	}
}
