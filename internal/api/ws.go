package api

import (
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/flashchat/internal/auth"
	"github.com/npezzotti/flashchat/internal/server"
)

// serveWs upgrades every request. A missing or invalid credential yields an
// anonymous connection rather than a rejected handshake.
func (s *App) serveWs(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.auth.Authenticate(auth.CredentialFromRequest(r))
	if !ok {
		userId = ""
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(userId, conn, s.hub, s.router, s.log)
	if err := s.hub.Register(client); err != nil {
		s.log.Printf("register connection: %v", err)
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	client.Serve()
}
