package server

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// handleWebsocket subscribes a viewer to a game's channels. The
// connection immediately receives an authoritative snapshot so state
// is rehydrated from the store, never from channel history.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	gameID, rest, ok := parseGamePath(r.URL.Path, "/ws/games/")
	if !ok || rest != "" {
		http.NotFound(w, r)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	exists, err := s.ledger.Exists(ctx, gameID)
	if err != nil || !exists {
		http.NotFound(w, r)
		return
	}

	session := r.URL.Query().Get("session")
	if session == "" {
		session = newSessionToken()
	}
	channels := []string{channelGameUpdates, channelUpdateStory}
	if raw := r.URL.Query().Get("channels"); raw != "" {
		channels = channels[:0]
		for _, channel := range strings.Split(raw, ",") {
			if channel = strings.TrimSpace(channel); channel != "" {
				channels = append(channels, channel)
			}
		}
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	log.Printf("ws connected game_id=%s session=%s remote=%s", gameID, session, r.RemoteAddr)
	s.ws.Add(gameID, conn, session, channels)

	if state, err := s.buildSnapshot(ctx, gameID); err == nil {
		s.ws.Send(conn, map[string]any{
			"type":    messageInitialData,
			"session": session,
			"data":    state,
		})
	}
	go s.readWS(gameID, conn)
}

func (s *Server) readWS(gameID string, conn *websocket.Conn) {
	defer s.ws.Remove(gameID, conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			log.Printf("ws disconnected game_id=%s error=%v", gameID, err)
			return
		}
	}
}
