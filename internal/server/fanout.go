package server

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
)

// fanoutHub distributes state deltas to every viewer of a game over
// named channels. Delivery is at-most-once: a dead connection is
// dropped, a late subscriber rehydrates from the key-value state.
// A subscriber whose session token matches the message's sender token
// is skipped so a participant never sees its own action echoed back.
type fanoutHub struct {
	mu    sync.Mutex
	games map[string]map[*websocket.Conn]subscription
}

type subscription struct {
	session  string
	channels map[string]struct{}
}

func newFanoutHub() *fanoutHub {
	return &fanoutHub{
		games: make(map[string]map[*websocket.Conn]subscription),
	}
}

func (h *fanoutHub) Add(gameID string, conn *websocket.Conn, session string, channels []string) {
	sub := subscription{
		session:  session,
		channels: make(map[string]struct{}, len(channels)),
	}
	for _, channel := range channels {
		sub.channels[channel] = struct{}{}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.games[gameID]
	if group == nil {
		group = make(map[*websocket.Conn]subscription)
		h.games[gameID] = group
	}
	group[conn] = sub
}

func (h *fanoutHub) Remove(gameID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.games[gameID]
	if group == nil {
		return
	}
	delete(group, conn)
	_ = conn.Close()
	if len(group) == 0 {
		delete(h.games, gameID)
	}
}

func (h *fanoutHub) Send(conn *websocket.Conn, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_ = conn.WriteMessage(websocket.TextMessage, data)
}

func (h *fanoutHub) Publish(gameID, channel string, message BroadcastMessage) error {
	envelope := broadcastEnvelope{
		Channel:          channel,
		GameID:           gameID,
		BroadcastMessage: message,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	h.mu.Lock()
	group := h.games[gameID]
	conns := make([]*websocket.Conn, 0, len(group))
	for conn, sub := range group {
		if _, subscribed := sub.channels[channel]; !subscribed {
			continue
		}
		if message.Session != "" && sub.session == message.Session {
			continue
		}
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.Remove(gameID, conn)
		}
	}
	return nil
}
