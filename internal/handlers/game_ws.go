// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/coder/websocket"

	"tictactoe-service/internal/game"
	"tictactoe-service/internal/ws"
)

// GameWSHandler serves /ws/game/{room_code}. Every frame is decoded and
// dispatched to the session manager; malformed payloads are logged and
// dropped without closing the connection.
func (s *Server) GameWSHandler(w http.ResponseWriter, r *http.Request) {
	roomCode := strings.Trim(strings.TrimPrefix(r.URL.Path, "/ws/game/"), "/")
	if roomCode == "" {
		http.Error(w, "missing room_code in path (/ws/game/{room_code})", http.StatusBadRequest)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // Adjust for production security.
	})
	if err != nil {
		s.Logger.Warnf("game websocket accept error for room %s: %v", roomCode, err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	channel := ws.GameRoomChannel(roomCode)
	sub := s.Broker.Subscribe(channel)
	defer s.Broker.Unsubscribe(channel, sub)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// A (re)connecting client keeps the room's cached state alive.
	s.Games.RefreshTTLs(ctx, roomCode)

	go writePump(ctx, c, sub, s.Logger)
	connectionEstablished(sub)
	s.Logger.Infof("Game connection established for room %s from %s", roomCode, r.RemoteAddr)

	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			logReadExit(s.Logger, "game", channel, err)
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		var msg game.RoomMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.Logger.Warnf("room %s: invalid json: %v", roomCode, err)
			continue
		}
		s.Games.HandleMessage(ctx, roomCode, msg, sub)
	}
}
