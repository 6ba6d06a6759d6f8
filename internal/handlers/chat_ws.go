// internal/handlers/chat_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"tictactoe-service/internal/chat"
)

// ChatWSHandler serves both the global chat websocket (/ws/chat) and the
// per-room variant (/ws/chat/{room_code}). Identity is optional; messages
// from unauthenticated connections are attributed to Anonymous.
func (s *Server) ChatWSHandler(w http.ResponseWriter, r *http.Request) {
	roomCode := strings.Trim(strings.TrimPrefix(r.URL.Path, "/ws/chat"), "/")

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // Adjust for production security.
	})
	if err != nil {
		s.Logger.Warnf("chat websocket accept error: %v", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	sender := ""
	if user, _, err := s.identityFromRequest(r); err == nil {
		sender = user.Username
	}

	var relay *chat.Relay
	if roomCode == "" {
		relay = chat.NewGlobalRelay(s.Store, s.Broker, s.Logger)
	} else {
		relay = chat.NewRoomRelay(s.Store, s.Broker, roomCode, s.Logger)
	}

	sub := s.Broker.Subscribe(relay.Channel())
	defer s.Broker.Unsubscribe(relay.Channel(), sub)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go writePump(ctx, c, sub, s.Logger)

	connectionEstablished(sub)
	s.Logger.Infof("Chat connection established on %s from %s", relay.Channel(), r.RemoteAddr)

	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			logReadExit(s.Logger, "chat", relay.Channel(), err)
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		var msg chat.InboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.Logger.Warnf("chat %s: invalid json: %v", relay.Channel(), err)
			continue
		}
		relay.HandleMessage(ctx, msg, sender, sub)
	}
}

// logReadExit classifies a read-loop error so routine disconnects do not log
// as warnings.
func logReadExit(logger *logrus.Logger, kind, channel string, err error) {
	status := websocket.CloseStatus(err)
	switch {
	case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
		logger.Infof("%s websocket on %s closed normally", kind, channel)
	case strings.Contains(err.Error(), "context canceled"):
		logger.Infof("%s websocket on %s context canceled", kind, channel)
	default:
		logger.Warnf("%s websocket on %s read error: %v", kind, channel, err)
	}
}
