// internal/handlers/queue_ws.go
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/coder/websocket"

	"tictactoe-service/internal/ws"
)

// QueueWSHandler serves /ws/queue/{token}/{host}. The connection itself is
// the queue membership: connecting enqueues the player at their skill rating
// and disconnecting dequeues them, so an abandoned tab can never match. The
// socket carries only the connection_established frame and an eventual
// match_found notification.
func (s *Server) QueueWSHandler(w http.ResponseWriter, r *http.Request) {
	pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/ws/queue/"), "/")
	if len(pathParts) < 2 || pathParts[0] == "" || pathParts[1] == "" {
		http.Error(w, "missing token or host (/ws/queue/{token}/{host})", http.StatusBadRequest)
		return
	}
	token, host := pathParts[0], pathParts[1]

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // Adjust for production security.
	})
	if err != nil {
		s.Logger.Warnf("queue websocket accept error: %v", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	user, _, err := s.resolveToken(r, token)
	if err != nil {
		s.Logger.Warnf("queue connection rejected: %v", err)
		c.Close(InvalidAuthTokenError, "authentication failed")
		return
	}

	channel := ws.QueueMemberChannel(user.ID.String())
	sub := s.Broker.Subscribe(channel)
	defer s.Broker.Unsubscribe(channel, sub)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := s.Queue.Enqueue(ctx, user.ID.String(), user.SkillRating, host); err != nil {
		s.Logger.Errorf("failed to enqueue user %s: %v", user.ID, err)
		c.Close(websocket.StatusInternalError, "failed to join queue")
		return
	}
	defer func() {
		// The connection's own context is gone by now.
		if err := s.Queue.Dequeue(context.Background(), user.ID.String(), host); err != nil {
			s.Logger.Warnf("failed to dequeue user %s: %v", user.ID, err)
		}
	}()

	go writePump(ctx, c, sub, s.Logger)
	connectionEstablished(sub)
	s.Logger.Infof("User %s (%s) joined the matchmaking queue", user.Username, r.RemoteAddr)

	// The client sends nothing meaningful while queued; the read loop exists
	// to detect disconnect.
	for {
		if _, _, err := c.Read(ctx); err != nil {
			logReadExit(s.Logger, "queue", channel, err)
			return
		}
	}
}
