// internal/handlers/ws_pump.go
package handlers

import (
	"context"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"tictactoe-service/internal/ws"
)

const (
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
	pingTimeout  = 15 * time.Second
)

// writePump drains the subscriber's outbound queue onto the websocket and
// keeps the connection alive with periodic pings. It exits when the context
// is cancelled, the queue is closed or a write fails; the read loop detects
// the resulting closure and runs the shared cleanup path.
func writePump(ctx context.Context, c *websocket.Conn, sub *ws.Subscriber, logger *logrus.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-sub.Out:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Warnf("websocket write failed: %v", err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("websocket ping failed, assuming disconnect: %v", err)
				return
			}
		}
	}
}

// connectionEstablished is the first frame every websocket endpoint sends.
func connectionEstablished(sub *ws.Subscriber) {
	sub.Send(map[string]string{"type": "connection_established"})
}
