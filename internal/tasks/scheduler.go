// internal/tasks/scheduler.go
package tasks

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Matcher runs one matchmaking cycle over a mode's queue.
type Matcher interface {
	ProcessQueue(ctx context.Context, mode string) error
}

// Sweeper deletes unstarted rooms older than maxAge.
type Sweeper interface {
	SweepStale(ctx context.Context, maxAge time.Duration) error
}

// RunMatchmaking drives the pairing engine on a fixed interval until the
// context is cancelled. A failed cycle is logged and the next tick retries.
func RunMatchmaking(ctx context.Context, engine Matcher, mode string, interval time.Duration, logger *logrus.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Infof("Matchmaking loop started for mode %q, interval %s", mode, interval)
	for {
		select {
		case <-ctx.Done():
			logger.Info("Matchmaking loop stopped")
			return
		case <-ticker.C:
			if err := engine.ProcessQueue(ctx, mode); err != nil {
				logger.Errorf("matchmaking cycle failed: %v", err)
			}
		}
	}
}

// RunRoomSweep periodically removes abandoned unstarted rooms until the
// context is cancelled.
func RunRoomSweep(ctx context.Context, registry Sweeper, interval, maxAge time.Duration, logger *logrus.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Infof("Room sweep loop started, interval %s, max age %s", interval, maxAge)
	for {
		select {
		case <-ctx.Done():
			logger.Info("Room sweep loop stopped")
			return
		case <-ticker.C:
			if err := registry.SweepStale(ctx, maxAge); err != nil {
				logger.Errorf("room sweep failed: %v", err)
			}
		}
	}
}
