// internal/matchmaking/queue.go
package matchmaking

import (
	"context"
	"encoding/json"
	"fmt"

	"tictactoe-service/internal/cache"
)

// DefaultMode is the only queue mode currently offered.
const DefaultMode = "tictactoe"

// Ticket is the queue membership record for one waiting player. Host is the
// player's session key, needed later to hand room ownership to whoever is
// seated as X. The ticket JSON is the sorted-set member; the player's skill
// rating is the score.
type Ticket struct {
	PlayerID string `json:"player_id"`
	Host     string `json:"host"`
}

func (t Ticket) encode() (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("failed to encode queue ticket: %w", err)
	}
	return string(data), nil
}

// Queue is the skill-ordered waiting pool for one game mode, backed by a
// sorted set in the ephemeral store.
type Queue struct {
	store cache.Store
	mode  string
}

func NewQueue(store cache.Store, mode string) *Queue {
	return &Queue{store: store, mode: mode}
}

// Enqueue adds the player to the waiting pool at their current skill rating.
// Re-enqueueing the same ticket only updates the score.
func (q *Queue) Enqueue(ctx context.Context, playerID string, skillRating int, host string) error {
	member, err := Ticket{PlayerID: playerID, Host: host}.encode()
	if err != nil {
		return err
	}
	return q.store.ZAdd(ctx, cache.QueueKey(q.mode), member, float64(skillRating))
}

// Dequeue removes the player's ticket. Removing an absent ticket is a no-op,
// so disconnect handlers can call it unconditionally.
func (q *Queue) Dequeue(ctx context.Context, playerID, host string) error {
	member, err := Ticket{PlayerID: playerID, Host: host}.encode()
	if err != nil {
		return err
	}
	return q.store.ZRem(ctx, cache.QueueKey(q.mode), member)
}
