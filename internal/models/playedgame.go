// internal/models/playedgame.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// PlayedGame is the durable record of a game, keyed by the room code that
// spawned it. The row is created on the first game_started signal and
// finalized (winner set, is_finished=true) exactly once.
type PlayedGame struct {
	Code    string `json:"code"`
	PlayerX *User  `json:"player_x,omitempty"`
	PlayerO *User  `json:"player_o,omitempty"`

	WinnerID   uuid.UUID `json:"winner_id,omitempty"`
	IsFinished bool      `json:"is_finished"`
	CreatedAt  time.Time `json:"created_at"`
}
