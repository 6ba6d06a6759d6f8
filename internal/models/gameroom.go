// internal/models/gameroom.go
package models

import "time"

// GameRoom represents an open (pre-game) room in the game_rooms table.
// At most one open room exists per host session key; the room is deleted
// once the game finishes or the stale-room sweep collects it.
type GameRoom struct {
	Code string `json:"code"` // unique 6-8 char uppercase alphanumeric
	Host string `json:"host"` // session key of the room's host

	// PlayerX and PlayerO are nil until a user takes the seat.
	PlayerX *User `json:"player_x,omitempty"`
	PlayerO *User `json:"player_o,omitempty"`

	// GameOption is 'r' (random), 'x' or 'o': which side the creator takes.
	// 'r' is resolved to 'x' or 'o' at creation time.
	GameOption string `json:"game_option"`

	GameStarted bool      `json:"game_started"`
	CreatedAt   time.Time `json:"created_at"`
}

// Seated reports whether the given user already occupies a seat in the room.
func (r *GameRoom) Seated(u *User) bool {
	if u == nil {
		return false
	}
	if r.PlayerX != nil && r.PlayerX.ID == u.ID {
		return true
	}
	if r.PlayerO != nil && r.PlayerO.ID == u.ID {
		return true
	}
	return false
}
