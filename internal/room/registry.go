// internal/room/registry.go
package room

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/sirupsen/logrus"

	"tictactoe-service/internal/models"
)

var (
	// ErrNotFound is returned when no open room matches the given code.
	ErrNotFound = errors.New("room not found")
	// ErrRoomFull is returned when both seats are held by two other users.
	ErrRoomFull = errors.New("room is already full")
	// ErrForbidden is returned when the requester occupies neither seat.
	ErrForbidden = errors.New("user does not occupy a seat in the room")
)

// Game options: which side the room creator takes.
const (
	OptionRandom = "r"
	OptionX      = "x"
	OptionO      = "o"
)

// CodeLength is the default room code length. Codes are uppercase
// alphanumeric, 6-8 characters.
const CodeLength = 6

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Store is the persistence contract for open game rooms. The pgx-backed
// implementation lives in internal/database; tests use an in-memory fake.
type Store interface {
	Insert(ctx context.Context, room *models.GameRoom) error
	GetByCode(ctx context.Context, code string) (*models.GameRoom, error)
	GetByHost(ctx context.Context, host string) (*models.GameRoom, error)
	UpdateSeats(ctx context.Context, room *models.GameRoom) error
	SetStarted(ctx context.Context, code string) error
	Delete(ctx context.Context, code string) error
	List(ctx context.Context) ([]models.GameRoom, error)
	// CodeInUse reports whether the code collides with an open room or a
	// recorded played game.
	CodeInUse(ctx context.Context, code string) (bool, error)
	DeleteStaleBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Registry manages the lifecycle of open (pre-game) rooms: creation, seat
// assignment on join, owner-only deletion and the stale-room sweep.
type Registry struct {
	store  Store
	logger *logrus.Logger
}

func NewRegistry(store Store, logger *logrus.Logger) *Registry {
	return &Registry{store: store, logger: logger}
}

// Create opens a new room hosted by the given session key, seating the
// creator according to gameOption ("r" is resolved by a coin flip here).
// If the host already owns an open room it is deleted first; last write wins.
func (r *Registry) Create(ctx context.Context, host, gameOption string, user *models.User) (*models.GameRoom, error) {
	existing, err := r.store.GetByHost(ctx, host)
	if err == nil {
		if delErr := r.store.Delete(ctx, existing.Code); delErr != nil {
			return nil, fmt.Errorf("replacing existing room %s: %w", existing.Code, delErr)
		}
		r.logger.WithFields(logrus.Fields{"code": existing.Code, "host": host}).
			Info("Replaced host's previous open room")
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	opt := gameOption
	if opt == OptionRandom {
		if coinFlip() {
			opt = OptionX
		} else {
			opt = OptionO
		}
	}
	if opt != OptionX && opt != OptionO {
		return nil, fmt.Errorf("invalid game option %q", gameOption)
	}

	code, err := r.NewCode(ctx, CodeLength)
	if err != nil {
		return nil, err
	}

	room := &models.GameRoom{
		Code:       code,
		Host:       host,
		GameOption: opt,
		CreatedAt:  time.Now(),
	}
	if opt == OptionX {
		room.PlayerX = user
	} else {
		room.PlayerO = user
	}

	if err := r.store.Insert(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

// CreateMatched opens a room for a matched pair. The host is the session
// key of whichever player ended up as X.
func (r *Registry) CreateMatched(ctx context.Context, playerX, playerO *models.User, host string) (*models.GameRoom, error) {
	code, err := r.NewCode(ctx, CodeLength)
	if err != nil {
		return nil, err
	}
	room := &models.GameRoom{
		Code:       code,
		Host:       host,
		PlayerX:    playerX,
		PlayerO:    playerO,
		GameOption: OptionX,
		CreatedAt:  time.Now(),
	}
	if err := r.store.Insert(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

// Join seats the requesting user in the room identified by code. A user who
// already holds a seat keeps it. Returns the updated room and whether the
// requester's session key owns the room.
func (r *Registry) Join(ctx context.Context, code string, user *models.User, sessionKey string) (*models.GameRoom, bool, error) {
	room, err := r.store.GetByCode(ctx, code)
	if err != nil {
		return nil, false, err
	}

	if room.PlayerX != nil && room.PlayerO != nil && !room.Seated(user) {
		return nil, false, ErrRoomFull
	}

	changed := false
	if room.PlayerX == nil && (room.PlayerO == nil || room.PlayerO.ID != user.ID) {
		room.PlayerX = user
		changed = true
	} else if room.PlayerO == nil && (room.PlayerX == nil || room.PlayerX.ID != user.ID) {
		room.PlayerO = user
		changed = true
	}
	if changed {
		if err := r.store.UpdateSeats(ctx, room); err != nil {
			return nil, false, err
		}
	}

	return room, room.Host == sessionKey, nil
}

// Delete removes the room, permitted only to a user occupying a seat.
func (r *Registry) Delete(ctx context.Context, code string, user *models.User) error {
	room, err := r.store.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	if !room.Seated(user) {
		return ErrForbidden
	}
	return r.store.Delete(ctx, code)
}

// ListAll returns a snapshot of every open room, for lobby browsing.
func (r *Registry) ListAll(ctx context.Context) ([]models.GameRoom, error) {
	return r.store.List(ctx)
}

// MarkStarted flags the room so the stale sweep leaves it alone.
func (r *Registry) MarkStarted(ctx context.Context, code string) error {
	return r.store.SetStarted(ctx, code)
}

// SweepStale deletes unstarted rooms older than maxAge.
func (r *Registry) SweepStale(ctx context.Context, maxAge time.Duration) error {
	n, err := r.store.DeleteStaleBefore(ctx, time.Now().Add(-maxAge))
	if err != nil {
		return err
	}
	if n > 0 {
		r.logger.Infof("Deleted %d unstarted rooms older than %s", n, maxAge)
	}
	return nil
}

// NewCode generates an uppercase alphanumeric code of the given length that
// collides with neither an open room nor a recorded played game.
func (r *Registry) NewCode(ctx context.Context, length int) (string, error) {
	for {
		code, err := randomCode(length)
		if err != nil {
			return "", err
		}
		inUse, err := r.store.CodeInUse(ctx, code)
		if err != nil {
			return "", err
		}
		if !inUse {
			return code, nil
		}
	}
}

func randomCode(length int) (string, error) {
	buf := make([]byte, length)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

func coinFlip() bool {
	n, err := rand.Int(rand.Reader, big.NewInt(2))
	if err != nil {
		return false
	}
	return n.Int64() == 0
}
