// internal/matchmaking/engine.go
package matchmaking

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"math/big"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tictactoe-service/internal/cache"
	"tictactoe-service/internal/models"
	"tictactoe-service/internal/ws"
)

// UserDirectory resolves queued player IDs to user records.
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// RoomCreator opens a room for a matched pair. The host session key belongs
// to whichever player was seated as X.
type RoomCreator interface {
	CreateMatched(ctx context.Context, playerX, playerO *models.User, host string) (*models.GameRoom, error)
}

// matchFound is the private notification sent to both matched players.
type matchFound struct {
	Type         string `json:"type"`
	GameRoomCode string `json:"gameRoomCode"`
}

// Engine pairs waiting players by skill proximity. One cycle repeatedly takes
// the lowest-rated ticket and matches it with the nearest different player
// within the configured rating window.
type Engine struct {
	store      cache.Store
	users      UserDirectory
	rooms      RoomCreator
	broker     *ws.Broker
	skillRange float64
	logger     *logrus.Logger
}

func NewEngine(store cache.Store, users UserDirectory, rooms RoomCreator, broker *ws.Broker, skillRange int, logger *logrus.Logger) *Engine {
	return &Engine{
		store:      store,
		users:      users,
		rooms:      rooms,
		broker:     broker,
		skillRange: float64(skillRange),
		logger:     logger,
	}
}

// ProcessQueue runs one matchmaking cycle over the mode's queue. It pairs
// players until fewer than two remain or the lowest-rated player has no
// opponent in range. Tickets leave the queue only once their room exists, so
// a failed pair stays queued for the next cycle.
func (e *Engine) ProcessQueue(ctx context.Context, mode string) error {
	key := cache.QueueKey(mode)

	for {
		waiting, err := e.store.ZCard(ctx, key)
		if err != nil {
			return err
		}
		if waiting < 2 {
			return nil
		}

		lowest, err := e.store.ZRangeWithScores(ctx, key, 0, 0)
		if err != nil {
			return err
		}
		if len(lowest) == 0 {
			return nil
		}

		seeker, ok := e.decodeTicket(ctx, key, lowest[0].Member)
		if !ok {
			continue
		}

		opponent, found, err := e.findOpponent(ctx, key, seeker, lowest[0].Score)
		if err != nil {
			return err
		}
		if !found {
			// The lowest-rated player has nobody in range; everyone above
			// them waits for the next cycle too.
			return nil
		}

		if err := e.pair(ctx, key, lowest[0], opponent); err != nil {
			e.logger.Errorf("matchmaking: failed to pair %s with %s: %v",
				seeker.PlayerID, opponent.ticket.PlayerID, err)
			return err
		}
	}
}

type candidate struct {
	member string
	ticket Ticket
}

// findOpponent scans the rating window around score for the first ticket
// belonging to a different player.
func (e *Engine) findOpponent(ctx context.Context, key string, seeker Ticket, score float64) (candidate, bool, error) {
	inRange, err := e.store.ZRangeByScoreWithScores(ctx, key, score-e.skillRange, score+e.skillRange)
	if err != nil {
		return candidate{}, false, err
	}
	for _, entry := range inRange {
		var t Ticket
		if err := json.Unmarshal([]byte(entry.Member), &t); err != nil {
			e.logger.Warnf("matchmaking: skipping unreadable ticket in %s: %v", key, err)
			continue
		}
		if t.PlayerID != seeker.PlayerID {
			return candidate{member: entry.Member, ticket: t}, true, nil
		}
	}
	return candidate{}, false, nil
}

// pair creates the matched room, removes both tickets and notifies both
// players on their private queue channels.
func (e *Engine) pair(ctx context.Context, key string, seekerEntry cache.ScoredMember, opp candidate) error {
	var seeker Ticket
	if err := json.Unmarshal([]byte(seekerEntry.Member), &seeker); err != nil {
		return err
	}

	first, second := seeker, opp.ticket
	if coinFlip() {
		first, second = second, first
	}

	playerX, err := e.resolve(ctx, first.PlayerID)
	if err != nil {
		return err
	}
	playerO, err := e.resolve(ctx, second.PlayerID)
	if err != nil {
		return err
	}

	room, err := e.rooms.CreateMatched(ctx, playerX, playerO, first.Host)
	if err != nil {
		return err
	}

	for _, member := range []string{seekerEntry.Member, opp.member} {
		if err := e.store.ZRem(ctx, key, member); err != nil {
			e.logger.Warnf("matchmaking: failed to remove matched ticket: %v", err)
		}
	}

	e.logger.WithFields(logrus.Fields{
		"code":     room.Code,
		"player_x": playerX.Username,
		"player_o": playerO.Username,
	}).Info("Matched players into game room")

	notice := matchFound{Type: "match_found", GameRoomCode: room.Code}
	e.broker.Publish(ws.QueueMemberChannel(seeker.PlayerID), notice)
	e.broker.Publish(ws.QueueMemberChannel(opp.ticket.PlayerID), notice)
	return nil
}

func (e *Engine) resolve(ctx context.Context, playerID string) (*models.User, error) {
	id, err := uuid.Parse(playerID)
	if err != nil {
		return nil, err
	}
	return e.users.GetByID(ctx, id)
}

// decodeTicket parses a queue member, evicting any entry that fails to parse
// so it cannot wedge the loop.
func (e *Engine) decodeTicket(ctx context.Context, key, member string) (Ticket, bool) {
	var t Ticket
	if err := json.Unmarshal([]byte(member), &t); err != nil {
		e.logger.Warnf("matchmaking: evicting unreadable ticket from %s: %v", key, err)
		if remErr := e.store.ZRem(ctx, key, member); remErr != nil {
			e.logger.Errorf("matchmaking: failed to evict ticket: %v", remErr)
		}
		return Ticket{}, false
	}
	return t, true
}

func coinFlip() bool {
	n, err := rand.Int(rand.Reader, big.NewInt(2))
	if err != nil {
		return false
	}
	return n.Int64() == 0
}
