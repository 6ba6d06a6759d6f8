// internal/game/session.go
package game

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tictactoe-service/internal/cache"
	"tictactoe-service/internal/models"
	"tictactoe-service/internal/ws"
)

// RoomMessage is the tagged union of messages exchanged on a game room
// channel. Type selects the variant; unused fields stay zero.
type RoomMessage struct {
	Type string `json:"type"`

	Squares []string `json:"squares,omitempty"`
	Winner  string   `json:"winner,omitempty"`
	PlayerX string   `json:"player_x,omitempty"`
	PlayerO string   `json:"player_o,omitempty"`
	XIsNext *bool    `json:"xIsNext,omitempty"`

	IsReadyX *bool `json:"isReadyPlayer_x,omitempty"`
	IsReadyO *bool `json:"isReadyPlayer_o,omitempty"`
}

// Room message types accepted from clients.
const (
	MsgGameState       = "game_state"
	MsgTimeWin         = "time_win"
	MsgGameStarted     = "game_started"
	MsgReady           = "ready"
	MsgLatestStateReq  = "latest_gamestate_request"
	MsgAcknowledgement = "acknowledgement"
)

// readyState is the cached per-room ready flags. Pointers distinguish
// "never signaled" from an explicit value.
type readyState struct {
	X *bool `json:"isReadyPlayer_x"`
	O *bool `json:"isReadyPlayer_o"`
}

// boardSnapshot is the cached latest board, used only for late-join catch-up.
type boardSnapshot struct {
	Squares []string `json:"squares"`
	XIsNext *bool    `json:"xIsNext"`
}

// gameStateEvent is the broadcast form of a board update. Winner carries the
// resolved username once the game is decided, otherwise it is empty.
type gameStateEvent struct {
	Type    string   `json:"type"`
	Squares []string `json:"squares"`
	Winner  string   `json:"winner"`
	PlayerX string   `json:"player_x"`
	PlayerO string   `json:"player_o"`
	XIsNext *bool    `json:"xIsNext"`
}

// Recorder is the durable store for played games.
type Recorder interface {
	CreateIfAbsent(ctx context.Context, code string, playerX, playerO uuid.UUID) error
	// Finalize records the winner once; it reports false when the game was
	// already finished.
	Finalize(ctx context.Context, code string, winner, playerX, playerO uuid.UUID) (bool, error)
}

// UserResolver resolves usernames carried in room messages to user records.
type UserResolver interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// RoomTracker is the slice of room persistence the session machine needs:
// marking a room started and removing it when the game ends.
type RoomTracker interface {
	SetStarted(ctx context.Context, code string) error
	Delete(ctx context.Context, code string) error
}

// Manager is the per-room authoritative state machine. Each room code moves
// Open -> Started -> Finished; Started is entered idempotently on the first
// game_started signal and Finished exactly once, guarded by a per-code lock
// plus the Recorder's conditional update.
type Manager struct {
	store  cache.Store
	games  Recorder
	rooms  RoomTracker
	users  UserResolver
	broker *ws.Broker
	logger *logrus.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewManager(store cache.Store, games Recorder, rooms RoomTracker, users UserResolver, broker *ws.Broker, logger *logrus.Logger) *Manager {
	return &Manager{
		store:  store,
		games:  games,
		rooms:  rooms,
		users:  users,
		broker: broker,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// roomLock returns the mutex serializing state transitions for one code.
func (m *Manager) roomLock(code string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[code]
	if !ok {
		l = &sync.Mutex{}
		m.locks[code] = l
	}
	return l
}

// RefreshTTLs re-arms the expiration on the room's cached ready flags and
// board snapshot. Called whenever a client connects to the room.
func (m *Manager) RefreshTTLs(ctx context.Context, roomCode string) {
	if err := m.store.Expire(ctx, cache.ReadyKey(roomCode), cache.RoomStateTTL); err != nil {
		m.logger.Warnf("room %s: failed to refresh ready TTL: %v", roomCode, err)
	}
	if err := m.store.Expire(ctx, cache.BoardKey(roomCode), cache.RoomStateTTL); err != nil {
		m.logger.Warnf("room %s: failed to refresh board TTL: %v", roomCode, err)
	}
}

// HandleMessage processes one decoded room message. sub is the sender's own
// subscription, used for private replies; broadcasts go through the broker
// to the whole room, sender included. Unknown types are logged and ignored.
func (m *Manager) HandleMessage(ctx context.Context, roomCode string, msg RoomMessage, sub *ws.Subscriber) {
	lock := m.roomLock(roomCode)
	lock.Lock()
	defer lock.Unlock()

	switch msg.Type {
	case MsgGameState:
		m.handleGameState(ctx, roomCode, msg)
	case MsgTimeWin:
		m.handleTimeWin(ctx, roomCode, msg)
	case MsgGameStarted:
		m.handleGameStarted(ctx, roomCode, msg)
	case MsgReady:
		m.handleReady(ctx, roomCode, msg)
	case MsgLatestStateReq:
		m.handleLatestStateRequest(ctx, roomCode, sub)
	case MsgAcknowledgement:
		// Pure liveness relay between the two players; never persisted.
		m.broker.Publish(ws.GameRoomChannel(roomCode), map[string]interface{}{
			"type":     MsgAcknowledgement,
			"player_x": msg.PlayerX,
			"player_o": msg.PlayerO,
		})
	default:
		m.logger.Warnf("room %s: unknown message type: %q", roomCode, msg.Type)
	}
}

// handleGameStarted creates the durable played-game row for the code. The
// first signal wins; any later one finds the row already present and is a
// no-op, so both clients may safely announce the start.
func (m *Manager) handleGameStarted(ctx context.Context, roomCode string, msg RoomMessage) {
	playerX, playerO := m.resolvePlayers(ctx, msg)
	if playerX == nil || playerO == nil {
		m.logger.Errorf("room %s: cannot start game, player lookup failed", roomCode)
		return
	}

	if err := m.games.CreateIfAbsent(ctx, roomCode, playerX.ID, playerO.ID); err != nil {
		m.logger.Errorf("room %s: failed to record game start: %v", roomCode, err)
		return
	}
	if err := m.rooms.SetStarted(ctx, roomCode); err != nil {
		m.logger.Warnf("room %s: failed to flag room as started: %v", roomCode, err)
	}
}

// handleReady persists the side's ready flag and re-broadcasts it to the
// whole room, sender included, so late subscribers can sync afterwards.
func (m *Manager) handleReady(ctx context.Context, roomCode string, msg RoomMessage) {
	if msg.IsReadyX != nil && *msg.IsReadyX {
		m.storeReady(ctx, roomCode, "x")
		m.broadcastReady(roomCode, "x")
	}
	if msg.IsReadyO != nil && *msg.IsReadyO {
		m.storeReady(ctx, roomCode, "o")
		m.broadcastReady(roomCode, "o")
	}
}

func (m *Manager) storeReady(ctx context.Context, roomCode, side string) {
	key := cache.ReadyKey(roomCode)
	var state readyState
	if existing, err := m.store.Get(ctx, key); err == nil {
		if err := json.Unmarshal([]byte(existing), &state); err != nil {
			m.logger.Warnf("room %s: discarding unreadable ready state: %v", roomCode, err)
			state = readyState{}
		}
	} else if err != cache.ErrNotFound {
		m.logger.Errorf("room %s: failed to read ready state: %v", roomCode, err)
		return
	}

	ready := true
	if side == "x" {
		state.X = &ready
	} else {
		state.O = &ready
	}

	data, _ := json.Marshal(state)
	if err := m.store.Set(ctx, key, string(data), cache.RoomStateTTL); err != nil {
		m.logger.Errorf("room %s: failed to store ready state: %v", roomCode, err)
	}
}

func (m *Manager) broadcastReady(roomCode, side string) {
	m.broker.Publish(ws.GameRoomChannel(roomCode), map[string]interface{}{
		"type":                   "ready_" + side,
		"isReadyPlayer_" + side: true,
	})
}

// handleGameState evaluates the submitted board. Without a winner the state
// is relayed as-is and cached last-write-wins; with a winner the game is
// finalized and the terminal state carries the winner's username.
func (m *Manager) handleGameState(ctx context.Context, roomCode string, msg RoomMessage) {
	mark := CalculateWinner(msg.Squares)
	if mark == "" {
		m.broadcastGameState(roomCode, msg, "")
		m.cacheBoard(ctx, roomCode, msg)
		return
	}

	playerX, playerO := m.resolvePlayers(ctx, msg)
	if playerX == nil || playerO == nil {
		m.logger.Errorf("room %s: aborting win processing, player lookup failed", roomCode)
		return
	}

	winner, loser := playerX, playerO
	if mark == MarkO {
		winner, loser = playerO, playerX
	}

	m.finishGame(ctx, roomCode, winner, loser, playerX, playerO)
	m.cacheBoard(ctx, roomCode, msg)
	m.broadcastGameState(roomCode, msg, winner.Username)
}

// handleTimeWin finalizes the game on a clock-expiry signal. The winner is
// matched by username against the room's players; a username matching
// neither side is dropped without a reply.
func (m *Manager) handleTimeWin(ctx context.Context, roomCode string, msg RoomMessage) {
	if msg.Winner == "" {
		m.logger.Errorf("room %s: time_win without winner username", roomCode)
		return
	}

	playerX, playerO := m.resolvePlayers(ctx, msg)
	if playerX == nil || playerO == nil {
		m.logger.Errorf("room %s: aborting time win, player lookup failed", roomCode)
		return
	}

	var winner, loser *models.User
	switch msg.Winner {
	case playerX.Username:
		winner, loser = playerX, playerO
	case playerO.Username:
		winner, loser = playerO, playerX
	default:
		m.logger.Errorf("room %s: time_win winner %q matches neither player", roomCode, msg.Winner)
		return
	}

	m.finishGame(ctx, roomCode, winner, loser, playerX, playerO)
	m.cacheBoard(ctx, roomCode, msg)
	m.broadcastGameState(roomCode, msg, winner.Username)
}

// finishGame runs the shared terminal path: finalize the played game
// (first finalize wins), apply the rating hook, and tear down the room.
func (m *Manager) finishGame(ctx context.Context, roomCode string, winner, loser, playerX, playerO *models.User) {
	finalized, err := m.games.Finalize(ctx, roomCode, winner.ID, playerX.ID, playerO.ID)
	if err != nil {
		m.logger.Errorf("room %s: failed to finalize played game: %v", roomCode, err)
	} else if !finalized {
		m.logger.Warnf("room %s: played game already finalized, ignoring", roomCode)
	} else {
		m.adjustRatings(winner, loser)
	}

	if err := m.rooms.Delete(ctx, roomCode); err != nil {
		m.logger.Warnf("room %s: failed to delete game room: %v", roomCode, err)
	}
}

// adjustRatings is the extension point for a future rating system. Outcomes
// currently leave skill ratings untouched.
func (m *Manager) adjustRatings(winner, loser *models.User) {
	m.logger.Debugf("rating adjustment skipped for %s / %s", winner.Username, loser.Username)
}

// handleLatestStateRequest replies privately with whatever cached ready
// flags and board snapshot exist, letting a reconnecting client resume
// without replaying history.
func (m *Manager) handleLatestStateRequest(ctx context.Context, roomCode string, sub *ws.Subscriber) {
	if sub == nil {
		return
	}

	if raw, err := m.store.Get(ctx, cache.ReadyKey(roomCode)); err == nil {
		var state readyState
		if err := json.Unmarshal([]byte(raw), &state); err != nil {
			m.logger.Warnf("room %s: unreadable cached ready state: %v", roomCode, err)
		} else {
			if state.O != nil && *state.O {
				sub.Send(map[string]interface{}{"type": "ready_o", "isReadyPlayer_o": true})
			}
			if state.X != nil && *state.X {
				sub.Send(map[string]interface{}{"type": "ready_x", "isReadyPlayer_x": true})
			}
		}
	} else if err != cache.ErrNotFound {
		m.logger.Errorf("room %s: failed to read cached ready state: %v", roomCode, err)
	}

	if raw, err := m.store.Get(ctx, cache.BoardKey(roomCode)); err == nil {
		var snap boardSnapshot
		if err := json.Unmarshal([]byte(raw), &snap); err != nil {
			m.logger.Warnf("room %s: unreadable cached board: %v", roomCode, err)
			return
		}
		sub.Send(map[string]interface{}{
			"type":    "latest_gamestate",
			"squares": snap.Squares,
			"xIsNext": snap.XIsNext,
		})
	} else if err != cache.ErrNotFound {
		m.logger.Errorf("room %s: failed to read cached board: %v", roomCode, err)
	}
}

// cacheBoard overwrites the room's board snapshot; last write wins.
func (m *Manager) cacheBoard(ctx context.Context, roomCode string, msg RoomMessage) {
	if msg.XIsNext == nil {
		m.logger.Warnf("room %s: game state without xIsNext", roomCode)
	}
	data, _ := json.Marshal(boardSnapshot{Squares: msg.Squares, XIsNext: msg.XIsNext})
	if err := m.store.Set(ctx, cache.BoardKey(roomCode), string(data), cache.RoomStateTTL); err != nil {
		m.logger.Errorf("room %s: failed to cache board: %v", roomCode, err)
	}
}

func (m *Manager) broadcastGameState(roomCode string, msg RoomMessage, winnerUsername string) {
	m.broker.Publish(ws.GameRoomChannel(roomCode), gameStateEvent{
		Type:    MsgGameState,
		Squares: msg.Squares,
		Winner:  winnerUsername,
		PlayerX: msg.PlayerX,
		PlayerO: msg.PlayerO,
		XIsNext: msg.XIsNext,
	})
}

// resolvePlayers looks up both seat usernames from the message. Either
// lookup failing yields nils; callers treat that as an aborted transition.
func (m *Manager) resolvePlayers(ctx context.Context, msg RoomMessage) (*models.User, *models.User) {
	if msg.PlayerX == "" || msg.PlayerO == "" {
		m.logger.Error("both player_x and player_o usernames are required")
		return nil, nil
	}
	playerX, err := m.users.GetByUsername(ctx, msg.PlayerX)
	if err != nil {
		m.logger.Errorf("failed to resolve player_x %q: %v", msg.PlayerX, err)
		return nil, nil
	}
	playerO, err := m.users.GetByUsername(ctx, msg.PlayerO)
	if err != nil {
		m.logger.Errorf("failed to resolve player_o %q: %v", msg.PlayerO, err)
		return nil, nil
	}
	return playerX, playerO
}
