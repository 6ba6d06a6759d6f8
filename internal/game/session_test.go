package game

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tictactoe-service/internal/cache"
	"tictactoe-service/internal/models"
	"tictactoe-service/internal/ws"
)

// fakeRecorder implements Recorder in memory with finalize-once semantics.
type fakeRecorder struct {
	mu        sync.Mutex
	created   map[string]int
	winners   map[string]uuid.UUID
	finalized map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{
		created:   make(map[string]int),
		winners:   make(map[string]uuid.UUID),
		finalized: make(map[string]int),
	}
}

func (f *fakeRecorder) CreateIfAbsent(ctx context.Context, code string, px, po uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created[code]++
	return nil
}

func (f *fakeRecorder) Finalize(ctx context.Context, code string, winner, px, po uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalized[code]++
	if _, done := f.winners[code]; done {
		return false, nil
	}
	f.winners[code] = winner
	return true, nil
}

type fakeRooms struct {
	mu      sync.Mutex
	started []string
	deleted []string
}

func (f *fakeRooms) SetStarted(ctx context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, code)
	return nil
}

func (f *fakeRooms) Delete(ctx context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, code)
	return nil
}

type fakeUsers struct {
	byName map[string]*models.User
}

func (f *fakeUsers) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	u, ok := f.byName[username]
	if !ok {
		return nil, assert.AnError
	}
	return u, nil
}

type sessionFixture struct {
	mgr    *Manager
	store  *cache.MemoryStore
	games  *fakeRecorder
	rooms  *fakeRooms
	broker *ws.Broker
	alice  *models.User
	bob    *models.User
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	store := cache.NewMemoryStore()
	games := newFakeRecorder()
	rooms := &fakeRooms{}
	broker := ws.NewBroker(logger)
	alice := &models.User{ID: uuid.New(), Username: "alice"}
	bob := &models.User{ID: uuid.New(), Username: "bob"}
	users := &fakeUsers{byName: map[string]*models.User{"alice": alice, "bob": bob}}

	return &sessionFixture{
		mgr:    NewManager(store, games, rooms, users, broker, logger),
		store:  store,
		games:  games,
		rooms:  rooms,
		broker: broker,
		alice:  alice,
		bob:    bob,
	}
}

func drain(t *testing.T, sub *ws.Subscriber) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for {
		select {
		case data := <-sub.Out:
			var msg map[string]interface{}
			require.NoError(t, json.Unmarshal(data, &msg))
			out = append(out, msg)
		default:
			return out
		}
	}
}

func boolPtr(b bool) *bool { return &b }

func winningBoard() []string {
	return []string{"X", "X", "X", "O", "O", "", "", "", ""}
}

func TestReadyBroadcastAndLateJoinSync(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	const code = "ABC123"

	s1 := f.broker.Subscribe(ws.GameRoomChannel(code))
	s2 := f.broker.Subscribe(ws.GameRoomChannel(code))

	f.mgr.HandleMessage(ctx, code, RoomMessage{Type: MsgReady, IsReadyX: boolPtr(true)}, s1)
	f.mgr.HandleMessage(ctx, code, RoomMessage{Type: MsgReady, IsReadyO: boolPtr(true)}, s2)

	for _, sub := range []*ws.Subscriber{s1, s2} {
		msgs := drain(t, sub)
		require.Len(t, msgs, 2)
		assert.Equal(t, "ready_x", msgs[0]["type"])
		assert.Equal(t, true, msgs[0]["isReadyPlayer_x"])
		assert.Equal(t, "ready_o", msgs[1]["type"])
		assert.Equal(t, true, msgs[1]["isReadyPlayer_o"])
	}

	// A third, late client requests the latest state and privately receives
	// both ready flags.
	s3 := f.broker.Subscribe(ws.GameRoomChannel(code))
	f.mgr.HandleMessage(ctx, code, RoomMessage{Type: MsgLatestStateReq}, s3)
	msgs := drain(t, s3)
	require.Len(t, msgs, 2)
	assert.Equal(t, "ready_o", msgs[0]["type"])
	assert.Equal(t, "ready_x", msgs[1]["type"])

	// The request must not have been broadcast to the other players.
	assert.Empty(t, drain(t, s1))
	assert.Empty(t, drain(t, s2))
}

func TestGameStateIntermediateBroadcastAndCache(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	const code = "DEF456"

	sub := f.broker.Subscribe(ws.GameRoomChannel(code))
	squares := []string{"X", "", "", "", "", "", "", "", ""}
	f.mgr.HandleMessage(ctx, code, RoomMessage{
		Type: MsgGameState, Squares: squares,
		PlayerX: "alice", PlayerO: "bob", XIsNext: boolPtr(false),
	}, sub)

	msgs := drain(t, sub)
	require.Len(t, msgs, 1)
	assert.Equal(t, "game_state", msgs[0]["type"])
	assert.Equal(t, "", msgs[0]["winner"])

	// Nothing finalized, room untouched.
	assert.Empty(t, f.games.winners)
	assert.Empty(t, f.rooms.deleted)

	// Board cached for late-join sync.
	s2 := f.broker.Subscribe(ws.GameRoomChannel(code))
	f.mgr.HandleMessage(ctx, code, RoomMessage{Type: MsgLatestStateReq}, s2)
	replay := drain(t, s2)
	require.Len(t, replay, 1)
	assert.Equal(t, "latest_gamestate", replay[0]["type"])
	assert.Equal(t, false, replay[0]["xIsNext"])
}

func TestGameStateWinFinalizesOnce(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	const code = "GHI789"

	sub := f.broker.Subscribe(ws.GameRoomChannel(code))
	msg := RoomMessage{
		Type: MsgGameState, Squares: winningBoard(),
		PlayerX: "alice", PlayerO: "bob", XIsNext: boolPtr(false),
	}
	f.mgr.HandleMessage(ctx, code, msg, sub)

	msgs := drain(t, sub)
	require.Len(t, msgs, 1)
	assert.Equal(t, "game_state", msgs[0]["type"])
	assert.Equal(t, "alice", msgs[0]["winner"], "winner must be the resolved username")

	assert.Equal(t, f.alice.ID, f.games.winners[code])
	assert.Equal(t, []string{code}, f.rooms.deleted)

	// A second terminal update is a no-op on the record.
	f.mgr.HandleMessage(ctx, code, msg, sub)
	assert.Equal(t, 2, f.games.finalized[code])
	assert.Equal(t, f.alice.ID, f.games.winners[code], "winner must not be overwritten")
}

func TestTimeWinResolvesByUsername(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	const code = "JKL012"

	sub := f.broker.Subscribe(ws.GameRoomChannel(code))
	f.mgr.HandleMessage(ctx, code, RoomMessage{
		Type: MsgTimeWin, Winner: "bob",
		Squares: []string{"X", "O", "", "", "", "", "", "", ""},
		PlayerX: "alice", PlayerO: "bob", XIsNext: boolPtr(true),
	}, sub)

	msgs := drain(t, sub)
	require.Len(t, msgs, 1)
	assert.Equal(t, "bob", msgs[0]["winner"])
	assert.Equal(t, f.bob.ID, f.games.winners[code])
}

func TestTimeWinUnknownUsernameDropped(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	const code = "MNO345"

	sub := f.broker.Subscribe(ws.GameRoomChannel(code))
	f.mgr.HandleMessage(ctx, code, RoomMessage{
		Type: MsgTimeWin, Winner: "mallory",
		PlayerX: "alice", PlayerO: "bob",
	}, sub)

	assert.Empty(t, drain(t, sub))
	assert.Empty(t, f.games.winners)
	assert.Empty(t, f.rooms.deleted)
}

func TestGameStartedIsIdempotent(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	const code = "PQR678"

	msg := RoomMessage{Type: MsgGameStarted, PlayerX: "alice", PlayerO: "bob"}
	f.mgr.HandleMessage(ctx, code, msg, nil)
	f.mgr.HandleMessage(ctx, code, msg, nil)

	// Both signals hit the recorder; the conflict-free insert absorbs the
	// duplicate, and the room is flagged started each time without harm.
	assert.Equal(t, 2, f.games.created[code])
	assert.Equal(t, []string{code, code}, f.rooms.started)
}

func TestAcknowledgementIsPureRelay(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	const code = "STU901"

	s1 := f.broker.Subscribe(ws.GameRoomChannel(code))
	s2 := f.broker.Subscribe(ws.GameRoomChannel(code))
	f.mgr.HandleMessage(ctx, code, RoomMessage{
		Type: MsgAcknowledgement, PlayerX: "alice", PlayerO: "bob",
	}, s1)

	for _, sub := range []*ws.Subscriber{s1, s2} {
		msgs := drain(t, sub)
		require.Len(t, msgs, 1)
		assert.Equal(t, "acknowledgement", msgs[0]["type"])
		assert.Equal(t, "alice", msgs[0]["player_x"])
		assert.Equal(t, "bob", msgs[0]["player_o"])
	}
}

func TestUnknownMessageTypeIgnored(t *testing.T) {
	f := newSessionFixture(t)
	sub := f.broker.Subscribe(ws.GameRoomChannel("VWX234"))

	f.mgr.HandleMessage(context.Background(), "VWX234", RoomMessage{Type: "bogus"}, sub)

	assert.Empty(t, drain(t, sub))
	assert.Empty(t, f.games.created)
	assert.Empty(t, f.games.winners)
}
