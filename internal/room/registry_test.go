package room

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tictactoe-service/internal/models"
)

// memStore is an in-memory Store used across registry tests.
type memStore struct {
	mu    sync.Mutex
	rooms map[string]*models.GameRoom
}

func newMemStore() *memStore {
	return &memStore{rooms: make(map[string]*models.GameRoom)}
}

func (m *memStore) Insert(ctx context.Context, gr *models.GameRoom) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *gr
	m.rooms[gr.Code] = &clone
	return nil
}

func (m *memStore) GetByCode(ctx context.Context, code string) (*models.GameRoom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gr, ok := m.rooms[code]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *gr
	return &clone, nil
}

func (m *memStore) GetByHost(ctx context.Context, host string) (*models.GameRoom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, gr := range m.rooms {
		if gr.Host == host {
			clone := *gr
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) UpdateSeats(ctx context.Context, gr *models.GameRoom) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[gr.Code]; !ok {
		return ErrNotFound
	}
	clone := *gr
	m.rooms[gr.Code] = &clone
	return nil
}

func (m *memStore) SetStarted(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gr, ok := m.rooms[code]; ok {
		gr.GameStarted = true
	}
	return nil
}

func (m *memStore) Delete(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, code)
	return nil
}

func (m *memStore) List(ctx context.Context) ([]models.GameRoom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.GameRoom, 0, len(m.rooms))
	for _, gr := range m.rooms {
		out = append(out, *gr)
	}
	return out, nil
}

func (m *memStore) CodeInUse(ctx context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rooms[code]
	return ok, nil
}

func (m *memStore) DeleteStaleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for code, gr := range m.rooms {
		if !gr.GameStarted && gr.CreatedAt.Before(cutoff) {
			delete(m.rooms, code)
			n++
		}
	}
	return n, nil
}

func newTestRegistry() (*Registry, *memStore) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	store := newMemStore()
	return NewRegistry(store, logger), store
}

func newUser(username string) *models.User {
	return &models.User{ID: uuid.New(), Username: username, SkillRating: 1000}
}

func TestCreateSeatsCreatorByOption(t *testing.T) {
	reg, _ := newTestRegistry()
	ctx := context.Background()

	alice := newUser("alice")
	gr, err := reg.Create(ctx, "host-a", OptionX, alice)
	require.NoError(t, err)
	assert.Len(t, gr.Code, CodeLength)
	require.NotNil(t, gr.PlayerX)
	assert.Equal(t, alice.ID, gr.PlayerX.ID)
	assert.Nil(t, gr.PlayerO)

	bob := newUser("bob")
	gr, err = reg.Create(ctx, "host-b", OptionO, bob)
	require.NoError(t, err)
	assert.Nil(t, gr.PlayerX)
	require.NotNil(t, gr.PlayerO)
	assert.Equal(t, bob.ID, gr.PlayerO.ID)
}

func TestCreateResolvesRandomOption(t *testing.T) {
	reg, _ := newTestRegistry()
	gr, err := reg.Create(context.Background(), "host-a", OptionRandom, newUser("alice"))
	require.NoError(t, err)
	assert.Contains(t, []string{OptionX, OptionO}, gr.GameOption)
	assert.True(t, (gr.PlayerX != nil) != (gr.PlayerO != nil), "exactly one seat must be filled")
}

func TestCreateRejectsInvalidOption(t *testing.T) {
	reg, _ := newTestRegistry()
	_, err := reg.Create(context.Background(), "host-a", "z", newUser("alice"))
	assert.Error(t, err)
}

func TestCreateReplacesHostsPreviousRoom(t *testing.T) {
	reg, store := newTestRegistry()
	ctx := context.Background()
	alice := newUser("alice")

	first, err := reg.Create(ctx, "host-a", OptionX, alice)
	require.NoError(t, err)
	second, err := reg.Create(ctx, "host-a", OptionX, alice)
	require.NoError(t, err)
	assert.NotEqual(t, first.Code, second.Code)

	_, err = store.GetByCode(ctx, first.Code)
	assert.ErrorIs(t, err, ErrNotFound, "previous room must be gone")

	rooms, err := reg.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, rooms, 1)
}

func TestJoinSeatsGuestAndReportsHost(t *testing.T) {
	reg, _ := newTestRegistry()
	ctx := context.Background()
	alice, bob := newUser("alice"), newUser("bob")

	created, err := reg.Create(ctx, "host-a", OptionX, alice)
	require.NoError(t, err)

	gr, isHost, err := reg.Join(ctx, created.Code, bob, "host-b")
	require.NoError(t, err)
	assert.False(t, isHost)
	require.NotNil(t, gr.PlayerO)
	assert.Equal(t, bob.ID, gr.PlayerO.ID)

	// The creator rejoining keeps the X seat and is recognized as host.
	gr, isHost, err = reg.Join(ctx, created.Code, alice, "host-a")
	require.NoError(t, err)
	assert.True(t, isHost)
	assert.Equal(t, alice.ID, gr.PlayerX.ID)
	assert.Equal(t, bob.ID, gr.PlayerO.ID)
}

func TestJoinFullRoomConflicts(t *testing.T) {
	reg, _ := newTestRegistry()
	ctx := context.Background()

	created, err := reg.Create(ctx, "host-a", OptionX, newUser("alice"))
	require.NoError(t, err)
	_, _, err = reg.Join(ctx, created.Code, newUser("bob"), "host-b")
	require.NoError(t, err)

	_, _, err = reg.Join(ctx, created.Code, newUser("carol"), "host-c")
	assert.ErrorIs(t, err, ErrRoomFull)
}

func TestJoinUnknownCode(t *testing.T) {
	reg, _ := newTestRegistry()
	_, _, err := reg.Join(context.Background(), "NOSUCH", newUser("alice"), "host-a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteForbiddenForNonSeatedUser(t *testing.T) {
	reg, _ := newTestRegistry()
	ctx := context.Background()

	created, err := reg.Create(ctx, "host-a", OptionX, newUser("alice"))
	require.NoError(t, err)

	err = reg.Delete(ctx, created.Code, newUser("mallory"))
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestNewCodeAvoidsCollisions(t *testing.T) {
	reg, store := newTestRegistry()
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := reg.NewCode(ctx, CodeLength)
		require.NoError(t, err)
		assert.Len(t, code, CodeLength)
		assert.False(t, seen[code], "codes must be unique among open rooms")
		seen[code] = true
		require.NoError(t, store.Insert(ctx, &models.GameRoom{Code: code}))
	}
}

func TestSweepStaleRemovesOldUnstartedRooms(t *testing.T) {
	reg, store := newTestRegistry()
	ctx := context.Background()

	old := &models.GameRoom{Code: "OLD001", CreatedAt: time.Now().Add(-24 * time.Hour)}
	started := &models.GameRoom{Code: "RUN001", CreatedAt: time.Now().Add(-24 * time.Hour), GameStarted: true}
	fresh := &models.GameRoom{Code: "NEW001", CreatedAt: time.Now()}
	for _, gr := range []*models.GameRoom{old, started, fresh} {
		require.NoError(t, store.Insert(ctx, gr))
	}

	require.NoError(t, reg.SweepStale(ctx, 12*time.Hour))

	_, err := store.GetByCode(ctx, "OLD001")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetByCode(ctx, "RUN001")
	assert.NoError(t, err, "started rooms must survive the sweep")
	_, err = store.GetByCode(ctx, "NEW001")
	assert.NoError(t, err)
}
