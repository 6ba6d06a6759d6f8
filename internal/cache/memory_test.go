package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMemoryStoreZSetOrdering verifies members come back sorted by score,
// matching the Redis semantics the matchmaking engine depends on.
func TestMemoryStoreZSetOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.ZAdd(ctx, "q", "carol", 1500))
	require.NoError(t, s.ZAdd(ctx, "q", "alice", 1000))
	require.NoError(t, s.ZAdd(ctx, "q", "bob", 1200))

	n, err := s.ZCard(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	members, err := s.ZRangeWithScores(ctx, "q", 0, 0)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "alice", members[0].Member)
	assert.Equal(t, float64(1000), members[0].Score)

	ranged, err := s.ZRangeByScoreWithScores(ctx, "q", 900, 1300)
	require.NoError(t, err)
	require.Len(t, ranged, 2)
	assert.Equal(t, "alice", ranged[0].Member)
	assert.Equal(t, "bob", ranged[1].Member)

	require.NoError(t, s.ZRem(ctx, "q", "bob"))
	n, _ = s.ZCard(ctx, "q")
	assert.Equal(t, int64(2), n)
}

func TestMemoryStoreListRanges(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for _, v := range []string{"a", "b", "c", "d"} {
		require.NoError(t, s.RPush(ctx, "l", v))
	}

	all, err := s.LRange(ctx, "l", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, all)

	// Trim to the last two entries, Redis-style.
	require.NoError(t, s.LTrim(ctx, "l", -2, -1))
	all, _ = s.LRange(ctx, "l", 0, -1)
	assert.Equal(t, []string{"c", "d"}, all)
}

func TestMemoryStoreGetMissing(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
