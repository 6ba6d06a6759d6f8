// internal/cache/redis.go
package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key layout and TTLs for the ephemeral coordination state. The relational
// store never sees any of these; they exist only so reconnecting clients can
// catch up and so the matchmaking sweep has a shared queue.
const (
	GlobalChatList = "recent_messages"

	ChatHistoryTTL     = time.Hour        // global chat history
	RoomChatHistoryTTL = 30 * time.Minute // per-room chat history
	RoomStateTTL       = time.Hour        // ready flags + latest board
	ChatHistoryMax     = 50               // entries kept per history list
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("cache: key not found")

// ScoredMember is a sorted-set member with its score.
type ScoredMember struct {
	Member string
	Score  float64
}

// Store is the narrow contract the core components use for ephemeral state:
// key/value with expiration, score-sorted sets (the matchmaking queue) and
// capped lists (chat history). RedisStore is the production implementation;
// MemoryStore backs tests.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Expire(ctx context.Context, key string, ttl time.Duration) error

	ZAdd(ctx context.Context, key, member string, score float64) error
	ZRem(ctx context.Context, key, member string) error
	ZCard(ctx context.Context, key string) (int64, error)
	ZRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error)
	ZRangeByScoreWithScores(ctx context.Context, key string, min, max float64) ([]ScoredMember, error)

	RPush(ctx context.Context, key, value string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LTrim(ctx context.Context, key string, start, stop int64) error
}

// QueueKey returns the sorted-set key holding the waiting players for a mode.
func QueueKey(gameMode string) string {
	return "game_queue_" + gameMode
}

// ReadyKey returns the key caching the per-room ready flags.
func ReadyKey(roomCode string) string {
	return "ready_" + roomCode
}

// BoardKey returns the key caching the room's latest board snapshot.
func BoardKey(roomCode string) string {
	return "latest_gamestate_" + roomCode
}

// RoomChatList returns the history list key for a room chat channel.
func RoomChatList(roomCode string) string {
	return "recent_messages_" + roomCode
}

// RedisStore implements Store on top of a go-redis client.
type RedisStore struct {
	rdb *redis.Client
}

// ConnectRedis initializes a Redis-backed Store from environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
//
// Call once at application startup; the client lives for the process.
func ConnectRedis() (*RedisStore, error) {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return &RedisStore{rdb: rdb}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	return val, err
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.rdb.Expire(ctx, key, ttl).Err()
}

func (s *RedisStore) ZAdd(ctx context.Context, key, member string, score float64) error {
	return s.rdb.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

func (s *RedisStore) ZRem(ctx context.Context, key, member string) error {
	return s.rdb.ZRem(ctx, key, member).Err()
}

func (s *RedisStore) ZCard(ctx context.Context, key string) (int64, error) {
	return s.rdb.ZCard(ctx, key).Result()
}

func (s *RedisStore) ZRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error) {
	zs, err := s.rdb.ZRangeWithScores(ctx, key, start, stop).Result()
	if err != nil {
		return nil, err
	}
	return fromRedisZ(zs), nil
}

func (s *RedisStore) ZRangeByScoreWithScores(ctx context.Context, key string, min, max float64) ([]ScoredMember, error) {
	zs, err := s.rdb.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min: strconv.FormatFloat(min, 'f', -1, 64),
		Max: strconv.FormatFloat(max, 'f', -1, 64),
	}).Result()
	if err != nil {
		return nil, err
	}
	return fromRedisZ(zs), nil
}

func (s *RedisStore) RPush(ctx context.Context, key, value string) error {
	return s.rdb.RPush(ctx, key, value).Err()
}

func (s *RedisStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return s.rdb.LRange(ctx, key, start, stop).Result()
}

func (s *RedisStore) LTrim(ctx context.Context, key string, start, stop int64) error {
	return s.rdb.LTrim(ctx, key, start, stop).Err()
}

func fromRedisZ(zs []redis.Z) []ScoredMember {
	members := make([]ScoredMember, 0, len(zs))
	for _, z := range zs {
		m, _ := z.Member.(string)
		members = append(members, ScoredMember{Member: m, Score: z.Score})
	}
	return members
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
