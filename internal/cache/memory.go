// internal/cache/memory.go
package cache

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used by tests. It mirrors the Redis
// semantics the components rely on: zset members ordered by (score, member)
// and list ranges with negative stop indices. TTLs are recorded but never
// enforced; tests assert behavior, not expiry timing.
type MemoryStore struct {
	mu   sync.Mutex
	kv   map[string]string
	zs   map[string][]ScoredMember
	ls   map[string][]string
	ttls map[string]time.Duration
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		kv:   make(map[string]string),
		zs:   make(map[string][]ScoredMember),
		ls:   make(map[string][]string),
		ttls: make(map[string]time.Duration),
	}
}

func (m *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.kv[key]
	if !ok {
		return "", ErrNotFound
	}
	return val, nil
}

func (m *MemoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kv[key] = value
	if ttl > 0 {
		m.ttls[key] = ttl
	}
	return nil
}

func (m *MemoryStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ttls[key] = ttl
	return nil
}

// TTL reports the last TTL recorded for a key (test helper, not part of Store).
func (m *MemoryStore) TTL(key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ttls[key]
}

func (m *MemoryStore) ZAdd(ctx context.Context, key, member string, score float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.zs[key]
	for i := range set {
		if set[i].Member == member {
			set[i].Score = score
			m.resort(key, set)
			return nil
		}
	}
	set = append(set, ScoredMember{Member: member, Score: score})
	m.resort(key, set)
	return nil
}

func (m *MemoryStore) resort(key string, set []ScoredMember) {
	sort.SliceStable(set, func(i, j int) bool {
		if set[i].Score != set[j].Score {
			return set[i].Score < set[j].Score
		}
		return set[i].Member < set[j].Member
	})
	m.zs[key] = set
}

func (m *MemoryStore) ZRem(ctx context.Context, key, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.zs[key]
	for i := range set {
		if set[i].Member == member {
			m.zs[key] = append(set[:i:i], set[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *MemoryStore) ZCard(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.zs[key])), nil
}

func (m *MemoryStore) ZRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.zs[key]
	lo, hi := rangeBounds(int64(len(set)), start, stop)
	out := make([]ScoredMember, 0, hi-lo)
	out = append(out, set[lo:hi]...)
	return out, nil
}

func (m *MemoryStore) ZRangeByScoreWithScores(ctx context.Context, key string, min, max float64) ([]ScoredMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ScoredMember
	for _, sm := range m.zs[key] {
		if sm.Score >= min && sm.Score <= max {
			out = append(out, sm)
		}
	}
	return out, nil
}

func (m *MemoryStore) RPush(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ls[key] = append(m.ls[key], value)
	return nil
}

func (m *MemoryStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.ls[key]
	lo, hi := rangeBounds(int64(len(list)), start, stop)
	out := make([]string, 0, hi-lo)
	out = append(out, list[lo:hi]...)
	return out, nil
}

func (m *MemoryStore) LTrim(ctx context.Context, key string, start, stop int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.ls[key]
	lo, hi := rangeBounds(int64(len(list)), start, stop)
	m.ls[key] = append([]string(nil), list[lo:hi]...)
	return nil
}

// rangeBounds converts Redis-style start/stop (stop inclusive, negatives
// counted from the end) to Go slice bounds.
func rangeBounds(n, start, stop int64) (int64, int64) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop || start >= n {
		return 0, 0
	}
	return start, stop + 1
}
