package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"rankstream/internal/period"
)

// MemoryStore implements ScoreStore in process memory. It backs unit tests
// and works as a single-process fallback; ordering matches RedisStore.
type MemoryStore struct {
	mu      sync.RWMutex
	windows map[string]*memWindow
	ttls    TTLs
	now     func() time.Time
}

type memWindow struct {
	scores   map[string]int64
	expireAt time.Time // zero means never
}

// NewMemoryStore creates an in-memory score store.
func NewMemoryStore(ttls TTLs) *MemoryStore {
	return &MemoryStore{
		windows: make(map[string]*memWindow),
		ttls:    ttls,
		now:     time.Now,
	}
}

// SetClock overrides the expiry clock. Tests only.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// window returns the live window, dropping it first when expired.
// Caller must hold the lock.
func (s *MemoryStore) window(pt period.Type, key string, create bool) *memWindow {
	wk := windowKey(pt, key)

	w := s.windows[wk]
	if w != nil && !w.expireAt.IsZero() && s.now().After(w.expireAt) {
		delete(s.windows, wk)
		w = nil
	}
	if w == nil && create {
		w = &memWindow{scores: make(map[string]int64)}
		if ttl := s.ttls.For(pt); ttl > 0 {
			w.expireAt = s.now().Add(ttl)
		}
		s.windows[wk] = w
	}
	return w
}

func (s *MemoryStore) Increment(_ context.Context, pt period.Type, key, userID string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.window(pt, key, true)
	w.scores[userID] += delta
	return w.scores[userID], nil
}

func (s *MemoryStore) Seed(_ context.Context, pt period.Type, key string, members map[string]int64) error {
	if len(members) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.window(pt, key, true)
	for userID, score := range members {
		w.scores[userID] = score
	}
	return nil
}

// ranked returns all members best-first: score descending, equal scores by
// descending lexical userId (matching the Redis descending range order).
func (s *MemoryStore) ranked(pt period.Type, key string) []Member {
	w := s.window(pt, key, false)
	if w == nil {
		return nil
	}

	members := make([]Member, 0, len(w.scores))
	for userID, score := range w.scores {
		members = append(members, Member{UserID: userID, Score: score})
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].Score != members[j].Score {
			return members[i].Score > members[j].Score
		}
		return members[i].UserID > members[j].UserID
	})
	return members
}

func (s *MemoryStore) Range(_ context.Context, pt period.Type, key string, start, stop int64) ([]Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ranked := s.ranked(pt, key)
	if start < 0 {
		start = 0
	}
	if start >= int64(len(ranked)) || stop < start {
		return []Member{}, nil
	}
	if stop >= int64(len(ranked)) {
		stop = int64(len(ranked)) - 1
	}
	return ranked[start : stop+1], nil
}

func (s *MemoryStore) Rank(_ context.Context, pt period.Type, key, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, m := range s.ranked(pt, key) {
		if m.UserID == userID {
			return int64(i) + 1, nil
		}
	}
	return 0, ErrNotFound
}

func (s *MemoryStore) Score(_ context.Context, pt period.Type, key, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.window(pt, key, false)
	if w == nil {
		return 0, nil
	}
	return w.scores[userID], nil
}

func (s *MemoryStore) Size(_ context.Context, pt period.Type, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.window(pt, key, false)
	if w == nil {
		return 0, nil
	}
	return int64(len(w.scores)), nil
}

func (s *MemoryStore) CountAbove(_ context.Context, pt period.Type, key string, score int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.window(pt, key, false)
	if w == nil {
		return 0, nil
	}

	var count int64
	for _, v := range w.scores {
		if v > score {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}
