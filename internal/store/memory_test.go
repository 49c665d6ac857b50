package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rankstream/internal/period"
)

func newTestStore() *MemoryStore {
	return NewMemoryStore(TTLs{
		Weekly:  14 * 24 * time.Hour,
		Monthly: 62 * 24 * time.Hour,
	})
}

func TestIncrementSumsDeltas(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	deltas := []int64{50, 60, 1, 39}
	var sum, got int64
	var err error
	for _, d := range deltas {
		got, err = s.Increment(ctx, period.AllTime, period.AllTimeKey, "u1", d)
		require.NoError(t, err)
		sum += d
	}

	assert.Equal(t, sum, got)

	score, err := s.Score(ctx, period.AllTime, period.AllTimeKey, "u1")
	require.NoError(t, err)
	assert.Equal(t, sum, score)
}

func TestIncrementConcurrent(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	const goroutines = 16
	const perGoroutine = 100

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				_, err := s.Increment(ctx, period.Weekly, "2026-W10", "u1", 1)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	score, err := s.Score(ctx, period.Weekly, "2026-W10", "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(goroutines*perGoroutine), score)
}

func TestRangeOrderingAndTieBreak(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	scores := map[string]int64{
		"alice": 300,
		"bob":   500,
		"carol": 300,
		"dave":  100,
	}
	for u, sc := range scores {
		_, err := s.Increment(ctx, period.Monthly, "2026-01", u, sc)
		require.NoError(t, err)
	}

	members, err := s.Range(ctx, period.Monthly, "2026-01", 0, 9)
	require.NoError(t, err)
	require.Len(t, members, 4)

	// score descending, equal scores by descending lexical userId
	assert.Equal(t, "bob", members[0].UserID)
	assert.Equal(t, "carol", members[1].UserID)
	assert.Equal(t, "alice", members[2].UserID)
	assert.Equal(t, "dave", members[3].UserID)

	for i := 1; i < len(members); i++ {
		assert.GreaterOrEqual(t, members[i-1].Score, members[i].Score)
	}
}

func TestRangeBounds(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	for i, u := range []string{"a", "b", "c"} {
		_, err := s.Increment(ctx, period.AllTime, period.AllTimeKey, u, int64(100-i))
		require.NoError(t, err)
	}

	members, err := s.Range(ctx, period.AllTime, period.AllTimeKey, 1, 10)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	members, err = s.Range(ctx, period.AllTime, period.AllTimeKey, 5, 9)
	require.NoError(t, err)
	assert.Empty(t, members)

	members, err = s.Range(ctx, period.AllTime, "missing", 0, 9)
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestRankAndCountAbove(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	_, err := s.Increment(ctx, period.Weekly, "2026-W01", "top", 900)
	require.NoError(t, err)
	_, err = s.Increment(ctx, period.Weekly, "2026-W01", "mid", 500)
	require.NoError(t, err)
	_, err = s.Increment(ctx, period.Weekly, "2026-W01", "low", 100)
	require.NoError(t, err)

	rank, err := s.Rank(ctx, period.Weekly, "2026-W01", "mid")
	require.NoError(t, err)
	assert.Equal(t, int64(2), rank)

	_, err = s.Rank(ctx, period.Weekly, "2026-W01", "ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	count, err := s.CountAbove(ctx, period.Weekly, "2026-W01", 500)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = s.CountAbove(ctx, period.Weekly, "2026-W01", 99)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestScoreAbsentIsZero(t *testing.T) {
	s := newTestStore()

	score, err := s.Score(context.Background(), period.Monthly, "2026-02", "nobody")
	require.NoError(t, err)
	assert.Zero(t, score)
}

func TestWindowExpiry(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	base := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	current := base
	s.SetClock(func() time.Time { return current })

	_, err := s.Increment(ctx, period.Weekly, "2026-W02", "u1", 10)
	require.NoError(t, err)
	_, err = s.Increment(ctx, period.AllTime, period.AllTimeKey, "u1", 10)
	require.NoError(t, err)

	// a later write must not refresh the creation TTL
	current = base.Add(13 * 24 * time.Hour)
	_, err = s.Increment(ctx, period.Weekly, "2026-W02", "u1", 5)
	require.NoError(t, err)

	current = base.Add(15 * 24 * time.Hour)

	size, err := s.Size(ctx, period.Weekly, "2026-W02")
	require.NoError(t, err)
	assert.Zero(t, size, "weekly window should have expired")

	size, err = s.Size(ctx, period.AllTime, period.AllTimeKey)
	require.NoError(t, err)
	assert.Equal(t, int64(1), size, "alltime never expires")
}

func TestSeedAppliesTTL(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	current := base
	s.SetClock(func() time.Time { return current })

	err := s.Seed(ctx, period.Monthly, "2026-03", map[string]int64{"a": 5, "b": 9})
	require.NoError(t, err)

	members, err := s.Range(ctx, period.Monthly, "2026-03", 0, 9)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "b", members[0].UserID)

	current = base.Add(63 * 24 * time.Hour)
	size, err := s.Size(ctx, period.Monthly, "2026-03")
	require.NoError(t, err)
	assert.Zero(t, size)
}
