package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rankstream/internal/period"
	"rankstream/internal/store"
)

// fakeResolver resolves display names from a fixed map. Ids absent from the
// map behave like deleted accounts.
type fakeResolver struct {
	names map[string]string
}

func (f *fakeResolver) GetDisplayNames(_ context.Context, userIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(userIDs))
	for _, id := range userIDs {
		if name, ok := f.names[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

func testTTLs() store.TTLs {
	return store.TTLs{Weekly: 14 * 24 * time.Hour, Monthly: 62 * 24 * time.Hour}
}

func seedUsers(t *testing.T, st store.ScoreStore, pt period.Type, key string, n int) map[string]string {
	t.Helper()
	names := make(map[string]string, n)
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("user-%03d", i)
		names[id] = fmt.Sprintf("User %03d", i)
		// user-001 has the highest score
		_, err := st.Increment(context.Background(), pt, key, id, int64(1000-i*10))
		require.NoError(t, err)
	}
	return names
}

func TestGetPageAbsoluteRanks(t *testing.T) {
	st := store.NewMemoryStore(testTTLs())
	names := seedUsers(t, st, period.Weekly, "2026-W05", 45)
	svc := NewRankingService(st, &fakeResolver{names: names})

	page, err := svc.GetPage(context.Background(), period.Weekly, "2026-W05", 1, 20)
	require.NoError(t, err)

	assert.Equal(t, "weekly", page.PeriodType)
	assert.Equal(t, "2026-W05", page.PeriodKey)
	assert.Equal(t, int64(45), page.TotalParticipants)
	assert.Equal(t, 3, page.TotalPages)
	assert.False(t, page.IsFirst)
	assert.False(t, page.IsLast)
	require.Len(t, page.Entries, 20)

	// absolute positions, not page-relative
	assert.Equal(t, 21, page.Entries[0].Rank)
	assert.Equal(t, "user-021", page.Entries[0].UserID)
	assert.Equal(t, "User 021", page.Entries[0].DisplayName)
	assert.Equal(t, 40, page.Entries[19].Rank)
}

func TestGetPagePartitionsWithoutOverlapOrGap(t *testing.T) {
	st := store.NewMemoryStore(testTTLs())
	names := seedUsers(t, st, period.Monthly, "2026-02", 40)
	svc := NewRankingService(st, &fakeResolver{names: names})

	ctx := context.Background()
	p0, err := svc.GetPage(ctx, period.Monthly, "2026-02", 0, 20)
	require.NoError(t, err)
	p1, err := svc.GetPage(ctx, period.Monthly, "2026-02", 1, 20)
	require.NoError(t, err)

	seen := make(map[string]bool)
	lastRank := 0
	for _, e := range append(p0.Entries, p1.Entries...) {
		assert.False(t, seen[e.UserID], "user %s appeared twice", e.UserID)
		seen[e.UserID] = true
		assert.Equal(t, lastRank+1, e.Rank, "ranks must be contiguous")
		lastRank = e.Rank
	}
	assert.Len(t, seen, 40)
	assert.True(t, p0.IsFirst)
	assert.True(t, p1.IsLast)
}

func TestGetPageScoresNonIncreasing(t *testing.T) {
	st := store.NewMemoryStore(testTTLs())
	names := seedUsers(t, st, period.AllTime, period.AllTimeKey, 30)
	svc := NewRankingService(st, &fakeResolver{names: names})

	page, err := svc.GetPage(context.Background(), period.AllTime, "", 0, 30)
	require.NoError(t, err)
	for i := 1; i < len(page.Entries); i++ {
		assert.GreaterOrEqual(t, page.Entries[i-1].Score, page.Entries[i].Score)
	}
}

func TestGetPageSkipsDeletedAccounts(t *testing.T) {
	st := store.NewMemoryStore(testTTLs())
	names := seedUsers(t, st, period.Weekly, "2026-W07", 5)
	delete(names, "user-003")
	svc := NewRankingService(st, &fakeResolver{names: names})

	page, err := svc.GetPage(context.Background(), period.Weekly, "2026-W07", 0, 10)
	require.NoError(t, err)
	require.Len(t, page.Entries, 4)

	// the deleted account's slot is skipped, ranks of the rest are untouched
	ranks := []int{}
	for _, e := range page.Entries {
		assert.NotEqual(t, "user-003", e.UserID)
		ranks = append(ranks, e.Rank)
	}
	assert.Equal(t, []int{1, 2, 4, 5}, ranks)
}

func TestGetPageEmptyWindow(t *testing.T) {
	st := store.NewMemoryStore(testTTLs())
	svc := NewRankingService(st, &fakeResolver{names: map[string]string{}})

	page, err := svc.GetPage(context.Background(), period.Weekly, "2026-W09", 0, 20)
	require.NoError(t, err)
	assert.Empty(t, page.Entries)
	assert.Equal(t, int64(0), page.TotalParticipants)
	assert.Equal(t, 1, page.TotalPages)
	assert.True(t, page.IsFirst)
	assert.True(t, page.IsLast)
}

func TestGetUserStanding(t *testing.T) {
	st := store.NewMemoryStore(testTTLs())
	names := seedUsers(t, st, period.Monthly, "2026-04", 10)
	svc := NewRankingService(st, &fakeResolver{names: names})

	ctx := context.Background()
	standing, err := svc.GetUserStanding(ctx, period.Monthly, "2026-04", "user-004")
	require.NoError(t, err)
	require.NotNil(t, standing.Rank)
	assert.Equal(t, 4, *standing.Rank)
	assert.Equal(t, int64(960), standing.Score)
	assert.Equal(t, int64(10), standing.TotalParticipants)

	// absent user: nil rank, zero score
	standing, err = svc.GetUserStanding(ctx, period.Monthly, "2026-04", "ghost")
	require.NoError(t, err)
	assert.Nil(t, standing.Rank)
	assert.Zero(t, standing.Score)
	assert.Equal(t, int64(10), standing.TotalParticipants)
}

func TestGetAllPeriodsStanding(t *testing.T) {
	st := store.NewMemoryStore(testTTLs())
	ctx := context.Background()

	for _, pt := range period.All {
		_, err := st.Increment(ctx, pt, pt.CurrentKey(), "u1", 100)
		require.NoError(t, err)
	}
	_, err := st.Increment(ctx, period.AllTime, period.AllTimeKey, "u2", 500)
	require.NoError(t, err)

	svc := NewRankingService(st, &fakeResolver{names: map[string]string{"u1": "One", "u2": "Two"}})

	all, err := svc.GetAllPeriodsStanding(ctx, "u1")
	require.NoError(t, err)

	require.NotNil(t, all.Weekly.Rank)
	assert.Equal(t, 1, *all.Weekly.Rank)
	require.NotNil(t, all.Monthly.Rank)
	assert.Equal(t, 1, *all.Monthly.Rank)
	require.NotNil(t, all.Alltime.Rank)
	assert.Equal(t, 2, *all.Alltime.Rank)
	assert.Equal(t, int64(2), all.Alltime.TotalParticipants)
}

func TestGetPageRejectsInvalidPeriod(t *testing.T) {
	st := store.NewMemoryStore(testTTLs())
	svc := NewRankingService(st, &fakeResolver{names: map[string]string{}})

	_, err := svc.GetPage(context.Background(), period.Type("DAILY"), "", 0, 20)
	require.Error(t, err)
}
