package service

import (
	"context"
	"fmt"

	"rankstream/internal/models"
	"rankstream/internal/period"
	"rankstream/internal/store"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// DisplayNameResolver resolves user ids to display names. Ids missing from
// the result belong to deleted accounts; their entries are skipped, never
// surfaced with missing data.
type DisplayNameResolver interface {
	GetDisplayNames(ctx context.Context, userIDs []string) (map[string]string, error)
}

// RankingService answers paginated rank queries and per-user standings
// directly from the volatile store.
type RankingService struct {
	store store.ScoreStore
	names DisplayNameResolver
}

// NewRankingService creates a new ranking query service
func NewRankingService(st store.ScoreStore, names DisplayNameResolver) *RankingService {
	return &RankingService{
		store: st,
		names: names,
	}
}

// GetPage returns one leaderboard page. An empty periodKey means the current
// window of that period type. Ranks are absolute positions within the
// window, not page-relative.
func (s *RankingService) GetPage(ctx context.Context, pt period.Type, periodKey string, page, size int) (*models.LeaderboardPage, error) {
	if !pt.Valid() {
		return nil, fmt.Errorf("unsupported period type: %q", pt)
	}
	if periodKey == "" {
		periodKey = pt.CurrentKey()
	}
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	total, err := s.store.Size(ctx, pt, periodKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get window size: %w", err)
	}

	start := int64(page) * int64(size)
	members, err := s.store.Range(ctx, pt, periodKey, start, start+int64(size)-1)
	if err != nil {
		return nil, fmt.Errorf("failed to get ranking range: %w", err)
	}

	entries, err := s.resolveEntries(ctx, members, int(start))
	if err != nil {
		return nil, err
	}

	totalPages := int((total + int64(size) - 1) / int64(size))
	if totalPages < 1 {
		totalPages = 1
	}

	return &models.LeaderboardPage{
		PeriodType:        pt.External(),
		PeriodKey:         periodKey,
		Entries:           entries,
		TotalParticipants: total,
		Page:              page,
		Size:              size,
		TotalPages:        totalPages,
		IsFirst:           page == 0,
		IsLast:            page >= totalPages-1,
	}, nil
}

// GetUserStanding returns one user's rank, score and the participant count
// for a window. Rank is nil when the user has no entry.
func (s *RankingService) GetUserStanding(ctx context.Context, pt period.Type, periodKey, userID string) (*models.Standing, error) {
	if !pt.Valid() {
		return nil, fmt.Errorf("unsupported period type: %q", pt)
	}
	if periodKey == "" {
		periodKey = pt.CurrentKey()
	}

	standing := &models.Standing{}

	rank, err := s.store.Rank(ctx, pt, periodKey, userID)
	if err != nil && err != store.ErrNotFound {
		return nil, fmt.Errorf("failed to get rank: %w", err)
	}
	if err == nil {
		r := int(rank)
		standing.Rank = &r
	}

	standing.Score, err = s.store.Score(ctx, pt, periodKey, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get score: %w", err)
	}

	standing.TotalParticipants, err = s.store.Size(ctx, pt, periodKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get window size: %w", err)
	}

	return standing, nil
}

// GetAllPeriodsStanding aggregates the user's standing across the current
// weekly, monthly and all-time windows.
func (s *RankingService) GetAllPeriodsStanding(ctx context.Context, userID string) (*models.AllStandings, error) {
	all := &models.AllStandings{}

	for _, pt := range period.All {
		standing, err := s.GetUserStanding(ctx, pt, pt.CurrentKey(), userID)
		if err != nil {
			return nil, err
		}
		switch pt {
		case period.Weekly:
			all.Weekly = *standing
		case period.Monthly:
			all.Monthly = *standing
		case period.AllTime:
			all.Alltime = *standing
		}
	}

	return all, nil
}

// TopN returns the first n entries of a window with display names resolved.
func (s *RankingService) TopN(ctx context.Context, pt period.Type, periodKey string, n int) ([]models.RankingEntry, error) {
	members, err := s.store.Range(ctx, pt, periodKey, 0, int64(n)-1)
	if err != nil {
		return nil, fmt.Errorf("failed to get top %d: %w", n, err)
	}
	return s.resolveEntries(ctx, members, 0)
}

// resolveEntries attaches display names, skipping entries whose user no
// longer resolves. Absolute ranks are computed before skipping so the rank
// column stays truthful.
func (s *RankingService) resolveEntries(ctx context.Context, members []store.Member, offset int) ([]models.RankingEntry, error) {
	entries := make([]models.RankingEntry, 0, len(members))
	if len(members) == 0 {
		return entries, nil
	}

	userIDs := make([]string, len(members))
	for i, m := range members {
		userIDs[i] = m.UserID
	}

	names, err := s.names.GetDisplayNames(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve display names: %w", err)
	}

	for i, m := range members {
		name, ok := names[m.UserID]
		if !ok {
			continue // stale entry for a deleted account
		}
		entries = append(entries, models.RankingEntry{
			Rank:        offset + i + 1,
			UserID:      m.UserID,
			DisplayName: name,
			Score:       m.Score,
		})
	}
	return entries, nil
}
