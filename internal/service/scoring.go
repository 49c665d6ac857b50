package service

import (
	"context"
	"log"
	"time"

	"rankstream/internal/eventbus"
	"rankstream/internal/metrics"
	"rankstream/internal/models"
	"rankstream/internal/period"
	"rankstream/internal/store"
	"rankstream/internal/worker"
)

// TopK is the broadcast threshold: only changes inside the first TopK
// positions of a window produce a push event.
const TopK = 10

// ScoringService applies point awards to every live window and publishes a
// ranking-change event when an award alters a window's top-10. Failures on
// this path degrade to eventual consistency; they never fail the award.
type ScoringService struct {
	store    store.ScoreStore
	rankings *RankingService
	bus      eventbus.Bus
	pool     *worker.Pool
}

// NewScoringService creates the scoring/award service.
func NewScoringService(st store.ScoreStore, rankings *RankingService, bus eventbus.Bus, pool *worker.Pool) *ScoringService {
	return &ScoringService{
		store:    st,
		rankings: rankings,
		bus:      bus,
		pool:     pool,
	}
}

// Award credits points to the user in all three current windows.
// Non-positive point values are a silent no-op. The volatile-store update is
// atomic per window; there is no atomicity across windows.
func (s *ScoringService) Award(ctx context.Context, userID string, points int64) {
	if points <= 0 {
		return
	}

	// Authoritative cumulative total, written out-of-band.
	if err := s.pool.Submit(worker.Task{
		Kind:   worker.TaskAddPoints,
		UserID: userID,
		Points: points,
	}); err != nil {
		log.Printf("scoring: total-points write not queued for %s: %v", userID, err)
	}

	for _, pt := range period.All {
		key := pt.CurrentKey()

		newScore, err := s.store.Increment(ctx, pt, key, userID, points)
		if err != nil {
			// Store unavailable: the award itself still succeeds, the
			// window catches up once the store recovers.
			log.Printf("scoring: increment failed for %s in %s/%s: %v", userID, pt, key, err)
			metrics.IncrementFailures.WithLabelValues(pt.External()).Inc()
			continue
		}
		metrics.IncrementsTotal.WithLabelValues(pt.External()).Inc()

		event, err := s.detectChange(ctx, pt, key, userID, points, newScore)
		if err != nil {
			log.Printf("scoring: change detection failed for %s/%s: %v", pt, key, err)
			continue
		}
		if event == nil {
			continue
		}

		if err := s.bus.Publish(ctx, *event); err != nil {
			log.Printf("scoring: publish failed for %s/%s: %v", pt, key, err)
			continue
		}
		metrics.BroadcastsTotal.WithLabelValues(pt.External()).Inc()
	}
}

// detectChange is a pure function over store reads: it returns an event when
// the increment left the user inside the window's top-10, nil otherwise.
//
// previousRank is reconstructed by counting members above the pre-increment
// score, which can be off under concurrent writes between the increment and
// this read. It is carried as a best-effort UI hint only.
func (s *ScoringService) detectChange(ctx context.Context, pt period.Type, key, userID string, delta, newScore int64) (*models.RankingChangeEvent, error) {
	rank, err := s.store.Rank(ctx, pt, key, userID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	if rank > TopK {
		return nil, nil
	}

	var previousRank *int
	if previousScore := newScore - delta; previousScore > 0 {
		above, err := s.store.CountAbove(ctx, pt, key, previousScore)
		if err != nil {
			return nil, err
		}
		r := int(above) + 1
		previousRank = &r
	}

	top10, err := s.rankings.TopN(ctx, pt, key, TopK)
	if err != nil {
		return nil, err
	}

	// The updated user sits in the top-10 by definition; when their identity
	// no longer resolves the event still carries the new top-10 shape.
	var updated *models.UpdatedUser
	for _, entry := range top10 {
		if entry.UserID == userID {
			updated = &models.UpdatedUser{
				UserID:       userID,
				DisplayName:  entry.DisplayName,
				PreviousRank: previousRank,
				CurrentRank:  int(rank),
				ScoreDelta:   delta,
				NewScore:     newScore,
			}
			break
		}
	}

	return &models.RankingChangeEvent{
		EventType:   models.EventRankingUpdate,
		PeriodType:  pt.External(),
		PeriodKey:   key,
		Top10:       top10,
		UpdatedUser: updated,
		Timestamp:   time.Now(),
	}, nil
}
