package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"rankstream/internal/metrics"
	"rankstream/internal/models"
	"rankstream/internal/period"
	"rankstream/internal/store"
	"rankstream/internal/worker"
)

// DurableSource is the slice of the durable repository the reconciler reads.
type DurableSource interface {
	GetAllUsers(ctx context.Context) ([]models.User, error)
	GetSnapshots(ctx context.Context, periodType, periodKey string) ([]models.SnapshotRecord, error)
}

// Reconciler periodically copies the volatile ranking state into durable
// storage and rebuilds the volatile state once at startup. It only reads the
// volatile store and writes durable rows out-of-band, so it never blocks
// the increment path. A crash between a write and the next sync loses at
// most one interval of WEEKLY/MONTHLY increments; ALLTIME is rebuilt from
// the authoritative cumulative totals and loses nothing.
type Reconciler struct {
	store    store.ScoreStore
	source   DurableSource
	pool     *worker.Pool
	interval time.Duration
	limit    int
}

// NewReconciler creates the reconciliation job.
func NewReconciler(st store.ScoreStore, source DurableSource, pool *worker.Pool, interval time.Duration, limit int) *Reconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if limit <= 0 {
		limit = 1000
	}

	return &Reconciler{
		store:    st,
		source:   source,
		pool:     pool,
		interval: interval,
		limit:    limit,
	}
}

// Run executes scheduled syncs until ctx is cancelled. Failures are logged
// and retried on the next tick.
func (r *Reconciler) Run(ctx context.Context) {
	log.Printf("reconciler: started (interval %v, limit %d)", r.interval, r.limit)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("reconciler: stopped")
			return

		case <-ticker.C:
			if err := r.SyncAll(ctx); err != nil {
				log.Printf("reconciler: sync failed: %v", err)
				metrics.ReconciliationRuns.WithLabelValues("failure").Inc()
				continue
			}
			metrics.ReconciliationRuns.WithLabelValues("success").Inc()
		}
	}
}

// SyncAll syncs the current window of every period type.
func (r *Reconciler) SyncAll(ctx context.Context) error {
	for _, pt := range period.All {
		if err := r.SyncToDurable(ctx, pt, pt.CurrentKey(), r.limit); err != nil {
			return err
		}
	}
	return nil
}

// SyncToDurable reads the top-limit entries of one window and submits an
// idempotent upsert per entry, keyed by (userId, periodType, periodKey).
func (r *Reconciler) SyncToDurable(ctx context.Context, pt period.Type, periodKey string, limit int) error {
	members, err := r.store.Range(ctx, pt, periodKey, 0, int64(limit)-1)
	if err != nil {
		return fmt.Errorf("failed to read %s/%s: %w", pt, periodKey, err)
	}

	for i, m := range members {
		task := worker.Task{
			Kind: worker.TaskSnapshotUpsert,
			Snapshot: models.SnapshotRecord{
				UserID:     m.UserID,
				PeriodType: string(pt),
				PeriodKey:  periodKey,
				Score:      m.Score,
				Rank:       i + 1,
			},
		}
		if err := r.pool.Submit(task); err != nil {
			// backpressure: the rest of this window catches up next tick
			return fmt.Errorf("snapshot queue full at %s/%s rank %d: %w", pt, periodKey, i+1, err)
		}
	}
	return nil
}

// RebuildOnStartup repopulates the volatile store after a restart.
//
// ALLTIME is seeded from each user's authoritative cumulative total, never
// from a snapshot, because the total itself is canonical. WEEKLY/MONTHLY
// current windows are seeded from their latest durable snapshot. A window
// that is already warm is left untouched.
func (r *Reconciler) RebuildOnStartup(ctx context.Context) error {
	size, err := r.store.Size(ctx, period.AllTime, period.AllTimeKey)
	if err != nil {
		return fmt.Errorf("failed to check alltime window: %w", err)
	}
	if size == 0 {
		users, err := r.source.GetAllUsers(ctx)
		if err != nil {
			return fmt.Errorf("failed to load users: %w", err)
		}

		members := make(map[string]int64, len(users))
		for _, u := range users {
			if u.TotalPoints > 0 {
				members[u.UserID] = u.TotalPoints
			}
		}
		if err := r.store.Seed(ctx, period.AllTime, period.AllTimeKey, members); err != nil {
			return fmt.Errorf("failed to seed alltime window: %w", err)
		}
		log.Printf("reconciler: rebuilt alltime window with %d users", len(members))
	}

	for _, pt := range []period.Type{period.Weekly, period.Monthly} {
		key := pt.CurrentKey()

		size, err := r.store.Size(ctx, pt, key)
		if err != nil {
			return fmt.Errorf("failed to check %s/%s: %w", pt, key, err)
		}
		if size > 0 {
			continue
		}

		snapshots, err := r.source.GetSnapshots(ctx, string(pt), key)
		if err != nil {
			return fmt.Errorf("failed to load snapshots for %s/%s: %w", pt, key, err)
		}
		if len(snapshots) == 0 {
			continue
		}

		members := make(map[string]int64, len(snapshots))
		for _, s := range snapshots {
			members[s.UserID] = s.Score
		}
		if err := r.store.Seed(ctx, pt, key, members); err != nil {
			return fmt.Errorf("failed to seed %s/%s: %w", pt, key, err)
		}
		log.Printf("reconciler: rebuilt %s/%s with %d users", pt, key, len(members))
	}

	return nil
}
