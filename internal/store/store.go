// Package store provides the scored-set primitive behind every leaderboard
// window. The production implementation is Redis sorted sets; an in-memory
// implementation with identical ordering backs tests and single-process use.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"rankstream/internal/period"
)

// ErrNotFound is returned by Rank when the user has no entry in the window.
var ErrNotFound = errors.New("member not found")

// ErrUnavailable wraps any backend connectivity failure. Callers on the
// increment path must isolate it rather than fail their own operation.
var ErrUnavailable = errors.New("score store unavailable")

// Member is one (userId, score) pair inside a window.
type Member struct {
	UserID string
	Score  int64
}

// ScoreStore is the atomic scored-set primitive per period window.
//
// Ordering: score descending, equal scores by descending lexical userId.
// That is the native ordering a Redis descending range returns, mirrored by the
// in-memory implementation so Range output is reproducible on both backends.
//
// Writes are atomic read-modify-write at the store boundary. Reads are
// lock-free and eventually consistent with respect to concurrent increments.
type ScoreStore interface {
	// Increment atomically adds delta to the user's score in the window,
	// creating the window on first write. WEEKLY/MONTHLY windows get their
	// time-to-live attached at creation and never refreshed afterwards.
	Increment(ctx context.Context, pt period.Type, key, userID string, delta int64) (int64, error)

	// Seed bulk-writes members into a window, applying the creation-time TTL
	// for expiring period types. Used by the startup rebuild and the seeder.
	Seed(ctx context.Context, pt period.Type, key string, members map[string]int64) error

	// Range returns members ordered best-first, positions start..stop
	// inclusive, zero-based.
	Range(ctx context.Context, pt period.Type, key string, start, stop int64) ([]Member, error)

	// Rank returns the user's 1-based rank, or ErrNotFound.
	Rank(ctx context.Context, pt period.Type, key, userID string) (int64, error)

	// Score returns the user's score, 0 when absent.
	Score(ctx context.Context, pt period.Type, key, userID string) (int64, error)

	// Size returns the number of members in the window.
	Size(ctx context.Context, pt period.Type, key string) (int64, error)

	// CountAbove returns the number of members with a strictly greater score.
	CountAbove(ctx context.Context, pt period.Type, key string, score int64) (int64, error)

	// Ping checks backend reachability.
	Ping(ctx context.Context) error
}

// TTLs holds the creation-time time-to-live per expiring period type.
type TTLs struct {
	Weekly  time.Duration
	Monthly time.Duration
}

// For returns the TTL for the given period type, zero for ALLTIME.
func (t TTLs) For(pt period.Type) time.Duration {
	switch pt {
	case period.Weekly:
		return t.Weekly
	case period.Monthly:
		return t.Monthly
	}
	return 0
}

// windowKey builds the backing key for one period window,
// e.g. "leaderboard:weekly:2026-W03".
func windowKey(pt period.Type, key string) string {
	return "leaderboard:" + strings.ToLower(string(pt)) + ":" + key
}
