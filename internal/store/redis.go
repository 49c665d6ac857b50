package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"rankstream/internal/period"
)

// RedisStore implements ScoreStore on Redis sorted sets, one ZSET per window.
type RedisStore struct {
	client *redis.Client
	ttls   TTLs
}

// NewRedisStore creates a Redis-backed score store.
func NewRedisStore(client *redis.Client, ttls TTLs) *RedisStore {
	return &RedisStore{
		client: client,
		ttls:   ttls,
	}
}

// Increment performs the atomic server-side read-modify-write via ZINCRBY.
// EXPIRE NX attaches the window TTL only when no TTL exists yet, which is
// exactly once: on the write that creates the window.
func (s *RedisStore) Increment(ctx context.Context, pt period.Type, key, userID string, delta int64) (int64, error) {
	wk := windowKey(pt, key)

	pipe := s.client.Pipeline()
	incr := pipe.ZIncrBy(ctx, wk, float64(delta), userID)
	if pt.Expires() {
		pipe.ExpireNX(ctx, wk, s.ttls.For(pt))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, unavailable(err)
	}

	return int64(incr.Val()), nil
}

// Seed bulk-writes members with ZADD, attaching the creation TTL when the
// window does not carry one yet.
func (s *RedisStore) Seed(ctx context.Context, pt period.Type, key string, members map[string]int64) error {
	if len(members) == 0 {
		return nil
	}
	wk := windowKey(pt, key)

	zs := make([]redis.Z, 0, len(members))
	for userID, score := range members {
		zs = append(zs, redis.Z{Score: float64(score), Member: userID})
	}

	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, wk, zs...)
	if pt.Expires() {
		pipe.ExpireNX(ctx, wk, s.ttls.For(pt))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}

// Range returns members at zero-based positions start..stop inclusive,
// ordered by score descending (equal scores: descending lexical userId,
// ZSET native).
func (s *RedisStore) Range(ctx context.Context, pt period.Type, key string, start, stop int64) ([]Member, error) {
	results, err := s.client.ZRevRangeWithScores(ctx, windowKey(pt, key), start, stop).Result()
	if err != nil {
		return nil, unavailable(err)
	}

	members := make([]Member, 0, len(results))
	for _, z := range results {
		userID, ok := z.Member.(string)
		if !ok {
			userID = fmt.Sprint(z.Member)
		}
		members = append(members, Member{
			UserID: userID,
			Score:  int64(z.Score),
		})
	}
	return members, nil
}

// Rank returns the user's 1-based rank within the window.
func (s *RedisStore) Rank(ctx context.Context, pt period.Type, key, userID string) (int64, error) {
	rank, err := s.client.ZRevRank(ctx, windowKey(pt, key), userID).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, ErrNotFound
		}
		return 0, unavailable(err)
	}
	return rank + 1, nil
}

// Score returns the user's score, 0 when the user has no entry.
func (s *RedisStore) Score(ctx context.Context, pt period.Type, key, userID string) (int64, error) {
	score, err := s.client.ZScore(ctx, windowKey(pt, key), userID).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, unavailable(err)
	}
	return int64(score), nil
}

// Size returns the number of members in the window.
func (s *RedisStore) Size(ctx context.Context, pt period.Type, key string) (int64, error) {
	n, err := s.client.ZCard(ctx, windowKey(pt, key)).Result()
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

// CountAbove counts members with score strictly greater than the given one.
// Used for approximate previous-rank reconstruction.
func (s *RedisStore) CountAbove(ctx context.Context, pt period.Type, key string, score int64) (int64, error) {
	min := "(" + strconv.FormatInt(score, 10)
	n, err := s.client.ZCount(ctx, windowKey(pt, key), min, "+inf").Result()
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
