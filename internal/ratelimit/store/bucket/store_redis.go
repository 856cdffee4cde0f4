package bucket

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"contactgraph/internal/ratelimit/models"
)

// RedisBucketStore implements a fixed window counter shared by all replicas.
// Each window gets its own key so counters expire on their own.
type RedisBucketStore struct {
	client redis.Cmdable
	now    func() time.Time
}

// NewRedisBucketStore wraps a go-redis client.
func NewRedisBucketStore(client redis.Cmdable) *RedisBucketStore {
	return &RedisBucketStore{client: client, now: time.Now}
}

// Allow increments the current window counter for key.
func (s *RedisBucketStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	now := s.now()
	windowStart := now.Truncate(window)
	resetAt := windowStart.Add(window)
	windowKey := key + ":" + strconv.FormatInt(windowStart.Unix(), 10)

	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, windowKey)
		pipe.PExpire(ctx, windowKey, window)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("increment rate limit window: %w", err)
	}

	count := int(incr.Val())
	if count <= limit {
		return &models.RateLimitResult{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit - count,
			ResetAt:   resetAt,
		}, nil
	}
	return &models.RateLimitResult{
		Allowed:    false,
		Limit:      limit,
		Remaining:  0,
		ResetAt:    resetAt,
		RetryAfter: models.RetryAfterSeconds(now, resetAt),
	}, nil
}

// Reset drops the current window counter for key.
func (s *RedisBucketStore) Reset(ctx context.Context, key string) error {
	windowKeys, err := s.client.Keys(ctx, key+":*").Result()
	if err != nil {
		return fmt.Errorf("list rate limit windows: %w", err)
	}
	if len(windowKeys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, windowKeys...).Err(); err != nil {
		return fmt.Errorf("delete rate limit windows: %w", err)
	}
	return nil
}
