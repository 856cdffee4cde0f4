package bucket

import (
	"context"
	"log/slog"
	"time"

	"contactgraph/internal/ratelimit/models"
	"contactgraph/pkg/platform/circuit"
)

// Store is the admission contract shared by the bucket implementations.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
}

// FallbackBucketStore sends checks to primary until it fails repeatedly, then
// serves them from a local store until primary recovers. Results served
// locally are marked Degraded.
type FallbackBucketStore struct {
	primary  Store
	fallback Store
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

// NewFallbackBucketStore wraps primary with a circuit breaker.
func NewFallbackBucketStore(primary, fallback Store, breaker *circuit.Breaker, logger *slog.Logger) *FallbackBucketStore {
	if breaker == nil {
		breaker = circuit.New("ratelimit")
	}
	return &FallbackBucketStore{
		primary:  primary,
		fallback: fallback,
		breaker:  breaker,
		logger:   logger,
	}
}

func (s *FallbackBucketStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	result, err := s.primary.Allow(ctx, key, limit, window)
	if err == nil {
		usePrimary, change := s.breaker.RecordSuccess()
		if change.Closed {
			s.logger.InfoContext(ctx, "rate limit store recovered", "breaker", s.breaker.Name())
		}
		if usePrimary {
			return result, nil
		}
		// Still recovering; keep counting locally so quotas stay consistent.
		return s.allowFallback(ctx, key, limit, window)
	}

	useFallback, change := s.breaker.RecordFailure()
	if change.Opened {
		s.logger.WarnContext(ctx, "rate limit store degraded, using local fallback",
			"breaker", s.breaker.Name(),
			"error", err,
		)
	}
	if !useFallback {
		return nil, err
	}
	return s.allowFallback(ctx, key, limit, window)
}

func (s *FallbackBucketStore) allowFallback(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	result, err := s.fallback.Allow(ctx, key, limit, window)
	if err != nil {
		return nil, err
	}
	result.Degraded = true
	return result, nil
}
