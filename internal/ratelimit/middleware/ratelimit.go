package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"contactgraph/internal/platform/metrics"
	"contactgraph/internal/ratelimit/models"
	dErrors "contactgraph/pkg/domain-errors"
	"contactgraph/pkg/platform/httputil"
	"contactgraph/pkg/requestcontext"
)

// BucketStore admits or rejects one request against a keyed window.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
}

// Middleware enforces a per-owner request quota.
type Middleware struct {
	store    BucketStore
	limit    int
	window   time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
	disabled bool
}

type Option func(*Middleware)

// WithDisabled disables rate limiting entirely (for testing/demo mode).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

// WithMetrics counts rejected requests.
func WithMetrics(mtr *metrics.Metrics) Option {
	return func(m *Middleware) {
		m.metrics = mtr
	}
}

func New(store BucketStore, limit int, window time.Duration, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		store:  store,
		limit:  limit,
		window: window,
		logger: logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimitOwner limits requests by the authenticated owner scope. It must be
// mounted after the auth middleware. Store failures let the request through.
func (m *Middleware) RateLimitOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.disabled {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		owner := requestcontext.OwnerScope(ctx)
		if owner.IsNil() {
			next.ServeHTTP(w, r)
			return
		}

		result, err := m.store.Allow(ctx, models.NewOwnerRateLimitKey(owner), m.limit, m.window)
		if err != nil {
			m.logger.ErrorContext(ctx, "failed to check owner rate limit",
				"error", err,
				"owner_scope", owner.String(),
				"request_id", requestcontext.RequestID(ctx),
			)
			next.ServeHTTP(w, r)
			return
		}

		addRateLimitHeaders(w, result)

		if !result.Allowed {
			m.metrics.IncrementRateLimited()
			m.logger.WarnContext(ctx, "owner rate limit exceeded",
				"owner_scope", owner.String(),
				"request_id", requestcontext.RequestID(ctx),
			)
			writeRateLimitExceeded(w, result)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
	if result.Degraded {
		w.Header().Set("X-RateLimit-Status", "degraded")
	}
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.RateLimitExceededResponse{
		Error:       string(dErrors.CodeRateLimited),
		Description: "Too many requests for this owner scope. Please try again later.",
		RetryAfter:  result.RetryAfter,
	})
}
