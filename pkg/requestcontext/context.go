// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; the reconciliation service and stores read
// them. Keeping the package free of net/http lets services import it without
// pulling in transport code.
//
// Usage in services (read values):
//
//	owner := requestcontext.OwnerScope(ctx)
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithOwnerScope(ctx, "tenant-a")
package requestcontext

import (
	"context"
	"time"

	"contactgraph/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	ownerScopeKey  struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyOwnerScope  = ownerScopeKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// -----------------------------------------------------------------------------
// Owner scope
// -----------------------------------------------------------------------------

// OwnerScope retrieves the authenticated owner scope from the context.
// Returns the zero value if not set.
func OwnerScope(ctx context.Context) domain.OwnerScope {
	if owner, ok := ctx.Value(ContextKeyOwnerScope).(domain.OwnerScope); ok {
		return owner
	}
	return ""
}

// WithOwnerScope injects an owner scope into the context.
func WithOwnerScope(ctx context.Context, owner domain.OwnerScope) context.Context {
	return context.WithValue(ctx, ContextKeyOwnerScope, owner)
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// -----------------------------------------------------------------------------
// Request time
// -----------------------------------------------------------------------------

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (CLI commands, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Stores stamp createdAt and
// updatedAt from it so a reconciliation uses one clock reading throughout.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
