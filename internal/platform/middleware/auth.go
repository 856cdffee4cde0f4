package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"contactgraph/pkg/domain"
	dErrors "contactgraph/pkg/domain-errors"
	"contactgraph/pkg/platform/httputil"
	"contactgraph/pkg/requestcontext"
)

// JWTValidator defines the interface for validating owner tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator.
type JWTClaims struct {
	OwnerScope domain.OwnerScope
	Subject    string
	TokenID    string
}

// RequireOwnerScope authenticates the bearer token and stores its owner scope
// in the request context. Requests without a valid token get 401.
func RequireOwnerScope(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestID(ctx)

			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if !ok || strings.TrimSpace(token) == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(strings.TrimSpace(token))
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Invalid or expired token"))
				return
			}
			if claims.OwnerScope.IsNil() {
				logger.WarnContext(ctx, "unauthorized access - token without owner scope",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Token carries no owner scope"))
				return
			}

			ctx = requestcontext.WithOwnerScope(ctx, claims.OwnerScope)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
