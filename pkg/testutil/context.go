package testutil

import (
	"net/http"

	"contactgraph/pkg/domain"
	"contactgraph/pkg/requestcontext"
)

// WithOwnerScope adds an owner scope to the request context, as the auth
// middleware does for authenticated requests. Blank or invalid scopes are
// left out so handlers see an unauthenticated request.
func WithOwnerScope(req *http.Request, owner string) *http.Request {
	scope, err := domain.ParseOwnerScope(owner)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithOwnerScope(req.Context(), scope))
}

// WithRequestID adds a request id to the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}
