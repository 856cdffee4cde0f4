package models

import (
	"strings"
	"time"

	"contactgraph/pkg/domain"
)

// RateLimitResult is the outcome of a single admission check.
type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int // seconds
	// Degraded is set when the answer came from the local fallback store.
	Degraded bool
}

// RateLimitExceededResponse is the API response when the owner quota is exhausted.
type RateLimitExceededResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
	RetryAfter  int    `json:"retry_after"`
}

// SanitizeKeySegment escapes the key delimiter so a caller-controlled owner
// scope cannot address a neighbouring bucket.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// NewOwnerRateLimitKey builds the bucket key for an owner scope.
func NewOwnerRateLimitKey(owner domain.OwnerScope) string {
	return "ratelimit:owner:" + SanitizeKeySegment(owner.String())
}

// RetryAfterSeconds rounds the wait until reset up to whole seconds.
func RetryAfterSeconds(now, resetAt time.Time) int {
	d := resetAt.Sub(now)
	if d <= 0 {
		return 0
	}
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}
