// Package e2e drives the HTTP surface in-process with godog scenarios.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/cucumber/godog"

	"contactgraph/e2e/steps/identify"
	"contactgraph/e2e/steps/ratelimit"
	contacthandler "contactgraph/internal/contact/handler"
	"contactgraph/internal/contact/service"
	"contactgraph/internal/contact/store"
	jwttoken "contactgraph/internal/jwt_token"
	rlmw "contactgraph/internal/ratelimit/middleware"
	"contactgraph/internal/ratelimit/store/bucket"
	httptransport "contactgraph/internal/transport/http"
	"contactgraph/pkg/domain"
)

const (
	signingKey       = "e2e-signing-key"
	defaultRateLimit = 1000
)

// TestContext holds one scenario's server and last response.
type TestContext struct {
	jwt        *jwttoken.JWTService
	server     http.Handler
	token      string
	lastStatus int
	lastHeader http.Header
	lastBody   []byte
}

func newTestContext() *TestContext {
	tc := &TestContext{jwt: jwttoken.NewJWTService(signingKey, "contactgraph", "contactgraph")}
	tc.Reset(defaultRateLimit)
	return tc
}

// Reset starts a fresh in-memory deployment with the given per-owner quota.
func (tc *TestContext) Reset(rateLimit int) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	contacts := service.New(store.NewInMemory(), service.WithLogger(logger))
	limiter := rlmw.New(bucket.NewInMemoryBucketStore(), rateLimit, time.Minute, logger)

	tc.server = httptransport.NewRouter(httptransport.Config{
		Logger:         logger,
		JWTValidator:   jwttoken.NewJWTServiceAdapter(tc.jwt),
		RateLimit:      limiter.RateLimitOwner,
		RequestTimeout: 5 * time.Second,
		CORSOrigins:    []string{"*"},
		MetricsHandler: http.NotFoundHandler(),
	}, contacthandler.New(contacts, logger, false))
	tc.token = ""
}

// AuthenticateAs mints a bearer token for owner.
func (tc *TestContext) AuthenticateAs(owner string) error {
	scope, err := domain.ParseOwnerScope(owner)
	if err != nil {
		return err
	}
	token, err := tc.jwt.GenerateOwnerToken(scope, "e2e", time.Hour)
	if err != nil {
		return err
	}
	tc.token = token
	return nil
}

// POST sends a raw JSON body to path with the current bearer token.
func (tc *TestContext) POST(path string, body string) error {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if tc.token != "" {
		req.Header.Set("Authorization", "Bearer "+tc.token)
	}
	rec := httptest.NewRecorder()
	tc.server.ServeHTTP(rec, req)

	tc.lastStatus = rec.Code
	tc.lastHeader = rec.Header()
	tc.lastBody = rec.Body.Bytes()
	return nil
}

func (tc *TestContext) GetLastResponseStatus() int {
	return tc.lastStatus
}

func (tc *TestContext) GetLastResponseBody() []byte {
	return tc.lastBody
}

func (tc *TestContext) GetLastResponseHeader(name string) string {
	return tc.lastHeader.Get(name)
}

// GetResponseField returns a top-level field of the last JSON response.
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var body map[string]any
	if err := json.Unmarshal(tc.lastBody, &body); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w", err)
	}
	v, ok := body[field]
	if !ok {
		return nil, fmt.Errorf("field %q not in response %s", field, tc.lastBody)
	}
	return v, nil
}

// RegisterSteps registers all step definitions from modular packages.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	ctx.Step(`^a fresh contactgraph deployment$`, func() error {
		tc.Reset(defaultRateLimit)
		return nil
	})
	ctx.Step(`^I am authenticated as owner "([^"]*)"$`, tc.AuthenticateAs)
	ctx.Step(`^the response status should be (\d+)$`, func(want int) error {
		if tc.lastStatus != want {
			return fmt.Errorf("expected status %d, got %d: %s", want, tc.lastStatus, tc.lastBody)
		}
		return nil
	})

	identify.RegisterSteps(ctx, tc)
	ratelimit.RegisterSteps(ctx, tc)
}
