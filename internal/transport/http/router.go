package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"contactgraph/internal/platform/metrics"
	"contactgraph/internal/platform/middleware"
	"contactgraph/pkg/platform/httputil"
)

// healthCheckTimeout bounds each dependency probe on GET /health.
const healthCheckTimeout = 2 * time.Second

// RouteRegistrar is implemented by domain handlers.
type RouteRegistrar interface {
	Register(r chi.Router)
}

// HealthCheck probes one dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Config collects everything the router wires together.
type Config struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	JWTValidator   middleware.JWTValidator
	RateLimit      func(http.Handler) http.Handler
	RequestTimeout time.Duration
	CORSOrigins    []string
	HealthChecks   []HealthCheck
	// MetricsHandler defaults to promhttp.Handler().
	MetricsHandler http.Handler
}

// NewRouter builds the public HTTP surface. Authenticated domain routes sit
// behind owner-scope auth and the per-owner rate limit.
func NewRouter(cfg Config, handlers ...RouteRegistrar) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{
			middleware.RequestIDHeader,
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
			"X-RateLimit-Reset",
			"Retry-After",
		},
		MaxAge: 300,
	}))
	r.Use(middleware.LatencyMiddleware(cfg.Metrics))

	r.Get("/health", healthHandler(cfg.HealthChecks))

	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.RequireOwnerScope(cfg.JWTValidator, cfg.Logger))
		if cfg.RateLimit != nil {
			r.Use(cfg.RateLimit)
		}
		for _, h := range handlers {
			h.Register(r)
		}
	})

	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK

		for _, c := range checks {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			err := c.Check(ctx)
			cancel()
			if err != nil {
				resp.Checks[c.Name] = "unavailable"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[c.Name] = "ok"
		}

		httputil.WriteJSON(w, status, resp)
	}
}
