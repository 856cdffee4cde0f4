package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	contacthandler "contactgraph/internal/contact/handler"
	contactmetrics "contactgraph/internal/contact/metrics"
	"contactgraph/internal/contact/service"
	jwttoken "contactgraph/internal/jwt_token"
	"contactgraph/internal/platform/httpserver"
	"contactgraph/internal/platform/metrics"
	"contactgraph/internal/platform/redis"
	rlmw "contactgraph/internal/ratelimit/middleware"
	"contactgraph/internal/ratelimit/store/bucket"
	httptransport "contactgraph/internal/transport/http"
	"contactgraph/pkg/platform/circuit"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply the schema before serving")
	return cmd
}

func serve(ctx context.Context, opts *rootOptions, migrate bool) error {
	cfg := opts.cfg
	log := opts.newLogger(os.Stdout)

	if cfg.IsProductionWithDevKey() {
		return errors.New("refusing to start in production with the development JWT signing key")
	}

	be, err := openBackend(ctx, cfg.Storage, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := be.close(); err != nil {
			log.Error("failed to close store", "error", err)
		}
	}()
	if migrate {
		if err := be.migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	httpMetrics := metrics.New()
	contacts := service.New(be.store,
		service.WithLogger(log),
		service.WithMetrics(contactmetrics.New()),
	)

	healthChecks := []httptransport.HealthCheck{{Name: "store", Check: be.ping}}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	var buckets rlmw.BucketStore = bucket.NewInMemoryBucketStore()
	if redisClient != nil {
		defer redisClient.Close()
		buckets = bucket.NewFallbackBucketStore(
			bucket.NewRedisBucketStore(redisClient.Client),
			bucket.NewInMemoryBucketStore(),
			circuit.New("redis-ratelimit"),
			log,
		)
		healthChecks = append(healthChecks, httptransport.HealthCheck{Name: "redis", Check: redisClient.Health})
		log.Info("rate limiting backed by redis")
	}
	limiter := rlmw.New(buckets, cfg.RateLimit.Requests, cfg.RateLimit.Window, log,
		rlmw.WithDisabled(cfg.RateLimit.Disabled),
		rlmw.WithMetrics(httpMetrics),
	)

	jwtService := jwttoken.NewJWTService(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.Audience)

	router := httptransport.NewRouter(httptransport.Config{
		Logger:         log,
		Metrics:        httpMetrics,
		JWTValidator:   jwttoken.NewJWTServiceAdapter(jwtService),
		RateLimit:      limiter.RateLimitOwner,
		RequestTimeout: cfg.Server.RequestTimeout,
		CORSOrigins:    cfg.Server.CORSOrigins,
		HealthChecks:   healthChecks,
	}, contacthandler.New(contacts, log, cfg.Server.Diagnostics))

	srv := httpserver.New(cfg.Server.Addr, router, cfg.Server.RequestTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting contactgraph",
			"addr", cfg.Server.Addr,
			"storage_driver", cfg.Storage.Driver,
			"environment", cfg.Server.Environment,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}
