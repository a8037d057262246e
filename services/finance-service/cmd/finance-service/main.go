package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payaid/internal/authn"
	"payaid/internal/licensing"
	"payaid/internal/outbox"
	"payaid/internal/platform/health"
	"payaid/internal/platform/logging"
	"payaid/internal/platform/resilience"
	"payaid/internal/platform/telemetry"
	"payaid/internal/platform/web"
	"payaid/services/finance-service/internal/archive"
	"payaid/services/finance-service/internal/config"
	"payaid/services/finance-service/internal/httpapi"
	"payaid/services/finance-service/internal/store/postgres"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const serviceName = "finance-service"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.New(serviceName, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	shutdownTracing := telemetry.Setup(serviceName, logger)
	defer func() { _ = shutdownTracing(context.Background()) }()

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()

	gate := licensing.NewGate(licensing.NewPostgresSource(pool), licensing.GateOptions{
		TTL: cfg.LicenseCacheTTL(),
		Breaker: resilience.NewBreaker(resilience.Options{
			FailureThreshold: cfg.BreakerFailureThreshold,
			ResetTimeout:     cfg.BreakerReset(),
		}),
		Logger: logger,
	})
	followCtx, stopFollow := context.WithCancel(context.Background())
	defer stopFollow()
	go gate.Follow(followCtx, outbox.NewPostgresReader(pool), cfg.LicenseWatchInterval())
	tokens := authn.NewTokenManager([]byte(cfg.JWTSecret), cfg.JWTIssuer, 0)

	var archiver *archive.Archiver
	if cfg.ArchiveEnabled() {
		objects, err := archive.NewS3Store(context.Background(), archive.S3Options{
			Region:   cfg.ArchiveRegion,
			Endpoint: cfg.ArchiveEndpoint,
		})
		if err != nil {
			return err
		}
		archiver = archive.NewArchiver(objects, cfg.ArchiveBucket, resilience.NewBreaker(resilience.Options{
			FailureThreshold: cfg.ArchiveBreakerFailures,
			ResetTimeout:     cfg.ArchiveBreakerReset(),
		}))
		logger.Info("report archive enabled", zap.String("bucket", cfg.ArchiveBucket))
	}

	store := postgres.NewStore(pool)
	handler := httpapi.NewHandler(store, httpapi.Options{
		Archiver:      archiver,
		Logger:        logger,
		B2CLThreshold: cfg.B2CLThreshold(),
	})

	checker := health.New(
		health.Check{Name: "database", Fn: store.Ping},
		health.Check{Name: "license_breaker", Fn: gate.Check},
		health.Check{Name: "archive_breaker", Fn: archiver.Check},
	)
	mux := http.NewServeMux()
	checker.Register(mux)
	mux.Handle("/metrics", expvar.Handler())
	mux.Handle("/api/", authn.Middleware(tokens, httpapi.IsPublic,
		licensing.RequireModule(gate, licensing.ModuleFinance, httpapi.IsPublic, handler.Routes())))

	limiter := web.NewRateLimiter(web.RateLimitConfig{
		IPPerMinute:     cfg.RateLimitPerMinute,
		IPBurst:         cfg.RateLimitBurst,
		TenantPerMinute: cfg.TenantRateLimitPerMinute,
		TenantBurst:     cfg.TenantRateLimitBurst,
		Tenant:          authn.VerifiedTenant(tokens),
	})

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: web.LoggingMiddleware(logger, authn.TenantHint,
			web.CORS(cfg.AllowedOrigins(), limiter.Middleware(otelhttp.NewHandler(mux, serviceName)))),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
	return nil
}
