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
	"payaid/internal/outbox"
	"payaid/internal/platform/health"
	"payaid/internal/platform/logging"
	"payaid/internal/platform/telemetry"
	"payaid/internal/platform/web"
	"payaid/services/realtime-service/internal/config"
	"payaid/services/realtime-service/internal/httpapi"
	"payaid/services/realtime-service/internal/hub"
	"payaid/services/realtime-service/internal/relay"

	"github.com/igm/sockjs-go/sockjs"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const serviceName = "realtime-service"

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

	tokens := authn.NewTokenManager([]byte(cfg.JWTSecret), cfg.JWTIssuer, 0)
	h := hub.New(logger)
	expvar.Publish("realtime_clients", expvar.Func(func() any { return h.Count() }))
	expvar.Publish("realtime_dropped_total", expvar.Func(func() any { return h.Dropped() }))

	reader := outbox.NewPostgresReader(pool)
	relayCfg := relay.Config{BatchSize: cfg.BatchSize, Logger: logger}
	if cfg.OutboxCleanup {
		relayCfg.CleanupConsumers = []string{outbox.ConsumerRealtime, outbox.ConsumerWebhook}
	}
	r := relay.New(reader, reader, h, relayCfg)

	sessions := httpapi.NewSessions(h, tokens, logger)
	mux := http.NewServeMux()
	health.New(health.Check{Name: "database", Fn: pool.Ping}).Register(mux)
	mux.Handle("/metrics", expvar.Handler())
	mux.Handle("/realtime/", sockjs.NewHandler("/realtime", sockjs.DefaultOptions, func(session sockjs.Session) {
		sessions.Serve(session)
	}))

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
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		relay.Start(ctx, cfg.PollInterval(), r)
	}()

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
		cancel()
		<-done
		return fmt.Errorf("server error: %w", err)
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
	<-done
	return nil
}
