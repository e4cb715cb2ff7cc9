// Command server starts the playlist sync HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/syncrvault/syncr/internal/adapter/httpserver"
	"github.com/syncrvault/syncr/internal/adapter/observability"
	"github.com/syncrvault/syncr/internal/adapter/provider"
	asynqadp "github.com/syncrvault/syncr/internal/adapter/queue/asynq"
	"github.com/syncrvault/syncr/internal/adapter/repo/postgres"
	"github.com/syncrvault/syncr/internal/app"
	"github.com/syncrvault/syncr/internal/config"
	"github.com/syncrvault/syncr/internal/usecase"
)

// statusAdapter and clientAdapter bridge *redis.Client into the
// readiness probe's minimal interfaces.
type statusAdapter struct{ s *redis.StatusCmd }

func (s statusAdapter) Err() error { return s.s.Err() }

type clientAdapter struct{ c *redis.Client }

func (c clientAdapter) Ping(ctx context.Context) app.RedisPingResult {
	return statusAdapter{c.c.Ping(ctx)}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	jobRepo := postgres.NewJobRepo(pool)
	tokenRepo := postgres.NewTokenRepo(pool)
	quotaRepo, err := postgres.NewQuotaRepo(pool, cfg.QuotaTimezone)
	if err != nil {
		slog.Error("quota repo init failed", slog.Any("error", err))
		os.Exit(1)
	}

	queue, err := asynqadp.New(cfg.RedisURL)
	if err != nil {
		slog.Error("queue client init failed", slog.Any("error", err))
		os.Exit(1)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("redis url parse failed", slog.Any("error", err))
		os.Exit(1)
	}
	rdb := redis.NewClient(redisOpts)
	defer func() { _ = rdb.Close() }()

	providers := provider.NewFactory(cfg, tokenRepo)

	intakeSvc := usecase.NewIntakeService(jobRepo, quotaRepo, queue, providers, cfg.QuotaLimit, cfg.QuotaBuffer)
	statusSvc := usecase.NewStatusService(jobRepo)
	quotaSvc := usecase.NewQuotaService(quotaRepo, cfg.QuotaLimit)

	dbCheck, redisCheck := app.BuildReadinessChecks(pool, clientAdapter{rdb})

	srv := httpserver.NewServer(cfg, intakeSvc, statusSvc, quotaSvc, dbCheck, redisCheck)
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
