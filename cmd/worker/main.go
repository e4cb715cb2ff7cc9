// Command worker runs the job queue consumer and the cleanup scheduler.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/syncrvault/syncr/internal/adapter/observability"
	"github.com/syncrvault/syncr/internal/adapter/provider"
	asynqadp "github.com/syncrvault/syncr/internal/adapter/queue/asynq"
	"github.com/syncrvault/syncr/internal/adapter/repo/postgres"
	"github.com/syncrvault/syncr/internal/config"
	"github.com/syncrvault/syncr/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	// The worker exposes its own /metrics endpoint so job and quota
	// instrumentation is scrapeable separately from the HTTP server.
	observability.InitMetrics()
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":9090", mux); err != nil {
			slog.Error("worker metrics server error", slog.Any("error", err))
		}
	}()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	slog.Info("starting worker", slog.String("env", cfg.AppEnv))

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("database connection failed", slog.Any("error", err))
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

	providers := provider.NewFactory(cfg, tokenRepo)
	runner := usecase.NewRunnerService(jobRepo, quotaRepo, providers, cfg.StaleJobAge, cfg.TerminalRetention)

	worker, err := asynqadp.NewWorker(cfg.RedisURL, cfg.WorkerConcurrency, runner)
	if err != nil {
		slog.Error("worker init failed", slog.Any("error", err))
		os.Exit(1)
	}

	scheduler, err := asynqadp.NewScheduler(cfg.RedisURL, cfg.CleanupSchedule)
	if err != nil {
		slog.Error("scheduler init failed", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Start(ctx); err != nil {
		slog.Error("worker start failed", slog.Any("error", err))
		os.Exit(1)
	}
	if err := scheduler.Start(); err != nil {
		slog.Error("scheduler start failed", slog.Any("error", err))
		worker.Stop()
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutdown signal received", slog.String("signal", sig.String()))

	scheduler.Stop()
	worker.Stop()
}
