package asynqadp

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"

	"github.com/syncrvault/syncr/internal/domain"
)

// JobRunner is what the worker drives. The usecase layer implements
// it; handlers must be idempotent under redelivery.
type JobRunner interface {
	RunSync(ctx domain.Context, jobType domain.JobType, p domain.SyncTaskPayload) error
	RunMerge(ctx domain.Context, p domain.MergeTaskPayload) error
	RunFinalize(ctx domain.Context, p domain.FinalizeTaskPayload) error
	Cleanup(ctx domain.Context) error
}

// Worker consumes the jobs and cleanup queues.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewWorker builds a worker bound to runner. The jobs queue gets the
// bulk of the weight; cleanup keeps one slot so a burst of sync tasks
// cannot starve the reaper.
func NewWorker(redisURL string, concurrency int, runner JobRunner) (*Worker, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, err
	}
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			domain.QueueJobs:    5,
			domain.QueueCleanup: 1,
		},
	})
	mux := asynq.NewServeMux()
	w := &Worker{server: srv, mux: mux}

	mux.HandleFunc(domain.TaskSyncSpToYt, syncHandler(runner, domain.JobTypeSyncSpToYt))
	mux.HandleFunc(domain.TaskSyncYtToSp, syncHandler(runner, domain.JobTypeSyncYtToSp))

	mux.HandleFunc(domain.TaskMerge, func(ctx context.Context, t *asynq.Task) error {
		ctx, span := otel.Tracer("queue.worker").Start(ctx, "MergePlaylistsJob")
		defer span.End()
		var p domain.MergeTaskPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return err
		}
		return runner.RunMerge(ctx, p)
	})

	mux.HandleFunc(domain.TaskFinalize, func(ctx context.Context, t *asynq.Task) error {
		ctx, span := otel.Tracer("queue.worker").Start(ctx, "FinalizeJob")
		defer span.End()
		var p domain.FinalizeTaskPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return err
		}
		return runner.RunFinalize(ctx, p)
	})

	mux.HandleFunc(domain.TaskCleanup, func(ctx context.Context, _ *asynq.Task) error {
		ctx, span := otel.Tracer("queue.worker").Start(ctx, "CleanupJobs")
		defer span.End()
		if err := runner.Cleanup(ctx); err != nil {
			slog.Error("cleanup pass failed", slog.Any("error", err))
			return err
		}
		return nil
	})

	return w, nil
}

func syncHandler(runner JobRunner, jobType domain.JobType) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		ctx, span := otel.Tracer("queue.worker").Start(ctx, "SyncJob")
		defer span.End()
		var p domain.SyncTaskPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return err
		}
		return runner.RunSync(ctx, jobType, p)
	}
}

// Start begins consuming. It does not block.
func (w *Worker) Start(ctx context.Context) error { return w.server.Start(w.mux) }

// ProcessTask dispatches one task through the mux, used by tests.
func (w *Worker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	return w.mux.ProcessTask(ctx, t)
}

// Stop drains in-flight tasks and shuts the server down.
func (w *Worker) Stop() { w.server.Shutdown() }
