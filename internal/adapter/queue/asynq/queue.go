// Package asynqadp is the Redis-backed broker adapter built on asynq.
package asynqadp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/syncrvault/syncr/internal/adapter/observability"
	"github.com/syncrvault/syncr/internal/domain"
)

// taskNameFor maps a job type to its task name on the wire.
func taskNameFor(t domain.JobType) (string, error) {
	switch t {
	case domain.JobTypeSyncSpToYt:
		return domain.TaskSyncSpToYt, nil
	case domain.JobTypeSyncYtToSp:
		return domain.TaskSyncYtToSp, nil
	case domain.JobTypeMerge:
		return domain.TaskMerge, nil
	default:
		return "", fmt.Errorf("op=queue.task_name: job type %q: %w", t, domain.ErrInvalidArgument)
	}
}

// enqueuer is the slice of asynq.Client the queue needs.
type enqueuer interface {
	EnqueueContext(ctx domain.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Queue implements domain.Queue over an asynq client.
type Queue struct{ client enqueuer }

// New connects to the broker behind redisURL.
func New(redisURL string) (*Queue, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return &Queue{client: asynq.NewClient(opt)}, nil
}

// NewWithClient wraps an existing client, mostly for tests.
func NewWithClient(c enqueuer) *Queue { return &Queue{client: c} }

// EnqueueSync puts a sync task for jobType on the jobs queue.
func (q *Queue) EnqueueSync(ctx domain.Context, jobType domain.JobType, p domain.SyncTaskPayload) error {
	name, err := taskNameFor(jobType)
	if err != nil {
		return err
	}
	return q.enqueue(ctx, name, p)
}

// EnqueueMerge puts a merge task on the jobs queue.
func (q *Queue) EnqueueMerge(ctx domain.Context, p domain.MergeTaskPayload) error {
	return q.enqueue(ctx, domain.TaskMerge, p)
}

// EnqueueFinalize puts a finalize task on the jobs queue.
func (q *Queue) EnqueueFinalize(ctx domain.Context, p domain.FinalizeTaskPayload) error {
	return q.enqueue(ctx, domain.TaskFinalize, p)
}

func (q *Queue) enqueue(ctx domain.Context, name string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("op=queue.enqueue %s: %w", name, err)
	}
	t := asynq.NewTask(name, b)
	// Redelivery is safe: the runner treats non-pending jobs as no-ops.
	_, err = q.client.EnqueueContext(ctx, t,
		asynq.Queue(domain.QueueJobs),
		asynq.MaxRetry(5),
		asynq.Retention(24*time.Hour))
	if err != nil {
		return fmt.Errorf("op=queue.enqueue %s: %w", name, err)
	}
	observability.EnqueueJob(name)
	return nil
}
