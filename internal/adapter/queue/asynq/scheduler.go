package asynqadp

import (
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/syncrvault/syncr/internal/domain"
)

// Scheduler emits the periodic cleanup task onto the cleanup queue.
type Scheduler struct{ s *asynq.Scheduler }

// NewScheduler registers the cleanup task on the given cron spec.
func NewScheduler(redisURL, cleanupSpec string) (*Scheduler, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	s := asynq.NewScheduler(opt, nil)
	task := asynq.NewTask(domain.TaskCleanup, nil)
	if _, err := s.Register(cleanupSpec, task, asynq.Queue(domain.QueueCleanup), asynq.MaxRetry(0)); err != nil {
		return nil, fmt.Errorf("op=scheduler.register: %w", err)
	}
	return &Scheduler{s: s}, nil
}

// Start runs the scheduler loop. It does not block.
func (s *Scheduler) Start() error { return s.s.Start() }

// Stop halts scheduling and waits for pending emits.
func (s *Scheduler) Stop() { s.s.Shutdown() }
