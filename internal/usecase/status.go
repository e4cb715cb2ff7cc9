package usecase

import (
	"github.com/syncrvault/syncr/internal/domain"
)

// StatusService serves job status reads.
type StatusService struct {
	Jobs domain.JobRepository
}

// NewStatusService constructs a StatusService.
func NewStatusService(jobs domain.JobRepository) StatusService {
	return StatusService{Jobs: jobs}
}

// Get returns one job by id.
func (s StatusService) Get(ctx domain.Context, jobID string) (domain.Job, error) {
	return s.Jobs.Get(ctx, jobID)
}

// Latest returns the most recently created job for a user.
func (s StatusService) Latest(ctx domain.Context, userID string) (domain.Job, error) {
	return s.Jobs.Latest(ctx, userID)
}
