// Package domain holds the entities, status machine, error taxonomy and
// ports of the playlist sync job engine.
package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrConflict        = errors.New("conflict")
	ErrQuotaExceeded   = errors.New("quota exceeded")
	ErrInternal        = errors.New("internal error")
)

// Context is an alias so adapters and usecases share one signature.
type Context = context.Context

// JobType enumerates the kinds of work a job can carry.
type JobType string

const (
	JobTypeSyncSpToYt JobType = "sync_sp_to_yt"
	JobTypeSyncYtToSp JobType = "sync_yt_to_sp"
	JobTypeMerge      JobType = "merge"
)

// JobStatus is the job lifecycle state.
type JobStatus string

const (
	JobPending         JobStatus = "pending"
	JobReadyToFinalize JobStatus = "ready_to_finalize"
	JobFinalizing      JobStatus = "finalizing"
	JobCompleted       JobStatus = "completed"
	JobError           JobStatus = "error"
)

// Terminal reports whether no further transitions are allowed.
func (s JobStatus) Terminal() bool { return s == JobCompleted || s == JobError }

// validEdges is the lifecycle DAG. Any non-terminal status may
// additionally move to error (reaper timeouts, runner failures).
var validEdges = map[JobStatus][]JobStatus{
	JobPending:         {JobReadyToFinalize, JobError},
	JobReadyToFinalize: {JobFinalizing, JobError},
	JobFinalizing:      {JobCompleted, JobError},
}

// ValidTransition reports whether from → to is an edge of the lifecycle
// DAG.
func ValidTransition(from, to JobStatus) bool {
	for _, next := range validEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Job is one user request: a sync or merge with its durable lifecycle
// state, result payload and bookkeeping timestamps.
type Job struct {
	ID           string
	UserID       string
	Type         JobType
	Status       JobStatus
	PlaylistName string
	Result       *JobResult
	Error        string
	Notes        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DecisionStatus is the outcome of matching one source track.
type DecisionStatus string

const (
	DecisionFound    DecisionStatus = "found"
	DecisionNotFound DecisionStatus = "not_found"
)

// TrackDecision records the matching outcome for one source track.
// Decisions are written once by the pipeline and only read afterwards.
type TrackDecision struct {
	Name                 string         `json:"name"`
	Artist               string         `json:"artist"`
	Status               DecisionStatus `json:"status"`
	TargetID             string         `json:"target_id,omitempty"`
	TargetTitle          string         `json:"target_title,omitempty"`
	TargetArtist         string         `json:"target_artist,omitempty"`
	RequiresManualSearch bool           `json:"requires_manual_search"`
	Reason               string         `json:"reason,omitempty"`
}

// MergeSummary reports what a merge run wrote to each provider.
type MergeSummary struct {
	SpotifyAdded int             `json:"spotify_added"`
	YouTubeAdded int             `json:"youtube_added"`
	Unmatched    []TrackDecision `json:"unmatched,omitempty"`
}

// JobResult is a tagged sum persisted as the jobs.result JSON column:
// sync jobs carry Songs, merge jobs carry Merge. Summary is filled on
// completion.
type JobResult struct {
	Songs   []TrackDecision `json:"songs,omitempty"`
	Merge   *MergeSummary   `json:"merge,omitempty"`
	Summary string          `json:"summary,omitempty"`
}

// Validate checks the variant against the job type on the way out of
// the store.
func (r *JobResult) Validate(t JobType) error {
	if r == nil {
		return nil
	}
	switch t {
	case JobTypeSyncSpToYt, JobTypeSyncYtToSp:
		if r.Merge != nil {
			return errors.New("sync job result carries merge payload")
		}
	case JobTypeMerge:
		if len(r.Songs) != 0 {
			return errors.New("merge job result carries songs payload")
		}
	}
	return nil
}

// FoundTargetIDs returns the ids of all found decisions, in order.
func (r *JobResult) FoundTargetIDs() []string {
	if r == nil {
		return nil
	}
	var out []string
	for _, d := range r.Songs {
		if d.Status == DecisionFound && d.TargetID != "" {
			out = append(out, d.TargetID)
		}
	}
	return out
}

// JobPatch is the set of columns a Transition may update alongside the
// status CAS. Nil fields are left untouched.
type JobPatch struct {
	Result *JobResult
	Error  *string
	Notes  *string
}

// JobRepository is the durable job store (port).
type JobRepository interface {
	Create(ctx Context, j Job) (string, error)
	Get(ctx Context, id string) (Job, error)
	Latest(ctx Context, userID string) (Job, error)
	// Transition performs a compare-and-swap on status and applies the
	// patch atomically. It returns ErrConflict when the current status
	// differs from from.
	Transition(ctx Context, id string, from, to JobStatus, patch JobPatch) error
	// SweepStale errors out pending/ready_to_finalize jobs older than
	// cutoff in a single statement and returns the affected ids.
	SweepStale(ctx Context, cutoff time.Time) ([]string, error)
	DeleteTerminalBefore(ctx Context, cutoff time.Time) (int64, error)
}

// QuotaLedger is the shared per-day counter (port). Reservations are
// atomic add-if-under-ceiling; consumption is unconditional billing.
type QuotaLedger interface {
	Reserve(ctx Context, required, ceiling int) (bool, error)
	Consume(ctx Context, units int) error
	Used(ctx Context) (int, error)
	Set(ctx Context, value int) error
}
