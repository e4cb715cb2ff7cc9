package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/syncrvault/syncr/internal/domain"
)

// staleJobError is the message written by SweepStale.
const staleJobError = "Job timed out"

// JobRepo persists and loads jobs from PostgreSQL.
type JobRepo struct{ Pool PgxPool }

// NewJobRepo constructs a JobRepo with the given pool.
func NewJobRepo(p PgxPool) *JobRepo { return &JobRepo{Pool: p} }

const jobColumns = `job_id, user_id, type, status, COALESCE(playlist_name,''), result, COALESCE(error,''), COALESCE(job_notes,''), created_at, updated_at`

// Create inserts a new job row and returns its id.
func (r *JobRepo) Create(ctx domain.Context, j domain.Job) (string, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Create")
	defer span.End()
	id := j.ID
	if id == "" {
		id = uuid.New().String()
	}
	res, err := marshalResult(j.Result)
	if err != nil {
		return "", fmt.Errorf("op=job.create: %w", err)
	}
	now := time.Now().UTC()
	q := `INSERT INTO jobs (job_id, user_id, type, status, playlist_name, result, error, job_notes, created_at, updated_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	_, err = r.Pool.Exec(ctx, q, id, j.UserID, j.Type, j.Status, j.PlaylistName, res, j.Error, j.Notes, now, now)
	if err != nil {
		return "", fmt.Errorf("op=job.create: %w", err)
	}
	return id, nil
}

// Get loads a job by id.
func (r *JobRepo) Get(ctx domain.Context, id string) (domain.Job, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Get")
	defer span.End()
	q := `SELECT ` + jobColumns + ` FROM jobs WHERE job_id=$1`
	return r.scanJob(r.Pool.QueryRow(ctx, q, id), "job.get")
}

// Latest loads the most recently created job for a user.
func (r *JobRepo) Latest(ctx domain.Context, userID string) (domain.Job, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Latest")
	defer span.End()
	q := `SELECT ` + jobColumns + ` FROM jobs WHERE user_id=$1 ORDER BY created_at DESC LIMIT 1`
	return r.scanJob(r.Pool.QueryRow(ctx, q, userID), "job.latest")
}

// Transition performs the status compare-and-swap and applies the patch
// in one statement. A CAS miss surfaces as domain.ErrConflict.
func (r *JobRepo) Transition(ctx domain.Context, id string, from, to domain.JobStatus, patch domain.JobPatch) error {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Transition")
	defer span.End()
	if !domain.ValidTransition(from, to) {
		return fmt.Errorf("op=job.transition %s->%s: %w", from, to, domain.ErrInvalidArgument)
	}
	res, err := marshalResult(patch.Result)
	if err != nil {
		return fmt.Errorf("op=job.transition: %w", err)
	}
	// Error rows drop any partial result; result and status stay in
	// lockstep (result set iff ready_to_finalize or later, error set
	// iff status=error).
	q := `UPDATE jobs
	      SET status=$3,
	          result=CASE WHEN $3 = 'error' THEN NULL ELSE COALESCE($4, result) END,
	          error=COALESCE($5, error),
	          job_notes=COALESCE($6, job_notes),
	          updated_at=$7
	      WHERE job_id=$1 AND status=$2`
	tag, err := r.Pool.Exec(ctx, q, id, from, to, res, patch.Error, patch.Notes, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=job.transition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=job.transition %s->%s: status changed underneath: %w", from, to, domain.ErrConflict)
	}
	return nil
}

// SweepStale errors out pending and ready_to_finalize jobs whose
// updated_at is older than cutoff, in a single statement, returning the
// affected ids.
func (r *JobRepo) SweepStale(ctx domain.Context, cutoff time.Time) ([]string, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.SweepStale")
	defer span.End()
	q := `UPDATE jobs
	      SET status=$1, error=$2, result=NULL, updated_at=$3
	      WHERE status IN ($4, $5) AND updated_at < $6
	      RETURNING job_id`
	rows, err := r.Pool.Query(ctx, q, domain.JobError, staleJobError, time.Now().UTC(),
		domain.JobPending, domain.JobReadyToFinalize, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("op=job.sweep_stale: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("op=job.sweep_stale: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=job.sweep_stale: %w", err)
	}
	return ids, nil
}

// DeleteTerminalBefore removes completed and error rows whose
// updated_at is older than cutoff.
func (r *JobRepo) DeleteTerminalBefore(ctx domain.Context, cutoff time.Time) (int64, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.DeleteTerminalBefore")
	defer span.End()
	q := `DELETE FROM jobs WHERE status IN ($1, $2) AND updated_at < $3`
	tag, err := r.Pool.Exec(ctx, q, domain.JobCompleted, domain.JobError, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("op=job.delete_terminal: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *JobRepo) scanJob(row pgx.Row, op string) (domain.Job, error) {
	var j domain.Job
	var res []byte
	if err := row.Scan(&j.ID, &j.UserID, &j.Type, &j.Status, &j.PlaylistName, &res, &j.Error, &j.Notes, &j.CreatedAt, &j.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Job{}, fmt.Errorf("op=%s: %w", op, domain.ErrNotFound)
		}
		return domain.Job{}, fmt.Errorf("op=%s: %w", op, err)
	}
	if len(res) > 0 {
		var jr domain.JobResult
		if err := json.Unmarshal(res, &jr); err != nil {
			return domain.Job{}, fmt.Errorf("op=%s: result column: %w", op, err)
		}
		if err := jr.Validate(j.Type); err != nil {
			return domain.Job{}, fmt.Errorf("op=%s: %w", op, err)
		}
		j.Result = &jr
	}
	return j, nil
}

func marshalResult(r *domain.JobResult) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(r)
}
