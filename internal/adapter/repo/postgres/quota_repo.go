package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/syncrvault/syncr/internal/domain"
)

// QuotaRepo is the per-day quota ledger over the youtube_quota table.
// The day boundary follows the provider's billing timezone.
type QuotaRepo struct {
	Pool PgxPool
	loc  *time.Location
	// now is swappable in tests.
	now func() time.Time
}

// NewQuotaRepo constructs a QuotaRepo keyed to the given timezone name.
func NewQuotaRepo(p PgxPool, timezone string) (*QuotaRepo, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("op=quota.new: %w", err)
	}
	return &QuotaRepo{Pool: p, loc: loc, now: time.Now}, nil
}

func (r *QuotaRepo) today() string {
	return r.now().In(r.loc).Format("2006-01-02")
}

// Reserve atomically adds required to today's total iff the new total
// stays within ceiling. The whole check-and-add is one conditional
// statement, so concurrent reservations can never jointly exceed the
// ceiling.
func (r *QuotaRepo) Reserve(ctx domain.Context, required, ceiling int) (bool, error) {
	tracer := otel.Tracer("repo.quota")
	ctx, span := tracer.Start(ctx, "quota.Reserve")
	defer span.End()
	if required < 0 {
		return false, fmt.Errorf("op=quota.reserve: negative amount: %w", domain.ErrInvalidArgument)
	}
	if required == 0 {
		return true, nil
	}
	if required > ceiling {
		return false, nil
	}
	q := `INSERT INTO youtube_quota (date, total) VALUES ($1, $2)
	      ON CONFLICT (date) DO UPDATE SET total = youtube_quota.total + EXCLUDED.total
	      WHERE youtube_quota.total + EXCLUDED.total <= $3`
	tag, err := r.Pool.Exec(ctx, q, r.today(), required, ceiling)
	if err != nil {
		return false, fmt.Errorf("op=quota.reserve: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Consume unconditionally bills used units against today's row. It may
// push the total past any ceiling; reservation is the throttle, not
// consumption.
func (r *QuotaRepo) Consume(ctx domain.Context, units int) error {
	tracer := otel.Tracer("repo.quota")
	ctx, span := tracer.Start(ctx, "quota.Consume")
	defer span.End()
	if units <= 0 {
		return nil
	}
	q := `INSERT INTO youtube_quota (date, total) VALUES ($1, $2)
	      ON CONFLICT (date) DO UPDATE SET total = youtube_quota.total + EXCLUDED.total`
	if _, err := r.Pool.Exec(ctx, q, r.today(), units); err != nil {
		return fmt.Errorf("op=quota.consume: %w", err)
	}
	return nil
}

// Used returns today's total, creating the row with total=0 on first
// read of the day.
func (r *QuotaRepo) Used(ctx domain.Context) (int, error) {
	tracer := otel.Tracer("repo.quota")
	ctx, span := tracer.Start(ctx, "quota.Used")
	defer span.End()
	q := `INSERT INTO youtube_quota (date, total) VALUES ($1, 0)
	      ON CONFLICT (date) DO UPDATE SET total = youtube_quota.total
	      RETURNING total`
	var total int
	if err := r.Pool.QueryRow(ctx, q, r.today()).Scan(&total); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("op=quota.used: %w", err)
	}
	return total, nil
}

// Set overwrites today's total. Administrative use only.
func (r *QuotaRepo) Set(ctx domain.Context, value int) error {
	tracer := otel.Tracer("repo.quota")
	ctx, span := tracer.Start(ctx, "quota.Set")
	defer span.End()
	if value < 0 {
		return fmt.Errorf("op=quota.set: negative value: %w", domain.ErrInvalidArgument)
	}
	q := `INSERT INTO youtube_quota (date, total) VALUES ($1, $2)
	      ON CONFLICT (date) DO UPDATE SET total = EXCLUDED.total`
	if _, err := r.Pool.Exec(ctx, q, r.today(), value); err != nil {
		return fmt.Errorf("op=quota.set: %w", err)
	}
	return nil
}
