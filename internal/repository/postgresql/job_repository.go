package postgresql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"landscape-job-service/internal/entity"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

const jobColumns = `id, status, landscaper_id, assigned_to, started_at, completed_at,
approved_by, rejection_reason, created_at, updated_at`

type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

func scanJob(row pgx.Row) (*entity.Job, error) {
	var (
		job        entity.Job
		statusText string
	)
	if err := row.Scan(
		&job.ID,
		&statusText,
		&job.LandscaperID, // NULL => nil
		&job.AssignedTo,
		&job.StartedAt,
		&job.CompletedAt,
		&job.ApprovedBy,
		&job.RejectionReason,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	job.Status = entity.JobStatus(statusText)
	return &job, nil
}

func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1;`

	job, err := scanJob(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, mapPostgresError(err)
	}
	return job, nil
}

// List returns jobs newest first. Limit is clamped to [1, 200].
func (r *JobRepository) List(ctx context.Context, f entity.JobFilter) ([]entity.Job, error) {
	var (
		where []string
		args  []any
	)
	if f.LandscaperID != nil {
		args = append(args, *f.LandscaperID)
		where = append(where, fmt.Sprintf("landscaper_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if sc := f.VisibleTo; sc != nil {
		args = append(args, sc.UserID)
		cond := fmt.Sprintf("assigned_to = $%d", len(args))
		if sc.LandscaperID != nil {
			args = append(args, *sc.LandscaperID)
			cond = fmt.Sprintf("(%s OR landscaper_id = $%d)", cond, len(args))
		}
		where = append(where, cond)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	args = append(args, limit)

	var sb strings.Builder
	sb.WriteString(`SELECT ` + jobColumns + ` FROM jobs`)
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	fmt.Fprintf(&sb, " ORDER BY created_at DESC LIMIT $%d;", len(args))

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	defer rows.Close()

	jobs := make([]entity.Job, 0, limit)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, mapPostgresError(err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPostgresError(err)
	}
	return jobs, nil
}

// ApplyTransition writes upd only while the job still has status from.
// It returns ErrNotFound when the job is gone and ErrStatusConflict when the
// status no longer matches.
func (r *JobRepository) ApplyTransition(ctx context.Context, id uuid.UUID, from entity.JobStatus, upd entity.JobUpdate) error {
	const q = `
UPDATE jobs SET
	status           = $3,
	started_at       = COALESCE($4, started_at),
	completed_at     = COALESCE($5, completed_at),
	approved_by      = COALESCE($6, approved_by),
	rejection_reason = CASE WHEN $8 THEN NULL ELSE COALESCE($7, rejection_reason) END,
	updated_at       = now()
WHERE id = $1 AND status = $2;
`
	tag, err := r.pool.Exec(ctx, q,
		id,
		string(from),
		string(upd.Status),
		upd.StartedAt,
		upd.CompletedAt,
		upd.ApprovedBy,
		upd.RejectionReason,
		upd.ClearRejectionReason,
	)
	if err != nil {
		return mapPostgresError(err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM jobs WHERE id = $1);`, id).Scan(&exists); err != nil {
		return mapPostgresError(err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStatusConflict
}
