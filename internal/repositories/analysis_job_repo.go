package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pagecraft/backend/internal/models"
)

type AnalysisJobRepo struct {
	pool *pgxpool.Pool
}

func NewAnalysisJobRepo(pool *pgxpool.Pool) *AnalysisJobRepo {
	return &AnalysisJobRepo{pool: pool}
}

const analysisJobColumns = `id, user_id, status, timezone, events_analyzed, slots_produced, partial,
	error, created_at, started_at, finished_at`

func scanAnalysisJob(row pgx.Row, j *models.AnalysisJob) error {
	return row.Scan(&j.ID, &j.UserID, &j.Status, &j.Timezone, &j.EventsAnalyzed, &j.SlotsProduced,
		&j.Partial, &j.Error, &j.CreatedAt, &j.StartedAt, &j.FinishedAt)
}

func (r *AnalysisJobRepo) Create(ctx context.Context, j *models.AnalysisJob) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO analysis_jobs (user_id, status, timezone)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, j.UserID, j.Status, j.Timezone).Scan(&j.ID, &j.CreatedAt)
}

func (r *AnalysisJobRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.AnalysisJob, error) {
	var j models.AnalysisJob
	if err := scanAnalysisJob(r.pool.QueryRow(ctx, `SELECT `+analysisJobColumns+` FROM analysis_jobs WHERE id = $1`, id), &j); err != nil {
		return nil, notFound(err)
	}
	return &j, nil
}

// GetActiveForUser returns the newest PENDING or RUNNING job of the user.
func (r *AnalysisJobRepo) GetActiveForUser(ctx context.Context, userID uuid.UUID) (*models.AnalysisJob, error) {
	var j models.AnalysisJob
	err := scanAnalysisJob(r.pool.QueryRow(ctx, `
		SELECT `+analysisJobColumns+` FROM analysis_jobs
		WHERE user_id = $1 AND status IN ($2, $3)
		ORDER BY created_at DESC LIMIT 1
	`, userID, models.AnalysisStatusPending, models.AnalysisStatusRunning), &j)
	if err != nil {
		return nil, notFound(err)
	}
	return &j, nil
}

func (r *AnalysisJobRepo) LatestForUser(ctx context.Context, userID uuid.UUID) (*models.AnalysisJob, error) {
	var j models.AnalysisJob
	err := scanAnalysisJob(r.pool.QueryRow(ctx, `
		SELECT `+analysisJobColumns+` FROM analysis_jobs
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1
	`, userID), &j)
	if err != nil {
		return nil, notFound(err)
	}
	return &j, nil
}

// MarkRunning claims a PENDING job.
func (r *AnalysisJobRepo) MarkRunning(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE analysis_jobs SET status = $1, started_at = now()
		WHERE id = $2 AND status = $3
	`, models.AnalysisStatusRunning, id, models.AnalysisStatusPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *AnalysisJobRepo) Complete(ctx context.Context, j *models.AnalysisJob) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE analysis_jobs SET status = $1, events_analyzed = $2, slots_produced = $3,
		       partial = $4, finished_at = now()
		WHERE id = $5 AND status = $6
	`, models.AnalysisStatusCompleted, j.EventsAnalyzed, j.SlotsProduced, j.Partial, j.ID, models.AnalysisStatusRunning)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

// Fail marks a job FAILED unless it already finished.
func (r *AnalysisJobRepo) Fail(ctx context.Context, id uuid.UUID, msg string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE analysis_jobs SET status = $1, error = $2, finished_at = now()
		WHERE id = $3 AND status IN ($4, $5)
	`, models.AnalysisStatusFailed, msg, id, models.AnalysisStatusPending, models.AnalysisStatusRunning)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

// ListStale returns unfinished jobs created before the cutoff.
func (r *AnalysisJobRepo) ListStale(ctx context.Context, before time.Time, limit int) ([]models.AnalysisJob, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+analysisJobColumns+` FROM analysis_jobs
		WHERE status IN ($1, $2) AND created_at < $3
		ORDER BY created_at LIMIT $4
	`, models.AnalysisStatusPending, models.AnalysisStatusRunning, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []models.AnalysisJob
	for rows.Next() {
		var j models.AnalysisJob
		if err := scanAnalysisJob(rows, &j); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
