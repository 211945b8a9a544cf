package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mediastudio/api/models"
)

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresRepo(pool *pgxpool.Pool) Repository {
	return &PostgresRepo{pool: pool}
}

func (r *PostgresRepo) Load(ctx context.Context, id string) (*models.RenderJob, error) {
	query := `
		SELECT id, trace_id, project_id, settings, status, progress, current_frame, total_frames
		FROM render_jobs
		WHERE id = $1
	`

	var (
		job      models.RenderJob
		settings []byte
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&job.ID,
		&job.TraceID,
		&job.ProjectID,
		&settings,
		&job.Status,
		&job.Progress,
		&job.CurrentFrame,
		&job.TotalFrames,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(settings, &job.Settings); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}

	return &job, nil
}

func (r *PostgresRepo) Status(ctx context.Context, id string) (models.JobStatus, error) {
	var status models.JobStatus
	err := r.pool.QueryRow(ctx, `SELECT status FROM render_jobs WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrJobNotFound
		}
		return "", err
	}
	return status, nil
}

func (r *PostgresRepo) UpdateProgress(ctx context.Context, id string, p models.JobProgress) error {
	query := `
		UPDATE render_jobs
		SET status = $1, progress = $2, current_frame = $3, total_frames = $4, updated_at = NOW()
		WHERE id = $5
	`

	result, err := r.pool.Exec(ctx, query, p.Status, p.Percent, p.CurrentFrame, p.TotalFrames, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (r *PostgresRepo) Complete(ctx context.Context, id, outputPath string) error {
	query := `
		UPDATE render_jobs
		SET status = $1, progress = 100, output_path = $2, updated_at = NOW(), completed_at = NOW()
		WHERE id = $3
	`

	result, err := r.pool.Exec(ctx, query, models.StatusCompleted, outputPath, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (r *PostgresRepo) Fail(ctx context.Context, id, errorMessage string) error {
	query := `
		UPDATE render_jobs
		SET status = $1, error_message = $2, updated_at = NOW(), completed_at = NOW()
		WHERE id = $3
	`

	result, err := r.pool.Exec(ctx, query, models.StatusFailed, errorMessage, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}
