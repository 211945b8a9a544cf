package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"mediastudio/api/database"
	"mediastudio/api/models"
)

type PostgresRepo struct {
	db *database.DB
}

func NewPostgresRepo(db *database.DB) Repository {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) CreateJob(ctx context.Context, job *models.RenderJob) error {
	settings, err := json.Marshal(job.Settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	query := `
		INSERT INTO render_jobs (id, trace_id, project_id, settings, status, progress, total_frames)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err = r.db.Pool.QueryRow(ctx, query,
		job.ID,
		job.TraceID,
		job.ProjectID,
		settings,
		job.Status,
		job.Progress,
		job.TotalFrames,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return err
	}

	return nil
}

func (r *PostgresRepo) GetJob(ctx context.Context, id string) (*models.RenderJob, error) {
	query := `
		SELECT id, trace_id, project_id, settings, status, progress, current_frame, total_frames,
		       output_path, error_message, created_at, updated_at, completed_at, cancelled_at
		FROM render_jobs
		WHERE id = $1
	`

	row := r.db.Pool.QueryRow(ctx, query, id)

	var (
		job      models.RenderJob
		settings []byte
	)
	err := row.Scan(
		&job.ID,
		&job.TraceID,
		&job.ProjectID,
		&settings,
		&job.Status,
		&job.Progress,
		&job.CurrentFrame,
		&job.TotalFrames,
		&job.OutputPath,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
		&job.CancelledAt,
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

func (r *PostgresRepo) UpdateJobProgress(ctx context.Context, id string, p models.JobProgress) error {
	query := `
		UPDATE render_jobs
		SET status = $1, progress = $2, current_frame = $3, total_frames = $4,
		    error_message = $5, updated_at = NOW()
	`

	if p.Status == models.StatusFailed {
		query += `, completed_at = NOW()`
	}
	if p.Status == models.StatusCancelled {
		query += `, cancelled_at = NOW()`
	}

	query += ` WHERE id = $6`

	result, err := r.db.Pool.Exec(ctx, query,
		p.Status, p.Percent, p.CurrentFrame, p.TotalFrames, p.ErrorMessage, id)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrJobNotFound
	}

	return nil
}

func (r *PostgresRepo) CompleteJob(ctx context.Context, id, outputPath string) error {
	query := `
		UPDATE render_jobs
		SET status = $1, progress = 100, output_path = $2, updated_at = NOW(), completed_at = NOW()
		WHERE id = $3
	`

	result, err := r.db.Pool.Exec(ctx, query, models.StatusCompleted, outputPath, id)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrJobNotFound
	}

	return nil
}

// CancelJob only marks non-terminal jobs; cancelling a finished job is a no-op.
func (r *PostgresRepo) CancelJob(ctx context.Context, id string) error {
	query := `
		UPDATE render_jobs
		SET status = $1, updated_at = NOW(), cancelled_at = NOW()
		WHERE id = $2 AND status NOT IN ($3, $4, $5)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		models.StatusCancelled, id,
		models.StatusCompleted, models.StatusFailed, models.StatusCancelled)
	return err
}
