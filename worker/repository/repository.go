package repository

import (
	"context"
	"errors"

	"mediastudio/api/models"
)

var ErrJobNotFound = errors.New("render job not found")

// Repository is the worker's view of the job table: load once, then a tight
// status-check/progress-write loop.
type Repository interface {
	Load(ctx context.Context, id string) (*models.RenderJob, error)
	Status(ctx context.Context, id string) (models.JobStatus, error)
	UpdateProgress(ctx context.Context, id string, p models.JobProgress) error
	Complete(ctx context.Context, id, outputPath string) error
	Fail(ctx context.Context, id, errorMessage string) error
}
