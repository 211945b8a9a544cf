package repository

import (
	"context"
	"errors"

	"mediastudio/api/models"
)

var ErrJobNotFound = errors.New("render job not found")

type Repository interface {
	CreateJob(ctx context.Context, job *models.RenderJob) error
	GetJob(ctx context.Context, id string) (*models.RenderJob, error)
	UpdateJobProgress(ctx context.Context, id string, p models.JobProgress) error
	CompleteJob(ctx context.Context, id, outputPath string) error
	CancelJob(ctx context.Context, id string) error
}
