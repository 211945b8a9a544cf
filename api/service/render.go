package service

import (
	"context"

	"github.com/google/uuid"

	"mediastudio/api/cache"
	"mediastudio/api/dto"
	"mediastudio/api/kafka"
	"mediastudio/api/models"
	"mediastudio/api/repository"
)

// RenderService creates render jobs, dispatches them to the runner fleet and
// answers status polls from the cache-aside pair (Redis first, Postgres as
// the source of truth).
type RenderService struct {
	repo     repository.Repository
	cache    *cache.ProgressCache
	producer kafka.Producer
	topic    string
}

func NewRenderService(repo repository.Repository, cache *cache.ProgressCache, producer kafka.Producer) *RenderService {
	return &RenderService{
		repo:     repo,
		cache:    cache,
		producer: producer,
		topic:    "render_jobs",
	}
}

func (s *RenderService) CreateJob(ctx context.Context, traceID string, req *dto.CreateJobRequest) (*models.RenderJob, error) {
	totalFrames := int(float64(req.Settings.FPS) * req.Settings.DurationSec)

	job := &models.RenderJob{
		ID:          uuid.New().String(),
		TraceID:     traceID,
		ProjectID:   req.ProjectID,
		Settings:    req.Settings,
		Status:      models.StatusQueued,
		TotalFrames: totalFrames,
	}

	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	s.cache.Set(ctx, job.ID, models.JobProgress{
		Status:      models.StatusQueued,
		TotalFrames: totalFrames,
	})

	msg := &kafka.JobMessage{
		JobID:     job.ID,
		TraceID:   traceID,
		ProjectID: req.ProjectID,
	}
	if err := s.producer.SendJobMessage(ctx, s.topic, msg); err != nil {
		return nil, err
	}

	return job, nil
}

func (s *RenderService) GetJobStatus(ctx context.Context, jobID string) (*models.RenderJob, error) {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	// Non-terminal jobs may have fresher progress in Redis than the last
	// Postgres write; prefer it when present.
	if !job.Status.Terminal() {
		if progress, err := s.cache.Get(ctx, jobID); err == nil {
			job.Status = progress.Status
			job.Progress = progress.Percent
			job.CurrentFrame = progress.CurrentFrame
			job.TotalFrames = progress.TotalFrames
			job.ErrorMessage = progress.ErrorMessage
		}
	}

	return job, nil
}

func (s *RenderService) GetJob(ctx context.Context, jobID string) (*models.RenderJob, error) {
	return s.repo.GetJob(ctx, jobID)
}

// CancelJob is best-effort: the row and cache are marked cancelled and the
// runner stops at its next increment boundary.
func (s *RenderService) CancelJob(ctx context.Context, jobID string) error {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return nil
	}

	if err := s.repo.CancelJob(ctx, jobID); err != nil {
		return err
	}

	return s.cache.Set(ctx, jobID, models.JobProgress{
		Status:       models.StatusCancelled,
		Percent:      job.Progress,
		CurrentFrame: job.CurrentFrame,
		TotalFrames:  job.TotalFrames,
	})
}
