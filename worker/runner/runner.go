package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"mediastudio/api/models"
	"mediastudio/worker/repository"
)

// ProgressMirror fans progress writes out to the fast-path store the status
// endpoint polls.
type ProgressMirror interface {
	Set(ctx context.Context, jobID string, p models.JobProgress) error
}

// Runner advances a render job through preparing, rendering and finalizing
// on a fixed step interval. Cancellation is cooperative: the job's status is
// re-read before every progress write, and once cancelled is observed no
// further write happens. An increment already underway is allowed to finish,
// so cancellation latency is bounded by one step interval.
type Runner struct {
	repo      repository.Repository
	mirror    ProgressMirror
	step      time.Duration
	outputDir string
	logger    *zap.Logger
}

func New(repo repository.Repository, mirror ProgressMirror, step time.Duration, outputDir string, logger *zap.Logger) *Runner {
	return &Runner{
		repo:      repo,
		mirror:    mirror,
		step:      step,
		outputDir: outputDir,
		logger:    logger,
	}
}

const renderSteps = 10

func (r *Runner) Run(ctx context.Context, jobID string) error {
	job, err := r.repo.Load(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}

	// Redeliveries of finished jobs are skipped, not re-run.
	if job.Status.Terminal() {
		r.logger.Info("job already terminal, skipping",
			zap.String("job_id", jobID),
			zap.String("status", string(job.Status)),
		)
		return nil
	}

	r.logger.Info("render job starting",
		zap.String("job_id", jobID),
		zap.String("trace_id", job.TraceID),
		zap.Int("total_frames", job.TotalFrames),
	)

	totalFrames := job.TotalFrames
	if totalFrames <= 0 {
		totalFrames = renderSteps
	}

	for _, pct := range []int{2, 4, 6, 8, 10} {
		ok, err := r.commit(ctx, jobID, models.JobProgress{
			Status:      models.StatusPreparing,
			Percent:     pct,
			TotalFrames: totalFrames,
		})
		if !ok {
			return r.abort(ctx, jobID, err)
		}
	}

	for i := 1; i <= renderSteps; i++ {
		ok, err := r.commit(ctx, jobID, models.JobProgress{
			Status:       models.StatusRendering,
			Percent:      10 + 70*i/renderSteps,
			CurrentFrame: totalFrames * i / renderSteps,
			TotalFrames:  totalFrames,
		})
		if !ok {
			return r.abort(ctx, jobID, err)
		}
	}

	for _, pct := range []int{85, 90, 95, 99} {
		ok, err := r.commit(ctx, jobID, models.JobProgress{
			Status:       models.StatusFinalizing,
			Percent:      pct,
			CurrentFrame: totalFrames,
			TotalFrames:  totalFrames,
		})
		if !ok {
			return r.abort(ctx, jobID, err)
		}
	}

	output := filepath.Join(r.outputDir, jobID+"."+job.Settings.Format)
	if err := r.repo.Complete(ctx, jobID, output); err != nil {
		return r.abort(ctx, jobID, err)
	}
	r.mirror.Set(ctx, jobID, models.JobProgress{
		Status:       models.StatusCompleted,
		Percent:      100,
		CurrentFrame: totalFrames,
		TotalFrames:  totalFrames,
	})

	r.logger.Info("render job completed",
		zap.String("job_id", jobID),
		zap.String("output", output),
	)
	return nil
}

// commit waits one step, re-reads the job status, and only then writes the
// increment. Returns false with a nil error when the job turned terminal
// underneath us (cancel observed); false with an error on real failures.
func (r *Runner) commit(ctx context.Context, jobID string, p models.JobProgress) (bool, error) {
	select {
	case <-time.After(r.step):
	case <-ctx.Done():
		return false, ctx.Err()
	}

	status, err := r.repo.Status(ctx, jobID)
	if err != nil {
		return false, err
	}
	if status == models.StatusCancelled {
		r.logger.Info("cancellation observed, stopping",
			zap.String("job_id", jobID),
			zap.String("phase", string(p.Status)),
		)
		return false, nil
	}
	if status.Terminal() {
		return false, nil
	}

	if err := r.repo.UpdateProgress(ctx, jobID, p); err != nil {
		return false, err
	}
	// Mirror failures are tolerable; the status endpoint falls back to the
	// job table.
	if err := r.mirror.Set(ctx, jobID, p); err != nil {
		r.logger.Warn("progress mirror write failed",
			zap.String("job_id", jobID),
			zap.Error(err),
		)
	}

	return true, nil
}

// abort translates a commit failure into the job's terminal state. A nil err
// means cancellation was observed and there is nothing left to do.
func (r *Runner) abort(ctx context.Context, jobID string, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		// Process shutdown, not a job failure; leave the job for redelivery.
		return err
	}

	msg := err.Error()
	if ferr := r.repo.Fail(ctx, jobID, msg); ferr != nil {
		r.logger.Error("failed to record job failure",
			zap.String("job_id", jobID),
			zap.Error(ferr),
		)
	}
	r.mirror.Set(ctx, jobID, models.JobProgress{
		Status:       models.StatusFailed,
		ErrorMessage: msg,
	})

	r.logger.Error("render job failed",
		zap.String("job_id", jobID),
		zap.Error(err),
	)
	return err
}
