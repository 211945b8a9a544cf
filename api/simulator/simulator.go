package simulator

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mediastudio/api/models"
)

var ErrJobNotFound = errors.New("simulated job not found")

// Simulator stands in for the real render pipeline when no engine is wired
// up. Jobs advance through the normal phase vocabulary on a fixed-duration
// timer instead of real encode feedback. Jobs live only as long as the
// process; nothing is persisted.
type Simulator struct {
	mu     sync.Mutex
	jobs   map[string]*models.RenderJob
	step   time.Duration
	logger *zap.Logger
}

func New(step time.Duration, logger *zap.Logger) *Simulator {
	return &Simulator{
		jobs:   make(map[string]*models.RenderJob),
		step:   step,
		logger: logger,
	}
}

func (s *Simulator) Create(projectID string, settings models.JobSettings) string {
	totalFrames := int(float64(settings.FPS) * settings.DurationSec)

	job := &models.RenderJob{
		ID:          uuid.New().String(),
		ProjectID:   projectID,
		Settings:    settings,
		Status:      models.StatusPreparing,
		TotalFrames: totalFrames,
		CreatedAt:   time.Now(),
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	s.logger.Info("simulated job created",
		zap.String("job_id", job.ID),
		zap.String("project_id", projectID),
	)

	go s.run(job.ID)

	return job.ID
}

func (s *Simulator) Get(id string) (models.RenderJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return models.RenderJob{}, ErrJobNotFound
	}
	return *job, nil
}

// Cancel freezes progress at its last committed value. The advancing
// goroutine observes the status at the next step boundary and stops.
func (s *Simulator) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if job.Status.Terminal() {
		return nil
	}

	now := time.Now()
	job.Status = models.StatusCancelled
	job.CancelledAt = &now
	return nil
}

func (s *Simulator) run(id string) {
	for _, pct := range []int{2, 4, 6, 8, 10} {
		if !s.commit(id, models.StatusPreparing, pct, 0) {
			return
		}
	}

	const renderSteps = 10
	total := s.totalFrames(id)
	for i := 1; i <= renderSteps; i++ {
		pct := 10 + 70*i/renderSteps
		frame := total * i / renderSteps
		if !s.commit(id, models.StatusRendering, pct, frame) {
			return
		}
	}

	for _, pct := range []int{85, 90, 95, 99} {
		if !s.commit(id, models.StatusFinalizing, pct, total) {
			return
		}
	}

	s.complete(id)
}

// commit sleeps one step, then re-reads the job's status before writing.
// A cancellation observed here means no further writes ever happen.
func (s *Simulator) commit(id string, status models.JobStatus, pct, frame int) bool {
	time.Sleep(s.step)

	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.Status.Terminal() {
		return false
	}

	job.Status = status
	if pct > job.Progress {
		job.Progress = pct
	}
	if frame > job.CurrentFrame {
		job.CurrentFrame = frame
	}
	return true
}

func (s *Simulator) complete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.Status.Terminal() {
		return
	}

	now := time.Now()
	job.Status = models.StatusCompleted
	job.Progress = 100
	job.CurrentFrame = job.TotalFrames
	job.OutputPath = "/exports/" + job.ID + "." + job.Settings.Format
	job.CompletedAt = &now

	s.logger.Info("simulated job completed", zap.String("job_id", id))
}

func (s *Simulator) totalFrames(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job, ok := s.jobs[id]; ok {
		return job.TotalFrames
	}
	return 0
}
