package export

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mediastudio/api/dto"
	"mediastudio/api/models"
)

var (
	ErrExportActive = errors.New("export already in progress")
	ErrCancelled    = errors.New("export cancelled")
	ErrNoJob        = errors.New("no export job")
)

// Progress is the merged view both drive modes converge on.
type Progress struct {
	Status       models.JobStatus
	Percent      int
	CurrentFrame int
	TotalFrames  int
	ErrorMessage string
}

// Job is the client-side record of one export. Settings are frozen at start.
type Job struct {
	ID          string
	ProjectID   string
	Settings    Settings
	Progress    Progress
	Output      string
	CreatedAt   time.Time
	CompletedAt time.Time
	CancelledAt time.Time
	RetryCount  int
	MaxRetries  int
}

type jobState struct {
	job      Job
	remoteID string
	cancel   context.CancelFunc
	done     chan struct{}
	err      error
}

// Config wires a Controller. Exactly one of Engine or API should be set:
// Engine drives the render pipeline in-process, API delegates to the render
// service over HTTP. Both emit the same Progress stream through OnUpdate.
type Config struct {
	Engine       Engine
	API          *RenderClient
	MaxRetries   int
	Backoff      time.Duration
	PollInterval time.Duration
	OnUpdate     func(Job)
	Logger       *zap.Logger
}

// Controller owns export jobs for one application session. It is an
// explicitly constructed instance; there is deliberately no package-level
// shared controller.
type Controller struct {
	mu           sync.Mutex
	active       *jobState
	history      []Job
	engine       Engine
	api          *RenderClient
	maxRetries   int
	backoff      time.Duration
	pollInterval time.Duration
	onUpdate     func(Job)
	logger       *zap.Logger
}

func NewController(cfg Config) *Controller {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 2 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Controller{
		engine:       cfg.Engine,
		api:          cfg.API,
		maxRetries:   cfg.MaxRetries,
		backoff:      cfg.Backoff,
		pollInterval: cfg.PollInterval,
		onUpdate:     cfg.OnUpdate,
		logger:       cfg.Logger,
	}
}

// CanStartExport is true iff no job is currently active.
func (c *Controller) CanStartExport() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active == nil || c.active.job.Progress.Status.Terminal()
}

// StartExport creates the job record and kicks off the drive loop. A second
// export while one is active is rejected, never queued.
func (c *Controller) StartExport(project Project, override *Settings) (string, error) {
	c.mu.Lock()
	if c.active != nil && !c.active.job.Progress.Status.Terminal() {
		c.mu.Unlock()
		return "", ErrExportActive
	}

	settings := settingsFor(project, override)
	job := Job{
		ID:        uuid.New().String(),
		ProjectID: project.ID,
		Settings:  settings,
		Progress: Progress{
			Status:      models.StatusIdle,
			TotalFrames: int(float64(settings.FPS) * settings.DurationSec),
		},
		CreatedAt:  time.Now(),
		MaxRetries: c.maxRetries,
	}

	ctx, cancel := context.WithCancel(context.Background())
	st := &jobState{
		job:    job,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.active = st
	c.mu.Unlock()

	c.logger.Info("export started",
		zap.String("job_id", job.ID),
		zap.String("project_id", job.ProjectID),
		zap.Int("width", settings.Width),
		zap.Int("height", settings.Height),
		zap.Int("fps", settings.FPS),
	)
	c.emit(job)

	go c.drive(ctx, st)

	return job.ID, nil
}

// CancelExport requests cooperative cancellation and marks the job cancelled
// locally right away; progress freezes at its last committed value even if
// the remote side has not observed the cancellation yet.
func (c *Controller) CancelExport() {
	c.mu.Lock()
	st := c.active
	if st == nil || st.job.Progress.Status.Terminal() {
		c.mu.Unlock()
		return
	}

	st.job.Progress.Status = models.StatusCancelled
	st.job.CancelledAt = time.Now()
	remoteID := st.remoteID
	snapshot := st.job
	c.mu.Unlock()

	st.cancel()

	if remoteID != "" && c.api != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := c.api.Cancel(ctx, remoteID); err != nil {
				c.logger.Warn("remote cancel failed", zap.Error(err))
			}
		}()
	}

	c.logger.Info("export cancelled",
		zap.String("job_id", snapshot.ID),
		zap.Int("progress", snapshot.Progress.Percent),
	)
	c.emit(snapshot)
}

// ActiveJob returns a copy of the current job, terminal or not.
func (c *Controller) ActiveJob() (Job, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return Job{}, ErrNoJob
	}
	return c.active.job, nil
}

// History lists terminal jobs, oldest first.
func (c *Controller) History() []Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Job, len(c.history))
	copy(out, c.history)
	return out
}

// Wait blocks until the current job reaches a terminal state and returns its
// terminal error, if any.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	st := c.active
	c.mu.Unlock()
	if st == nil {
		return ErrNoJob
	}

	select {
	case <-st.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return st.err
}

// EstimatedFileSize applies the same settings merge the real export would.
func (c *Controller) EstimatedFileSize(project Project, override *Settings) int64 {
	return EstimatedFileSize(project, override)
}

// drive runs the export with a bounded, explicit retry loop: a failed
// attempt is retried after a fixed backoff until MaxRetries is exhausted.
func (c *Controller) drive(ctx context.Context, st *jobState) {
	var err error
	for {
		err = c.runOnce(ctx, st)
		if err == nil || errors.Is(err, ErrCancelled) || ctx.Err() != nil {
			break
		}

		c.mu.Lock()
		st.job.RetryCount++
		exhausted := st.job.RetryCount >= st.job.MaxRetries
		attempt := st.job.RetryCount
		c.mu.Unlock()

		if exhausted {
			break
		}

		c.logger.Warn("export attempt failed, retrying",
			zap.String("job_id", st.job.ID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		c.resetProgress(st)

		select {
		case <-time.After(c.backoff):
		case <-ctx.Done():
			err = ErrCancelled
		}
		if errors.Is(err, ErrCancelled) {
			break
		}
	}

	c.finish(st, err)
}

func (c *Controller) runOnce(ctx context.Context, st *jobState) error {
	if c.engine != nil {
		return c.runEngine(ctx, st)
	}
	if c.api != nil {
		return c.runRemote(ctx, st)
	}
	return errors.New("no render engine or render API configured")
}

func (c *Controller) runEngine(ctx context.Context, st *jobState) error {
	c.setProgress(st, Progress{Status: models.StatusPreparing})

	project := Project{
		ID:          st.job.ProjectID,
		Width:       st.job.Settings.Width,
		Height:      st.job.Settings.Height,
		FPS:         st.job.Settings.FPS,
		DurationSec: st.job.Settings.DurationSec,
	}

	bundle, err := c.engine.Bundle(ctx, project)
	if err != nil {
		return c.wrap("bundle composition", ctx, err)
	}

	comps, err := c.engine.Compositions(ctx, bundle)
	if err != nil {
		return c.wrap("list compositions", ctx, err)
	}
	if len(comps) == 0 {
		return errors.New("bundle has no compositions")
	}
	comp := comps[0]

	c.setProgress(st, Progress{Status: models.StatusRendering, TotalFrames: comp.DurationFrames})

	output, err := c.engine.Render(ctx, bundle, comp, st.job.Settings, func(p RenderProgress) {
		c.setProgress(st, Progress{
			Status:       models.StatusRendering,
			Percent:      framePercent(p.RenderedFrames, p.TotalFrames),
			CurrentFrame: p.RenderedFrames,
			TotalFrames:  p.TotalFrames,
		})
	})
	if err != nil {
		return c.wrap("render media", ctx, err)
	}

	c.setProgress(st, Progress{Status: models.StatusFinalizing, Percent: 99})
	c.complete(st, output)
	return nil
}

func (c *Controller) runRemote(ctx context.Context, st *jobState) error {
	remoteID, err := c.api.Create(ctx, st.job.ProjectID, st.job.Settings.wire())
	if err != nil {
		return c.wrap("create render job", ctx, err)
	}

	c.mu.Lock()
	st.remoteID = remoteID
	c.mu.Unlock()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ErrCancelled
		case <-ticker.C:
		}

		status, err := c.api.Status(ctx, remoteID)
		if err != nil {
			return c.wrap("poll render job", ctx, err)
		}

		c.setProgress(st, translate(status))

		switch models.JobStatus(status.Status) {
		case models.StatusCompleted:
			c.complete(st, status.Output)
			return nil
		case models.StatusFailed:
			if status.Error != "" {
				return fmt.Errorf("render failed: %s", status.Error)
			}
			return errors.New("render failed")
		case models.StatusCancelled:
			return ErrCancelled
		}
	}
}

// setProgress merges an update into the job, keeping the percentage
// monotone and refusing writes once the job is terminal (a cancel may have
// landed between the remote read and here).
func (c *Controller) setProgress(st *jobState, p Progress) {
	c.mu.Lock()
	if st.job.Progress.Status.Terminal() {
		c.mu.Unlock()
		return
	}

	if p.Percent < st.job.Progress.Percent {
		p.Percent = st.job.Progress.Percent
	}
	if p.CurrentFrame < st.job.Progress.CurrentFrame {
		p.CurrentFrame = st.job.Progress.CurrentFrame
	}
	if p.TotalFrames == 0 {
		p.TotalFrames = st.job.Progress.TotalFrames
	}
	st.job.Progress = p
	snapshot := st.job
	c.mu.Unlock()

	c.emit(snapshot)
}

// resetProgress rewinds the job for a fresh retry attempt; the one place
// progress is allowed to move backwards.
func (c *Controller) resetProgress(st *jobState) {
	c.mu.Lock()
	if st.job.Progress.Status.Terminal() {
		c.mu.Unlock()
		return
	}
	st.job.Progress = Progress{
		Status:      models.StatusPreparing,
		TotalFrames: st.job.Progress.TotalFrames,
	}
	snapshot := st.job
	c.mu.Unlock()

	c.emit(snapshot)
}

func (c *Controller) complete(st *jobState, output string) {
	c.mu.Lock()
	if st.job.Progress.Status.Terminal() {
		c.mu.Unlock()
		return
	}
	st.job.Progress.Status = models.StatusCompleted
	st.job.Progress.Percent = 100
	if st.job.Progress.TotalFrames > 0 {
		st.job.Progress.CurrentFrame = st.job.Progress.TotalFrames
	}
	st.job.Output = output
	st.job.CompletedAt = time.Now()
	snapshot := st.job
	c.mu.Unlock()

	c.emit(snapshot)
}

func (c *Controller) finish(st *jobState, err error) {
	c.mu.Lock()
	switch {
	case err == nil:
		// completed already recorded by runOnce
	case errors.Is(err, ErrCancelled):
		if !st.job.Progress.Status.Terminal() {
			st.job.Progress.Status = models.StatusCancelled
			st.job.CancelledAt = time.Now()
		}
	default:
		if !st.job.Progress.Status.Terminal() {
			st.job.Progress.Status = models.StatusFailed
			st.job.Progress.ErrorMessage = err.Error()
			st.job.CompletedAt = time.Now()
		}
	}
	st.err = err
	c.history = append(c.history, st.job)
	snapshot := st.job
	c.mu.Unlock()

	close(st.done)

	c.logger.Info("export finished",
		zap.String("job_id", snapshot.ID),
		zap.String("status", string(snapshot.Progress.Status)),
		zap.Int("progress", snapshot.Progress.Percent),
	)
	c.emit(snapshot)
}

func (c *Controller) emit(job Job) {
	if c.onUpdate != nil {
		c.onUpdate(job)
	}
}

// wrap folds ctx cancellation into ErrCancelled so user aborts are never
// mistaken for render failures.
func (c *Controller) wrap(op string, ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return ErrCancelled
	}
	return fmt.Errorf("%s: %w", op, err)
}

// framePercent converts raw frame counts to the UI percentage: 0 until the
// total is known, round(min(100, rendered/total*100)) after.
func framePercent(rendered, total int) int {
	if total <= 0 {
		return 0
	}
	pct := math.Round(math.Min(100, float64(rendered)/float64(total)*100))
	return int(pct)
}

func translate(status *dto.JobStatusResponse) Progress {
	return Progress{
		Status:       models.JobStatus(status.Status),
		Percent:      status.Progress,
		CurrentFrame: status.CurrentFrame,
		TotalFrames:  status.TotalFrames,
		ErrorMessage: status.Error,
	}
}
