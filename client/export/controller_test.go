package export

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"mediastudio/api/dto"
	"mediastudio/api/models"
)

// fakeEngine scripts the render pipeline. failures controls how many Render
// calls fail before one succeeds; holdAt, when set, parks Render at that
// frame until the context is cancelled.
type fakeEngine struct {
	mu       sync.Mutex
	failures int
	holdAt   int
	held     chan struct{}
	renders  int
	frames   int
}

func newFakeEngine(frames int) *fakeEngine {
	return &fakeEngine{frames: frames, held: make(chan struct{}, 1)}
}

func (e *fakeEngine) Bundle(ctx context.Context, project Project) (string, error) {
	return "bundle://" + project.ID, nil
}

func (e *fakeEngine) Compositions(ctx context.Context, bundle string) ([]Composition, error) {
	return []Composition{{ID: "main", Width: 1920, Height: 1080, FPS: 30, DurationFrames: e.frames}}, nil
}

func (e *fakeEngine) Render(ctx context.Context, bundle string, comp Composition, settings Settings, onProgress func(RenderProgress)) (string, error) {
	e.mu.Lock()
	e.renders++
	fail := e.failures > 0
	if fail {
		e.failures--
	}
	holdAt := e.holdAt
	e.mu.Unlock()

	if fail {
		return "", errors.New("encoder crashed")
	}

	for frame := 1; frame <= comp.DurationFrames; frame++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		onProgress(RenderProgress{RenderedFrames: frame, TotalFrames: comp.DurationFrames})
		if holdAt > 0 && frame == holdAt {
			select {
			case e.held <- struct{}{}:
			default:
			}
			<-ctx.Done()
			return "", ctx.Err()
		}
	}
	return "/exports/out.mp4", nil
}

func (e *fakeEngine) renderCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.renders
}

func testProject() Project {
	return Project{ID: "p1", Name: "demo", Width: 1920, Height: 1080, FPS: 30, DurationSec: 10}
}

func TestController_EngineExportPhaseOrder(t *testing.T) {
	engine := newFakeEngine(100)

	var mu sync.Mutex
	var updates []Progress
	ctrl := NewController(Config{
		Engine: engine,
		Logger: zaptest.NewLogger(t),
		OnUpdate: func(job Job) {
			mu.Lock()
			updates = append(updates, job.Progress)
			mu.Unlock()
		},
	})

	_, err := ctrl.StartExport(testProject(), nil)
	require.NoError(t, err)
	require.NoError(t, ctrl.Wait(context.Background()))

	job, err := ctrl.ActiveJob()
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, job.Progress.Status)
	assert.Equal(t, 100, job.Progress.Percent)
	assert.Equal(t, 100, job.Progress.CurrentFrame)
	assert.Equal(t, "/exports/out.mp4", job.Output)
	assert.False(t, job.CompletedAt.IsZero())

	mu.Lock()
	defer mu.Unlock()
	rank := map[models.JobStatus]int{
		models.StatusIdle:       0,
		models.StatusPreparing:  1,
		models.StatusRendering:  2,
		models.StatusFinalizing: 3,
		models.StatusCompleted:  4,
	}
	for i := 1; i < len(updates); i++ {
		assert.GreaterOrEqual(t, rank[updates[i].Status], rank[updates[i-1].Status],
			"phases only move forward: %s after %s", updates[i].Status, updates[i-1].Status)
		assert.GreaterOrEqual(t, updates[i].Percent, updates[i-1].Percent,
			"percent is monotone")
	}
	assert.Equal(t, 100, updates[len(updates)-1].Percent)
}

func TestController_SecondStartRejected(t *testing.T) {
	engine := newFakeEngine(50)
	engine.holdAt = 10

	ctrl := NewController(Config{Engine: engine, Logger: zaptest.NewLogger(t)})

	_, err := ctrl.StartExport(testProject(), nil)
	require.NoError(t, err)
	<-engine.held

	_, err = ctrl.StartExport(testProject(), nil)
	assert.ErrorIs(t, err, ErrExportActive)

	ctrl.CancelExport()
	_ = ctrl.Wait(context.Background())

	// A terminal job no longer blocks the next export.
	assert.True(t, ctrl.CanStartExport())
}

func TestController_CancelFreezesProgress(t *testing.T) {
	engine := newFakeEngine(100)
	engine.holdAt = 45

	ctrl := NewController(Config{Engine: engine, Logger: zaptest.NewLogger(t)})

	_, err := ctrl.StartExport(testProject(), nil)
	require.NoError(t, err)
	<-engine.held

	ctrl.CancelExport()
	err = ctrl.Wait(context.Background())
	assert.ErrorIs(t, err, ErrCancelled)

	job, jobErr := ctrl.ActiveJob()
	require.NoError(t, jobErr)
	assert.Equal(t, models.StatusCancelled, job.Progress.Status)
	assert.Equal(t, 45, job.Progress.Percent, "progress freezes at its last committed value")
	assert.False(t, job.CancelledAt.IsZero())
}

func TestController_RetryExhaustionFails(t *testing.T) {
	engine := newFakeEngine(10)
	engine.failures = 10 // never recovers

	ctrl := NewController(Config{
		Engine:     engine,
		MaxRetries: 2,
		Backoff:    time.Millisecond,
		Logger:     zaptest.NewLogger(t),
	})

	_, err := ctrl.StartExport(testProject(), nil)
	require.NoError(t, err)

	err = ctrl.Wait(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCancelled)

	job, jobErr := ctrl.ActiveJob()
	require.NoError(t, jobErr)
	assert.Equal(t, models.StatusFailed, job.Progress.Status)
	assert.NotEmpty(t, job.Progress.ErrorMessage)
	assert.Equal(t, 2, job.RetryCount)
	assert.Equal(t, 2, engine.renderCalls(), "attempts stop at the retry budget")
}

func TestController_RetryRecovers(t *testing.T) {
	engine := newFakeEngine(10)
	engine.failures = 1

	ctrl := NewController(Config{
		Engine:     engine,
		MaxRetries: 2,
		Backoff:    time.Millisecond,
		Logger:     zaptest.NewLogger(t),
	})

	_, err := ctrl.StartExport(testProject(), nil)
	require.NoError(t, err)
	require.NoError(t, ctrl.Wait(context.Background()))

	job, jobErr := ctrl.ActiveJob()
	require.NoError(t, jobErr)
	assert.Equal(t, models.StatusCompleted, job.Progress.Status)
	assert.Equal(t, 1, job.RetryCount)
	assert.Equal(t, 2, engine.renderCalls())
	assert.Len(t, ctrl.History(), 1)
}

func TestController_RemoteModeCompletes(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/render":
			var req dto.CreateJobRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "p1", req.ProjectID)
			assert.Equal(t, "mp4", req.Settings.Format)
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(dto.CreateJobResponse{JobID: "remote-1"})
		case r.Method == http.MethodGet && r.URL.Path == "/render/remote-1/status":
			resp := dto.JobStatusResponse{ID: "remote-1"}
			switch polls.Add(1) {
			case 1:
				resp.Status = string(models.StatusPreparing)
				resp.Progress = 5
			case 2:
				resp.Status = string(models.StatusRendering)
				resp.Progress = 40
				resp.CurrentFrame = 120
				resp.TotalFrames = 300
			default:
				resp.Status = string(models.StatusCompleted)
				resp.Progress = 100
				resp.CurrentFrame = 300
				resp.TotalFrames = 300
				resp.Output = "/exports/remote-1.mp4"
			}
			json.NewEncoder(w).Encode(resp)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctrl := NewController(Config{
		API:          NewRenderClient(srv.URL),
		PollInterval: 5 * time.Millisecond,
		Logger:       zaptest.NewLogger(t),
	})

	_, err := ctrl.StartExport(testProject(), nil)
	require.NoError(t, err)
	require.NoError(t, ctrl.Wait(context.Background()))

	job, jobErr := ctrl.ActiveJob()
	require.NoError(t, jobErr)
	assert.Equal(t, models.StatusCompleted, job.Progress.Status)
	assert.Equal(t, 100, job.Progress.Percent)
	assert.Equal(t, "/exports/remote-1.mp4", job.Output)
	assert.GreaterOrEqual(t, polls.Load(), int32(3))
}

func TestController_RemoteFailureSurfacesMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/render":
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(dto.CreateJobResponse{JobID: "remote-2"})
		case r.Method == http.MethodGet && r.URL.Path == "/render/remote-2/status":
			json.NewEncoder(w).Encode(dto.JobStatusResponse{
				ID:     "remote-2",
				Status: string(models.StatusFailed),
				Error:  "disk full",
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctrl := NewController(Config{
		API:          NewRenderClient(srv.URL),
		MaxRetries:   1,
		Backoff:      time.Millisecond,
		PollInterval: 5 * time.Millisecond,
		Logger:       zaptest.NewLogger(t),
	})

	_, err := ctrl.StartExport(testProject(), nil)
	require.NoError(t, err)

	err = ctrl.Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestController_NoJobYet(t *testing.T) {
	ctrl := NewController(Config{Engine: newFakeEngine(1), Logger: zaptest.NewLogger(t)})
	_, err := ctrl.ActiveJob()
	assert.ErrorIs(t, err, ErrNoJob)
	assert.ErrorIs(t, ctrl.Wait(context.Background()), ErrNoJob)
	assert.True(t, ctrl.CanStartExport())
}

func TestFramePercent(t *testing.T) {
	assert.Equal(t, 0, framePercent(10, 0), "unknown total reports zero")
	assert.Equal(t, 0, framePercent(0, 300))
	assert.Equal(t, 50, framePercent(150, 300))
	assert.Equal(t, 100, framePercent(300, 300))
	assert.Equal(t, 100, framePercent(400, 300), "overshoot clamps to 100")
	assert.Equal(t, 33, framePercent(1, 3))
}
