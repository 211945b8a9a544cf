package uploader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTransition_Lifecycle(t *testing.T) {
	now := time.Now()
	task := Task{ID: "t1", Status: StatusQueued}

	task = transition(task, evStart{}, now)
	assert.Equal(t, StatusUploading, task.Status)
	assert.Equal(t, now, task.StartedAt)

	task = transition(task, evProgress{pct: 40}, now)
	assert.Equal(t, 40, task.Progress)

	task = transition(task, evSucceeded{url: "/uploads/a"}, now)
	assert.Equal(t, StatusUploaded, task.Status)
	assert.Equal(t, 100, task.Progress)
	assert.Equal(t, "/uploads/a", task.URL)
}

func TestTransition_ProgressIsMonotone(t *testing.T) {
	now := time.Now()
	task := Task{Status: StatusUploading, Progress: 60}

	task = transition(task, evProgress{pct: 30}, now)
	assert.Equal(t, 60, task.Progress, "progress must never move backwards while uploading")

	task = transition(task, evProgress{pct: 250}, now)
	assert.Equal(t, 100, task.Progress, "progress is clamped to 100")
}

func TestTransition_ProgressIgnoredOutsideUploading(t *testing.T) {
	now := time.Now()
	for _, status := range []Status{StatusQueued, StatusUploaded, StatusFailed, StatusCancelled} {
		task := Task{Status: status, Progress: 10}
		task = transition(task, evProgress{pct: 90}, now)
		assert.Equal(t, 10, task.Progress, "status %s", status)
	}
}

func TestTransition_TerminalStatesAbsorb(t *testing.T) {
	now := time.Now()

	for _, status := range []Status{StatusUploaded, StatusCancelled} {
		task := Task{Status: status, Progress: 100}
		assert.Equal(t, status, transition(task, evFailed{msg: "x"}, now).Status)
		assert.Equal(t, status, transition(task, evCancelled{}, now).Status)
		assert.Equal(t, status, transition(task, evStart{}, now).Status)
		assert.Equal(t, status, transition(task, evRetry{}, now).Status)
	}
}

func TestTransition_RetryOnlyFromFailed(t *testing.T) {
	now := time.Now()

	failed := Task{Status: StatusFailed, Progress: 70, Err: "boom"}
	retried := transition(failed, evRetry{}, now)
	assert.Equal(t, StatusQueued, retried.Status)
	assert.Equal(t, 0, retried.Progress)
	assert.Empty(t, retried.Err)

	uploading := Task{Status: StatusUploading, Progress: 30}
	assert.Equal(t, uploading, transition(uploading, evRetry{}, now))
}

func TestTransition_CancelBeatsFailure(t *testing.T) {
	now := time.Now()
	task := Task{Status: StatusUploading, Progress: 50}

	task = transition(task, evCancelled{}, now)
	assert.Equal(t, StatusCancelled, task.Status)

	// A late failure report must not flip a cancelled task to failed.
	task = transition(task, evFailed{msg: "connection reset"}, now)
	assert.Equal(t, StatusCancelled, task.Status)
	assert.Empty(t, task.Err)
}

func TestTransition_TimestampsSetOnce(t *testing.T) {
	first := time.Now()
	later := first.Add(time.Minute)

	task := Task{Status: StatusQueued}
	task = transition(task, evStart{}, first)
	task = transition(task, evFailed{msg: "x"}, first)
	assert.Equal(t, first, task.CompletedAt)

	task = transition(task, evRetry{}, later)
	task = transition(task, evStart{}, later)
	assert.Equal(t, first, task.StartedAt, "startedAt is set once")
}
