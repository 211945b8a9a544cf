package uploader

import (
	"time"
)

// The task lifecycle is driven by a discriminated union of events applied
// through a pure transition function. Illegal events for the current status
// leave the task untouched, which is what makes the terminal states
// absorbing.

type event interface {
	isEvent()
}

type evStart struct{}

type evProgress struct {
	pct int
}

type evSucceeded struct {
	url string
}

type evFailed struct {
	msg string
}

type evCancelled struct{}

type evRetry struct{}

func (evStart) isEvent()     {}
func (evProgress) isEvent()  {}
func (evSucceeded) isEvent() {}
func (evFailed) isEvent()    {}
func (evCancelled) isEvent() {}
func (evRetry) isEvent()     {}

// transition returns the task after applying ev. It never mutates its input.
func transition(t Task, ev event, now time.Time) Task {
	switch ev := ev.(type) {
	case evStart:
		if t.Status != StatusQueued {
			return t
		}
		t.Status = StatusUploading
		if t.StartedAt.IsZero() {
			t.StartedAt = now
		}

	case evProgress:
		if t.Status != StatusUploading {
			return t
		}
		pct := ev.pct
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		// Progress only ever moves forward while uploading.
		if pct > t.Progress {
			t.Progress = pct
		}

	case evSucceeded:
		if t.Status.Terminal() {
			return t
		}
		t.Status = StatusUploaded
		t.Progress = 100
		t.URL = ev.url
		t.Err = ""
		if t.CompletedAt.IsZero() {
			t.CompletedAt = now
		}

	case evFailed:
		if t.Status.Terminal() {
			return t
		}
		t.Status = StatusFailed
		t.Err = ev.msg
		if t.CompletedAt.IsZero() {
			t.CompletedAt = now
		}

	case evCancelled:
		if t.Status.Terminal() {
			return t
		}
		t.Status = StatusCancelled
		if t.CompletedAt.IsZero() {
			t.CompletedAt = now
		}

	case evRetry:
		if t.Status != StatusFailed {
			return t
		}
		t.Status = StatusQueued
		t.Progress = 0
		t.Err = ""
	}

	return t
}
