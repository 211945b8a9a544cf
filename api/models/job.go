package models

import (
	"time"
)

type JobStatus string

const (
	// StatusIdle is only ever seen client-side, before a job record exists
	// on the server.
	StatusIdle       JobStatus = "idle"
	StatusQueued     JobStatus = "queued"
	StatusPreparing  JobStatus = "preparing"
	StatusRendering  JobStatus = "rendering"
	StatusFinalizing JobStatus = "finalizing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether no further automatic transition can occur.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// JobSettings is immutable once a job starts; the runner never mutates it.
type JobSettings struct {
	Format       string  `json:"format"`
	Codec        string  `json:"codec"`
	Quality      string  `json:"quality"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	FPS          int     `json:"fps"`
	AudioCodec   string  `json:"audio_codec"`
	AudioBitrate int     `json:"audio_bitrate"`
	DurationSec  float64 `json:"duration_sec"`
}

type JobProgress struct {
	Status       JobStatus `json:"status"`
	Percent      int       `json:"progress"`
	CurrentFrame int       `json:"current_frame,omitempty"`
	TotalFrames  int       `json:"total_frames,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

type RenderJob struct {
	ID           string
	TraceID      string
	ProjectID    string
	Settings     JobSettings
	Status       JobStatus
	Progress     int
	CurrentFrame int
	TotalFrames  int
	OutputPath   string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
	CancelledAt  *time.Time
}
