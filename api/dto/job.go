package dto

import (
	"errors"

	"mediastudio/api/models"
)

var (
	ErrJobNotFound  = errors.New("render job not found")
	ErrBlobNotFound = errors.New("upload not found")
)

type CreateJobRequest struct {
	ProjectID string             `json:"project_id"`
	Settings  models.JobSettings `json:"settings"`
}

type CreateJobResponse struct {
	JobID string `json:"job_id"`
}

type JobStatusResponse struct {
	ID           string  `json:"id"`
	Status       string  `json:"status"`
	Progress     int     `json:"progress"`
	CurrentFrame int     `json:"current_frame,omitempty"`
	TotalFrames  int     `json:"total_frames,omitempty"`
	Output       string  `json:"output,omitempty"`
	Error        string  `json:"error,omitempty"`
	CreatedAt    string  `json:"created_at"`
	CompletedAt  *string `json:"completed_at,omitempty"`
}

type UploadResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}
