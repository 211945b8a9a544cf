package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"mediastudio/api/dto"
	"mediastudio/api/middleware"
	"mediastudio/api/models"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, message string, err error, status int) {
	traceID := middleware.GetTraceID(r.Context())

	logger.Error(message,
		zap.String("trace_id", traceID),
		zap.Error(err),
	)

	respondJSON(w, status, dto.ErrorResponse{
		Error:   message,
		TraceID: traceID,
	})
}

func jobStatusResponse(job *models.RenderJob) *dto.JobStatusResponse {
	var completedAt *string
	if job.CompletedAt != nil {
		formatted := job.CompletedAt.Format("2006-01-02T15:04:05Z")
		completedAt = &formatted
	}

	return &dto.JobStatusResponse{
		ID:           job.ID,
		Status:       string(job.Status),
		Progress:     job.Progress,
		CurrentFrame: job.CurrentFrame,
		TotalFrames:  job.TotalFrames,
		Output:       job.OutputPath,
		Error:        job.ErrorMessage,
		CreatedAt:    job.CreatedAt.Format("2006-01-02T15:04:05Z"),
		CompletedAt:  completedAt,
	}
}
