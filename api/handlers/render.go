package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"mediastudio/api/dto"
	"mediastudio/api/middleware"
	"mediastudio/api/models"
	"mediastudio/api/repository"
	"mediastudio/api/storage"
)

// RenderService is what the handlers need from the service layer; the
// concrete implementation lives in api/service.
type RenderService interface {
	CreateJob(ctx context.Context, traceID string, req *dto.CreateJobRequest) (*models.RenderJob, error)
	GetJobStatus(ctx context.Context, jobID string) (*models.RenderJob, error)
	CancelJob(ctx context.Context, jobID string) error
}

type RenderHandler struct {
	service RenderService
	store   *storage.BlobStore
	logger  *zap.Logger
}

func NewRenderHandler(service RenderService, store *storage.BlobStore, logger *zap.Logger) *RenderHandler {
	return &RenderHandler{
		service: service,
		store:   store,
		logger:  logger,
	}
}

// Create starts an asynchronous render job and returns immediately with its id.
func (h *RenderHandler) Create(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	var req dto.CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, h.logger, "invalid request body", err, http.StatusBadRequest)
		return
	}
	if req.ProjectID == "" {
		respondError(w, r, h.logger, "project_id is required", nil, http.StatusBadRequest)
		return
	}
	if req.Settings.Format == "" {
		req.Settings.Format = "mp4"
	}

	job, err := h.service.CreateJob(r.Context(), traceID, &req)
	if err != nil {
		respondError(w, r, h.logger, "failed to create render job", err, http.StatusInternalServerError)
		return
	}

	h.logger.Info("render job created",
		zap.String("trace_id", traceID),
		zap.String("job_id", job.ID),
		zap.String("project_id", job.ProjectID),
	)

	respondJSON(w, http.StatusAccepted, dto.CreateJobResponse{JobID: job.ID})
}

func (h *RenderHandler) Status(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		respondError(w, r, h.logger, "job id is required", nil, http.StatusBadRequest)
		return
	}

	job, err := h.service.GetJobStatus(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			respondError(w, r, h.logger, "render job not found", err, http.StatusNotFound)
			return
		}
		respondError(w, r, h.logger, "failed to get job status", err, http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, jobStatusResponse(job))
}

// Download streams the finished artifact; anything short of completed is a 404.
func (h *RenderHandler) Download(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		respondError(w, r, h.logger, "job id is required", nil, http.StatusBadRequest)
		return
	}

	job, err := h.service.GetJobStatus(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			respondError(w, r, h.logger, "render job not found", err, http.StatusNotFound)
			return
		}
		respondError(w, r, h.logger, "failed to get job", err, http.StatusInternalServerError)
		return
	}

	if job.Status != models.StatusCompleted || job.OutputPath == "" {
		respondError(w, r, h.logger, "render job has no artifact", nil, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeFile(w, r, job.OutputPath)
}

func (h *RenderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	jobID := r.PathValue("id")
	if jobID == "" {
		respondError(w, r, h.logger, "job id is required", nil, http.StatusBadRequest)
		return
	}

	if err := h.service.CancelJob(r.Context(), jobID); err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			respondError(w, r, h.logger, "render job not found", err, http.StatusNotFound)
			return
		}
		respondError(w, r, h.logger, "failed to cancel job", err, http.StatusInternalServerError)
		return
	}

	h.logger.Info("render job cancel requested",
		zap.String("trace_id", traceID),
		zap.String("job_id", jobID),
	)

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}
