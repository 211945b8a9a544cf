package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"mediastudio/api/dto"
	"mediastudio/api/simulator"
)

// SimJobHandler exposes the legacy timed-step job API backed by the
// in-process simulator. It speaks the same status vocabulary as the real
// render endpoints so clients can poll either interchangeably.
type SimJobHandler struct {
	sim    *simulator.Simulator
	logger *zap.Logger
}

func NewSimJobHandler(sim *simulator.Simulator, logger *zap.Logger) *SimJobHandler {
	return &SimJobHandler{
		sim:    sim,
		logger: logger,
	}
}

func (h *SimJobHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, h.logger, "invalid request body", err, http.StatusBadRequest)
		return
	}
	if req.Settings.Format == "" {
		req.Settings.Format = "mp4"
	}

	jobID := h.sim.Create(req.ProjectID, req.Settings)

	respondJSON(w, http.StatusAccepted, dto.CreateJobResponse{JobID: jobID})
}

func (h *SimJobHandler) Status(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		respondError(w, r, h.logger, "job id is required", nil, http.StatusBadRequest)
		return
	}

	job, err := h.sim.Get(jobID)
	if err != nil {
		if errors.Is(err, simulator.ErrJobNotFound) {
			respondError(w, r, h.logger, "job not found", err, http.StatusNotFound)
			return
		}
		respondError(w, r, h.logger, "failed to get job", err, http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, jobStatusResponse(&job))
}

func (h *SimJobHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		respondError(w, r, h.logger, "job id is required", nil, http.StatusBadRequest)
		return
	}

	if err := h.sim.Cancel(jobID); err != nil {
		if errors.Is(err, simulator.ErrJobNotFound) {
			respondError(w, r, h.logger, "job not found", err, http.StatusNotFound)
			return
		}
		respondError(w, r, h.logger, "failed to cancel job", err, http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}
