package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"effectlab/internal/domain"
)

type submitJobRequest struct {
	ImageID  string `json:"image_id"`
	EffectID string `json:"effect_id"`
}

type jobStatusResponse struct {
	JobID         string     `json:"job_id"`
	Status        string     `json:"status"`
	Progress      int        `json:"progress"`
	ResultImageID string     `json:"result_image_id,omitempty"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// SubmitJob validates the request and enqueues an effect job. Returns 202
// with the new job id; the transformation itself runs detached.
func (a *App) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.ImageID == "" || req.EffectID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "image_id and effect_id are required")
		return
	}

	jobID, err := a.Jobs.Submit(r.Context(), req.ImageID, req.EffectID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnknownEffect):
			a.error(w, http.StatusBadRequest, "unknown_effect", "effect does not exist")
		case errors.Is(err, domain.ErrUnknownImage):
			a.error(w, http.StatusBadRequest, "unknown_image", "image does not exist")
		default:
			a.Logger.Error().Err(err).Msg("handlers: job submission failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to submit job")
		}
		return
	}

	a.json(w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"status": string(domain.JobStatusPending),
	})
}

// JobStatus is the polling read over job state.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := a.Jobs.GetStatus(jobID)
	if err != nil {
		a.error(w, http.StatusNotFound, "job_not_found", "job not found")
		return
	}
	a.json(w, http.StatusOK, jobStatusResponse{
		JobID:         job.ID,
		Status:        string(job.Status),
		Progress:      job.Progress,
		ResultImageID: job.ResultImageID,
		ErrorMessage:  job.ErrorMessage,
		CreatedAt:     job.CreatedAt,
		CompletedAt:   job.CompletedAt,
	})
}
