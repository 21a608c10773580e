package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"drawing-trainer/core/models"
	"drawing-trainer/core/repository"

	"github.com/gorilla/mux"
)

// JobStore is the subset of the job repository the admin API needs
type JobStore interface {
	GetJob(ctx context.Context, jobID string) (*models.TrainingJob, error)
	Cancel(ctx context.Context, jobID string) (bool, error)
}

// ModelStore lists registry records for a job
type ModelStore interface {
	ListModels(ctx context.Context, jobID string) ([]models.Model, error)
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	jobs   JobStore
	models ModelStore
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobs JobStore, models ModelStore) *JobHandler {
	return &JobHandler{jobs: jobs, models: models}
}

// JobResponse is the wire form of a job record
type JobResponse struct {
	ID           string                  `json:"id"`
	Status       string                  `json:"status"`
	Config       models.TrainingConfig   `json:"config"`
	Progress     *models.Progress        `json:"progress,omitempty"`
	Metrics      *models.TrainingMetrics `json:"metrics,omitempty"`
	ModelPath    string                  `json:"model_path,omitempty"`
	ErrorMessage string                  `json:"error_message,omitempty"`
	StartedAt    *time.Time              `json:"started_at,omitempty"`
	CompletedAt  *time.Time              `json:"completed_at,omitempty"`
	CreatedAt    time.Time               `json:"created_at"`
}

// GetJob handles GET /v1/jobs/{id}
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]

	job, err := h.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}

	writeJSON(w, http.StatusOK, JobResponse{
		ID:           job.ID,
		Status:       string(job.Status),
		Config:       job.Config,
		Progress:     job.Progress,
		Metrics:      job.Metrics,
		ModelPath:    job.ModelPath,
		ErrorMessage: job.ErrorMessage,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
		CreatedAt:    job.CreatedAt,
	})
}

// CancelJob handles POST /v1/jobs/{id}/cancel. This endpoint is the only
// writer of the cancelled state; a running worker observes it at its next
// epoch boundary.
func (h *JobHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]

	cancelled, err := h.jobs.Cancel(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to cancel job")
		return
	}
	if !cancelled {
		writeError(w, http.StatusConflict, "job is not pending or running")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"id":     jobID,
		"status": string(models.JobStatusCancelled),
	})
}

// ModelResponse is the wire form of a model registry record
type ModelResponse struct {
	ID            string    `json:"id"`
	TrainingJobID string    `json:"training_job_id"`
	Version       string    `json:"version"`
	Accuracy      float64   `json:"accuracy"`
	ModelPath     string    `json:"model_path"`
	CreatedAt     time.Time `json:"created_at"`
}

// GetJobModels handles GET /v1/jobs/{id}/models
func (h *JobHandler) GetJobModels(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]

	records, err := h.models.ListModels(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list models")
		return
	}

	resp := make([]ModelResponse, 0, len(records))
	for _, m := range records {
		resp = append(resp, ModelResponse{
			ID:            m.ID,
			TrainingJobID: m.TrainingJobID,
			Version:       m.Version,
			Accuracy:      m.Accuracy,
			ModelPath:     m.ModelPath,
			CreatedAt:     m.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
