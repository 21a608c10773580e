package routes

import (
	"drawing-trainer/api/rest/handlers"
	"drawing-trainer/core/repository"

	"github.com/gorilla/mux"
)

// SetupRoutes configures the worker's admin API routes
func SetupRoutes(r *mux.Router, jobRepo *repository.JobRepository, modelRepo *repository.ModelRepository) {
	jobHandler := handlers.NewJobHandler(jobRepo, modelRepo)
	qualityHandler := handlers.NewQualityHandler()

	api := r.PathPrefix("/v1").Subrouter()

	// Job endpoints
	api.HandleFunc("/jobs/{id}", jobHandler.GetJob).Methods("GET")
	api.HandleFunc("/jobs/{id}/cancel", jobHandler.CancelJob).Methods("POST")
	api.HandleFunc("/jobs/{id}/models", jobHandler.GetJobModels).Methods("GET")

	// Quality scoring
	api.HandleFunc("/quality/score", qualityHandler.ScoreDrawing).Methods("POST")
}
