package handlers

import (
	"encoding/json"
	"net/http"

	"drawing-trainer/core/models"
	"drawing-trainer/core/quality"
)

// QualityHandler scores submitted stroke data
type QualityHandler struct{}

// NewQualityHandler creates a new quality handler
func NewQualityHandler() *QualityHandler {
	return &QualityHandler{}
}

// ScoreDrawing handles POST /v1/quality/score. The result is advisory;
// persisting it against a drawing record is the caller's job.
func (h *QualityHandler) ScoreDrawing(w http.ResponseWriter, r *http.Request) {
	var data models.StrokeData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeError(w, http.StatusBadRequest, "invalid stroke data")
		return
	}

	writeJSON(w, http.StatusOK, quality.ScoreDrawing(data))
}
