package repository

import (
	"context"
	"time"

	"drawing-trainer/core/models"

	"github.com/google/uuid"
)

// ModelRepository handles database operations for trained model records
type ModelRepository struct {
	db *DB
}

// NewModelRepository creates a new model repository
func NewModelRepository(db *DB) *ModelRepository {
	return &ModelRepository{db: db}
}

// CreateModel inserts a registry record for a completed training job and
// returns its id. The version string is derived from the current time.
func (r *ModelRepository) CreateModel(ctx context.Context, jobID, modelPath string, accuracy float64) (string, error) {
	modelID := uuid.New().String()
	version := "v" + time.Now().Format("20060102_150405")

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO models (id, training_job_id, version, accuracy, model_path, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())`,
		modelID, jobID, version, accuracy, modelPath,
	)
	if err != nil {
		return "", err
	}

	return modelID, nil
}

// ListModels returns the registry records for a job, newest first
func (r *ModelRepository) ListModels(ctx context.Context, jobID string) ([]models.Model, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, training_job_id, version, accuracy, model_path, created_at
		 FROM models
		 WHERE training_job_id = $1
		 ORDER BY created_at DESC`,
		jobID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.Model
	for rows.Next() {
		var m models.Model
		if err := rows.Scan(&m.ID, &m.TrainingJobID, &m.Version, &m.Accuracy, &m.ModelPath, &m.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, m)
	}

	return result, rows.Err()
}
