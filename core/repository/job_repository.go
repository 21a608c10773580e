package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"drawing-trainer/core/models"
)

// JobRepository handles database operations for training jobs
type JobRepository struct {
	db *DB
}

// NewJobRepository creates a new job repository
func NewJobRepository(db *DB) *JobRepository {
	return &JobRepository{db: db}
}

// GetStatus returns the current status of a job
func (r *JobRepository) GetStatus(ctx context.Context, jobID string) (models.JobStatus, error) {
	var status string
	err := r.db.QueryRowContext(ctx,
		`SELECT status FROM training_jobs WHERE id = $1`, jobID,
	).Scan(&status)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	return models.JobStatus(status), nil
}

// MarkRunning transitions a job to running with its start time and initial
// progress snapshot. A cancellation written between the caller's status read
// and this update wins: the row is left untouched and false is returned.
func (r *JobRepository) MarkRunning(ctx context.Context, jobID string, progress models.Progress) (bool, error) {
	progressJSON, err := json.Marshal(progress)
	if err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE training_jobs
		 SET status = $1, started_at = NOW(), progress = $2
		 WHERE id = $3 AND status <> $4`,
		models.JobStatusRunning, progressJSON, jobID, models.JobStatusCancelled,
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// UpdateProgress overwrites the job's progress snapshot
func (r *JobRepository) UpdateProgress(ctx context.Context, jobID string, progress models.Progress) error {
	progressJSON, err := json.Marshal(progress)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE training_jobs SET progress = $1 WHERE id = $2`,
		progressJSON, jobID,
	)
	return err
}

// MarkCompleted records a terminal completed state with final metrics and the
// stored model path. A concurrently written cancelled status is never
// overwritten.
func (r *JobRepository) MarkCompleted(ctx context.Context, jobID string, metrics *models.TrainingMetrics, modelPath string) error {
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE training_jobs
		 SET status = $1, completed_at = NOW(), metrics = $2, model_path = $3
		 WHERE id = $4 AND status <> $5`,
		models.JobStatusCompleted, metricsJSON, modelPath, jobID, models.JobStatusCancelled,
	)
	return err
}

// MarkFailed records a terminal failed state with a human-readable cause.
// A concurrently written cancelled status is never overwritten.
func (r *JobRepository) MarkFailed(ctx context.Context, jobID string, errorMessage string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE training_jobs
		 SET status = $1, completed_at = NOW(), error_message = $2
		 WHERE id = $3 AND status <> $4`,
		models.JobStatusFailed, errorMessage, jobID, models.JobStatusCancelled,
	)
	return err
}

// Cancel writes the cancelled terminal state. Only the admin API calls this;
// the orchestrator observes the result through GetStatus. Returns false when
// the job is already terminal.
func (r *JobRepository) Cancel(ctx context.Context, jobID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE training_jobs
		 SET status = $1, completed_at = NOW()
		 WHERE id = $2 AND status IN ($3, $4)`,
		models.JobStatusCancelled, jobID, models.JobStatusPending, models.JobStatusRunning,
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// GetJob retrieves a full job record by ID
func (r *JobRepository) GetJob(ctx context.Context, jobID string) (*models.TrainingJob, error) {
	query := `
		SELECT id, status, config, progress, metrics, model_path, error_message,
			started_at, completed_at, created_at
		FROM training_jobs
		WHERE id = $1
	`

	var job models.TrainingJob
	var configJSON []byte
	var progressJSON []byte
	var metricsJSON []byte
	var modelPath sql.NullString
	var errorMessage sql.NullString
	var startedAt sql.NullTime
	var completedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, jobID).Scan(
		&job.ID,
		&job.Status,
		&configJSON,
		&progressJSON,
		&metricsJSON,
		&modelPath,
		&errorMessage,
		&startedAt,
		&completedAt,
		&job.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if len(configJSON) > 0 {
		json.Unmarshal(configJSON, &job.Config)
	}
	if len(progressJSON) > 0 {
		job.Progress = &models.Progress{}
		json.Unmarshal(progressJSON, job.Progress)
	}
	if len(metricsJSON) > 0 {
		job.Metrics = &models.TrainingMetrics{}
		json.Unmarshal(metricsJSON, job.Metrics)
	}
	if modelPath.Valid {
		job.ModelPath = modelPath.String
	}
	if errorMessage.Valid {
		job.ErrorMessage = errorMessage.String
	}
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}

	return &job, nil
}
