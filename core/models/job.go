package models

import "time"

// TrainingJob represents one request to train a model against a dataset snapshot
type TrainingJob struct {
	ID           string
	Status       JobStatus
	Config       TrainingConfig
	Progress     *Progress
	Metrics      *TrainingMetrics
	ModelPath    string
	ErrorMessage string
	StartedAt    *time.Time
	CompletedAt  *time.Time
	CreatedAt    time.Time
}

// JobStatus represents the current status of a training job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether no further transitions are permitted from s
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// TrainingConfig is the immutable configuration attached to a job at creation
type TrainingConfig struct {
	Epochs          int      `json:"epochs"`
	LearningRate    float64  `json:"learning_rate"`
	BatchSize       int      `json:"batch_size"`
	MinQualityScore *float64 `json:"min_quality_score,omitempty"`
	MaxSamples      *int     `json:"max_samples,omitempty"`
}

// WithDefaults fills unset fields with the standard training defaults
func (c TrainingConfig) WithDefaults() TrainingConfig {
	if c.Epochs <= 0 {
		c.Epochs = 10
	}
	if c.LearningRate <= 0 {
		c.LearningRate = 0.001
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 32
	}
	return c
}

// Progress phases, in the order a job moves through them
const (
	PhaseInitializing  = "initializing"
	PhaseLoadingData   = "loading_data"
	PhasePreparingData = "preparing_data"
	PhaseTraining      = "training"
	PhaseSavingModel   = "saving_model"
)

// Progress is the live snapshot of a running job, overwritten wholesale on
// each update
type Progress struct {
	Phase        string  `json:"phase"`
	CurrentEpoch int     `json:"current_epoch"`
	TotalEpochs  int     `json:"total_epochs"`
	TrainLoss    float64 `json:"train_loss,omitempty"`
	ValLoss      float64 `json:"val_loss,omitempty"`
	ValAccuracy  float64 `json:"val_accuracy,omitempty"`
}

// TrainingMetrics is the final result persisted when a job completes
type TrainingMetrics struct {
	Accuracy        float64         `json:"accuracy"`
	FinalTrainLoss  float64         `json:"final_train_loss"`
	FinalValLoss    float64         `json:"final_val_loss"`
	ConfusionMatrix [][]int         `json:"confusion_matrix"`
	History         TrainingHistory `json:"history"`
	ClassNames      []string        `json:"class_names"`
}

// TrainingHistory holds the per-epoch metric series for a completed run
type TrainingHistory struct {
	TrainLoss []float64 `json:"train_loss"`
	ValLoss   []float64 `json:"val_loss"`
	ValAcc    []float64 `json:"val_acc"`
}

// Model is a registry record linking a trained artifact to its job
type Model struct {
	ID            string
	TrainingJobID string
	Version       string
	Accuracy      float64
	ModelPath     string
	CreatedAt     time.Time
}
