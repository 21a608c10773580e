package training

import (
	"context"

	"drawing-trainer/core/models"
)

// EpochResult reports metrics from one completed train+validation epoch
type EpochResult struct {
	TrainLoss   float64
	ValLoss     float64
	ValAccuracy float64
}

// Evaluation is a full validation pass against the current weights
type Evaluation struct {
	ConfusionMatrix [][]int
}

// Driver runs a training job one epoch at a time. Implementations own
// everything below the epoch boundary: data decoding, the optimization step
// and metric computation. An epoch in progress always runs to completion;
// cancellation is the orchestrator's concern.
type Driver interface {
	// RunEpoch executes one full epoch and reports its metrics
	RunEpoch(ctx context.Context, epoch int) (EpochResult, error)
	// Snapshot captures the current model weights
	Snapshot() ([]byte, error)
	// Restore loads previously captured weights
	Restore(snapshot []byte) error
	// Evaluate runs the validation set against the current weights
	Evaluate(ctx context.Context) (Evaluation, error)
	// ClassNames returns the label names in index order
	ClassNames() []string
}

// Factory prepares a Driver for one job's train/validation split
type Factory interface {
	NewRun(ctx context.Context, train, val []models.Drawing, cfg models.TrainingConfig) (Driver, error)
}
