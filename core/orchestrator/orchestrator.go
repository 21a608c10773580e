package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"drawing-trainer/core/models"
	"drawing-trainer/core/monitoring"
	"drawing-trainer/training"
)

// minTrainingSamples is the smallest candidate set a job may train on
const minTrainingSamples = 10

// StatusStore persists job state, progress snapshots and final results
type StatusStore interface {
	GetStatus(ctx context.Context, jobID string) (models.JobStatus, error)
	// MarkRunning claims the job for processing. It returns false without
	// touching the row when a cancellation landed after the status read.
	MarkRunning(ctx context.Context, jobID string, progress models.Progress) (bool, error)
	UpdateProgress(ctx context.Context, jobID string, progress models.Progress) error
	MarkCompleted(ctx context.Context, jobID string, metrics *models.TrainingMetrics, modelPath string) error
	MarkFailed(ctx context.Context, jobID string, errorMessage string) error
}

// CandidateSource selects the eligible drawings for a training config
type CandidateSource interface {
	FetchCandidates(ctx context.Context, cfg models.TrainingConfig) ([]models.Drawing, error)
}

// ModelStore persists trained model artifacts
type ModelStore interface {
	PutModel(ctx context.Context, jobID string, data []byte) (string, error)
}

// ModelRegistry records completed models
type ModelRegistry interface {
	CreateModel(ctx context.Context, jobID, modelPath string, accuracy float64) (string, error)
}

// Orchestrator drives one training job at a time through its lifecycle:
// pending -> running -> completed or failed. It never writes cancelled; it
// only observes that state and stops working.
type Orchestrator struct {
	jobs      StatusStore
	drawings  CandidateSource
	artifacts ModelStore
	registry  ModelRegistry
	trainers  training.Factory
	metrics   *monitoring.Collector
	rng       *rand.Rand
}

// New creates an orchestrator with all external dependencies injected
func New(
	jobs StatusStore,
	drawings CandidateSource,
	artifacts ModelStore,
	registry ModelRegistry,
	trainers training.Factory,
	metrics *monitoring.Collector,
) *Orchestrator {
	return &Orchestrator{
		jobs:      jobs,
		drawings:  drawings,
		artifacts: artifacts,
		registry:  registry,
		trainers:  trainers,
		metrics:   metrics,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ProcessJob runs one job to a decided outcome. A nil return means the queue
// message should be acknowledged; cancellation resolves to nil because the
// cancelling actor owns the terminal write and nothing is left to do.
func (o *Orchestrator) ProcessJob(ctx context.Context, jobID string, cfg models.TrainingConfig) error {
	cfg = cfg.WithDefaults()
	log.Printf("Processing job %s (epochs=%d, batch_size=%d)", jobID, cfg.Epochs, cfg.BatchSize)

	start := time.Now()
	o.metrics.JobStarted()
	defer func() { o.metrics.JobFinished(time.Since(start)) }()

	status, err := o.jobs.GetStatus(ctx, jobID)
	if err != nil {
		return o.fail(ctx, jobID, fmt.Errorf("failed to read job status: %w", err))
	}
	if status == models.JobStatusCancelled {
		log.Printf("Job %s was cancelled before starting", jobID)
		o.metrics.JobCancelled()
		return nil
	}

	err = o.run(ctx, jobID, cfg)
	switch {
	case err == nil:
		o.metrics.JobCompleted()
		log.Printf("Job %s completed successfully", jobID)
		return nil
	case errors.Is(err, ErrCancelled):
		// The cancelled terminal state is already written by the admin side
		log.Printf("Job %s: %v", jobID, err)
		o.metrics.JobCancelled()
		return nil
	default:
		return o.fail(ctx, jobID, err)
	}
}

// fail records the failed terminal state and surfaces the cause to the queue
// layer for the ack/reject decision
func (o *Orchestrator) fail(ctx context.Context, jobID string, cause error) error {
	o.metrics.JobFailed()
	log.Printf("Job %s failed: %v", jobID, cause)
	if err := o.jobs.MarkFailed(ctx, jobID, cause.Error()); err != nil {
		log.Printf("Failed to record failure for job %s: %v", jobID, err)
	}
	return cause
}

func (o *Orchestrator) run(ctx context.Context, jobID string, cfg models.TrainingConfig) error {
	claimed, err := o.jobs.MarkRunning(ctx, jobID, models.Progress{
		Phase:       models.PhaseInitializing,
		TotalEpochs: cfg.Epochs,
	})
	if err != nil {
		return fmt.Errorf("failed to mark job running: %w", err)
	}
	if !claimed {
		// Cancel won the race between the status read and the claim
		return fmt.Errorf("%w before start", ErrCancelled)
	}

	if err := o.jobs.UpdateProgress(ctx, jobID, models.Progress{
		Phase:       models.PhaseLoadingData,
		TotalEpochs: cfg.Epochs,
	}); err != nil {
		return fmt.Errorf("failed to write progress: %w", err)
	}

	candidates, err := o.drawings.FetchCandidates(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to fetch training data: %w", err)
	}
	log.Printf("Job %s: %d candidate drawings", jobID, len(candidates))

	if len(candidates) < minTrainingSamples {
		return fmt.Errorf("%w: %d drawings", ErrInsufficientData, len(candidates))
	}

	if err := o.jobs.UpdateProgress(ctx, jobID, models.Progress{
		Phase:       models.PhasePreparingData,
		TotalEpochs: cfg.Epochs,
	}); err != nil {
		return fmt.Errorf("failed to write progress: %w", err)
	}

	trainSet, valSet := splitCandidates(candidates, o.rng)
	log.Printf("Job %s: train=%d val=%d", jobID, len(trainSet), len(valSet))

	driver, err := o.trainers.NewRun(ctx, trainSet, valSet, cfg)
	if err != nil {
		return fmt.Errorf("failed to prepare trainer: %w", err)
	}

	best, history, err := o.trainEpochs(ctx, jobID, cfg, driver)
	if err != nil {
		return err
	}

	eval, err := driver.Evaluate(ctx)
	if err != nil {
		return fmt.Errorf("final evaluation failed: %w", err)
	}

	metrics := &models.TrainingMetrics{
		Accuracy:        best.accuracy,
		FinalTrainLoss:  history.TrainLoss[len(history.TrainLoss)-1],
		FinalValLoss:    history.ValLoss[len(history.ValLoss)-1],
		ConfusionMatrix: eval.ConfusionMatrix,
		History:         history,
		ClassNames:      driver.ClassNames(),
	}

	if err := o.jobs.UpdateProgress(ctx, jobID, models.Progress{
		Phase:        models.PhaseSavingModel,
		CurrentEpoch: cfg.Epochs,
		TotalEpochs:  cfg.Epochs,
	}); err != nil {
		return fmt.Errorf("failed to write progress: %w", err)
	}

	modelPath, err := o.artifacts.PutModel(ctx, jobID, best.snapshot)
	if err != nil {
		return fmt.Errorf("failed to store model artifact: %w", err)
	}

	if _, err := o.registry.CreateModel(ctx, jobID, modelPath, best.accuracy); err != nil {
		return fmt.Errorf("failed to register model: %w", err)
	}

	if err := o.jobs.MarkCompleted(ctx, jobID, metrics, modelPath); err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}
	return nil
}

// bestCheckpoint is the retained best-validation-accuracy snapshot for a run
type bestCheckpoint struct {
	accuracy float64
	epoch    int
	snapshot []byte
}

// trainEpochs runs the sequential epoch loop. Before each epoch it polls the
// status store for out-of-band cancellation; an in-progress epoch always
// completes before the next check. The best checkpoint is replaced only on a
// strict accuracy improvement, so ties keep the earliest epoch.
func (o *Orchestrator) trainEpochs(
	ctx context.Context,
	jobID string,
	cfg models.TrainingConfig,
	driver training.Driver,
) (bestCheckpoint, models.TrainingHistory, error) {
	var best bestCheckpoint
	var history models.TrainingHistory

	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		status, err := o.jobs.GetStatus(ctx, jobID)
		if err != nil {
			return best, history, fmt.Errorf("cancellation check failed: %w", err)
		}
		if status == models.JobStatusCancelled {
			return best, history, fmt.Errorf("%w at epoch %d", ErrCancelled, epoch)
		}

		epochStart := time.Now()
		res, err := driver.RunEpoch(ctx, epoch)
		if err != nil {
			return best, history, fmt.Errorf("epoch %d failed: %w", epoch, err)
		}
		o.metrics.EpochCompleted(time.Since(epochStart))

		history.TrainLoss = append(history.TrainLoss, res.TrainLoss)
		history.ValLoss = append(history.ValLoss, res.ValLoss)
		history.ValAcc = append(history.ValAcc, res.ValAccuracy)

		if err := o.jobs.UpdateProgress(ctx, jobID, models.Progress{
			Phase:        models.PhaseTraining,
			CurrentEpoch: epoch,
			TotalEpochs:  cfg.Epochs,
			TrainLoss:    res.TrainLoss,
			ValLoss:      res.ValLoss,
			ValAccuracy:  res.ValAccuracy,
		}); err != nil {
			return best, history, fmt.Errorf("failed to write progress: %w", err)
		}

		if res.ValAccuracy > best.accuracy {
			snap, err := driver.Snapshot()
			if err != nil {
				return best, history, fmt.Errorf("failed to snapshot weights: %w", err)
			}
			best = bestCheckpoint{accuracy: res.ValAccuracy, epoch: epoch, snapshot: snap}
		}
	}

	if best.snapshot == nil {
		// No epoch improved on zero accuracy; fall back to the final weights
		snap, err := driver.Snapshot()
		if err != nil {
			return best, history, fmt.Errorf("failed to snapshot weights: %w", err)
		}
		best = bestCheckpoint{
			accuracy: history.ValAcc[len(history.ValAcc)-1],
			epoch:    cfg.Epochs,
			snapshot: snap,
		}
		return best, history, nil
	}

	// The final evaluation and the persisted artifact both use the retained
	// best weights, not the last epoch's
	if err := driver.Restore(best.snapshot); err != nil {
		return best, history, fmt.Errorf("failed to restore best checkpoint: %w", err)
	}
	log.Printf("Job %s: best checkpoint from epoch %d (val_accuracy=%.4f)", jobID, best.epoch, best.accuracy)

	return best, history, nil
}
