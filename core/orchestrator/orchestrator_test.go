package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"drawing-trainer/core/models"
	"drawing-trainer/training"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStatusStore records every write and exposes hooks for flipping status
// mid-run, standing in for the relational store.
type fakeStatusStore struct {
	status     models.JobStatus
	statusErr  error
	writeErr   error
	progress   []models.Progress
	writes     int
	metrics    *models.TrainingMetrics
	modelPath  string
	failedMsg  string
	statusHook func(s *fakeStatusStore)
	// cancelBeforeClaim simulates an admin cancel landing between the status
	// read and MarkRunning
	cancelBeforeClaim bool
}

func (s *fakeStatusStore) GetStatus(ctx context.Context, jobID string) (models.JobStatus, error) {
	if s.statusHook != nil {
		s.statusHook(s)
	}
	return s.status, s.statusErr
}

func (s *fakeStatusStore) MarkRunning(ctx context.Context, jobID string, p models.Progress) (bool, error) {
	if s.writeErr != nil {
		return false, s.writeErr
	}
	if s.cancelBeforeClaim {
		s.status = models.JobStatusCancelled
		s.cancelBeforeClaim = false
	}
	if s.status == models.JobStatusCancelled {
		return false, nil
	}
	s.writes++
	s.status = models.JobStatusRunning
	s.progress = append(s.progress, p)
	return true, nil
}

func (s *fakeStatusStore) UpdateProgress(ctx context.Context, jobID string, p models.Progress) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.writes++
	s.progress = append(s.progress, p)
	return nil
}

func (s *fakeStatusStore) MarkCompleted(ctx context.Context, jobID string, m *models.TrainingMetrics, modelPath string) error {
	s.writes++
	s.status = models.JobStatusCompleted
	s.metrics = m
	s.modelPath = modelPath
	return nil
}

func (s *fakeStatusStore) MarkFailed(ctx context.Context, jobID string, errorMessage string) error {
	s.writes++
	s.status = models.JobStatusFailed
	s.failedMsg = errorMessage
	return nil
}

func (s *fakeStatusStore) phases() []string {
	out := make([]string, len(s.progress))
	for i, p := range s.progress {
		out[i] = p.Phase
	}
	return out
}

type fakeCandidateSource struct {
	drawings []models.Drawing
	err      error
}

func (s *fakeCandidateSource) FetchCandidates(ctx context.Context, cfg models.TrainingConfig) ([]models.Drawing, error) {
	return s.drawings, s.err
}

type fakeModelStore struct {
	err   error
	saved []byte
}

func (s *fakeModelStore) PutModel(ctx context.Context, jobID string, data []byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.saved = data
	return jobID + ".model", nil
}

type fakeRegistry struct {
	jobID     string
	modelPath string
	accuracy  float64
	calls     int
}

func (r *fakeRegistry) CreateModel(ctx context.Context, jobID, modelPath string, accuracy float64) (string, error) {
	r.calls++
	r.jobID = jobID
	r.modelPath = modelPath
	r.accuracy = accuracy
	return "model-1", nil
}

// fakeDriver identifies weight snapshots by the epoch that produced them
type fakeDriver struct {
	accs       []float64
	epochsRun  int
	current    string
	runErr     error
	classNames []string
}

func (d *fakeDriver) RunEpoch(ctx context.Context, epoch int) (training.EpochResult, error) {
	if d.runErr != nil {
		return training.EpochResult{}, d.runErr
	}
	d.epochsRun = epoch
	d.current = fmt.Sprintf("epoch-%d", epoch)
	return training.EpochResult{
		TrainLoss:   1.0 / float64(epoch),
		ValLoss:     1.2 / float64(epoch),
		ValAccuracy: d.accs[epoch-1],
	}, nil
}

func (d *fakeDriver) Snapshot() ([]byte, error) { return []byte(d.current), nil }

func (d *fakeDriver) Restore(snapshot []byte) error {
	d.current = string(snapshot)
	return nil
}

func (d *fakeDriver) Evaluate(ctx context.Context) (training.Evaluation, error) {
	return training.Evaluation{ConfusionMatrix: [][]int{{1, 0}, {0, 1}}}, nil
}

func (d *fakeDriver) ClassNames() []string {
	if d.classNames != nil {
		return d.classNames
	}
	return models.ShapeNames
}

type fakeFactory struct {
	driver *fakeDriver
	err    error
}

func (f *fakeFactory) NewRun(ctx context.Context, train, val []models.Drawing, cfg models.TrainingConfig) (training.Driver, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.driver, f.err
}

func makeCandidates(n int) []models.Drawing {
	out := make([]models.Drawing, n)
	for i := range out {
		out[i] = models.Drawing{
			ID:             fmt.Sprintf("d-%d", i),
			StrokeDataPath: fmt.Sprintf("d-%d.json", i),
			ShapeName:      models.ShapeNames[i%len(models.ShapeNames)],
		}
	}
	return out
}

func newTestOrchestrator(store *fakeStatusStore, source *fakeCandidateSource, artifacts *fakeModelStore, registry *fakeRegistry, driver *fakeDriver) *Orchestrator {
	return New(store, source, artifacts, registry, &fakeFactory{driver: driver}, nil)
}

func TestProcessJobCompletes(t *testing.T) {
	store := &fakeStatusStore{status: models.JobStatusPending}
	driver := &fakeDriver{accs: []float64{0.5, 0.7}}
	artifacts := &fakeModelStore{}
	registry := &fakeRegistry{}
	orch := newTestOrchestrator(store, &fakeCandidateSource{drawings: makeCandidates(50)}, artifacts, registry, driver)

	err := orch.ProcessJob(context.Background(), "j1", models.TrainingConfig{Epochs: 2, BatchSize: 32})
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusCompleted, store.status)
	assert.Equal(t, []string{
		models.PhaseInitializing,
		models.PhaseLoadingData,
		models.PhasePreparingData,
		models.PhaseTraining,
		models.PhaseTraining,
		models.PhaseSavingModel,
	}, store.phases())

	require.NotNil(t, store.metrics)
	assert.Len(t, store.metrics.History.TrainLoss, 2)
	assert.Len(t, store.metrics.History.ValLoss, 2)
	assert.Len(t, store.metrics.History.ValAcc, 2)
	assert.Equal(t, 0.7, store.metrics.Accuracy)
	assert.Equal(t, "j1.model", store.modelPath)

	// Registry record created with the stored path
	assert.Equal(t, 1, registry.calls)
	assert.Equal(t, "j1", registry.jobID)
	assert.Equal(t, "j1.model", registry.modelPath)
}

func TestProcessJobTrainingProgressCarriesEpochMetrics(t *testing.T) {
	store := &fakeStatusStore{status: models.JobStatusPending}
	driver := &fakeDriver{accs: []float64{0.5, 0.7}}
	orch := newTestOrchestrator(store, &fakeCandidateSource{drawings: makeCandidates(50)}, &fakeModelStore{}, &fakeRegistry{}, driver)

	require.NoError(t, orch.ProcessJob(context.Background(), "j1", models.TrainingConfig{Epochs: 2}))

	var trainingSnapshots []models.Progress
	for _, p := range store.progress {
		if p.Phase == models.PhaseTraining {
			trainingSnapshots = append(trainingSnapshots, p)
		}
	}
	require.Len(t, trainingSnapshots, 2)
	assert.Equal(t, 1, trainingSnapshots[0].CurrentEpoch)
	assert.Equal(t, 2, trainingSnapshots[0].TotalEpochs)
	assert.Equal(t, 0.5, trainingSnapshots[0].ValAccuracy)
	assert.Equal(t, 2, trainingSnapshots[1].CurrentEpoch)
	assert.Equal(t, 0.7, trainingSnapshots[1].ValAccuracy)
}

func TestBestCheckpointFirstSeenWins(t *testing.T) {
	// Epoch 4 ties epoch 2; the retained checkpoint must stay from epoch 2
	store := &fakeStatusStore{status: models.JobStatusPending}
	driver := &fakeDriver{accs: []float64{0.5, 0.7, 0.6, 0.7}}
	artifacts := &fakeModelStore{}
	orch := newTestOrchestrator(store, &fakeCandidateSource{drawings: makeCandidates(50)}, artifacts, &fakeRegistry{}, driver)

	require.NoError(t, orch.ProcessJob(context.Background(), "j1", models.TrainingConfig{Epochs: 4}))

	assert.Equal(t, "epoch-2", string(artifacts.saved))
	assert.Equal(t, 0.7, store.metrics.Accuracy)
}

func TestProcessJobAlreadyCancelledPerformsZeroWrites(t *testing.T) {
	store := &fakeStatusStore{status: models.JobStatusCancelled}
	driver := &fakeDriver{accs: []float64{0.9}}
	orch := newTestOrchestrator(store, &fakeCandidateSource{drawings: makeCandidates(50)}, &fakeModelStore{}, &fakeRegistry{}, driver)

	err := orch.ProcessJob(context.Background(), "j1", models.TrainingConfig{Epochs: 1})

	// nil return means the queue message gets acknowledged
	require.NoError(t, err)
	assert.Zero(t, store.writes)
	assert.Zero(t, driver.epochsRun)
	assert.Equal(t, models.JobStatusCancelled, store.status)
}

func TestCancelWinsRaceAtClaim(t *testing.T) {
	// The status read sees pending, but a cancel lands before MarkRunning.
	// The cancelled state must stay in place and the job must never run.
	store := &fakeStatusStore{status: models.JobStatusPending, cancelBeforeClaim: true}
	driver := &fakeDriver{accs: []float64{0.9}}
	registry := &fakeRegistry{}
	orch := newTestOrchestrator(store, &fakeCandidateSource{drawings: makeCandidates(50)}, &fakeModelStore{}, registry, driver)

	err := orch.ProcessJob(context.Background(), "j1", models.TrainingConfig{Epochs: 3})
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusCancelled, store.status)
	assert.Zero(t, store.writes)
	assert.Zero(t, driver.epochsRun)
	assert.Empty(t, store.failedMsg)
	assert.Zero(t, registry.calls)
}

func TestCancellationObservedAtEpochBoundary(t *testing.T) {
	// Status flips to cancelled after two epochs have reported progress; the
	// probe before epoch 3 must stop the loop without a terminal write.
	store := &fakeStatusStore{status: models.JobStatusPending}
	store.statusHook = func(s *fakeStatusStore) {
		trainingSnapshots := 0
		for _, p := range s.progress {
			if p.Phase == models.PhaseTraining {
				trainingSnapshots++
			}
		}
		if trainingSnapshots >= 2 {
			s.status = models.JobStatusCancelled
		}
	}
	driver := &fakeDriver{accs: []float64{0.5, 0.6, 0.7, 0.8, 0.9}}
	registry := &fakeRegistry{}
	orch := newTestOrchestrator(store, &fakeCandidateSource{drawings: makeCandidates(50)}, &fakeModelStore{}, registry, driver)

	err := orch.ProcessJob(context.Background(), "j1", models.TrainingConfig{Epochs: 5})
	require.NoError(t, err)

	assert.Equal(t, 2, driver.epochsRun)
	assert.Equal(t, models.JobStatusCancelled, store.status)
	assert.Empty(t, store.failedMsg)
	assert.Nil(t, store.metrics)
	assert.Zero(t, registry.calls)
}

func TestInsufficientDataFailsBeforeTraining(t *testing.T) {
	store := &fakeStatusStore{status: models.JobStatusPending}
	driver := &fakeDriver{accs: []float64{0.9}}
	orch := newTestOrchestrator(store, &fakeCandidateSource{drawings: makeCandidates(9)}, &fakeModelStore{}, &fakeRegistry{}, driver)

	err := orch.ProcessJob(context.Background(), "j1", models.TrainingConfig{Epochs: 1})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInsufficientData)

	assert.Equal(t, models.JobStatusFailed, store.status)
	assert.Contains(t, store.failedMsg, "not enough training data")
	assert.Zero(t, driver.epochsRun)
	assert.NotContains(t, store.phases(), models.PhaseTraining)
}

func TestExactlyMinimumCandidatesProceeds(t *testing.T) {
	store := &fakeStatusStore{status: models.JobStatusPending}
	driver := &fakeDriver{accs: []float64{0.9}}
	orch := newTestOrchestrator(store, &fakeCandidateSource{drawings: makeCandidates(10)}, &fakeModelStore{}, &fakeRegistry{}, driver)

	require.NoError(t, orch.ProcessJob(context.Background(), "j1", models.TrainingConfig{Epochs: 1}))
	assert.Equal(t, models.JobStatusCompleted, store.status)
}

func TestArtifactFailureNeverCompletes(t *testing.T) {
	store := &fakeStatusStore{status: models.JobStatusPending}
	driver := &fakeDriver{accs: []float64{0.9}}
	artifacts := &fakeModelStore{err: errors.New("connection refused")}
	registry := &fakeRegistry{}
	orch := newTestOrchestrator(store, &fakeCandidateSource{drawings: makeCandidates(50)}, artifacts, registry, driver)

	err := orch.ProcessJob(context.Background(), "j1", models.TrainingConfig{Epochs: 1})
	require.Error(t, err)

	assert.Equal(t, models.JobStatusFailed, store.status)
	assert.Contains(t, store.failedMsg, "failed to store model artifact")
	assert.Zero(t, registry.calls)
}

func TestTrainerErrorFailsJob(t *testing.T) {
	store := &fakeStatusStore{status: models.JobStatusPending}
	driver := &fakeDriver{accs: []float64{0.9}, runErr: errors.New("NaN loss")}
	orch := newTestOrchestrator(store, &fakeCandidateSource{drawings: makeCandidates(50)}, &fakeModelStore{}, &fakeRegistry{}, driver)

	err := orch.ProcessJob(context.Background(), "j1", models.TrainingConfig{Epochs: 3})
	require.Error(t, err)

	assert.Equal(t, models.JobStatusFailed, store.status)
	assert.Contains(t, store.failedMsg, "epoch 1 failed")
}

func TestFetchErrorFailsJob(t *testing.T) {
	store := &fakeStatusStore{status: models.JobStatusPending}
	source := &fakeCandidateSource{err: errors.New("db timeout")}
	orch := newTestOrchestrator(store, source, &fakeModelStore{}, &fakeRegistry{}, &fakeDriver{accs: []float64{0.9}})

	err := orch.ProcessJob(context.Background(), "j1", models.TrainingConfig{Epochs: 1})
	require.Error(t, err)
	assert.Equal(t, models.JobStatusFailed, store.status)
	assert.Contains(t, store.failedMsg, "failed to fetch training data")
}

func TestProgressWriteErrorFailsJob(t *testing.T) {
	store := &fakeStatusStore{status: models.JobStatusPending, writeErr: errors.New("db gone")}
	orch := newTestOrchestrator(store, &fakeCandidateSource{drawings: makeCandidates(50)}, &fakeModelStore{}, &fakeRegistry{}, &fakeDriver{accs: []float64{0.9}})

	err := orch.ProcessJob(context.Background(), "j1", models.TrainingConfig{Epochs: 1})
	require.Error(t, err)
	assert.Equal(t, models.JobStatusFailed, store.status)
	assert.Contains(t, store.failedMsg, "failed to mark job running")
}

func TestConfigDefaultsApplied(t *testing.T) {
	store := &fakeStatusStore{status: models.JobStatusPending}
	accs := make([]float64, 10)
	for i := range accs {
		accs[i] = 0.5 + float64(i)*0.01
	}
	driver := &fakeDriver{accs: accs}
	orch := newTestOrchestrator(store, &fakeCandidateSource{drawings: makeCandidates(50)}, &fakeModelStore{}, &fakeRegistry{}, driver)

	// Zero-valued config falls back to 10 epochs
	require.NoError(t, orch.ProcessJob(context.Background(), "j1", models.TrainingConfig{}))
	assert.Equal(t, 10, driver.epochsRun)
	assert.Len(t, store.metrics.History.ValAcc, 10)
}
