package softmax

import (
	"bytes"
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"

	"drawing-trainer/core/models"
	"drawing-trainer/training"
)

// BlobGetter fetches raw stroke data blobs from the drawings bucket
type BlobGetter interface {
	GetDrawing(ctx context.Context, objectPath string) ([]byte, error)
}

// Factory builds softmax-regression training runs over geometric drawing
// features
type Factory struct {
	blobs BlobGetter
}

// NewFactory creates a trainer factory reading stroke data through blobs
func NewFactory(blobs BlobGetter) *Factory {
	return &Factory{blobs: blobs}
}

// NewRun loads and featurizes both candidate sets and returns an epoch driver
func (f *Factory) NewRun(ctx context.Context, train, val []models.Drawing, cfg models.TrainingConfig) (training.Driver, error) {
	trainX, trainY, err := f.loadExamples(ctx, train)
	if err != nil {
		return nil, err
	}
	valX, valY, err := f.loadExamples(ctx, val)
	if err != nil {
		return nil, err
	}

	classes := make([]string, len(models.ShapeNames))
	copy(classes, models.ShapeNames)

	return &driver{
		weights:   newWeights(len(classes), featureCount),
		trainX:    trainX,
		trainY:    trainY,
		valX:      valX,
		valY:      valY,
		lr:        cfg.LearningRate,
		batchSize: cfg.BatchSize,
		classes:   classes,
		// Fixed seed keeps batch order reproducible across identical runs
		rng: rand.New(rand.NewSource(1)),
	}, nil
}

func (f *Factory) loadExamples(ctx context.Context, drawings []models.Drawing) ([][]float64, []int, error) {
	xs := make([][]float64, 0, len(drawings))
	ys := make([]int, 0, len(drawings))

	for _, d := range drawings {
		blob, err := f.blobs.GetDrawing(ctx, d.StrokeDataPath)
		if err != nil {
			return nil, nil, err
		}
		var sd models.StrokeData
		if err := json.Unmarshal(blob, &sd); err != nil {
			return nil, nil, fmt.Errorf("failed to decode stroke data %s: %w", d.StrokeDataPath, err)
		}
		xs = append(xs, extractFeatures(sd))
		ys = append(ys, models.ShapeIndex(d.ShapeName))
	}

	return xs, ys, nil
}

// weights holds the model parameters; fields are exported for gob snapshots
type weights struct {
	W [][]float64
	B []float64
}

func newWeights(classes, features int) weights {
	w := weights{
		W: make([][]float64, classes),
		B: make([]float64, classes),
	}
	for c := range w.W {
		w.W[c] = make([]float64, features)
	}
	return w
}

type driver struct {
	weights   weights
	trainX    [][]float64
	trainY    []int
	valX      [][]float64
	valY      []int
	lr        float64
	batchSize int
	classes   []string
	rng       *rand.Rand
}

// RunEpoch performs one pass of minibatch SGD over the training set followed
// by a validation pass
func (d *driver) RunEpoch(ctx context.Context, epoch int) (training.EpochResult, error) {
	if err := ctx.Err(); err != nil {
		return training.EpochResult{}, err
	}

	order := d.rng.Perm(len(d.trainX))
	var lossSum float64
	for start := 0; start < len(order); start += d.batchSize {
		end := start + d.batchSize
		if end > len(order) {
			end = len(order)
		}
		lossSum += d.step(order[start:end])
	}
	trainLoss := lossSum / float64(len(d.trainX))

	valLoss, valAcc := d.validate()

	return training.EpochResult{
		TrainLoss:   trainLoss,
		ValLoss:     valLoss,
		ValAccuracy: valAcc,
	}, nil
}

// step applies one gradient update for a minibatch and returns the summed
// cross-entropy loss over it
func (d *driver) step(batch []int) float64 {
	gradW := newWeights(len(d.classes), featureCount)
	var loss float64

	for _, i := range batch {
		x := d.trainX[i]
		y := d.trainY[i]
		probs := d.predict(x)
		loss += -math.Log(math.Max(probs[y], 1e-12))

		for c := range probs {
			delta := probs[c]
			if c == y {
				delta -= 1
			}
			for j, xj := range x {
				gradW.W[c][j] += delta * xj
			}
			gradW.B[c] += delta
		}
	}

	scale := d.lr / float64(len(batch))
	for c := range d.weights.W {
		for j := range d.weights.W[c] {
			d.weights.W[c][j] -= scale * gradW.W[c][j]
		}
		d.weights.B[c] -= scale * gradW.B[c]
	}

	return loss
}

// predict returns the class probability distribution for one feature vector
func (d *driver) predict(x []float64) []float64 {
	logits := make([]float64, len(d.classes))
	maxLogit := math.Inf(-1)
	for c := range logits {
		sum := d.weights.B[c]
		for j, xj := range x {
			sum += d.weights.W[c][j] * xj
		}
		logits[c] = sum
		if sum > maxLogit {
			maxLogit = sum
		}
	}

	var total float64
	for c := range logits {
		logits[c] = math.Exp(logits[c] - maxLogit)
		total += logits[c]
	}
	for c := range logits {
		logits[c] /= total
	}
	return logits
}

func (d *driver) validate() (loss, accuracy float64) {
	if len(d.valX) == 0 {
		return 0, 0
	}
	var correct int
	for i, x := range d.valX {
		probs := d.predict(x)
		loss += -math.Log(math.Max(probs[d.valY[i]], 1e-12))
		if argmax(probs) == d.valY[i] {
			correct++
		}
	}
	loss /= float64(len(d.valX))
	accuracy = float64(correct) / float64(len(d.valX))
	return loss, accuracy
}

// Snapshot captures the current weights as a gob blob
func (d *driver) Snapshot() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(d.weights); err != nil {
		return nil, fmt.Errorf("failed to encode weights: %w", err)
	}
	return buf.Bytes(), nil
}

// Restore loads previously captured weights
func (d *driver) Restore(snapshot []byte) error {
	var w weights
	if err := gob.NewDecoder(bytes.NewReader(snapshot)).Decode(&w); err != nil {
		return fmt.Errorf("failed to decode weights: %w", err)
	}
	d.weights = w
	return nil
}

// Evaluate builds a confusion matrix over the validation set
func (d *driver) Evaluate(ctx context.Context) (training.Evaluation, error) {
	if err := ctx.Err(); err != nil {
		return training.Evaluation{}, err
	}

	matrix := make([][]int, len(d.classes))
	for i := range matrix {
		matrix[i] = make([]int, len(d.classes))
	}
	for i, x := range d.valX {
		matrix[d.valY[i]][argmax(d.predict(x))]++
	}

	return training.Evaluation{ConfusionMatrix: matrix}, nil
}

func (d *driver) ClassNames() []string {
	return d.classes
}

func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
