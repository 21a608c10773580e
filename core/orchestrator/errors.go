package orchestrator

import "errors"

// ErrCancelled signals that an external actor cancelled the job. It is
// carried through the epoch loop as a distinct error kind and never persisted
// as a failure; the cancelling actor owns the terminal state write.
var ErrCancelled = errors.New("training cancelled")

// ErrInsufficientData marks a candidate set too small to train on. This is a
// configuration or data error, not a transient fault.
var ErrInsufficientData = errors.New("not enough training data")
