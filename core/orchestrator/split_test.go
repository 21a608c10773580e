package orchestrator

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitCandidatesProportions(t *testing.T) {
	candidates := makeCandidates(100)
	trainSet, valSet := splitCandidates(candidates, rand.New(rand.NewSource(7)))

	assert.Len(t, trainSet, 80)
	assert.Len(t, valSet, 20)
}

func TestSplitCandidatesDisjointAndExhaustive(t *testing.T) {
	candidates := makeCandidates(53)
	trainSet, valSet := splitCandidates(candidates, rand.New(rand.NewSource(7)))

	require.Equal(t, len(candidates), len(trainSet)+len(valSet))

	seen := make(map[string]bool, len(candidates))
	for _, d := range trainSet {
		assert.False(t, seen[d.ID], "drawing %s assigned twice", d.ID)
		seen[d.ID] = true
	}
	for _, d := range valSet {
		assert.False(t, seen[d.ID], "drawing %s assigned twice", d.ID)
		seen[d.ID] = true
	}
	assert.Len(t, seen, len(candidates))
}

func TestSplitCandidatesDoesNotMutateInput(t *testing.T) {
	candidates := makeCandidates(20)
	original := make([]string, len(candidates))
	for i, d := range candidates {
		original[i] = d.ID
	}

	splitCandidates(candidates, rand.New(rand.NewSource(7)))

	for i, d := range candidates {
		assert.Equal(t, original[i], d.ID)
	}
}
