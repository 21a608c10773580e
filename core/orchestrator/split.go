package orchestrator

import (
	"math/rand"

	"drawing-trainer/core/models"
)

// splitCandidates shuffles candidates uniformly at random and partitions them
// 80% train / 20% validation by index. No class stratification is performed.
func splitCandidates(candidates []models.Drawing, rng *rand.Rand) (train, val []models.Drawing) {
	shuffled := make([]models.Drawing, len(candidates))
	copy(shuffled, candidates)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	split := int(float64(len(shuffled)) * 0.8)
	return shuffled[:split], shuffled[split:]
}
