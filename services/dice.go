package services

import (
	"math/rand"
	"sync"
	"time"
)

var (
	diceMu   sync.Mutex
	diceRand = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// rollDie draws one die face using the shared RNG. Fiber handlers roll
// concurrently, so the source is guarded.
func rollDie(weights [6]float64) int {
	diceMu.Lock()
	sample := diceRand.Float64()
	diceMu.Unlock()
	return WeightedFace(weights, sample)
}

// WeightedFace maps one uniform sample in [0,1) onto a die face so that
// face i lands with probability weights[i] / sum(weights). A zero total
// (uninitialized weighting) falls back to a fair die. The scan returns 6
// when float rounding leaves the cumulative sum just short of the sample.
func WeightedFace(weights [6]float64, sample float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total == 0 {
		return int(sample*6) + 1
	}

	cumulative := 0.0
	for i, w := range weights {
		cumulative += w / total
		if sample <= cumulative {
			return i + 1
		}
	}
	return 6
}
