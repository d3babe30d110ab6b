package evo

import (
	"fmt"
	"math/rand"
	"sort"

	"grayevo/internal/model"
)

// EliteCopyCrosser overwrites each candidate with a uniformly drawn elite.
// It is a restart from an elite, not a splice of two parents.
type EliteCopyCrosser struct{}

func (EliteCopyCrosser) Name() string {
	return "elite_copy"
}

func (EliteCopyCrosser) Reseed(rng *rand.Rand, population model.Population, elites model.EliteBuffer) {
	if len(elites) == 0 {
		panic("elite buffer is empty")
	}
	for _, candidate := range population {
		candidate.Assign(elites[rng.Intn(len(elites))])
	}
}

// ExtractBest sorts scores ascending by fitness, keeping the prior order
// of ties, and copies the first len(elites) candidates into the elite
// buffer. The previous elites are discarded.
func ExtractBest(scores []model.ScoreEntry, population model.Population, elites model.EliteBuffer) {
	if len(elites) > len(scores) {
		panic(fmt.Sprintf("elite count %d exceeds scored population %d", len(elites), len(scores)))
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Fitness < scores[j].Fitness
	})
	for i := range elites {
		elites[i].Assign(population[scores[i].Index])
	}
}
