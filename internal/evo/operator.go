package evo

import (
	"errors"
	"math/rand"

	"grayevo/internal/model"
)

var (
	ErrConfiguration = errors.New("invalid configuration")
	ErrRender        = errors.New("renderer failure")
)

// Evaluator scores one candidate against the target it was built with.
// Lower is better and zero is a perfect match.
type Evaluator interface {
	Name() string
	Fitness(candidate model.Candidate) uint64
}

// Mutator perturbs every candidate of the population in place.
type Mutator interface {
	Name() string
	Mutate(rng *rand.Rand, population model.Population)
}

// Crosser re-seeds the population from the elite buffer in place.
type Crosser interface {
	Name() string
	Reseed(rng *rand.Rand, population model.Population, elites model.EliteBuffer)
}

// targetSized is implemented by evaluators bound to a fixed-length target.
type targetSized interface {
	TargetLen() int
}
