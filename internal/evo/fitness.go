package evo

import (
	"fmt"

	"grayevo/internal/model"
)

// L1Evaluator scores a candidate by the sum of absolute per-sample
// differences from the target.
type L1Evaluator struct {
	target []byte
}

func NewL1Evaluator(target model.TargetImage) *L1Evaluator {
	return &L1Evaluator{target: target.Pixels()}
}

func (*L1Evaluator) Name() string {
	return "l1"
}

func (e *L1Evaluator) TargetLen() int {
	return len(e.target)
}

func (e *L1Evaluator) Fitness(candidate model.Candidate) uint64 {
	return L1Distance(candidate, e.target)
}

// SquaredEvaluator scores by the sum of squared per-sample differences,
// which punishes a few large errors harder than many small ones.
type SquaredEvaluator struct {
	target []byte
}

func NewSquaredEvaluator(target model.TargetImage) *SquaredEvaluator {
	return &SquaredEvaluator{target: target.Pixels()}
}

func (*SquaredEvaluator) Name() string {
	return "squared"
}

func (e *SquaredEvaluator) TargetLen() int {
	return len(e.target)
}

func (e *SquaredEvaluator) Fitness(candidate model.Candidate) uint64 {
	mustSameLength(candidate, e.target)
	var sum uint64
	for i := range candidate {
		d := int64(candidate[i]) - int64(e.target[i])
		sum += uint64(d * d)
	}
	return sum
}

// L1Distance is symmetric and zero only for byte-identical inputs.
func L1Distance(a, b []byte) uint64 {
	mustSameLength(a, b)
	var sum uint64
	for i := range a {
		if a[i] > b[i] {
			sum += uint64(a[i] - b[i])
		} else {
			sum += uint64(b[i] - a[i])
		}
	}
	return sum
}

// Evaluate overwrites scores with one entry per candidate, indexed by
// population position.
func Evaluate(evaluator Evaluator, population model.Population, scores []model.ScoreEntry) {
	if len(scores) != len(population) {
		panic(fmt.Sprintf("score table size mismatch: got=%d want=%d", len(scores), len(population)))
	}
	for i, candidate := range population {
		scores[i] = model.ScoreEntry{Index: i, Fitness: evaluator.Fitness(candidate)}
	}
}

func mustSameLength(a, b []byte) {
	if len(a) != len(b) {
		panic(fmt.Sprintf("sample length mismatch: %d != %d", len(a), len(b)))
	}
}
