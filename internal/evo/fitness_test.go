package evo

import (
	"math/rand"
	"testing"

	"grayevo/internal/model"
)

func mustTarget(t *testing.T, width, height int, pixels []byte) model.TargetImage {
	t.Helper()
	target, err := model.NewTargetImage(width, height, pixels)
	if err != nil {
		t.Fatalf("new target: %v", err)
	}
	return target
}

func TestL1EvaluatorScenario(t *testing.T) {
	eval := NewL1Evaluator(mustTarget(t, 4, 1, []byte{10, 20, 30, 40}))

	if got := eval.Fitness(model.Candidate{0, 0, 0, 0}); got != 100 {
		t.Fatalf("expected fitness 100, got %d", got)
	}
	if got := eval.Fitness(model.Candidate{10, 20, 30, 40}); got != 0 {
		t.Fatalf("expected fitness 0, got %d", got)
	}
}

func TestL1DistanceIsSymmetricAndZeroOnlyWhenIdentical(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 200; i++ {
		a := make([]byte, 16)
		b := make([]byte, 16)
		rng.Read(a)
		rng.Read(b)
		if i%4 == 0 {
			copy(b, a)
		}

		ab, ba := L1Distance(a, b), L1Distance(b, a)
		if ab != ba {
			t.Fatalf("asymmetric distance: %d != %d", ab, ba)
		}
		identical := string(a) == string(b)
		if (ab == 0) != identical {
			t.Fatalf("zero distance must match identity: distance=%d identical=%t", ab, identical)
		}
	}
}

func TestL1DistanceUpperBound(t *testing.T) {
	a := model.NewCandidate(10, 0)
	b := model.NewCandidate(10, 255)
	if got := L1Distance(a, b); got != 255*10 {
		t.Fatalf("expected %d, got %d", 255*10, got)
	}
}

func TestEvaluateScoresEveryCandidateIncludingLast(t *testing.T) {
	eval := NewL1Evaluator(mustTarget(t, 2, 1, []byte{0, 0}))
	population := model.Population{{0, 0}, {1, 0}, {0, 9}}
	scores := make([]model.ScoreEntry, len(population))
	for i := range scores {
		scores[i] = model.ScoreEntry{Index: -1, Fitness: 12345}
	}

	Evaluate(eval, population, scores)

	want := []model.ScoreEntry{{Index: 0, Fitness: 0}, {Index: 1, Fitness: 1}, {Index: 2, Fitness: 9}}
	for i := range want {
		if scores[i] != want[i] {
			t.Fatalf("score %d: got=%+v want=%+v", i, scores[i], want[i])
		}
	}
}

func TestSquaredEvaluator(t *testing.T) {
	eval := NewSquaredEvaluator(mustTarget(t, 3, 1, []byte{0, 10, 255}))
	if got := eval.Fitness(model.Candidate{3, 10, 251}); got != 9+0+16 {
		t.Fatalf("expected 25, got %d", got)
	}
	if eval.Name() != "squared" || eval.TargetLen() != 3 {
		t.Fatalf("unexpected evaluator metadata: %s %d", eval.Name(), eval.TargetLen())
	}
}

func TestEvaluatorsDoNotCopyTargetPerCall(t *testing.T) {
	target := uniformTarget(t, 16, 16, 200)
	candidate := model.NewCandidate(target.Len(), 0)
	population := model.NewPopulation(4, candidate)
	scores := make([]model.ScoreEntry, len(population))

	for _, eval := range []Evaluator{NewL1Evaluator(target), NewSquaredEvaluator(target)} {
		allocs := testing.AllocsPerRun(20, func() {
			Evaluate(eval, population, scores)
		})
		if allocs != 0 {
			t.Fatalf("%s: expected no allocations per evaluation, got %.1f", eval.Name(), allocs)
		}
	}
}
