package model

import "testing"

func TestCandidateCloneIsIndependent(t *testing.T) {
	c := NewCandidate(4, 255)
	clone := c.Clone()
	clone[3] = 7
	if c[3] != 255 {
		t.Fatalf("clone aliased source: %v", c)
	}
}

func TestCandidateAssignPanicsOnLengthMismatch(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on length mismatch")
		}
	}()
	NewCandidate(4, 0).Assign(NewCandidate(3, 0))
}

func TestNewTargetImageValidatesLength(t *testing.T) {
	if _, err := NewTargetImage(2, 2, []byte{1, 2, 3}); err == nil {
		t.Fatal("expected length mismatch error")
	}
	if _, err := NewTargetImage(0, 2, nil); err == nil {
		t.Fatal("expected dimension error")
	}

	src := []byte{1, 2, 3, 4}
	target, err := NewTargetImage(2, 2, src)
	if err != nil {
		t.Fatalf("new target: %v", err)
	}
	src[0] = 99
	if target.Pixels()[0] != 1 {
		t.Fatal("target aliased caller slice")
	}
	pixels := target.Pixels()
	pixels[1] = 99
	if target.Pixels()[1] != 2 {
		t.Fatal("target pixels are mutable through accessor")
	}
}

func TestEliteBufferAndPopulationAreFullyPopulated(t *testing.T) {
	placeholder := NewCandidate(3, 0)
	elites := NewEliteBuffer(10, placeholder)
	population := NewPopulation(5, placeholder)
	if len(elites) != 10 || len(population) != 5 {
		t.Fatalf("unexpected sizes elites=%d population=%d", len(elites), len(population))
	}
	elites[0][0] = 1
	if elites[1][0] != 0 || population[0][0] != 0 || placeholder[0] != 0 {
		t.Fatal("expected independent buffers")
	}
	if &elites.Best()[0] != &elites[0][0] {
		t.Fatal("best must be slot zero")
	}
}

func TestTargetPixelsReturnsFreshCopy(t *testing.T) {
	target, err := NewTargetImage(2, 2, []byte{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("new target: %v", err)
	}
	a, b := target.Pixels(), target.Pixels()
	if &a[0] == &b[0] {
		t.Fatal("expected independent copies per call")
	}
}
