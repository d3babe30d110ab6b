package stats

import (
	"math"
	"testing"

	"grayevo/internal/model"
)

func TestSummarize(t *testing.T) {
	summary := Summarize("run-1", sampleHistory())

	if summary.Samples != 4 || summary.InitialBest != 40 || summary.FinalBest != 15 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.BestMean != 30 {
		t.Fatalf("mean: got=%v want=30", summary.BestMean)
	}
	if summary.BestMin != 15 || summary.BestMax != 40 {
		t.Fatalf("min/max: %+v", summary)
	}
	if summary.Improvement != 25 {
		t.Fatalf("improvement: got=%v want=25", summary.Improvement)
	}
	if summary.ImprovedAt != 2 {
		t.Fatalf("improved at: got=%d want=2", summary.ImprovedAt)
	}
	// sample variance of {40,40,25,15} is 450/3
	if math.Abs(summary.BestStd-math.Sqrt(150)) > 1e-9 {
		t.Fatalf("std: got=%v", summary.BestStd)
	}
}

func TestSummarizeDegenerateSeries(t *testing.T) {
	empty := Summarize("run-1", nil)
	if empty.Samples != 0 || empty.ImprovedAt != -1 {
		t.Fatalf("unexpected empty summary: %+v", empty)
	}

	single := Summarize("run-1", []model.FitnessSample{{Cycle: 0, Fitness: 7}})
	if single.BestStd != 0 || single.BestMean != 7 || single.ImprovedAt != -1 {
		t.Fatalf("unexpected single summary: %+v", single)
	}
}
