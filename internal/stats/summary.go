package stats

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"grayevo/internal/model"
)

// Summary condenses a best-fitness series. Lower fitness is better, so
// Improvement is InitialBest minus FinalBest.
type Summary struct {
	RunID       string  `json:"run_id"`
	Samples     int     `json:"samples"`
	InitialBest uint64  `json:"initial_best"`
	FinalBest   uint64  `json:"final_best"`
	BestMean    float64 `json:"best_mean"`
	BestStd     float64 `json:"best_std"`
	BestMin     float64 `json:"best_min"`
	BestMax     float64 `json:"best_max"`
	Improvement float64 `json:"improvement"`
	// ImprovedAt is the first cycle whose best beat the initial best, or -1.
	ImprovedAt int `json:"improved_at"`
}

func Summarize(runID string, history []model.FitnessSample) Summary {
	summary := Summary{RunID: runID, Samples: len(history), ImprovedAt: -1}
	if len(history) == 0 {
		return summary
	}

	values := make([]float64, len(history))
	for i, sample := range history {
		values[i] = float64(sample.Fitness)
	}

	summary.InitialBest = history[0].Fitness
	summary.FinalBest = history[len(history)-1].Fitness
	summary.BestMean, summary.BestStd = stat.MeanStdDev(values, nil)
	if len(values) == 1 {
		summary.BestStd = 0
	}
	summary.BestMin = floats.Min(values)
	summary.BestMax = floats.Max(values)
	summary.Improvement = float64(summary.InitialBest) - float64(summary.FinalBest)
	for _, sample := range history {
		if sample.Fitness < summary.InitialBest {
			summary.ImprovedAt = sample.Cycle
			break
		}
	}
	return summary
}
