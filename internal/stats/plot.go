package stats

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"grayevo/internal/model"
)

// PlotFitness draws the best-fitness curve, cycle on X and distance on Y.
func PlotFitness(history []model.FitnessSample, title, outPath string) error {
	if len(history) == 0 {
		return fmt.Errorf("fitness history is empty")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Cycle"
	p.Y.Label.Text = "Best fitness"

	points := make(plotter.XYs, len(history))
	for i, sample := range history {
		points[i].X = float64(sample.Cycle)
		points[i].Y = float64(sample.Fitness)
	}

	line, err := plotter.NewLine(points)
	if err != nil {
		return err
	}
	p.Add(line, plotter.NewGrid())
	p.Legend.Add("best", line)
	p.Legend.Top = true

	return p.Save(8*vg.Inch, 4*vg.Inch, outPath)
}
