package report

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/veto.report/internal/veto"
)

var (
	efficiencyColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	deadtimeColor   = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// NewRoundsPlot builds a plot of cumulative efficiency and deadtime (both as
// percentages) against round number.
func NewRoundsPlot(primary string, rounds []veto.RoundRecord) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s - cumulative veto performance", primary)
	p.X.Label.Text = "Round"
	p.Y.Label.Text = "Percent"

	effPts := make(plotter.XYs, 0, len(rounds)+1)
	deadPts := make(plotter.XYs, 0, len(rounds)+1)
	effPts = append(effPts, plotter.XY{X: 0, Y: 0})
	deadPts = append(deadPts, plotter.XY{X: 0, Y: 0})
	for _, r := range rounds {
		x := float64(r.Round + 1)
		effPts = append(effPts, plotter.XY{X: x, Y: 100 * r.Efficiency})
		deadPts = append(deadPts, plotter.XY{X: x, Y: 100 * r.Deadtime})
	}

	effLine, err := plotter.NewLine(effPts)
	if err != nil {
		return nil, fmt.Errorf("efficiency line: %w", err)
	}
	effLine.Color = efficiencyColor
	effLine.Width = vg.Points(1.5)
	p.Add(effLine)
	p.Legend.Add("efficiency", effLine)

	deadLine, err := plotter.NewLine(deadPts)
	if err != nil {
		return nil, fmt.Errorf("deadtime line: %w", err)
	}
	deadLine.Color = deadtimeColor
	deadLine.Width = vg.Points(1.5)
	p.Add(deadLine)
	p.Legend.Add("deadtime", deadLine)

	p.Legend.Top = true
	p.Legend.Left = true
	p.Legend.XOffs = 10
	p.Legend.YOffs = -10
	p.Add(plotter.NewGrid())
	return p, nil
}

// WriteRoundsPNG renders the rounds plot as a 10x5 inch PNG.
func WriteRoundsPNG(w io.Writer, primary string, rounds []veto.RoundRecord) error {
	p, err := NewRoundsPlot(primary, rounds)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(10*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render plot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write plot: %w", err)
	}
	return nil
}
