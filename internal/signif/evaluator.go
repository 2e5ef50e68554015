package signif

import (
	"fmt"

	"github.com/banshee-data/veto.report/internal/coinc"
	"github.com/banshee-data/veto.report/internal/event"
	"github.com/banshee-data/veto.report/internal/grid"
	"github.com/banshee-data/veto.report/internal/segment"
)

// Scored is a coincidence result with its significance.
type Scored struct {
	coinc.Result
	Significance float64 `json:"significance"`

	// Degenerate marks Expected == 0 with Observed > 0, scored as
	// MaxSignificance.
	Degenerate bool `json:"degenerate,omitempty"`
}

// Evaluation is one channel's grid scan.
type Evaluation struct {
	Channel string   `json:"channel"`
	Best    Scored   `json:"best"`
	Scanned []Scored `json:"scanned"`
}

// Evaluator scans a fixed parameter grid.
type Evaluator struct {
	Grid grid.Grid
}

// NewEvaluator returns an evaluator over the canonical form of g.
func NewEvaluator(g grid.Grid) (*Evaluator, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &Evaluator{Grid: g.Canonical()}, nil
}

// Evaluate counts and scores every grid point in order and selects the best:
// highest significance, then larger observed count, then the smaller window.
// Remaining ties keep the earliest point in grid order.
func (ev *Evaluator) Evaluate(primary, auxiliary *event.Population, span segment.Segment) (Evaluation, error) {
	if len(ev.Grid) == 0 {
		return Evaluation{}, fmt.Errorf("parameter grid is empty")
	}
	if primary == nil {
		return Evaluation{}, fmt.Errorf("nil primary population")
	}
	if auxiliary == nil {
		return Evaluation{}, fmt.Errorf("nil auxiliary population")
	}
	if err := auxiliary.Validate(); err != nil {
		return Evaluation{}, fmt.Errorf("channel %s: %w", auxiliary.Channel(), err)
	}

	out := Evaluation{Channel: auxiliary.Channel(), Scanned: make([]Scored, 0, len(ev.Grid))}
	for i, p := range ev.Grid {
		r := coinc.Count(primary, auxiliary, p.Window, p.Threshold, span)
		sig, degenerate := Significance(r.Observed, r.Expected)
		s := Scored{Result: r, Significance: sig, Degenerate: degenerate}
		out.Scanned = append(out.Scanned, s)
		if i == 0 || Better(s, out.Best) {
			out.Best = s
		}
	}
	return out, nil
}

// Better reports whether a strictly beats b under the grid tie-break rule.
func Better(a, b Scored) bool {
	if a.Significance != b.Significance {
		return a.Significance > b.Significance
	}
	if a.Observed != b.Observed {
		return a.Observed > b.Observed
	}
	return a.Point.Window < b.Point.Window
}
