// Package grid defines the (significance threshold, time window) parameter
// grid each auxiliary channel is scanned over.
//
// Grids are configuration, not derived state: they are built from explicit
// value lists or ranges and always iterate in canonical order
// (threshold ascending, then window ascending) so scans and tie-breaks are
// reproducible.
package grid

import (
	"fmt"
	"math"
	"sort"
)

// ParameterPoint is one cell of the grid.
type ParameterPoint struct {
	Threshold float64 `json:"threshold" yaml:"threshold"`
	Window    float64 `json:"window" yaml:"window"`
}

func (p ParameterPoint) String() string {
	return fmt.Sprintf("snr>=%g win=%gs", p.Threshold, p.Window)
}

// Grid is an ordered set of parameter points.
type Grid []ParameterPoint

// Default thresholds and windows used by the production veto configuration.
var (
	DefaultThresholds = []float64{8, 10, 15, 20, 30, 50}
	DefaultWindows    = []float64{0.1, 0.2, 0.4, 0.8, 1.0}
)

// Default returns the cartesian product of DefaultThresholds and
// DefaultWindows.
func Default() Grid {
	g, _ := Cartesian(DefaultThresholds, DefaultWindows)
	return g
}

// maxPoints bounds grid size; scans run once per channel per round.
const maxPoints = 10000

// Cartesian builds the canonical grid over every threshold and window
// combination. Duplicates are removed.
func Cartesian(thresholds, windows []float64) (Grid, error) {
	if len(thresholds) == 0 || len(windows) == 0 {
		return nil, fmt.Errorf("grid needs at least one threshold and one window")
	}
	total := int64(len(thresholds)) * int64(len(windows))
	if total > maxPoints {
		return nil, fmt.Errorf("grid of %d points exceeds safe limit of %d", total, maxPoints)
	}
	g := make(Grid, 0, total)
	for _, th := range thresholds {
		for _, w := range windows {
			g = append(g, ParameterPoint{Threshold: th, Window: w})
		}
	}
	return g.Canonical(), nil
}

// Canonical returns a sorted, de-duplicated copy of g.
func (g Grid) Canonical() Grid {
	out := make(Grid, len(g))
	copy(out, g)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Threshold != out[j].Threshold {
			return out[i].Threshold < out[j].Threshold
		}
		return out[i].Window < out[j].Window
	})
	uniq := out[:0]
	for i, p := range out {
		if i > 0 && p == out[i-1] {
			continue
		}
		uniq = append(uniq, p)
	}
	return uniq
}

// Validate checks that the grid is non-empty and every value is finite and
// strictly positive.
func (g Grid) Validate() error {
	if len(g) == 0 {
		return fmt.Errorf("parameter grid is empty")
	}
	for i, p := range g {
		if !(p.Threshold > 0) || math.IsInf(p.Threshold, 0) {
			return fmt.Errorf("grid point %d: threshold must be positive and finite, got %v", i, p.Threshold)
		}
		if !(p.Window > 0) || math.IsInf(p.Window, 0) {
			return fmt.Errorf("grid point %d: window must be positive and finite, got %v", i, p.Window)
		}
	}
	return nil
}

// Thresholds returns the distinct thresholds in ascending order.
func (g Grid) Thresholds() []float64 {
	return distinct(g, func(p ParameterPoint) float64 { return p.Threshold })
}

// Windows returns the distinct windows in ascending order.
func (g Grid) Windows() []float64 {
	return distinct(g, func(p ParameterPoint) float64 { return p.Window })
}

// MaxWindow returns the largest window in the grid.
func (g Grid) MaxWindow() float64 {
	max := 0.0
	for _, p := range g {
		if p.Window > max {
			max = p.Window
		}
	}
	return max
}

func distinct(g Grid, f func(ParameterPoint) float64) []float64 {
	seen := make(map[float64]bool, len(g))
	var out []float64
	for _, p := range g {
		v := f(p)
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}
