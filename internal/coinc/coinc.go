// Package coinc counts time coincidences between a primary and an auxiliary
// channel and derives the count expected if the two were independent.
package coinc

import (
	"github.com/banshee-data/veto.report/internal/event"
	"github.com/banshee-data/veto.report/internal/grid"
	"github.com/banshee-data/veto.report/internal/segment"
)

// Result is the outcome of one coincidence count.
type Result struct {
	Point grid.ParameterPoint `json:"point"`

	// Observed is the number of primary events with at least one qualifying
	// auxiliary event within the window. Each primary event counts once.
	Observed int `json:"observed"`

	// Expected is the Poisson mean of Observed under independence: the
	// qualifying auxiliary rate times the merged window coverage around the
	// primary events.
	Expected float64 `json:"expected"`

	// Qualifying is the number of auxiliary events at or above threshold;
	// Used is how many of those lie within the window of a primary event.
	Qualifying int `json:"qualifying"`
	Used       int `json:"used"`

	// Coincident holds the IDs of the coincident primary events.
	Coincident []int `json:"coincident,omitempty"`
}

// UsePercentage is Used / Qualifying, or 0 when nothing qualified.
func (r Result) UsePercentage() float64 {
	if r.Qualifying == 0 {
		return 0
	}
	return float64(r.Used) / float64(r.Qualifying)
}

// Count compares primary against the auxiliary events with significance >=
// threshold using a symmetric window of ±window seconds. span is the
// observation span the auxiliary rate is measured over; a zero-length span
// leaves the rate undefined and Expected is reported as 0.
//
// Count only reads its inputs and is safe for concurrent use.
func Count(primary, auxiliary *event.Population, window, threshold float64, span segment.Segment) Result {
	res := Result{Point: grid.ParameterPoint{Threshold: threshold, Window: window}}

	aux := qualifyingTimes(auxiliary, threshold)
	res.Qualifying = len(aux)
	pt := primary.Times()

	// Primary side: sweep with j at the first aux time >= t - window.
	j := 0
	for i, t := range pt {
		for j < len(aux) && aux[j] < t-window {
			j++
		}
		if j < len(aux) && aux[j] <= t+window {
			res.Observed++
			res.Coincident = append(res.Coincident, primary.At(i).ID)
		}
	}

	// Auxiliary side, for the use percentage.
	i := 0
	for _, a := range aux {
		for i < len(pt) && pt[i] < a-window {
			i++
		}
		if i < len(pt) && pt[i] <= a+window {
			res.Used++
		}
	}

	livetime := span.Duration()
	if livetime > 0 && len(aux) > 0 {
		rate := float64(len(aux)) / livetime
		res.Expected = rate * Coverage(pt, window, span)
	}
	return res
}

// Coverage returns the measure of the union of [t-window, t+window] over the
// sorted times, clipped to span. Overlapping windows are counted once.
func Coverage(times []float64, window float64, span segment.Segment) float64 {
	if len(times) == 0 || window <= 0 {
		return 0
	}
	total := 0.0
	add := func(start, end float64) {
		if start < span.Start {
			start = span.Start
		}
		if end > span.End {
			end = span.End
		}
		if end > start {
			total += end - start
		}
	}
	curStart, curEnd := times[0]-window, times[0]+window
	for _, t := range times[1:] {
		s, e := t-window, t+window
		if s <= curEnd {
			if e > curEnd {
				curEnd = e
			}
			continue
		}
		add(curStart, curEnd)
		curStart, curEnd = s, e
	}
	add(curStart, curEnd)
	return total
}

func qualifyingTimes(p *event.Population, threshold float64) []float64 {
	times := p.Times()
	out := make([]float64, 0, len(times))
	for i, t := range times {
		if p.At(i).Significance >= threshold {
			out = append(out, t)
		}
	}
	return out
}

// ObservationSpan returns the smallest segment covering every event of the
// given populations. ok is false when all of them are empty.
func ObservationSpan(pops ...*event.Population) (span segment.Segment, ok bool) {
	for _, p := range pops {
		start, end, has := p.Span()
		if !has {
			continue
		}
		if !ok {
			span = segment.Segment{Start: start, End: end}
			ok = true
			continue
		}
		if start < span.Start {
			span.Start = start
		}
		if end > span.End {
			span.End = end
		}
	}
	return span, ok
}
