// Package segment implements veto segment sets and the efficiency and
// deadtime bookkeeping derived from them.
//
// A Set is always sorted by start time and pairwise non-overlapping; every
// constructor and Merge preserve that. Touching segments (next.Start ==
// cur.End) are merged.
package segment

import (
	"fmt"
	"math"
	"sort"
)

// Segment is the closed time interval [Start, End].
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns End - Start.
func (s Segment) Duration() float64 { return s.End - s.Start }

// Valid reports whether Start < End.
func (s Segment) Valid() bool { return s.Start < s.End }

// Contains reports whether t lies in [Start, End].
//
// The closed upper bound matches how a dilated window [t-w, t+w] is read
// when vetoing: an event exactly w after an auxiliary trigger is vetoed.
func (s Segment) Contains(t float64) bool { return t >= s.Start && t <= s.End }

// Align widens s outward to whole multiples of block, keeping at least one
// block. A non-positive block returns s unchanged.
func (s Segment) Align(block float64) Segment {
	if block <= 0 || math.IsInf(block, 0) || math.IsNaN(block) {
		return s
	}
	out := Segment{
		Start: math.Floor(s.Start/block) * block,
		End:   math.Ceil(s.End/block) * block,
	}
	if out.End <= out.Start {
		out.End = out.Start + block
	}
	return out
}

func (s Segment) String() string { return fmt.Sprintf("[%g, %g]", s.Start, s.End) }

// Set is a sorted list of non-overlapping segments.
type Set []Segment

// Merge returns the union of existing and the new segments. Invalid
// segments (Start >= End) are dropped. existing is not modified.
func Merge(existing Set, segs ...Segment) Set {
	all := make([]Segment, 0, len(existing)+len(segs))
	for _, s := range existing {
		if s.Valid() {
			all = append(all, s)
		}
	}
	for _, s := range segs {
		if s.Valid() {
			all = append(all, s)
		}
	}
	if len(all) == 0 {
		return Set{}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Start != all[j].Start {
			return all[i].Start < all[j].Start
		}
		return all[i].End < all[j].End
	})

	out := Set{all[0]}
	for _, s := range all[1:] {
		cur := &out[len(out)-1]
		if s.Start <= cur.End {
			if s.End > cur.End {
				cur.End = s.End
			}
			continue
		}
		out = append(out, s)
	}
	return out
}

// Union merges two sets.
func Union(a, b Set) Set { return Merge(a, b...) }

// Dilate builds the set covering [t-w, t+w] for every t, merged.
func Dilate(times []float64, w float64) Set {
	segs := make([]Segment, 0, len(times))
	for _, t := range times {
		segs = append(segs, Segment{Start: t - w, End: t + w})
	}
	return Merge(nil, segs...)
}

// Duration returns the summed length of the set.
func (s Set) Duration() float64 {
	total := 0.0
	for _, seg := range s {
		total += seg.Duration()
	}
	return total
}

// Contains reports whether t falls in any segment.
func (s Set) Contains(t float64) bool {
	i := sort.Search(len(s), func(i int) bool { return s[i].End >= t })
	return i < len(s) && s[i].Contains(t)
}

// Clip intersects the set with span.
func (s Set) Clip(span Segment) Set {
	out := make(Set, 0, len(s))
	for _, seg := range s {
		if seg.Start < span.Start {
			seg.Start = span.Start
		}
		if seg.End > span.End {
			seg.End = span.End
		}
		if seg.Valid() {
			out = append(out, seg)
		}
	}
	return out
}

// Overlapping reports the first adjacent pair violating the non-overlap
// invariant, or -1 when the set is well formed.
func (s Set) Overlapping() int {
	for i := 1; i < len(s); i++ {
		if s[i].Start < s[i-1].End || s[i].Start < s[i-1].Start {
			return i
		}
	}
	return -1
}

// Equal reports whether two sets hold identical segments.
func (s Set) Equal(o Set) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}
