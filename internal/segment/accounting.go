package segment

import "github.com/banshee-data/veto.report/internal/event"

// Veto splits pop into the events outside every segment (kept) and those
// inside one (vetoed). Both inputs are sorted, so this is one linear sweep.
func Veto(pop *event.Population, set Set) (kept, vetoed *event.Population) {
	var keep, drop []event.Event
	j := 0
	for i := 0; i < pop.Len(); i++ {
		e := pop.At(i)
		for j < len(set) && set[j].End < e.Time {
			j++
		}
		if j < len(set) && set[j].Contains(e.Time) {
			drop = append(drop, e)
		} else {
			keep = append(keep, e)
		}
	}
	return event.FromSorted(pop.Channel(), keep), event.FromSorted(pop.Channel(), drop)
}

// Efficiency is the fraction of primary events vetoed, in [0, 1]. It is 0
// when there were no primary events.
func Efficiency(total, vetoed int) float64 {
	if total <= 0 || vetoed <= 0 {
		return 0
	}
	if vetoed > total {
		return 1
	}
	return float64(vetoed) / float64(total)
}

// Deadtime is the fraction of the observation span covered by set, in
// [0, 1]. It is reported as 0 when span is not positive.
func Deadtime(set Set, span float64) float64 {
	if span <= 0 {
		return 0
	}
	d := set.Duration() / span
	switch {
	case d < 0:
		return 0
	case d > 1:
		return 1
	}
	return d
}
