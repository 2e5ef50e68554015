package event

// Conditioning steps applied by the Store before a population is cached.
// Each takes a valid population and returns a new one; IDs are preserved so
// the caller can renumber once at the end.

// InBand keeps events whose frequency lies within [low, high]. A non-positive
// high disables the upper bound.
func InBand(p *Population, low, high float64) *Population {
	return p.Filter(func(e Event) bool {
		if e.Frequency < low {
			return false
		}
		return high <= 0 || e.Frequency <= high
	})
}

// InSpan keeps events with start <= time < end.
func InSpan(p *Population, start, end float64) *Population {
	return p.Filter(func(e Event) bool { return e.Time >= start && e.Time < end })
}

// Cluster groups events whose consecutive gaps are at most window and keeps
// the most significant event of each group (the earliest on ties). A
// non-positive window returns p unchanged.
func Cluster(p *Population, window float64) *Population {
	if window <= 0 || p.Len() < 2 {
		return p
	}
	out := make([]Event, 0, p.Len())
	best := p.events[0]
	last := p.events[0].Time
	for _, e := range p.events[1:] {
		if e.Time-last > window {
			out = append(out, best)
			best = e
		} else if e.Significance > best.Significance {
			best = e
		}
		last = e.Time
	}
	out = append(out, best)
	return newPopulation(p.channel, out)
}
