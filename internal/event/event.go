package event

import (
	"encoding/json"
	"math"
	"sort"
)

// Event is a single trigger. Time is in seconds on a monotonic epoch (GPS
// seconds for detector data), Significance is an SNR-like ranking statistic.
type Event struct {
	ID           int     `json:"id"`
	Channel      string  `json:"channel"`
	Time         float64 `json:"time"`
	Significance float64 `json:"significance"`
	Frequency    float64 `json:"frequency"`
	Duration     float64 `json:"duration"`
}

// Population is the time-ordered set of events for one channel.
type Population struct {
	channel string
	events  []Event
	times   []float64

	// err marks a channel that failed to load; Validate reports it.
	err error
}

// NewPopulation copies events, stamps them with channel, sorts them stably by
// time and validates every numeric field. Event IDs are reassigned to the
// sorted position, so ties keep their input order and IDs are dense.
func NewPopulation(channel string, events []Event) (*Population, error) {
	evs := make([]Event, len(events))
	copy(evs, events)
	for i := range evs {
		evs[i].Channel = channel
		if err := validateEvent(channel, i, evs[i]); err != nil {
			return nil, err
		}
	}
	sort.SliceStable(evs, func(a, b int) bool { return evs[a].Time < evs[b].Time })
	for i := range evs {
		evs[i].ID = i
	}
	p := newPopulation(channel, evs)
	if err := p.checkOrder(); err != nil {
		return nil, err
	}
	return p, nil
}

// FromSorted wraps events that the caller guarantees are already sorted and
// valid. Nothing is checked here; Validate can be called later. IDs and
// channel stamps are kept as given.
func FromSorted(channel string, events []Event) *Population {
	evs := make([]Event, len(events))
	copy(evs, events)
	return newPopulation(channel, evs)
}

// Empty returns a population with no events.
func Empty(channel string) *Population {
	return newPopulation(channel, nil)
}

// Invalid returns an empty population standing in for a channel whose
// triggers failed to load. Validate returns err, so the veto run skips the
// channel and records why.
func Invalid(channel string, err error) *Population {
	p := newPopulation(channel, nil)
	p.err = err
	return p
}

func newPopulation(channel string, evs []Event) *Population {
	times := make([]float64, len(evs))
	for i, e := range evs {
		times[i] = e.Time
	}
	return &Population{channel: channel, events: evs, times: times}
}

// Validate re-checks the population invariants: finite fields and
// non-decreasing time.
func (p *Population) Validate() error {
	if p == nil {
		return &DataIntegrityError{Index: -1, Reason: "nil population"}
	}
	if p.err != nil {
		return p.err
	}
	for i, e := range p.events {
		if err := validateEvent(p.channel, i, e); err != nil {
			return err
		}
	}
	return p.checkOrder()
}

func (p *Population) checkOrder() error {
	for i := 1; i < len(p.times); i++ {
		if p.times[i] < p.times[i-1] {
			return &DataIntegrityError{
				Channel: p.channel, Index: i, Field: "time", Value: p.times[i],
				Reason: "is earlier than the preceding event",
			}
		}
	}
	return nil
}

func validateEvent(channel string, i int, e Event) error {
	check := func(field string, v float64) error {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &DataIntegrityError{Channel: channel, Index: i, Field: field, Value: v, Reason: "is not finite"}
		}
		return nil
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"time", e.Time},
		{"significance", e.Significance},
		{"frequency", e.Frequency},
		{"duration", e.Duration},
	} {
		if err := check(f.name, f.v); err != nil {
			return err
		}
	}
	switch {
	case e.Significance < 0:
		return &DataIntegrityError{Channel: channel, Index: i, Field: "significance", Value: e.Significance, Reason: "is negative"}
	case e.Frequency <= 0:
		return &DataIntegrityError{Channel: channel, Index: i, Field: "frequency", Value: e.Frequency, Reason: "is not positive"}
	case e.Duration < 0:
		return &DataIntegrityError{Channel: channel, Index: i, Field: "duration", Value: e.Duration, Reason: "is negative"}
	}
	return nil
}

// Channel returns the channel the population belongs to.
func (p *Population) Channel() string { return p.channel }

// Len returns the number of events.
func (p *Population) Len() int {
	if p == nil {
		return 0
	}
	return len(p.events)
}

// At returns the i-th event in time order.
func (p *Population) At(i int) Event { return p.events[i] }

// Events returns a copy of the events in time order.
func (p *Population) Events() []Event {
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// Times returns the sorted event times. The slice is shared with the
// population and must not be modified.
func (p *Population) Times() []float64 { return p.times }

// IDs returns the event IDs in time order.
func (p *Population) IDs() []int {
	out := make([]int, len(p.events))
	for i, e := range p.events {
		out[i] = e.ID
	}
	return out
}

// Span returns the time of the first and last event. ok is false when the
// population is empty.
func (p *Population) Span() (start, end float64, ok bool) {
	if p.Len() == 0 {
		return 0, 0, false
	}
	return p.times[0], p.times[len(p.times)-1], true
}

// Filter returns a new population holding the events for which keep returns
// true. Order and IDs are preserved.
func (p *Population) Filter(keep func(Event) bool) *Population {
	out := make([]Event, 0, len(p.events))
	for _, e := range p.events {
		if keep(e) {
			out = append(out, e)
		}
	}
	return newPopulation(p.channel, out)
}

// AboveThreshold returns the events with Significance >= threshold.
func (p *Population) AboveThreshold(threshold float64) *Population {
	return p.Filter(func(e Event) bool { return e.Significance >= threshold })
}

// CountAbove returns how many events have Significance >= threshold.
func (p *Population) CountAbove(threshold float64) int {
	n := 0
	for _, e := range p.events {
		if e.Significance >= threshold {
			n++
		}
	}
	return n
}

// MaxSignificance returns the largest significance in the population, or 0
// when it is empty.
func (p *Population) MaxSignificance() float64 {
	max := 0.0
	for _, e := range p.events {
		if e.Significance > max {
			max = e.Significance
		}
	}
	return max
}

// MarshalJSON encodes the population as its event list.
func (p *Population) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("null"), nil
	}
	evs := p.events
	if evs == nil {
		evs = []Event{}
	}
	return json.Marshal(evs)
}
