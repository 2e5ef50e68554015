package event

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ev(t, sig float64) Event {
	return Event{Time: t, Significance: sig, Frequency: 100, Duration: 0.01}
}

func TestNewPopulation_SortsStablyAndNumbers(t *testing.T) {
	in := []Event{ev(5, 1), ev(1, 2), ev(5, 3), ev(3, 4)}
	p, err := NewPopulation("K1:AUX", in)
	require.NoError(t, err)

	require.Equal(t, 4, p.Len())
	assert.Equal(t, []float64{1, 3, 5, 5}, p.Times())
	// ties keep input order: sig 1 before sig 3
	assert.Equal(t, 1.0, p.At(2).Significance)
	assert.Equal(t, 3.0, p.At(3).Significance)
	assert.Equal(t, []int{0, 1, 2, 3}, p.IDs())
	for _, e := range p.Events() {
		assert.Equal(t, "K1:AUX", e.Channel)
	}

	// input slice is untouched
	assert.Equal(t, 5.0, in[0].Time)
}

func TestNewPopulation_RejectsBadEvents(t *testing.T) {
	testCases := []struct {
		name  string
		event Event
		field string
	}{
		{"nan_time", Event{Time: math.NaN(), Significance: 1, Frequency: 10}, "time"},
		{"inf_significance", Event{Time: 1, Significance: math.Inf(1), Frequency: 10}, "significance"},
		{"negative_significance", Event{Time: 1, Significance: -1, Frequency: 10}, "significance"},
		{"zero_frequency", Event{Time: 1, Significance: 1, Frequency: 0}, "frequency"},
		{"negative_duration", Event{Time: 1, Significance: 1, Frequency: 10, Duration: -0.5}, "duration"},
		{"inf_duration", Event{Time: 1, Significance: 1, Frequency: 10, Duration: math.Inf(-1)}, "duration"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewPopulation("K1:AUX", []Event{ev(0, 1), tc.event})
			var die *DataIntegrityError
			if !errors.As(err, &die) {
				t.Fatalf("expected DataIntegrityError, got %v", err)
			}
			if die.Field != tc.field {
				t.Errorf("field = %q, want %q", die.Field, tc.field)
			}
			if die.Index != 1 {
				t.Errorf("index = %d, want 1", die.Index)
			}
		})
	}
}

func TestFromSorted_Validate(t *testing.T) {
	good := FromSorted("A", []Event{ev(1, 1), ev(2, 1)})
	assert.NoError(t, good.Validate())

	unsorted := FromSorted("A", []Event{ev(2, 1), ev(1, 1)})
	var die *DataIntegrityError
	require.ErrorAs(t, unsorted.Validate(), &die)
	assert.Equal(t, "time", die.Field)

	nonFinite := FromSorted("A", []Event{{Time: 1, Significance: math.NaN(), Frequency: 1}})
	assert.Error(t, nonFinite.Validate())

	var nilPop *Population
	assert.Error(t, nilPop.Validate())
	assert.Equal(t, 0, nilPop.Len())
}

func TestPopulation_Accessors(t *testing.T) {
	p, err := NewPopulation("A", []Event{ev(10, 2), ev(20, 8), ev(30, 5)})
	require.NoError(t, err)

	start, end, ok := p.Span()
	assert.True(t, ok)
	assert.Equal(t, 10.0, start)
	assert.Equal(t, 30.0, end)

	_, _, ok = Empty("A").Span()
	assert.False(t, ok)

	above := p.AboveThreshold(5)
	assert.Equal(t, []float64{20, 30}, above.Times())
	assert.Equal(t, []int{1, 2}, above.IDs(), "filter keeps IDs")
	assert.Equal(t, 2, p.CountAbove(5))
	assert.Equal(t, 8.0, p.MaxSignificance())
	assert.Equal(t, 0.0, Empty("A").MaxSignificance())

	evs := p.Events()
	evs[0].Time = 999
	assert.Equal(t, 10.0, p.At(0).Time, "Events returns a copy")
}
