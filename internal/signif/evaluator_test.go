package signif

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/veto.report/internal/coinc"
	"github.com/banshee-data/veto.report/internal/event"
	"github.com/banshee-data/veto.report/internal/grid"
	"github.com/banshee-data/veto.report/internal/segment"
)

func mustPop(t *testing.T, channel string, pairs ...float64) *event.Population {
	t.Helper()
	var evs []event.Event
	for i := 0; i+1 < len(pairs); i += 2 {
		evs = append(evs, event.Event{Time: pairs[i], Significance: pairs[i+1], Frequency: 100})
	}
	p, err := event.NewPopulation(channel, evs)
	require.NoError(t, err)
	return p
}

func mustGrid(t *testing.T, thresholds, windows []float64) grid.Grid {
	t.Helper()
	g, err := grid.Cartesian(thresholds, windows)
	require.NoError(t, err)
	return g
}

func TestEvaluate_PicksTightestWindow(t *testing.T) {
	primary := mustPop(t, "P", 10, 7)
	aux := mustPop(t, "A", 10.05, 8)
	ev, err := NewEvaluator(mustGrid(t, []float64{6}, []float64{0.2, 0.1, 1}))
	require.NoError(t, err)

	res, err := ev.Evaluate(primary, aux, segment.Segment{Start: 0, End: 1000})
	require.NoError(t, err)

	require.Len(t, res.Scanned, 3)
	assert.Equal(t, "A", res.Channel)
	// smaller window -> smaller expected -> higher significance
	assert.Equal(t, 0.1, res.Best.Point.Window)
	assert.Equal(t, 1, res.Best.Observed)
	assert.Greater(t, res.Best.Significance, 3.0)
	// scan is in canonical order
	assert.Equal(t, 0.1, res.Scanned[0].Point.Window)
	assert.Equal(t, 1.0, res.Scanned[2].Point.Window)
}

func TestEvaluate_DegenerateTieBreaksOnWindow(t *testing.T) {
	primary := mustPop(t, "P", 10, 7)
	aux := mustPop(t, "A", 10.05, 8)
	ev, err := NewEvaluator(mustGrid(t, []float64{6}, []float64{0.5, 0.1}))
	require.NoError(t, err)

	// zero-length span: expected is 0 everywhere
	res, err := ev.Evaluate(primary, aux, segment.Segment{Start: 5, End: 5})
	require.NoError(t, err)
	assert.True(t, res.Best.Degenerate)
	assert.Equal(t, MaxSignificance, res.Best.Significance)
	assert.Equal(t, 0.1, res.Best.Point.Window)
}

func TestEvaluate_Errors(t *testing.T) {
	primary := mustPop(t, "P", 10, 7)
	ev := &Evaluator{}
	_, err := ev.Evaluate(primary, mustPop(t, "A"), segment.Segment{End: 1})
	assert.Error(t, err, "empty grid")

	ev, err = NewEvaluator(grid.Default())
	require.NoError(t, err)
	_, err = ev.Evaluate(primary, nil, segment.Segment{End: 1})
	assert.Error(t, err)
	_, err = ev.Evaluate(nil, primary, segment.Segment{End: 1})
	assert.Error(t, err)

	bad := event.FromSorted("B", []event.Event{{Time: 2, Significance: 1, Frequency: 1}, {Time: 1, Significance: 1, Frequency: 1}})
	_, err = ev.Evaluate(primary, bad, segment.Segment{End: 1})
	var die *event.DataIntegrityError
	assert.ErrorAs(t, err, &die)

	_, err = NewEvaluator(grid.Grid{})
	assert.Error(t, err)
}

func TestBetter(t *testing.T) {
	mk := func(sig float64, obs int, w float64) Scored {
		return Scored{Result: coinc.Result{Observed: obs, Point: grid.ParameterPoint{Threshold: 8, Window: w}}, Significance: sig}
	}
	assert.True(t, Better(mk(5, 1, 1), mk(4, 9, 0.1)), "significance first")
	assert.True(t, Better(mk(5, 2, 1), mk(5, 1, 0.1)), "then observed")
	assert.True(t, Better(mk(5, 2, 0.1), mk(5, 2, 1)), "then smaller window")
	assert.False(t, Better(mk(5, 2, 0.1), mk(5, 2, 0.1)), "equal is not better")
}
