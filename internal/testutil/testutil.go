// Package testutil provides shared test helpers and trigger fixtures.
package testutil

import (
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/banshee-data/veto.report/internal/event"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

// Trigger is a (time, significance) pair for building fixtures.
type Trigger struct {
	T   float64
	Sig float64
}

// Events turns triggers into events with a nominal 100 Hz frequency.
func Events(trigs ...Trigger) []event.Event {
	out := make([]event.Event, len(trigs))
	for i, tr := range trigs {
		out[i] = event.Event{Time: tr.T, Significance: tr.Sig, Frequency: 100, Duration: 0.01}
	}
	return out
}

// Population builds a validated population and fails the test on error.
func Population(t testing.TB, channel string, trigs ...Trigger) *event.Population {
	t.Helper()
	p, err := event.NewPopulation(channel, Events(trigs...))
	if err != nil {
		t.Fatalf("building population %s: %v", channel, err)
	}
	return p
}

// Uniform returns n triggers uniformly spread over [start, end) with
// significances in [minSig, minSig+10).
func Uniform(rng *rand.Rand, n int, start, end, minSig float64) []Trigger {
	out := make([]Trigger, n)
	for i := range out {
		out[i] = Trigger{T: start + rng.Float64()*(end-start), Sig: minSig + rng.Float64()*10}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].T < out[j].T })
	return out
}

// Witness returns a trigger within ±jitter of every fraction-th source
// trigger, modelling an auxiliary channel that sees part of the primary
// noise. fraction <= 1 follows every trigger.
func Witness(rng *rand.Rand, source []Trigger, fraction int, jitter, sig float64) []Trigger {
	if fraction < 1 {
		fraction = 1
	}
	var out []Trigger
	for i := 0; i < len(source); i += fraction {
		out = append(out, Trigger{T: source[i].T + (rng.Float64()*2-1)*jitter, Sig: sig})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].T < out[j].T })
	return out
}
