package veto

import (
	"time"

	"github.com/banshee-data/veto.report/internal/event"
	"github.com/banshee-data/veto.report/internal/grid"
	"github.com/banshee-data/veto.report/internal/segment"
)

// Outcome distinguishes a run that ran to a stopping condition from one that
// was cancelled. Fatal failures are returned as errors instead.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeCancelled Outcome = "cancelled"
)

// StopReason says which stopping condition ended a completed run.
type StopReason string

const (
	StopBelowFloor       StopReason = "below_floor"
	StopPrimaryExhausted StopReason = "primary_exhausted"
	StopRoundCap         StopReason = "round_cap"
	StopNoChannels       StopReason = "no_channels"
)

// WarningKind classifies non-fatal conditions recorded on a round.
type WarningKind string

// NumericDegeneracy is recorded when the winning point had an expected count
// of zero and was scored as the maximum significance.
const NumericDegeneracy WarningKind = "numeric_degeneracy"

// Warning is a non-fatal audit note.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Message string      `json:"message"`
}

// RoundRecord is the immutable audit entry for one committed round.
type RoundRecord struct {
	Round         int                 `json:"round"`
	Winner        string              `json:"winner"`
	Point         grid.ParameterPoint `json:"point"`
	Significance  float64             `json:"significance"`
	Observed      int                 `json:"observed"`
	Expected      float64             `json:"expected"`
	UsePercentage float64             `json:"use_percentage"`

	// CoincidentIDs are the primary event IDs coincident at the winning point.
	CoincidentIDs []int `json:"coincident_ids"`

	// Segments are the veto segments this round added, merged.
	Segments segment.Set `json:"segments"`

	// VetoedIDs are the live primary events removed by this round.
	VetoedIDs []int `json:"vetoed_ids"`

	LiveBefore int `json:"live_before"`
	LiveAfter  int `json:"live_after"`

	// Cumulative over rounds 0..Round.
	Efficiency float64 `json:"efficiency"`
	Deadtime   float64 `json:"deadtime"`

	Warnings []Warning `json:"warnings,omitempty"`
}

// EfficiencyOverDeadtime is the figure of merit for the round, 0 when no
// time has been vetoed.
func (r RoundRecord) EfficiencyOverDeadtime() float64 {
	if r.Deadtime <= 0 {
		return 0
	}
	return r.Efficiency / r.Deadtime
}

// SkippedChannel records a channel excluded from the run after its
// evaluation failed.
type SkippedChannel struct {
	Channel string `json:"channel"`
	Round   int    `json:"round"`
	Reason  string `json:"reason"`
}

// Result is the output of a run.
type Result struct {
	RunID      string     `json:"run_id"`
	Primary    string     `json:"primary"`
	Outcome    Outcome    `json:"outcome"`
	StopReason StopReason `json:"stop_reason,omitempty"`

	Span         segment.Segment `json:"span"`
	PrimaryTotal int             `json:"primary_total"`

	Rounds   []RoundRecord    `json:"rounds"`
	Segments segment.Set      `json:"segments"`
	Skipped  []SkippedChannel `json:"skipped,omitempty"`

	// Remaining holds the primary events not explained by any channel.
	Remaining *event.Population `json:"remaining"`

	// ScanDurations holds the wall-clock time of every channel scan, including
	// a final scan that stopped the run. It is kept out of the round records
	// so they stay identical across reruns.
	ScanDurations []time.Duration `json:"scan_durations_ns,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Efficiency is the cumulative efficiency after the last round.
func (r *Result) Efficiency() float64 {
	if len(r.Rounds) == 0 {
		return 0
	}
	return r.Rounds[len(r.Rounds)-1].Efficiency
}

// Deadtime is the cumulative deadtime after the last round.
func (r *Result) Deadtime() float64 {
	if len(r.Rounds) == 0 {
		return 0
	}
	return r.Rounds[len(r.Rounds)-1].Deadtime
}

// Winners lists the winning channels in round order.
func (r *Result) Winners() []string {
	out := make([]string, len(r.Rounds))
	for i, rr := range r.Rounds {
		out[i] = rr.Winner
	}
	return out
}
