package veto

import (
	"fmt"
	"math"

	"github.com/banshee-data/veto.report/internal/coinc"
	"github.com/banshee-data/veto.report/internal/event"
	"github.com/banshee-data/veto.report/internal/grid"
	"github.com/banshee-data/veto.report/internal/segment"
)

// Defaults used when a Config field is left at its zero value by
// DefaultConfig callers.
const (
	DefaultSignificanceFloor = 2.0
	DefaultMaxRounds         = 100

	// DefaultSpanBlock is the analysis block, in seconds, that a derived
	// span is widened to.
	DefaultSpanBlock = 14400.0
)

// Config controls one veto run.
type Config struct {
	// Grid is the (threshold, window) grid scanned for every channel.
	Grid grid.Grid `json:"grid"`

	// SignificanceFloor stops the run when the best channel scores below it.
	SignificanceFloor float64 `json:"significance_floor"`

	// MaxRounds caps the number of committed rounds.
	MaxRounds int `json:"max_rounds"`

	// Workers bounds concurrent channel scans. 0 uses GOMAXPROCS.
	Workers int `json:"workers"`

	// Exclude lists channels that may never win (unsafe channels).
	Exclude []string `json:"exclude,omitempty"`

	// Span is the observation span used for auxiliary rates and deadtime.
	// When nil it is derived from the extent of all loaded events, widened
	// to whole multiples of SpanBlock.
	Span *segment.Segment `json:"span,omitempty"`

	// SpanBlock aligns a derived span. 0 keeps the raw event extent.
	SpanBlock float64 `json:"span_block"`
}

// DefaultConfig returns the production grid and stopping parameters.
func DefaultConfig() Config {
	return Config{
		Grid:              grid.Default(),
		SignificanceFloor: DefaultSignificanceFloor,
		MaxRounds:         DefaultMaxRounds,
		SpanBlock:         DefaultSpanBlock,
	}
}

// ConfigurationError reports an invalid run configuration. Runs fail fast
// with it before any round executes.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := c.Grid.Validate(); err != nil {
		return &ConfigurationError{Field: "grid", Reason: err.Error()}
	}
	if c.MaxRounds <= 0 {
		return &ConfigurationError{Field: "max_rounds", Reason: fmt.Sprintf("must be positive, got %d", c.MaxRounds)}
	}
	if c.SignificanceFloor < 0 || math.IsNaN(c.SignificanceFloor) || math.IsInf(c.SignificanceFloor, 0) {
		return &ConfigurationError{Field: "significance_floor", Reason: fmt.Sprintf("must be finite and non-negative, got %v", c.SignificanceFloor)}
	}
	if c.Workers < 0 {
		return &ConfigurationError{Field: "workers", Reason: fmt.Sprintf("must not be negative, got %d", c.Workers)}
	}
	if c.SpanBlock < 0 || math.IsNaN(c.SpanBlock) || math.IsInf(c.SpanBlock, 0) {
		return &ConfigurationError{Field: "span_block", Reason: fmt.Sprintf("must be finite and non-negative, got %v", c.SpanBlock)}
	}
	if c.Span != nil {
		if !c.Span.Valid() || math.IsInf(c.Span.Start, 0) || math.IsInf(c.Span.End, 0) {
			return &ConfigurationError{Field: "span", Reason: fmt.Sprintf("must satisfy start < end, got %v", *c.Span)}
		}
	}
	return nil
}

// ResolveSpan returns Span when it is set. Otherwise it returns the extent of
// every event in primary and aux aligned to SpanBlock; ok is false when there
// are no events at all.
func (c Config) ResolveSpan(primary *event.Population, aux map[string]*event.Population) (span segment.Segment, ok bool) {
	if c.Span != nil {
		return *c.Span, true
	}
	pops := make([]*event.Population, 0, len(aux)+1)
	if primary != nil {
		pops = append(pops, primary)
	}
	for _, p := range aux {
		if p != nil {
			pops = append(pops, p)
		}
	}
	extent, ok := coinc.ObservationSpan(pops...)
	if !ok {
		return segment.Segment{}, false
	}
	return extent.Align(c.SpanBlock), true
}
