package veto

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/veto.report/internal/event"
	"github.com/banshee-data/veto.report/internal/monitoring"
	"github.com/banshee-data/veto.report/internal/segment"
	"github.com/banshee-data/veto.report/internal/signif"
	"github.com/banshee-data/veto.report/internal/timeutil"
)

var logf = monitoring.Component("veto")

// RoundHook is called in the commit phase after each round. The round is
// already committed, so ctx is not cancelled when the run is; cancellation
// takes effect at the next round boundary. Returning an error aborts the run.
type RoundHook func(ctx context.Context, runID string, rec RoundRecord) error

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the clock used to stamp runs and time scans.
func WithClock(c timeutil.Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

// WithRoundHook registers a hook run after every committed round. Hooks run
// sequentially in registration order.
func WithRoundHook(h RoundHook) Option {
	return func(ctl *Controller) { ctl.hooks = append(ctl.hooks, h) }
}

// WithRunID fixes the run ID instead of generating a UUID per run.
func WithRunID(id string) Option {
	return func(ctl *Controller) { ctl.runID = id }
}

// Controller runs the round-robin veto.
type Controller struct {
	cfg     Config
	eval    *signif.Evaluator
	clock   timeutil.Clock
	hooks   []RoundHook
	runID   string
	exclude map[string]bool
}

// New validates cfg and builds a Controller.
func New(cfg Config, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ev, err := signif.NewEvaluator(cfg.Grid)
	if err != nil {
		return nil, &ConfigurationError{Field: "grid", Reason: err.Error()}
	}
	ctl := &Controller{
		cfg:     cfg,
		eval:    ev,
		clock:   timeutil.RealClock{},
		exclude: make(map[string]bool, len(cfg.Exclude)),
	}
	for _, ch := range cfg.Exclude {
		ctl.exclude[ch] = true
	}
	for _, opt := range opts {
		opt(ctl)
	}
	return ctl, nil
}

func (c *Controller) workers() int {
	if c.cfg.Workers > 0 {
		return c.cfg.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// scanResult is one channel's contribution to a round.
type scanResult struct {
	channel string
	eval    signif.Evaluation
	err     error
}

// runState is the mutable state threaded through rounds. It is only touched
// by the goroutine running Run.
type runState struct {
	round     int
	live      *event.Population
	remaining []string
	vetoed    int
	segments  segment.Set
	rounds    []RoundRecord
	skipped   []SkippedChannel
}

// Run executes rounds until a stopping condition or cancellation.
//
// A *event.DataIntegrityError is returned when the primary population is
// malformed. Cancellation is not an error: the rounds committed so far are
// returned with OutcomeCancelled.
func (c *Controller) Run(ctx context.Context, primary *event.Population, aux map[string]*event.Population) (*Result, error) {
	if primary == nil {
		return nil, &ConfigurationError{Field: "primary", Reason: "population is nil"}
	}
	if err := primary.Validate(); err != nil {
		return nil, err
	}

	runID := c.runID
	if runID == "" {
		runID = uuid.New().String()
	}
	res := &Result{
		RunID:        runID,
		Primary:      primary.Channel(),
		PrimaryTotal: primary.Len(),
		StartedAt:    c.clock.Now(),
	}
	res.Span = c.span(primary, aux)

	st := &runState{
		live:      primary,
		remaining: c.candidates(primary.Channel(), aux),
		segments:  segment.Set{},
	}
	logf("run %s: primary %s with %d events, %d candidate channels, span %v",
		runID, primary.Channel(), primary.Len(), len(st.remaining), res.Span)

	finish := func(outcome Outcome, reason StopReason) (*Result, error) {
		res.Outcome = outcome
		res.StopReason = reason
		res.Rounds = st.rounds
		res.Segments = st.segments
		res.Skipped = st.skipped
		res.Remaining = st.live
		res.FinishedAt = c.clock.Now()
		logf("run %s: %s after %d rounds (%s), efficiency %.4f deadtime %.6f",
			runID, outcome, len(st.rounds), reason, res.Efficiency(), res.Deadtime())
		return res, nil
	}

	for {
		if ctx.Err() != nil {
			return finish(OutcomeCancelled, "")
		}
		switch {
		case st.live.Len() == 0:
			return finish(OutcomeCompleted, StopPrimaryExhausted)
		case st.round >= c.cfg.MaxRounds:
			return finish(OutcomeCompleted, StopRoundCap)
		case len(st.remaining) == 0:
			return finish(OutcomeCompleted, StopNoChannels)
		}

		scanStart := c.clock.Now()
		scans, err := c.scan(ctx, st.live, st.remaining, aux, res.Span)
		took := c.clock.Since(scanStart)
		res.ScanDurations = append(res.ScanDurations, took)
		logf("round %d: scanned %d channels in %v", st.round, len(st.remaining), took)
		if err != nil || ctx.Err() != nil {
			// The round is discarded; nothing from it is committed.
			return finish(OutcomeCancelled, "")
		}

		best, ok := c.reduce(st, scans)
		if !ok {
			return finish(OutcomeCompleted, StopNoChannels)
		}
		if best.eval.Best.Significance <= 0 || best.eval.Best.Significance < c.cfg.SignificanceFloor {
			logf("run %s: round %d best channel %s scored %.3f, below floor %.3f",
				runID, st.round, best.channel, best.eval.Best.Significance, c.cfg.SignificanceFloor)
			return finish(OutcomeCompleted, StopBelowFloor)
		}

		rec := c.commit(st, best, aux[best.channel], res)
		hookCtx := context.WithoutCancel(ctx)
		for _, h := range c.hooks {
			if err := h(hookCtx, runID, rec); err != nil {
				if ctx.Err() != nil && errors.Is(err, context.Canceled) {
					return finish(OutcomeCancelled, "")
				}
				return nil, fmt.Errorf("round %d hook: %w", rec.Round, err)
			}
		}
	}
}

// span returns the configured observation span or the aligned extent of all
// events.
func (c *Controller) span(primary *event.Population, aux map[string]*event.Population) segment.Segment {
	span, _ := c.cfg.ResolveSpan(primary, aux)
	return span
}

// candidates returns the sorted auxiliary channel IDs eligible to win.
func (c *Controller) candidates(primary string, aux map[string]*event.Population) []string {
	out := make([]string, 0, len(aux))
	for ch := range aux {
		if ch == primary || c.exclude[ch] {
			continue
		}
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

// scan evaluates every remaining channel concurrently. results[i] belongs to
// remaining[i], so arrival order never matters.
func (c *Controller) scan(ctx context.Context, live *event.Population, remaining []string, aux map[string]*event.Population, span segment.Segment) ([]scanResult, error) {
	results := make([]scanResult, len(remaining))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers())
	for i, ch := range remaining {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = c.evaluate(live, ch, aux[ch], span)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// evaluate isolates one channel's evaluation so a malformed channel or a
// panic only removes that channel.
func (c *Controller) evaluate(live *event.Population, ch string, pop *event.Population, span segment.Segment) (out scanResult) {
	out.channel = ch
	defer func() {
		if r := recover(); r != nil {
			out.err = fmt.Errorf("panic evaluating channel %s: %v", ch, r)
		}
	}()
	if pop == nil {
		out.err = fmt.Errorf("channel %s has no population", ch)
		return out
	}
	out.eval, out.err = c.eval.Evaluate(live, pop, span)
	return out
}

// reduce drops failed channels from the run and returns the winner: the
// highest significance, ties going to the lexicographically smallest
// channel. scans are in remaining order, which is sorted.
func (c *Controller) reduce(st *runState, scans []scanResult) (scanResult, bool) {
	var best scanResult
	found := false
	kept := st.remaining[:0]
	for _, s := range scans {
		if s.err != nil {
			logf("round %d: skipping channel %s: %v", st.round, s.channel, s.err)
			st.skipped = append(st.skipped, SkippedChannel{Channel: s.channel, Round: st.round, Reason: s.err.Error()})
			continue
		}
		kept = append(kept, s.channel)
		if !found || s.eval.Best.Significance > best.eval.Best.Significance {
			best = s
			found = true
		}
	}
	st.remaining = kept
	return best, found
}

// commit applies the winning channel's veto and appends the round record.
func (c *Controller) commit(st *runState, win scanResult, pop *event.Population, res *Result) RoundRecord {
	b := win.eval.Best
	qualifying := pop.AboveThreshold(b.Point.Threshold)
	newSegs := segment.Dilate(qualifying.Times(), b.Point.Window)

	kept, vetoed := segment.Veto(st.live, newSegs)
	st.segments = segment.Union(st.segments, newSegs)
	st.vetoed += vetoed.Len()

	rec := RoundRecord{
		Round:         st.round,
		Winner:        win.channel,
		Point:         b.Point,
		Significance:  b.Significance,
		Observed:      b.Observed,
		Expected:      b.Expected,
		UsePercentage: b.UsePercentage(),
		CoincidentIDs: append([]int{}, b.Coincident...),
		Segments:      newSegs,
		VetoedIDs:     vetoed.IDs(),
		LiveBefore:    st.live.Len(),
		LiveAfter:     kept.Len(),
		Efficiency:    segment.Efficiency(res.PrimaryTotal, st.vetoed),
		Deadtime:      segment.Deadtime(st.segments.Clip(res.Span), res.Span.Duration()),
	}
	if b.Degenerate {
		rec.Warnings = append(rec.Warnings, Warning{
			Kind: NumericDegeneracy,
			Message: fmt.Sprintf("channel %s at %v: %d coincidences against an expected count of 0",
				win.channel, b.Point, b.Observed),
		})
	}

	st.live = kept
	st.rounds = append(st.rounds, rec)
	for i, ch := range st.remaining {
		if ch == win.channel {
			st.remaining = append(st.remaining[:i], st.remaining[i+1:]...)
			break
		}
	}
	logf("round %d: %s wins at %v, significance %.3f, vetoed %d of %d, efficiency %.4f deadtime %.6f",
		rec.Round, rec.Winner, rec.Point, rec.Significance, len(rec.VetoedIDs), rec.LiveBefore, rec.Efficiency, rec.Deadtime)
	st.round++
	return rec
}
