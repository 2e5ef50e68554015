package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/veto.report/internal/segment"
	"github.com/banshee-data/veto.report/internal/veto"
)

// Run statuses that are not a veto.Outcome. A run is StatusRunning until its
// result is stored and StatusAborted when it failed before producing one.
// Finished runs carry their veto.Outcome instead.
const (
	StatusRunning = "running"
	StatusAborted = "aborted"
)

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

// RunSummary is one row of the run history.
type RunSummary struct {
	RunID        string          `json:"run_id"`
	Primary      string          `json:"primary"`
	Status       string          `json:"status"`
	StopReason   string          `json:"stop_reason,omitempty"`
	Error        string          `json:"error,omitempty"`
	Span         segment.Segment `json:"span"`
	PrimaryTotal int             `json:"primary_total"`
	Remaining    int             `json:"remaining"`
	Rounds       int             `json:"rounds"`
	Efficiency   float64         `json:"efficiency"`
	Deadtime     float64         `json:"deadtime"`
	Config       json.RawMessage `json:"config,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"`
}

// RunStore persists veto runs: a header row when the run starts, one row per
// committed round while it runs, and the totals and final segments when it
// finishes.
type RunStore struct {
	db *DB
}

// NewRunStore creates a RunStore.
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db}
}

// StartRun inserts the run header. If runID is empty a UUID is generated.
// config is stored verbatim and may be nil.
func (s *RunStore) StartRun(ctx context.Context, runID, primary string, span segment.Segment, primaryTotal int, config json.RawMessage, startedAt time.Time) (string, error) {
	if runID == "" {
		runID = uuid.New().String()
	}
	if startedAt.IsZero() {
		startedAt = time.Now()
	}
	var cfg interface{}
	if len(config) > 0 {
		cfg = string(config)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO veto_runs (
			run_id, primary_channel, status, span_start, span_end,
			primary_total, config_json, started_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, primary, StatusRunning, span.Start, span.End,
		primaryTotal, cfg, startedAt.UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("start run %s: %w", runID, err)
	}
	return runID, nil
}

// RecordRound stores one committed round.
func (s *RunStore) RecordRound(ctx context.Context, runID string, rec veto.RoundRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("record round %d: %w", rec.Round, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO veto_rounds (
			run_id, round, winner, threshold, coinc_window, significance,
			observed, expected, use_percentage, live_before, live_after,
			efficiency, deadtime, record_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, rec.Round, rec.Winner, rec.Point.Threshold, rec.Point.Window, rec.Significance,
		rec.Observed, rec.Expected, rec.UsePercentage, rec.LiveBefore, rec.LiveAfter,
		rec.Efficiency, rec.Deadtime, string(body),
	)
	if err != nil {
		return fmt.Errorf("record round %d of %s: %w", rec.Round, runID, err)
	}
	return nil
}

// RoundHook adapts RecordRound for veto.WithRoundHook.
func (s *RunStore) RoundHook() veto.RoundHook {
	return s.RecordRound
}

// FinishRun stores the outcome, totals, final segment set and skipped
// channels of res.
func (s *RunStore) FinishRun(ctx context.Context, res *veto.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("finish run %s: begin: %w", res.RunID, err)
	}
	defer tx.Rollback()

	finished := res.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	result, err := tx.ExecContext(ctx, `
		UPDATE veto_runs
		SET status = ?, stop_reason = ?, remaining = ?, efficiency = ?, deadtime = ?, finished_at = ?
		WHERE run_id = ?`,
		string(res.Outcome), string(res.StopReason), res.Remaining.Len(),
		res.Efficiency(), res.Deadtime(), finished.UnixNano(), res.RunID,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", res.RunID, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", res.RunID, ErrRunNotFound)
	}

	for i, seg := range res.Segments {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO veto_segments (run_id, seq, seg_start, seg_end) VALUES (?, ?, ?, ?)`,
			res.RunID, i, seg.Start, seg.End); err != nil {
			return fmt.Errorf("finish run %s: segment %d: %w", res.RunID, i, err)
		}
	}
	for _, sk := range res.Skipped {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO veto_skipped (run_id, channel, round, reason) VALUES (?, ?, ?, ?)`,
			res.RunID, sk.Channel, sk.Round, sk.Reason); err != nil {
			return fmt.Errorf("finish run %s: skipped %s: %w", res.RunID, sk.Channel, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("finish run %s: commit: %w", res.RunID, err)
	}
	logf("run %s stored: %s, %d rounds", res.RunID, res.Outcome, len(res.Rounds))
	return nil
}

// AbortRun marks a started run as aborted with the error that ended it.
// Rounds recorded before the failure are kept.
func (s *RunStore) AbortRun(ctx context.Context, runID string, cause error, finishedAt time.Time) error {
	if finishedAt.IsZero() {
		finishedAt = time.Now()
	}
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE veto_runs SET status = ?, error_message = ?, finished_at = ?
		WHERE run_id = ?`,
		StatusAborted, msg, finishedAt.UnixNano(), runID,
	)
	if err != nil {
		return fmt.Errorf("abort run %s: %w", runID, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("abort run %s: %w", runID, ErrRunNotFound)
	}
	logf("run %s aborted: %s", runID, msg)
	return nil
}

// SaveResult stores a completed result in one call, for runs executed
// without the round hook.
func (s *RunStore) SaveResult(ctx context.Context, res *veto.Result, config json.RawMessage) error {
	if _, err := s.StartRun(ctx, res.RunID, res.Primary, res.Span, res.PrimaryTotal, config, res.StartedAt); err != nil {
		return err
	}
	for _, rec := range res.Rounds {
		if err := s.RecordRound(ctx, res.RunID, rec); err != nil {
			return err
		}
	}
	return s.FinishRun(ctx, res)
}

const summaryColumns = `
	r.run_id, r.primary_channel, r.status, COALESCE(r.stop_reason, ''), COALESCE(r.error_message, ''),
	COALESCE(r.span_start, 0), COALESCE(r.span_end, 0), r.primary_total,
	COALESCE(r.remaining, r.primary_total), COALESCE(r.efficiency, 0), COALESCE(r.deadtime, 0),
	COALESCE(r.config_json, ''), r.started_at, r.finished_at,
	(SELECT COUNT(*) FROM veto_rounds WHERE run_id = r.run_id)`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSummary(row rowScanner) (*RunSummary, error) {
	var (
		sum      RunSummary
		config   string
		started  int64
		finished sql.NullInt64
	)
	err := row.Scan(
		&sum.RunID, &sum.Primary, &sum.Status, &sum.StopReason, &sum.Error,
		&sum.Span.Start, &sum.Span.End, &sum.PrimaryTotal,
		&sum.Remaining, &sum.Efficiency, &sum.Deadtime,
		&config, &started, &finished, &sum.Rounds,
	)
	if err != nil {
		return nil, err
	}
	if config != "" {
		sum.Config = json.RawMessage(config)
	}
	sum.StartedAt = time.Unix(0, started).UTC()
	if finished.Valid {
		t := time.Unix(0, finished.Int64).UTC()
		sum.FinishedAt = &t
	}
	return &sum, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all runs.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]*RunSummary, error) {
	query := `SELECT ` + summaryColumns + ` FROM veto_runs r ORDER BY r.started_at DESC, r.run_id`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []*RunSummary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// GetRun returns one run summary or ErrRunNotFound.
func (s *RunStore) GetRun(ctx context.Context, runID string) (*RunSummary, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+summaryColumns+` FROM veto_runs r WHERE r.run_id = ?`, runID)
	sum, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return sum, nil
}

// Rounds returns the stored round records of a run in round order.
func (s *RunStore) Rounds(ctx context.Context, runID string) ([]veto.RoundRecord, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT record_json FROM veto_rounds WHERE run_id = ? ORDER BY round`, runID)
	if err != nil {
		return nil, fmt.Errorf("rounds of %s: %w", runID, err)
	}
	defer rows.Close()

	out := []veto.RoundRecord{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("rounds of %s: %w", runID, err)
		}
		var rec veto.RoundRecord
		if err := json.Unmarshal([]byte(body), &rec); err != nil {
			return nil, fmt.Errorf("rounds of %s: decode: %w", runID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Segments returns the final merged veto segments of a run.
func (s *RunStore) Segments(ctx context.Context, runID string) (segment.Set, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT seg_start, seg_end FROM veto_segments WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("segments of %s: %w", runID, err)
	}
	defer rows.Close()

	out := segment.Set{}
	for rows.Next() {
		var seg segment.Segment
		if err := rows.Scan(&seg.Start, &seg.End); err != nil {
			return nil, fmt.Errorf("segments of %s: %w", runID, err)
		}
		out = append(out, seg)
	}
	return out, rows.Err()
}

// Skipped returns the channels dropped from a run.
func (s *RunStore) Skipped(ctx context.Context, runID string) ([]veto.SkippedChannel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT channel, round, reason FROM veto_skipped WHERE run_id = ? ORDER BY round, channel`, runID)
	if err != nil {
		return nil, fmt.Errorf("skipped of %s: %w", runID, err)
	}
	defer rows.Close()

	var out []veto.SkippedChannel
	for rows.Next() {
		var sk veto.SkippedChannel
		if err := rows.Scan(&sk.Channel, &sk.Round, &sk.Reason); err != nil {
			return nil, fmt.Errorf("skipped of %s: %w", runID, err)
		}
		out = append(out, sk)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and, through the foreign keys, its rounds,
// segments and skipped channels.
func (s *RunStore) DeleteRun(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM veto_runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}
