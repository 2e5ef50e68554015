package db

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/veto.report/internal/event"
	"github.com/banshee-data/veto.report/internal/grid"
	"github.com/banshee-data/veto.report/internal/segment"
	"github.com/banshee-data/veto.report/internal/testutil"
	"github.com/banshee-data/veto.report/internal/veto"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := NewDB(filepath.Join(t.TempDir(), "veto.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestOpenDB_Pragmas(t *testing.T) {
	database, err := OpenDB(filepath.Join(t.TempDir(), "pragmas.db"))
	require.NoError(t, err)
	defer database.Close()

	var journalMode string
	require.NoError(t, database.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var busyTimeout int
	require.NoError(t, database.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	assert.Equal(t, 5000, busyTimeout)

	var foreignKeys int
	require.NoError(t, database.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
	assert.Equal(t, 1, foreignKeys)
}

func TestMigrations_UpDownVersion(t *testing.T) {
	database, err := OpenDB(filepath.Join(t.TempDir(), "migrate.db"))
	require.NoError(t, err)
	defer database.Close()

	fsys := MigrationsFS()
	latest, err := LatestMigrationVersion(fsys)
	require.NoError(t, err)
	assert.Equal(t, uint(4), latest)

	version, dirty, err := database.MigrateVersion(fsys)
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
	assert.False(t, dirty)

	require.NoError(t, database.MigrateUp(fsys))
	version, dirty, err = database.MigrateVersion(fsys)
	require.NoError(t, err)
	assert.Equal(t, latest, version)
	assert.False(t, dirty)

	// A second MigrateUp is a no-op.
	require.NoError(t, database.MigrateUp(fsys))

	require.NoError(t, database.MigrateDown(fsys))
	version, _, err = database.MigrateVersion(fsys)
	require.NoError(t, err)
	assert.Equal(t, latest-1, version)

	var n int
	err = database.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('veto_runs') WHERE name = 'error_message'`).Scan(&n)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, database.MigrateForce(fsys, int(latest-1)))
}

func TestTriggerStore_ImportAndRead(t *testing.T) {
	ctx := context.Background()
	store := NewTriggerStore(newTestDB(t))

	n, err := store.Import(ctx, "H1:AUX", testutil.Events(
		testutil.Trigger{T: 30, Sig: 9},
		testutil.Trigger{T: 10, Sig: 12},
	))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = store.Import(ctx, "H1:STRAIN", testutil.Events(testutil.Trigger{T: 11, Sig: 8}))
	require.NoError(t, err)

	channels, err := store.Channels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"H1:AUX", "H1:STRAIN"}, channels)

	evs, err := store.Read(ctx, "H1:AUX")
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, 10.0, evs[0].Time)
	assert.Equal(t, 12.0, evs[0].Significance)
	assert.Equal(t, 100.0, evs[0].Frequency)
	assert.Equal(t, "H1:AUX", evs[0].Channel)

	// Re-import replaces the channel.
	_, err = store.Import(ctx, "H1:AUX", testutil.Events(testutil.Trigger{T: 50, Sig: 20}))
	require.NoError(t, err)
	evs, err = store.Read(ctx, "H1:AUX")
	require.NoError(t, err)
	assert.Len(t, evs, 1)

	_, err = store.Read(ctx, "H1:MISSING")
	assert.Error(t, err)
}

func TestTriggerStore_RejectsMalformed(t *testing.T) {
	ctx := context.Background()
	store := NewTriggerStore(newTestDB(t))

	_, err := store.Import(ctx, "H1:AUX", []event.Event{{Time: 1, Significance: -3, Frequency: 100}})
	var integrity *event.DataIntegrityError
	assert.ErrorAs(t, err, &integrity)

	_, err = store.Import(ctx, "", testutil.Events(testutil.Trigger{T: 1, Sig: 9}))
	assert.Error(t, err)

	channels, err := store.Channels(ctx)
	require.NoError(t, err)
	assert.Empty(t, channels)
}

func TestTriggerStore_AsEventSource(t *testing.T) {
	ctx := context.Background()
	store := NewTriggerStore(newTestDB(t))
	_, err := store.Import(ctx, "H1:STRAIN", testutil.Events(testutil.Trigger{T: 10, Sig: 7}))
	require.NoError(t, err)
	_, err = store.Import(ctx, "H1:AUX", testutil.Events(testutil.Trigger{T: 10.05, Sig: 8}))
	require.NoError(t, err)

	es := event.NewStore(store)
	primary, err := es.Load(ctx, "H1:STRAIN")
	require.NoError(t, err)
	aux, err := es.LoadAuxiliarySet(ctx, "H1:STRAIN")
	require.NoError(t, err)

	cfg := veto.DefaultConfig()
	cfg.Grid = grid.Grid{{Threshold: 6, Window: 0.1}}
	cfg.Span = &segment.Segment{Start: 0, End: 1000}
	ctl, err := veto.New(cfg)
	require.NoError(t, err)
	res, err := ctl.Run(ctx, primary, aux)
	require.NoError(t, err)
	assert.Equal(t, []string{"H1:AUX"}, res.Winners())
}

func runFixture(t *testing.T, runID string, opts ...veto.Option) *veto.Result {
	t.Helper()
	primary := testutil.Population(t, "H1:STRAIN",
		testutil.Trigger{T: 10, Sig: 7}, testutil.Trigger{T: 500, Sig: 9}, testutil.Trigger{T: 900, Sig: 8})
	aux := map[string]*event.Population{
		"H1:A":   testutil.Population(t, "H1:A", testutil.Trigger{T: 10.01, Sig: 8}),
		"H1:B":   testutil.Population(t, "H1:B", testutil.Trigger{T: 500.02, Sig: 9}, testutil.Trigger{T: 700, Sig: 9}),
		"H1:BAD": event.Invalid("H1:BAD", errors.New("bad trigger file")),
	}
	cfg := veto.DefaultConfig()
	cfg.Grid = grid.Grid{{Threshold: 6, Window: 0.1}}
	cfg.Span = &segment.Segment{Start: 0, End: 1000}
	ctl, err := veto.New(cfg, append([]veto.Option{veto.WithRunID(runID)}, opts...)...)
	require.NoError(t, err)
	res, err := ctl.Run(context.Background(), primary, aux)
	require.NoError(t, err)
	return res
}

func TestRunStore_HookLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewRunStore(newTestDB(t))

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	runID, err := store.StartRun(ctx, "run-1", "H1:STRAIN", segment.Segment{Start: 0, End: 1000}, 3,
		json.RawMessage(`{"max_rounds":10}`), started)
	require.NoError(t, err)
	assert.Equal(t, "run-1", runID)

	inProgress, err := store.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, inProgress.Status)
	assert.Nil(t, inProgress.FinishedAt)
	assert.Equal(t, 3, inProgress.Remaining)

	res := runFixture(t, runID, veto.WithRoundHook(store.RoundHook()))
	require.Len(t, res.Rounds, 2)

	// Rounds are visible before the run is finished.
	sum, err := store.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Rounds)

	require.NoError(t, store.FinishRun(ctx, res))

	sum, err = store.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, string(veto.OutcomeCompleted), sum.Status)
	assert.Equal(t, string(res.StopReason), sum.StopReason)
	assert.Equal(t, 1, sum.Remaining)
	assert.InDelta(t, 2.0/3.0, sum.Efficiency, 1e-12)
	assert.Equal(t, started, sum.StartedAt)
	assert.NotNil(t, sum.FinishedAt)
	assert.JSONEq(t, `{"max_rounds":10}`, string(sum.Config))

	rounds, err := store.Rounds(ctx, runID)
	require.NoError(t, err)
	if diff := cmp.Diff(res.Rounds, rounds); diff != "" {
		t.Errorf("stored rounds differ (-want +got):\n%s", diff)
	}

	segs, err := store.Segments(ctx, runID)
	require.NoError(t, err)
	assert.True(t, res.Segments.Equal(segs))

	skipped, err := store.Skipped(ctx, runID)
	require.NoError(t, err)
	require.Len(t, skipped, 1)
	assert.Equal(t, "H1:BAD", skipped[0].Channel)
}

func TestRunStore_CancelDuringRecordKeepsRound(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := NewRunStore(newTestDB(t))

	runID, err := store.StartRun(ctx, "run-int", "H1:STRAIN", segment.Segment{Start: 0, End: 1000}, 3, nil, time.Time{})
	require.NoError(t, err)

	// The signal lands while the first round is being written.
	record := store.RoundHook()
	hook := func(hctx context.Context, id string, rec veto.RoundRecord) error {
		cancel()
		return record(hctx, id, rec)
	}

	primary := testutil.Population(t, "H1:STRAIN",
		testutil.Trigger{T: 10, Sig: 7}, testutil.Trigger{T: 500, Sig: 9})
	aux := map[string]*event.Population{
		"H1:A": testutil.Population(t, "H1:A", testutil.Trigger{T: 10.01, Sig: 8}),
		"H1:B": testutil.Population(t, "H1:B", testutil.Trigger{T: 500.02, Sig: 9}),
	}
	cfg := veto.DefaultConfig()
	cfg.Grid = grid.Grid{{Threshold: 6, Window: 0.1}}
	cfg.Span = &segment.Segment{Start: 0, End: 1000}
	ctl, err := veto.New(cfg, veto.WithRunID(runID), veto.WithRoundHook(hook))
	require.NoError(t, err)

	res, err := ctl.Run(ctx, primary, aux)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, veto.OutcomeCancelled, res.Outcome)
	require.Len(t, res.Rounds, 1)

	require.NoError(t, store.FinishRun(context.WithoutCancel(ctx), res))
	sum, err := store.GetRun(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, string(veto.OutcomeCancelled), sum.Status)
	assert.Equal(t, 1, sum.Rounds)
}

func TestRunStore_AbortRun(t *testing.T) {
	ctx := context.Background()
	store := NewRunStore(newTestDB(t))

	runID, err := store.StartRun(ctx, "run-bad", "H1:STRAIN", segment.Segment{Start: 0, End: 1000}, 3, nil, time.Time{})
	require.NoError(t, err)
	require.NoError(t, store.RecordRound(ctx, runID, veto.RoundRecord{Round: 0, Winner: "H1:A"}))

	finished := time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC)
	require.NoError(t, store.AbortRun(ctx, runID, errors.New("round 1 hook: broker down"), finished))

	sum, err := store.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, StatusAborted, sum.Status)
	assert.Equal(t, "round 1 hook: broker down", sum.Error)
	assert.Equal(t, 1, sum.Rounds)
	require.NotNil(t, sum.FinishedAt)
	assert.Equal(t, finished, *sum.FinishedAt)

	err = store.AbortRun(ctx, "run-missing", errors.New("x"), time.Time{})
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestRunStore_SaveResultListAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewRunStore(newTestDB(t))

	older := runFixture(t, "run-old")
	older.StartedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := runFixture(t, "run-new")
	newer.StartedAt = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveResult(ctx, older, nil))
	require.NoError(t, store.SaveResult(ctx, newer, nil))

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-new", runs[0].RunID)
	assert.Equal(t, "run-old", runs[1].RunID)
	assert.Nil(t, runs[0].Config)

	limited, err := store.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	require.NoError(t, store.DeleteRun(ctx, "run-old"))
	_, err = store.GetRun(ctx, "run-old")
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = store.Rounds(ctx, "run-old")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, store.DeleteRun(ctx, "run-old"), ErrRunNotFound)

	var orphans int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM veto_rounds WHERE run_id = 'run-old'`).Scan(&orphans))
	assert.Equal(t, 0, orphans)
}

func TestRunStore_GeneratesRunID(t *testing.T) {
	store := NewRunStore(newTestDB(t))
	id, err := store.StartRun(context.Background(), "", "H1:STRAIN", segment.Segment{}, 0, nil, time.Time{})
	require.NoError(t, err)
	assert.Len(t, id, 36)

	err = store.FinishRun(context.Background(), &veto.Result{RunID: "missing"})
	assert.ErrorIs(t, err, ErrRunNotFound)
}
