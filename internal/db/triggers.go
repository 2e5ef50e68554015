package db

import (
	"context"
	"fmt"
	"time"

	"github.com/banshee-data/veto.report/internal/event"
)

// TriggerStore keeps imported trigger lists so later runs can read them
// without the original files. It implements event.Source.
type TriggerStore struct {
	db *DB
}

// NewTriggerStore creates a TriggerStore.
func NewTriggerStore(db *DB) *TriggerStore {
	return &TriggerStore{db: db}
}

var _ event.Source = (*TriggerStore)(nil)

// Import replaces the stored triggers of channel with events. Events are
// validated first; nothing is written when any of them is malformed.
func (s *TriggerStore) Import(ctx context.Context, channel string, events []event.Event) (int, error) {
	if channel == "" {
		return 0, fmt.Errorf("import: channel name is empty")
	}
	pop, err := event.NewPopulation(channel, events)
	if err != nil {
		return 0, fmt.Errorf("import %s: %w", channel, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("import %s: begin: %w", channel, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM triggers WHERE channel = ?`, channel); err != nil {
		return 0, fmt.Errorf("import %s: clear: %w", channel, err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO triggers (channel, time, frequency, significance, duration, imported_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("import %s: prepare: %w", channel, err)
	}
	defer stmt.Close()

	now := time.Now().UnixNano()
	for _, e := range pop.Events() {
		if _, err := stmt.ExecContext(ctx, channel, e.Time, e.Frequency, e.Significance, e.Duration, now); err != nil {
			return 0, fmt.Errorf("import %s: insert: %w", channel, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("import %s: commit: %w", channel, err)
	}
	logf("imported %d triggers for %s", pop.Len(), channel)
	return pop.Len(), nil
}

// Channels lists the channels with stored triggers in lexicographic order.
func (s *TriggerStore) Channels(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT channel FROM triggers ORDER BY channel`)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var ch string
		if err := rows.Scan(&ch); err != nil {
			return nil, fmt.Errorf("list channels: %w", err)
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

// Read returns the stored triggers of channel in time order.
func (s *TriggerStore) Read(ctx context.Context, channel string) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT time, frequency, significance, duration
		FROM triggers WHERE channel = ?
		ORDER BY time, trigger_id`, channel)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", channel, err)
	}
	defer rows.Close()

	var out []event.Event
	for rows.Next() {
		e := event.Event{Channel: channel}
		if err := rows.Scan(&e.Time, &e.Frequency, &e.Significance, &e.Duration); err != nil {
			return nil, fmt.Errorf("read %s: %w", channel, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", channel, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("read %s: no triggers stored", channel)
	}
	return out, nil
}
