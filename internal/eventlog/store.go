// Curatarr - Media Server Automation Companion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curatarr

package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/goccy/go-json"

	"github.com/tomtom215/curatarr/internal/logging"
	"github.com/tomtom215/curatarr/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS automation_events (
	event_id    VARCHAR PRIMARY KEY,
	event       VARCHAR NOT NULL,
	timestamp   TIMESTAMP NOT NULL,
	media_kind  VARCHAR,
	seed_title  VARCHAR,
	user_id     INTEGER,
	granularity VARCHAR,
	item_count  INTEGER,
	payload     VARCHAR NOT NULL
);
`

// EventStore persists automation events to DuckDB. Hot columns are broken
// out for querying; the full event rides along as JSON.
type EventStore struct {
	db *sql.DB
}

// OpenEventStore opens (or creates) the DuckDB database at path and ensures
// the schema. An empty path opens an in-memory database.
func OpenEventStore(path string) (*EventStore, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open DuckDB: %w", err)
	}

	// Single writer; the consumer is the only insert path.
	db.SetMaxOpenConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create automation_events schema: %w", err)
	}

	logging.Info().Str("path", path).Msg("Event store opened")
	return &EventStore{db: db}, nil
}

// Close closes the underlying database.
func (s *EventStore) Close() error {
	return s.db.Close()
}

// Insert persists one event. Re-inserting an event ID is a no-op so bus
// redelivery stays idempotent.
func (s *EventStore) Insert(ctx context.Context, event models.AutomationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.EventID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO automation_events
			(event_id, event, timestamp, media_kind, seed_title, user_id, granularity, item_count, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (event_id) DO NOTHING`,
		event.EventID,
		string(event.Type),
		event.Timestamp,
		string(event.MediaKind),
		event.SeedTitle,
		event.UserID,
		string(event.Granularity),
		event.ItemCount,
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert event %s: %w", event.EventID, err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (s *EventStore) Recent(ctx context.Context, limit int) ([]models.AutomationEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM automation_events
		ORDER BY timestamp DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	defer rows.Close()

	events := make([]models.AutomationEvent, 0, limit)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		var event models.AutomationEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			logging.Err(err).Msg("Skipping undecodable event payload")
			continue
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// Count returns the total number of persisted events.
func (s *EventStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM automation_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}
