// Package store persists the append-only notification log so external
// indexers can consume Entered/DrawRequested/WinnerPicked events.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"raffle/internal/models"
)

// EventLog is a sqlite-backed append-only event log.
type EventLog struct {
	db *sql.DB
}

// Open opens (and if necessary bootstraps) the event log at path.
func Open(path string) (*EventLog, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			type TEXT NOT NULL,
			participant TEXT NOT NULL DEFAULT '',
			request_id TEXT NOT NULL DEFAULT '',
			winner TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating events table: %w", err)
	}

	return &EventLog{db: db}, nil
}

// Append writes one event to the log.
func (l *EventLog) Append(ev models.Event) error {
	_, err := l.db.Exec(
		`INSERT INTO events (type, participant, request_id, winner, created_at) VALUES (?, ?, ?, ?, ?)`,
		ev.Type, ev.Participant, ev.RequestID, ev.Winner, ev.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("appending event: %w", err)
	}
	return nil
}

// List returns events in append order. A positive limit caps the result.
func (l *EventLog) List(limit int) ([]models.Event, error) {
	query := `SELECT id, type, participant, request_id, winner, created_at FROM events ORDER BY id ASC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := l.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var ev models.Event
		var createdAt string
		if err := rows.Scan(&ev.ID, &ev.Type, &ev.Participant, &ev.RequestID, &ev.Winner, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		ev.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing event timestamp: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Close closes the underlying database.
func (l *EventLog) Close() error {
	return l.db.Close()
}
