// Package alertlog persists detection alerts in a local SQLite
// database so responders can audit what fired and what containment did.
package alertlog

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"rxguard-go/internal/alertlog/migrations"
)

// Alert is one recorded detection event.
type Alert struct {
	ID         string
	DetectedAt time.Time
	// Signals lists which detection signals fired (surge, entropy,
	// extension, canary).
	Signals []string
	// EventCount is the number of filesystem events in the cycle that
	// raised the alert.
	EventCount int
	// SnapshotID is the containment snapshot id, empty if the snapshot
	// failed.
	SnapshotID string
	SnapshotOK bool
	// Error holds the snapshot failure message when SnapshotOK is false.
	Error string
}

// Store records alerts in SQLite. The schema is managed with embedded
// migrations and applied on open.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the alert database at path and
// brings its schema up to date. path may be ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening alert database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating alert database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts one alert.
func (s *Store) Record(a Alert) error {
	_, err := s.db.Exec(`
		INSERT INTO alerts (id, detected_at, signals, event_count, snapshot_id, snapshot_ok, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID,
		a.DetectedAt.UTC().Format(time.RFC3339),
		strings.Join(a.Signals, ","),
		a.EventCount,
		a.SnapshotID,
		a.SnapshotOK,
		a.Error,
	)
	if err != nil {
		return fmt.Errorf("recording alert: %w", err)
	}
	return nil
}

// Recent returns the newest alerts, most recent first.
func (s *Store) Recent(limit int) ([]*Alert, error) {
	rows, err := s.db.Query(`
		SELECT id, detected_at, signals, event_count, snapshot_id, snapshot_ok, error
		FROM alerts ORDER BY detected_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*Alert
	for rows.Next() {
		var a Alert
		var detectedAt, signals string
		if err := rows.Scan(&a.ID, &detectedAt, &signals, &a.EventCount, &a.SnapshotID, &a.SnapshotOK, &a.Error); err != nil {
			return nil, fmt.Errorf("scanning alert row: %w", err)
		}
		t, err := time.Parse(time.RFC3339, detectedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing alert timestamp: %w", err)
		}
		a.DetectedAt = t
		if signals != "" {
			a.Signals = strings.Split(signals, ",")
		}
		alerts = append(alerts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating alert rows: %w", err)
	}
	return alerts, nil
}
