// Package history is the supplemental "copy history" audit log described
// in SPEC_FULL.md C13: a local record of which cipher/field combinations
// were copied and when, never the copied value itself. Modeled on the
// teacher's internal/vault.Open/ensureSchema (db.go): modernc.org/sqlite
// over database/sql, WAL-friendly pragmas, CREATE TABLE IF NOT EXISTS.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Log wraps a sqlite-backed copy_events table.
type Log struct {
	db *sql.DB
}

// Open creates the containing directory and database file if needed, and
// ensures the schema exists.
func Open(path string) (*Log, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping history database: %w", err)
	}

	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Log{db: db}, nil
}

const createCopyEventsTable = `
CREATE TABLE IF NOT EXISTS copy_events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	cipher_name TEXT    NOT NULL,
	field       TEXT    NOT NULL,
	occurred_at DATETIME NOT NULL
);`

func ensureSchema(db *sql.DB) error {
	if _, err := db.Exec(createCopyEventsTable); err != nil {
		return fmt.Errorf("ensure copy_events table: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (l *Log) Close() error {
	return l.db.Close()
}

// Record appends one copy event. Never pass the copied field value —
// only the cipher name and field label are stored.
func (l *Log) Record(cipherName, field string, occurredAt time.Time) error {
	_, err := l.db.Exec(
		`INSERT INTO copy_events (cipher_name, field, occurred_at) VALUES (?, ?, ?)`,
		cipherName, field, occurredAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record copy event: %w", err)
	}
	return nil
}

// Event is one row of the copy history.
type Event struct {
	CipherName string
	Field      string
	OccurredAt time.Time
}

// Recent returns the most recent n copy events, newest first.
func (l *Log) Recent(n int) ([]Event, error) {
	rows, err := l.db.Query(
		`SELECT cipher_name, field, occurred_at FROM copy_events ORDER BY id DESC LIMIT ?`,
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("query copy events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.CipherName, &e.Field, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan copy event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
