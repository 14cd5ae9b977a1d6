// Package sqlite implements the journal interfaces on an embedded SQLite
// database (modernc.org/sqlite, pure Go — no cgo). The ledger core stays in
// memory; this store only persists the append-only event and tip history
// that external consumers read.
package sqlite

import (
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements repository.EventJournal
// and repository.TipArchive.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
// Use ":memory:" for tests.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL allows concurrent reads while the journal is being appended to.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}
	return db, nil
}

// Close closes the connection pool, flushing the WAL.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS events (
		id             TEXT PRIMARY KEY,
		type           TEXT NOT NULL,
		actor          TEXT NOT NULL DEFAULT '',
		subject        TEXT NOT NULL DEFAULT '',
		repo_id        INTEGER NOT NULL DEFAULT 0,
		issue_id       INTEGER NOT NULL DEFAULT 0,
		application_id INTEGER NOT NULL DEFAULT 0,
		tip_id         INTEGER NOT NULL DEFAULT 0,
		amount         INTEGER NOT NULL DEFAULT 0,
		at             TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);

	CREATE TABLE IF NOT EXISTS tips (
		id         INTEGER PRIMARY KEY,
		sender     TEXT NOT NULL,
		recipient  TEXT NOT NULL,
		amount     INTEGER NOT NULL,
		issue_id   INTEGER NOT NULL DEFAULT 0,
		message    TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tips_recipient ON tips(recipient);
	`
	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
