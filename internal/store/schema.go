// Package store persists the launcher layout in SQLite.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS page_entries (
	slot_id     TEXT PRIMARY KEY,
	page_index  INTEGER NOT NULL,
	position    INTEGER NOT NULL,
	kind        TEXT NOT NULL,
	app_path    TEXT NOT NULL DEFAULT '',
	folder_id   TEXT NOT NULL DEFAULT '',
	folder_name TEXT NOT NULL DEFAULT '',
	app_paths   TEXT NOT NULL DEFAULT '[]',
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_page_entries_order ON page_entries(page_index, position);

CREATE TABLE IF NOT EXISTS top_items (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	order_index INTEGER NOT NULL,
	app_path    TEXT NOT NULL DEFAULT '',
	folder_name TEXT NOT NULL DEFAULT '',
	app_paths   TEXT NOT NULL DEFAULT '[]',
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// DB wraps a sql.DB with layout-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
