// Package catalog records build runs and built bundles in SQLite, with
// glossary full-text search when FTS5 is compiled in.
package catalog

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	version     TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	error       TEXT NOT NULL DEFAULT '',
	started_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS bundles (
	version    TEXT NOT NULL,
	lang       TEXT NOT NULL,
	path       TEXT NOT NULL,
	checksum   TEXT NOT NULL DEFAULT '',
	run_id     TEXT NOT NULL DEFAULT '',
	generated  TEXT NOT NULL DEFAULT '',
	projects   INTEGER NOT NULL DEFAULT 0,
	objects    INTEGER NOT NULL DEFAULT 0,
	stories    INTEGER NOT NULL DEFAULT 0,
	glossary   INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (version, lang)
);

CREATE TABLE IF NOT EXISTS advisories (
	version TEXT NOT NULL,
	lang    TEXT NOT NULL,
	seq     INTEGER NOT NULL,
	kind    TEXT NOT NULL,
	message TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS terms (
	version TEXT NOT NULL,
	lang    TEXT NOT NULL,
	term_id TEXT NOT NULL,
	term    TEXT NOT NULL DEFAULT '',
	body    TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (version, lang, term_id)
);

CREATE INDEX IF NOT EXISTS idx_advisories_bundle ON advisories(version, lang);
CREATE INDEX IF NOT EXISTS idx_runs_version ON runs(version);
`

// DB wraps a sql.DB with catalog operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("catalog: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
