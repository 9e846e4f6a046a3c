package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// connPragmas run on the single connection right after it is opened.
// busy_timeout covers the CLI inspecting a database a running tracker holds.
var connPragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
}

// migrations[i] upgrades a database at user_version i to i+1. schema.sql
// describes the version 0 layout, which only held settings.
var migrations = []string{
	// 1: the delivery queue moved out of kv into its own table so a large
	// snapshot does not bloat settings reads.
	`CREATE TABLE IF NOT EXISTS blobs (
		key        TEXT PRIMARY KEY COLLATE BINARY,
		data       BLOB NOT NULL,
		updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
	)`,
}

func schemaVersion() int { return len(migrations) }

// Store keeps tracker settings (the kv table) and the persisted delivery
// queue (the blobs table) in one SQLite file.
//
// The engine is the only writer. Every call goes through one connection, so
// a settings write and a queue snapshot never interleave.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and brings it to the current
// schema version. ":memory:" gives a private store that vanishes on Close.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := prepare(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func prepare(db *sql.DB) error {
	if err := db.Ping(); err != nil {
		return err
	}
	for _, p := range connPragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("base schema: %w", err)
	}
	return migrate(db)
}

// migrate applies every migration above the stored user_version. A database
// from a newer build is left alone.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for v := version; v < schemaVersion(); v++ {
		if _, err := db.Exec(migrations[v]); err != nil {
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
	}
	if version >= schemaVersion() {
		return nil
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion())); err != nil {
		return fmt.Errorf("write schema version: %w", err)
	}
	return nil
}

// Close releases the connection. Settings are written through on every set,
// so nothing is lost.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
