// Package storage provides SQLite persistence for netmap.
package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DBFile is the database file name inside the data dir.
const DBFile = "netmap.db"

// DB wraps the SQLite database connection.
type DB struct {
	*sql.DB
}

// Initialize opens the database in dataDir and creates missing tables.
func Initialize(dataDir string) (*DB, error) {
	return Open(filepath.Join(dataDir, DBFile))
}

// Open opens the database at path and creates missing tables.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	db := &DB{DB: conn}
	if err := db.createTables(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return db, nil
}

func (db *DB) createTables() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			entry_id TEXT NOT NULL,
			source_hash TEXT NOT NULL,
			nodes INTEGER NOT NULL DEFAULT 0,
			edges INTEGER NOT NULL DEFAULT 0,
			devices INTEGER NOT NULL DEFAULT 0,
			clients INTEGER NOT NULL DEFAULT 0,
			vlans INTEGER NOT NULL DEFAULT 0,
			payload TEXT NOT NULL,
			svg TEXT,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_entry_ts ON snapshots(entry_id, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_timestamp ON snapshots(timestamp)`,
	}

	for _, table := range tables {
		if _, err := db.Exec(table); err != nil {
			return fmt.Errorf("failed to execute: %s: %w", table, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}
