package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// InitDB opens/creates a SQLite DB file and ensures tables exist.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// Conservative pool settings; SQLite is not great with many writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Fail fast if the DB cannot be reached.
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

const sqliteDriverName = "sqlite"

const schemaHeaterStates = `
CREATE TABLE IF NOT EXISTS heater_states (
    name TEXT PRIMARY KEY,
    temp_c REAL NOT NULL,
    target_c REAL,
    power REAL NOT NULL,
    can_extrude BOOLEAN NOT NULL,
    busy BOOLEAN NOT NULL,
    fault BOOLEAN NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaHeaterEvents = `
CREATE TABLE IF NOT EXISTS heater_events (
    id TEXT PRIMARY KEY,
    occurred_at TIMESTAMP NOT NULL,
    type TEXT NOT NULL,
    heater TEXT,
    message TEXT NOT NULL,
    meta TEXT
);
`

const schemaCalibrationRuns = `
CREATE TABLE IF NOT EXISTS calibration_runs (
    id TEXT PRIMARY KEY,
    heater TEXT NOT NULL,
    target_c REAL NOT NULL,
    ambient_c REAL NOT NULL,
    gain REAL NOT NULL,
    time_constant REAL NOT NULL,
    delay_time REAL NOT NULL,
    sample_count INTEGER NOT NULL,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP NOT NULL
);
`

const schemaUsers = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL
);
`

func ensureSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() {
		// In case of panic, rollback to avoid leaving an open transaction.
		_ = tx.Rollback()
	}()

	for i, stmt := range []string{
		schemaHeaterStates,
		schemaHeaterEvents,
		schemaCalibrationRuns,
		schemaUsers,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}
