package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteDriverName = "sqlite"

// InitDB opens/creates the SQLite database file and ensures the schema exists.
func InitDB(path string) (*sql.DB, error) {
	conn, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// SQLite tolerates a single writer best; keep the pool tiny.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if err := ensureSchema(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return conn, nil
}

const schemaTurbines = `
CREATE TABLE IF NOT EXISTS turbines (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    turbine_id TEXT UNIQUE NOT NULL,
    name TEXT NOT NULL,
    location TEXT NOT NULL,
    model TEXT NOT NULL,
    capacity_kw REAL NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT 1,
    state TEXT NOT NULL,
    prev_state TEXT NOT NULL DEFAULT '',
    last_state_change TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaFaultEvents = `
CREATE TABLE IF NOT EXISTS fault_events (
    id TEXT PRIMARY KEY,
    turbine_id TEXT NOT NULL REFERENCES turbines(turbine_id),
    code TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    severity TEXT NOT NULL,
    resettable BOOLEAN NOT NULL,
    temperature_c REAL,
    occurred_at TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL
);
`

const schemaEventIndexes = `
CREATE INDEX IF NOT EXISTS idx_fault_events_turbine_code_time
    ON fault_events (turbine_id, code, occurred_at);
`

const schemaRecommendations = `
CREATE TABLE IF NOT EXISTS recommendations (
    id TEXT PRIMARY KEY,
    event_id TEXT NOT NULL REFERENCES fault_events(id),
    turbine_id TEXT NOT NULL,
    action TEXT NOT NULL,
    rationale TEXT NOT NULL,
    snooze_until TIMESTAMP,
    reconciled_at TIMESTAMP,
    automated BOOLEAN NOT NULL,
    created_at TIMESTAMP NOT NULL
);
`

const schemaRecommendationIndexes = `
CREATE INDEX IF NOT EXISTS idx_recommendations_due
    ON recommendations (action, snooze_until)
    WHERE reconciled_at IS NULL;
`

func ensureSchema(conn *sql.DB) error {
	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for i, stmt := range []string{
		schemaTurbines,
		schemaFaultEvents,
		schemaEventIndexes,
		schemaRecommendations,
		schemaRecommendationIndexes,
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
