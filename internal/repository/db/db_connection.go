package db

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// InitDB opens the record store for driver and ensures tables exist.
func InitDB(driver, dsn string) (*sql.DB, error) {
	switch driver {
	case DriverSQLite:
		return initSQLite(dsn)
	case DriverPostgres:
		return initPostgres(dsn)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}
}

// initSQLite opens/creates a SQLite DB file and ensures tables exist.
func initSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open(DriverSQLite, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// One connection serialises writers, so transactions never interleave.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", strings.TrimSuffix(pragma, ";"), err)
		}
	}

	if err := ensureSchema(db, DriverSQLite); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Fail fast if the DB cannot be reached
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

func initPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open(DriverPostgres, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureSchema(db, DriverPostgres); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

const schemaEquipment = `
CREATE TABLE IF NOT EXISTS equipment (
    id TEXT PRIMARY KEY,
    code TEXT UNIQUE NOT NULL,
    name TEXT NOT NULL,
    department TEXT NOT NULL,
    risk_class TEXT NOT NULL,
    is_critical BOOLEAN NOT NULL,
    last_service_date TIMESTAMP,
    next_service_date TIMESTAMP,
    last_calibration_date TIMESTAMP,
    next_calibration_date TIMESTAMP,
    service_state TEXT NOT NULL,
    has_open_contingency BOOLEAN NOT NULL,
    version INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaServiceEvents = `
CREATE TABLE IF NOT EXISTS service_events (
    id TEXT PRIMARY KEY,
    equipment_id TEXT NOT NULL REFERENCES equipment(id),
    kind TEXT NOT NULL,
    type TEXT NOT NULL,
    scheduled_date TIMESTAMP NOT NULL,
    completed_date TIMESTAMP,
    state TEXT NOT NULL,
    priority TEXT NOT NULL,
    estimated_duration_s INTEGER NOT NULL,
    parts_consumed TEXT,
    notes TEXT NOT NULL,
    cancel_reason TEXT NOT NULL,
    version INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

const indexServiceEvents = `
CREATE INDEX IF NOT EXISTS idx_service_events_equipment_kind
    ON service_events (equipment_id, kind, state, scheduled_date);
`

const schemaContingencies = `
CREATE TABLE IF NOT EXISTS contingencies (
    id TEXT PRIMARY KEY,
    equipment_id TEXT NOT NULL REFERENCES equipment(id),
    failure_type TEXT NOT NULL,
    description TEXT NOT NULL,
    severity TEXT NOT NULL,
    state TEXT NOT NULL,
    reported_at TIMESTAMP NOT NULL,
    resolution_deadline TIMESTAMP NOT NULL,
    escalated_at TIMESTAMP,
    escalation_count INTEGER NOT NULL,
    closed_at TIMESTAMP,
    root_cause TEXT NOT NULL,
    resolution TEXT NOT NULL,
    version INTEGER NOT NULL
);
`

const schemaTickets = `
CREATE TABLE IF NOT EXISTS tickets (
    id TEXT PRIMARY KEY,
    number TEXT UNIQUE NOT NULL,
    category TEXT NOT NULL,
    priority TEXT NOT NULL,
    state TEXT NOT NULL,
    description TEXT NOT NULL,
    equipment_id TEXT REFERENCES equipment(id),
    created_at TIMESTAMP NOT NULL,
    due_at TIMESTAMP NOT NULL,
    assignee_id INTEGER,
    escalated BOOLEAN NOT NULL,
    solution TEXT NOT NULL,
    satisfaction_score INTEGER,
    resolved_at TIMESTAMP,
    closed_at TIMESTAMP,
    version INTEGER NOT NULL
);
`

const schemaSequences = `
CREATE TABLE IF NOT EXISTS sequences (
    name TEXT NOT NULL,
    year INTEGER NOT NULL,
    last_value INTEGER NOT NULL,
    PRIMARY KEY (name, year)
);
`

const schemaSpareParts = `
CREATE TABLE IF NOT EXISTS spare_parts (
    id TEXT PRIMARY KEY,
    code TEXT UNIQUE NOT NULL,
    name TEXT NOT NULL,
    quantity_on_hand INTEGER NOT NULL CHECK (quantity_on_hand >= 0),
    reorder_point INTEGER NOT NULL,
    reorder_ceiling INTEGER,
    weighted_average_cost TEXT NOT NULL,
    version INTEGER NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaStockMovements = `
CREATE TABLE IF NOT EXISTS stock_movements (
    id TEXT PRIMARY KEY,
    part_id TEXT NOT NULL REFERENCES spare_parts(id),
    direction TEXT NOT NULL,
    quantity INTEGER NOT NULL,
    unit_cost TEXT NOT NULL,
    resulting_quantity INTEGER NOT NULL,
    resulting_avg_cost TEXT NOT NULL,
    reference TEXT NOT NULL,
    occurred_at TIMESTAMP NOT NULL
);
`

const schemaActivityLog = `
CREATE TABLE IF NOT EXISTS activity_log (
    id TEXT PRIMARY KEY,
    occurred_at TIMESTAMP NOT NULL,
    entity TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    type TEXT NOT NULL,
    message TEXT NOT NULL,
    meta TEXT
);
`

// schemaUsers differs only in the identity column.
const schemaUsers = `
CREATE TABLE IF NOT EXISTS users (
    id %s,
    username TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL,
    role TEXT NOT NULL,
    category TEXT NOT NULL,
    department TEXT NOT NULL,
    active BOOLEAN NOT NULL
);
`

func schemaFor(driver string) []string {
	idColumn := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if driver == DriverPostgres {
		idColumn = "SERIAL PRIMARY KEY"
	}
	return []string{
		fmt.Sprintf(schemaUsers, idColumn),
		schemaEquipment,
		schemaServiceEvents,
		indexServiceEvents,
		schemaContingencies,
		schemaTickets,
		schemaSequences,
		schemaSpareParts,
		schemaStockMovements,
		schemaActivityLog,
	}
}

func ensureSchema(db *sql.DB, driver string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() {
		// In case of panic, rollback to avoid leaving an open transaction
		_ = tx.Rollback()
	}()

	for i, stmt := range schemaFor(driver) {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}
