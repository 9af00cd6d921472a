// ABOUTME: Core SQLite store for the console's local mode.
// ABOUTME: Handles database initialization, migrations, and connection management.

package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/2389/airtruct-console/internal/schema"
	sqlite3 "github.com/mattn/go-sqlite3"
)

// Migration version constants
const (
	MigrationV1 = 1 // Initial schema with request_logs table
	MigrationV2 = 2 // Composite indexes for request log dashboards
	MigrationV3 = 3 // Streams, resources, secrets, files, workers, and stream events
)

// CurrentSchemaVersion is the target version for the database schema
const CurrentSchemaVersion = MigrationV3

// Store is a local stand-in for the coordinator. It implements api.Backend.
type Store struct {
	db       *sql.DB
	registry *schema.Registry
	now      func() time.Time
}

// New opens (or creates) the database at dbPath. The registry is used to validate
// stream definitions; nil skips per-component config checks.
func New(dbPath string, registry *schema.Registry) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Verify connection works
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, err
		}
	}

	s := &Store{db: db, registry: registry, now: func() time.Time { return time.Now().UTC() }}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Reset deletes all console data but keeps request logs.
func (s *Store) Reset() error {
	tables := []string{"stream_events", "streams", "resources", "secrets", "files", "workers"}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, t := range tables {
		if _, err := tx.Exec("DELETE FROM " + t); err != nil {
			return fmt.Errorf("clear %s: %w", t, err)
		}
	}
	return tx.Commit()
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// migrate runs all pending migrations
func (s *Store) migrate() error {
	if err := s.createMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion, err := s.getCurrentMigrationVersion()
	if err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	log.Printf("Database schema version: %d, target version: %d", currentVersion, CurrentSchemaVersion)

	steps := []struct {
		version int
		run     func() error
	}{
		{MigrationV1, s.migrateV1},
		{MigrationV2, s.migrateV2},
		{MigrationV3, s.migrateV3},
	}
	for _, step := range steps {
		if currentVersion >= step.version {
			continue
		}
		if err := step.run(); err != nil {
			return fmt.Errorf("migration v%d failed: %w", step.version, err)
		}
	}

	return nil
}

// createMigrationsTable creates the schema_migrations tracking table
func (s *Store) createMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			description TEXT
		)
	`)
	return err
}

func (s *Store) getCurrentMigrationVersion() (int, error) {
	var version int
	err := s.db.QueryRow(`
		SELECT COALESCE(MAX(version), 0) FROM schema_migrations
	`).Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

func (s *Store) recordMigration(version int, description string) error {
	_, err := s.db.Exec(`
		INSERT INTO schema_migrations (version, description)
		VALUES (?, ?)
	`, version, description)
	return err
}

// migrateV1 creates the request_logs table and indexes
func (s *Store) migrateV1() error {
	ddl := `
	CREATE TABLE IF NOT EXISTS request_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TIMESTAMP NOT NULL,
		area TEXT DEFAULT '',
		method TEXT NOT NULL,
		path TEXT NOT NULL,
		status_code INTEGER,
		duration_ms INTEGER,
		ip_address TEXT,
		user_agent TEXT,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_request_logs_timestamp ON request_logs(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_request_logs_path ON request_logs(path);
	CREATE INDEX IF NOT EXISTS idx_request_logs_area ON request_logs(area);
	`
	if _, err := s.db.Exec(ddl); err != nil {
		return err
	}
	if err := s.recordMigration(MigrationV1, "Create request_logs table and indexes"); err != nil {
		return err
	}
	log.Printf("Applied migration v%d: Create request_logs table and indexes", MigrationV1)
	return nil
}

// migrateV2 adds composite indexes used by the dashboard aggregations
func (s *Store) migrateV2() error {
	indexes := []string{
		// GROUP BY path for the top endpoints panel
		"CREATE INDEX IF NOT EXISTS idx_request_logs_path_count ON request_logs(path, status_code)",
		"CREATE INDEX IF NOT EXISTS idx_request_logs_area_method_status ON request_logs(area, method, status_code)",
		"CREATE INDEX IF NOT EXISTS idx_request_logs_timestamp_status ON request_logs(timestamp DESC, status_code)",
	}
	for _, indexSQL := range indexes {
		if _, err := s.db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	if err := s.recordMigration(MigrationV2, "Add composite indexes for request log queries"); err != nil {
		return err
	}
	log.Printf("Applied migration v%d: Add composite indexes for request log queries", MigrationV2)
	return nil
}

// migrateV3 creates the console's data tables. Streams and resources are versioned:
// an update writes a new row pointing at the lineage root and retires the previous one.
func (s *Store) migrateV3() error {
	ddl := `
	CREATE TABLE IF NOT EXISTS streams (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		parent_id INTEGER,
		is_current INTEGER NOT NULL DEFAULT 1,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		input_label TEXT NOT NULL DEFAULT '',
		input_component TEXT NOT NULL,
		input_config TEXT NOT NULL DEFAULT '',
		output_label TEXT NOT NULL DEFAULT '',
		output_component TEXT NOT NULL,
		output_config TEXT NOT NULL DEFAULT '',
		buffer_id INTEGER,
		processors TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_streams_current ON streams(is_current, name);

	CREATE TABLE IF NOT EXISTS resources (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		parent_id INTEGER,
		is_current INTEGER NOT NULL DEFAULT 1,
		label TEXT NOT NULL,
		section TEXT NOT NULL DEFAULT '',
		component TEXT NOT NULL,
		config TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_resources_label ON resources(kind, label) WHERE is_current = 1;

	CREATE TABLE IF NOT EXISTS secrets (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		key TEXT NOT NULL UNIQUE,
		content BLOB NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS workers (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		address TEXT NOT NULL,
		last_heartbeat TIMESTAMP,
		active_streams INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS stream_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		stream_id INTEGER NOT NULL,
		worker_stream_id INTEGER NOT NULL DEFAULT 0,
		flow_id TEXT NOT NULL,
		section TEXT NOT NULL,
		component_label TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		meta TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_stream_events_stream ON stream_events(stream_id, created_at DESC);
	`
	if _, err := s.db.Exec(ddl); err != nil {
		return err
	}
	if err := s.recordMigration(MigrationV3, "Create console data tables"); err != nil {
		return err
	}
	log.Printf("Applied migration v%d: Create console data tables", MigrationV3)
	return nil
}
