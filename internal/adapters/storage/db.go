package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// migrations are applied in order; index+1 is the schema version they produce.
// Append only: never edit a migration that has shipped.
var migrations = []string{
	// 1: lessons
	`CREATE TABLE IF NOT EXISTS lesson (
		id TEXT PRIMARY KEY,
		course_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		primary_url TEXT NOT NULL,
		fallback_urls TEXT NOT NULL DEFAULT '[]',
		mp4_urls TEXT NOT NULL DEFAULT '[]',
		download_url TEXT NOT NULL DEFAULT '',
		position INTEGER NOT NULL DEFAULT 0,
		created_by TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_lesson_course ON lesson(course_id, position);`,

	// 2: playback diagnostics
	`CREATE TABLE IF NOT EXISTS playback_event (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		lesson_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		source_url TEXT NOT NULL DEFAULT '',
		source_type TEXT NOT NULL DEFAULT '',
		attempt INTEGER NOT NULL DEFAULT 0,
		detail TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_playback_event_lesson ON playback_event(lesson_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_playback_event_created ON playback_event(created_at);`,
}

// LatestSchemaVersion returns the version MigrateDB brings a database to.
func LatestSchemaVersion() int {
	return len(migrations)
}

// SchemaVersion returns the version recorded in the database, 0 if none.
// PRE: db is a valid database connection
func SchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return 0, fmt.Errorf("failed to create schema_version: %w", err)
	}
	var v sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return int(v.Int64), nil
}

// MigrateDB applies every pending migration, each in its own transaction.
// PRE: db is a valid database connection
// POST: SchemaVersion(db) == LatestSchemaVersion(); re-running is a no-op
func MigrateDB(ctx context.Context, db *sql.DB) error {
	current, err := SchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	for i := current; i < len(migrations); i++ {
		version := i + 1
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("migration %d: begin: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, version); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: record version: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: commit: %w", version, err)
		}
		slog.Info("schema_migrated", "version", version)
	}
	return nil
}

// Open opens the SQLite database at path with WAL mode, foreign keys and a
// busy timeout, and verifies the connection.
// PRE: the modernc.org/sqlite driver is registered by the caller
// POST: returns a pooled, reachable *sql.DB
func Open(path string) (*sql.DB, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}
	return db, nil
}
