package database

import (
	"context"
	"database/sql"
	"fmt"
)

// migration represents a single database migration.
type migration struct {
	version int
	name    string
	up      string
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending migrations.
	Migrate(ctx context.Context) error

	// CurrentVersion returns the current schema version (0 when empty).
	CurrentVersion(ctx context.Context) (int, error)
}

// migrator implements the Migrator interface.
type migrator struct {
	db         *DB
	migrations []migration
}

// NewMigrator creates a new database migrator.
func NewMigrator(db *DB) Migrator {
	return &migrator{db: db, migrations: getMigrations()}
}

// getMigrations returns all available migrations in order.
func getMigrations() []migration {
	return []migration{
		{
			version: 1,
			name:    "initial_schema",
			up: `
CREATE TABLE IF NOT EXISTS checkpoints (
	thread_id   TEXT PRIMARY KEY,
	version     INTEGER NOT NULL,
	node_cursor TEXT NOT NULL,
	status      TEXT NOT NULL,
	state       TEXT NOT NULL,
	checksum    TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_checkpoints_status ON checkpoints(status, updated_at);

CREATE TABLE IF NOT EXISTS engine_lock (
	id           INTEGER PRIMARY KEY CHECK (id = 1),
	holder_id    TEXT,
	thread_id    TEXT,
	heartbeat_at TIMESTAMP
);

INSERT OR IGNORE INTO engine_lock (id, holder_id, thread_id, heartbeat_at)
VALUES (1, NULL, NULL, NULL);

CREATE TABLE IF NOT EXISTS contexts (
	thread_id  TEXT NOT NULL,
	scope      TEXT NOT NULL,
	scope_key  TEXT NOT NULL,
	content    TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	expires_at TIMESTAMP NOT NULL,
	PRIMARY KEY (thread_id, scope, scope_key)
);

CREATE INDEX IF NOT EXISTS idx_contexts_expiry ON contexts(expires_at);
`,
		},
		{
			version: 2,
			name:    "procedural_patterns",
			up: `
CREATE TABLE IF NOT EXISTS patterns (
	id            TEXT PRIMARY KEY,
	category      TEXT NOT NULL,
	goal_text     TEXT NOT NULL,
	plan_summary  TEXT NOT NULL,
	success_count INTEGER NOT NULL DEFAULT 1,
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_patterns_category ON patterns(category, success_count);
`,
		},
	}
}

// Migrate applies all pending migrations inside transactions.
func (m *migrator) Migrate(ctx context.Context) error {
	if err := m.ensureVersionTable(ctx); err != nil {
		return err
	}

	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if mig.version <= current {
			continue
		}

		err := m.db.WithTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, mig.up); err != nil {
				return fmt.Errorf("migration %d (%s) failed: %w", mig.version, mig.name, err)
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
				mig.version, mig.name,
			); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", mig.version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// CurrentVersion returns the highest applied migration version.
func (m *migrator) CurrentVersion(ctx context.Context) (int, error) {
	if err := m.ensureVersionTable(ctx); err != nil {
		return 0, err
	}

	var version sql.NullInt64
	err := m.db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to query schema version: %w", err)
	}

	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}

// ensureVersionTable creates the migration bookkeeping table if missing.
func (m *migrator) ensureVersionTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version    INTEGER PRIMARY KEY,
	name       TEXT NOT NULL,
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}
	return nil
}
