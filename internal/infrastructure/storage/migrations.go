package storage

import (
	"database/sql"
	"fmt"
	"log"
)

// Migration represents a database schema migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// allMigrations defines all migrations in order
var allMigrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up:      migration001InitialSchema,
	},
	{
		Version: 2,
		Name:    "add_project_id_column",
		Up:      migration002AddProjectIDColumn,
	},
}

// runMigrations executes all pending migrations
func (s *SQLiteStorage) runMigrations() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range allMigrations {
		if applied[migration.Version] {
			continue
		}

		log.Printf("Running migration %d: %s", migration.Version, migration.Name)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
			migration.Version, migration.Name,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

func (s *SQLiteStorage) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	return err
}

func (s *SQLiteStorage) getAppliedMigrations() (map[int]bool, error) {
	rows, err := s.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func migration001InitialSchema(tx *sql.Tx) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			date TEXT NOT NULL,
			amount TEXT NOT NULL,
			currency TEXT NOT NULL,
			raw_vendor TEXT NOT NULL,
			normalized_vendor TEXT NOT NULL,
			source TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_fingerprint ON transactions(fingerprint)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date)`,
		`CREATE TABLE IF NOT EXISTS duplicate_relationships (
			id TEXT PRIMARY KEY,
			original_id TEXT NOT NULL REFERENCES transactions(id),
			candidate_id TEXT NOT NULL REFERENCES transactions(id),
			kind TEXT NOT NULL,
			similarity_score REAL NOT NULL,
			resolution TEXT NOT NULL DEFAULT 'unresolved',
			created_at TEXT NOT NULL,
			resolved_at TEXT,
			UNIQUE(original_id, candidate_id, kind)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_relationships_resolution ON duplicate_relationships(resolution)`,
		`CREATE INDEX IF NOT EXISTS idx_relationships_original ON duplicate_relationships(original_id)`,
		`CREATE INDEX IF NOT EXISTS idx_relationships_candidate ON duplicate_relationships(candidate_id)`,
	}

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func migration002AddProjectIDColumn(tx *sql.Tx) error {
	if _, err := tx.Exec(`ALTER TABLE transactions ADD COLUMN project_id TEXT NOT NULL DEFAULT ''`); err != nil {
		return err
	}
	_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_transactions_project ON transactions(project_id)`)
	return err
}
