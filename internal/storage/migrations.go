package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
const ExpectedSchemaVersion = 1

// Migration represents a database schema migration. The transactions table is
// rebuilt on every run and is not versioned.
type Migration struct {
	Up          func(ctx context.Context, tx *sql.Tx, driver string) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Add run history",
		Up: func(ctx context.Context, tx *sql.Tx, driver string) error {
			_, err := tx.ExecContext(ctx, fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS runs (
					id TEXT PRIMARY KEY,
					started_at %[1]s NOT NULL,
					finished_at %[1]s NOT NULL,
					row_count INTEGER NOT NULL,
					converted INTEGER NOT NULL,
					conversion_failed INTEGER NOT NULL,
					degraded BOOLEAN NOT NULL
				)`, timestampType(driver)))
			return err
		},
	},
}

func timestampType(driver string) string {
	if driver == DriverPostgres {
		return "TIMESTAMP"
	}
	return "DATETIME"
}

// Migrate applies all pending schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	currentVersion, err := s.schemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(ctx, tx, s.driver); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.ExecContext(ctx, rebind(s.driver, `INSERT INTO schema_migrations (version) VALUES (?)`), migration.Version); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	finalVersion, err := s.schemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}
	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

func (s *Store) schemaVersion(ctx context.Context) (int, error) {
	var version sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return int(version.Int64), nil
}
