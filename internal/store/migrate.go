package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Migration is one schema change of the document tables.
type Migration struct {
	Version int64
	Name    string
	Up      string
}

// Migrations is the ordered schema history.
var Migrations = []Migration{
	{
		Version: 1,
		Name:    "create_documents",
		Up: `
CREATE TABLE IF NOT EXISTS documents (
	project_id TEXT NOT NULL,
	document_id TEXT NOT NULL,
	root_container TEXT NOT NULL DEFAULT '',
	version INTEGER NOT NULL,
	config TEXT NOT NULL,
	updated_at BIGINT NOT NULL,
	PRIMARY KEY (project_id, document_id)
)`,
	},
	{
		Version: 2,
		Name:    "index_documents_updated_at",
		Up:      `CREATE INDEX IF NOT EXISTS idx_documents_updated_at ON documents(project_id, updated_at)`,
	},
}

const createMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version BIGINT PRIMARY KEY,
	name TEXT NOT NULL,
	applied_at BIGINT NOT NULL
)`

// Migrate applies every migration that is not recorded yet, each in its own
// transaction.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createMigrationsTable); err != nil {
		return fmt.Errorf("failed to initialize migrations table: %w", err)
	}

	applied, err := s.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, m := range Migrations {
		if applied[m.Version] {
			continue
		}
		if err := s.apply(ctx, m); err != nil {
			return err
		}
		s.log.Info("applied migration", map[string]interface{}{
			"version": m.Version,
			"name":    m.Name,
		})
	}
	return nil
}

func (s *SQLStore) appliedVersions(ctx context.Context) (map[int64]bool, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int64]bool)
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan migration: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating migrations: %w", err)
	}
	return applied, nil
}

func (s *SQLStore) apply(ctx context.Context, m Migration) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, m.Up); err != nil {
		return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Name, err)
	}
	if err = record(ctx, tx, s.dialect, m); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
	}
	return nil
}

func record(ctx context.Context, tx *sql.Tx, d dialect, m Migration) error {
	query := fmt.Sprintf("INSERT INTO schema_migrations (version, name, applied_at) VALUES (%s, %s, %s)",
		d.placeholder(1), d.placeholder(2), d.placeholder(3))
	if _, err := tx.ExecContext(ctx, query, m.Version, m.Name, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return nil
}
