package sqlite

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/kailas-cloud/docqa/internal/db"
	"github.com/kailas-cloud/docqa/internal/db/sqlite/migrations"
)

// migrate runs all pending migrations, then pins the embedding dimension.
func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return &db.Error{Op: db.OpMigrate, Err: fmt.Errorf("creating schema_migrations table: %w", err)}
	}

	var currentVersion int
	row := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return &db.Error{Op: db.OpMigrate, Err: fmt.Errorf("getting current version: %w", err)}
	}

	entries, err := fs.ReadDir(migrations.FS, ".")
	if err != nil {
		return &db.Error{Op: db.OpMigrate, Err: fmt.Errorf("reading migrations directory: %w", err)}
	}

	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}
		if err := s.applyMigration(ctx, name, version); err != nil {
			return &db.Error{Op: db.OpMigrate, Err: err}
		}
	}

	return s.pinDimension(ctx)
}

func (s *Store) applyMigration(ctx context.Context, name string, version int) error {
	content, err := fs.ReadFile(migrations.FS, name)
	if err != nil {
		return fmt.Errorf("reading migration %s: %w", name, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", name, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("executing migration %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		return fmt.Errorf("recording migration %s: %w", name, err)
	}
	return tx.Commit() //nolint:wrapcheck // wrapped by migrate
}
