package postgres

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/kailas-cloud/docqa/internal/db"
	"github.com/kailas-cloud/docqa/internal/db/postgres/migrations"
)

// migrationLockID serializes concurrent server starts.
const migrationLockID = 7_262_017

const dimensionKey = "embedding_dim"

// migrate applies pending migrations and pins the embedding dimension on first run.
func migrate(ctx context.Context, conn *pgx.Conn, dim int) error {
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, migrationLockID); err != nil {
		return &db.Error{Op: db.OpMigrate, Err: fmt.Errorf("acquire lock: %w", err)}
	}
	defer func() { _, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, migrationLockID) }()

	if _, err := conn.Exec(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version    INTEGER PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`); err != nil {
		return &db.Error{Op: db.OpMigrate, Err: fmt.Errorf("create schema_migrations: %w", err)}
	}

	var current int
	if err := conn.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return &db.Error{Op: db.OpMigrate, Err: fmt.Errorf("current version: %w", err)}
	}

	files, err := upFiles(migrations.FS)
	if err != nil {
		return &db.Error{Op: db.OpMigrate, Err: err}
	}
	for _, f := range files {
		if f.version <= current {
			continue
		}
		if err := applyMigration(ctx, conn, f); err != nil {
			return &db.Error{Op: db.OpMigrate, Err: err}
		}
	}

	return pinDimension(ctx, conn, dim)
}

type migrationFile struct {
	version int
	name    string
}

// upFiles lists NNN_name.up.sql files in version order.
func upFiles(fsys fs.FS) ([]migrationFile, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	var out []migrationFile
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		prefix, _, ok := strings.Cut(name, "_")
		if !ok {
			continue
		}
		v, err := strconv.Atoi(prefix)
		if err != nil {
			continue
		}
		out = append(out, migrationFile{version: v, name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

func applyMigration(ctx context.Context, conn *pgx.Conn, f migrationFile) error {
	content, err := fs.ReadFile(migrations.FS, f.name)
	if err != nil {
		return fmt.Errorf("read %s: %w", f.name, err)
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin %s: %w", f.name, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, string(content)); err != nil {
		return fmt.Errorf("execute %s: %w", f.name, err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, f.version); err != nil {
		return fmt.Errorf("record %s: %w", f.name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit %s: %w", f.name, err)
	}
	return nil
}

func pinDimension(ctx context.Context, conn *pgx.Conn, dim int) error {
	if _, err := conn.Exec(ctx, `
INSERT INTO store_meta (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO NOTHING`, dimensionKey, strconv.Itoa(dim)); err != nil {
		return &db.Error{Op: db.OpMigrate, Err: fmt.Errorf("pin dimension: %w", err)}
	}

	var stored string
	err := conn.QueryRow(ctx, `SELECT value FROM store_meta WHERE key = $1`, dimensionKey).Scan(&stored)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return &db.Error{Op: db.OpMigrate, Err: fmt.Errorf("read dimension: %w", err)}
	}
	if stored != strconv.Itoa(dim) {
		return &db.Error{Op: db.OpMigrate, Err: fmt.Errorf(
			"store holds %s-dimensional embeddings, configured %d: %w", stored, dim, db.ErrDimensionMismatch)}
	}
	return nil
}
