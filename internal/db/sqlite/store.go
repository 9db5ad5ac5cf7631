// Package sqlite implements db.ChunkStore on an embedded SQLite file.
// Vectors are stored as little-endian float32 blobs and ranked in process.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/kailas-cloud/docqa/internal/db"
	"github.com/kailas-cloud/docqa/internal/domain/similarity"
)

var _ db.ChunkStore = (*Store)(nil)

// Config holds the database file and the embedding dimension.
type Config struct {
	Path      string
	Dimension int
}

// Store is a SQLite chunk store.
type Store struct {
	db   *sql.DB
	path string
	dim  int
}

// NewStore opens (creating if needed) the database file and applies migrations.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// Pragmas apply per connection. Write transactions take the lock up front.
	dsn := cfg.Path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: sqlDB, path: cfg.Path, dim: cfg.Dimension}
	if err := s.migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return s, nil
}

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() { _ = s.db.Close() }

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Dimension returns the pinned embedding dimension.
func (s *Store) Dimension() int { return s.dim }

// InsertDocument writes the document row and all chunk rows in one transaction.
func (s *Store) InsertDocument(ctx context.Context, doc db.DocumentRow, chunks []db.ChunkRow) error {
	for _, c := range chunks {
		if len(c.Embedding) != s.dim {
			return &db.Error{Op: db.OpInsert, Err: fmt.Errorf(
				"chunk %d has %d dimensions, store has %d: %w", c.Index, len(c.Embedding), s.dim, db.ErrDimensionMismatch)}
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &db.Error{Op: db.OpInsert, Err: fmt.Errorf("begin tx: %w", err)}
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, title, filename, format, total_pages, total_chunks, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Title, doc.Filename, doc.Format, doc.Pages, doc.Chunks, doc.CreatedAt.UTC().UnixMicro())
	if err != nil {
		if isUniqueViolation(err) {
			return &db.Error{Op: db.OpInsert, Err: db.ErrDuplicate}
		}
		return &db.Error{Op: db.OpInsert, Err: err}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (document_id, chunk_index, page_number, content, embedding)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return &db.Error{Op: db.OpInsert, Err: err}
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, doc.ID, c.Index, nullPage(c.Page), c.Text, encodeVector(c.Embedding)); err != nil {
			return &db.Error{Op: db.OpInsert, Err: fmt.Errorf("chunk %d: %w", c.Index, err)}
		}
	}

	if err := tx.Commit(); err != nil {
		return &db.Error{Op: db.OpInsert, Err: err}
	}
	return nil
}

// GetDocument returns one document row.
func (s *Store) GetDocument(ctx context.Context, id string) (db.DocumentRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, filename, format, total_pages, total_chunks, created_at
		FROM documents WHERE id = ?`, id)
	d, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return db.DocumentRow{}, db.ErrRowNotFound
		}
		return db.DocumentRow{}, &db.Error{Op: db.OpSelect, Err: err}
	}
	return d, nil
}

// DocumentExists reports whether a document row exists.
func (s *Store) DocumentExists(ctx context.Context, id string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE id = ?`, id).Scan(&n); err != nil {
		return false, &db.Error{Op: db.OpSelect, Err: err}
	}
	return n > 0, nil
}

// ListDocuments returns every document, newest first.
func (s *Store) ListDocuments(ctx context.Context) ([]db.DocumentRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, filename, format, total_pages, total_chunks, created_at
		FROM documents
		ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, &db.Error{Op: db.OpList, Err: err}
	}
	defer rows.Close()

	var out []db.DocumentRow
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, &db.Error{Op: db.OpList, Err: err}
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpList, Err: err}
	}
	return out, nil
}

// DeleteDocument counts and deletes the chunks, then the document, in one transaction.
func (s *Store) DeleteDocument(ctx context.Context, id string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &db.Error{Op: db.OpDelete, Err: fmt.Errorf("begin tx: %w", err)}
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE id = ?`, id).Scan(&exists); err != nil {
		return 0, &db.Error{Op: db.OpDelete, Err: err}
	}
	if exists == 0 {
		return 0, db.ErrRowNotFound
	}

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE document_id = ?`, id).Scan(&count); err != nil {
		return 0, &db.Error{Op: db.OpDelete, Err: err}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, id); err != nil {
		return 0, &db.Error{Op: db.OpDelete, Err: err}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return 0, &db.Error{Op: db.OpDelete, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return 0, &db.Error{Op: db.OpDelete, Err: err}
	}
	return count, nil
}

// NearestChunks loads the document's chunks inside one transaction and ranks them in process.
func (s *Store) NearestChunks(
	ctx context.Context, documentID string, query []float32, k int,
) ([]db.ScoredChunkRow, error) {
	if len(query) != s.dim {
		return nil, &db.Error{Op: db.OpNearest, Err: fmt.Errorf(
			"query has %d dimensions, store has %d: %w", len(query), s.dim, db.ErrDimensionMismatch)}
	}

	// Read-only transactions start deferred, so retrievals share the WAL snapshot
	// instead of queueing on the write lock.
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, &db.Error{Op: db.OpNearest, Err: fmt.Errorf("begin tx: %w", err)}
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE id = ?`, documentID).
		Scan(&exists); err != nil {
		return nil, &db.Error{Op: db.OpNearest, Err: err}
	}
	if exists == 0 {
		return nil, db.ErrRowNotFound
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT chunk_index, COALESCE(page_number, 0), content, embedding
		FROM chunks
		WHERE document_id = ?
		ORDER BY chunk_index`, documentID)
	if err != nil {
		return nil, &db.Error{Op: db.OpNearest, Err: err}
	}
	defer rows.Close()

	byIndex := make(map[int]db.ChunkRow)
	var candidates []similarity.Candidate
	for rows.Next() {
		var (
			c    db.ChunkRow
			blob []byte
		)
		if err := rows.Scan(&c.Index, &c.Page, &c.Text, &blob); err != nil {
			return nil, &db.Error{Op: db.OpNearest, Err: err}
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, &db.Error{Op: db.OpNearest, Err: fmt.Errorf("chunk %d: %w", c.Index, err)}
		}
		byIndex[c.Index] = c
		candidates = append(candidates, similarity.Candidate{Index: c.Index, Vector: vec})
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpNearest, Err: err}
	}
	if len(candidates) == 0 {
		return nil, db.ErrRowNotFound
	}

	matches, err := similarity.Rank(query, candidates, k)
	if err != nil {
		return nil, &db.Error{Op: db.OpNearest, Err: err}
	}
	out := make([]db.ScoredChunkRow, len(matches))
	for i, m := range matches {
		out[i] = db.ScoredChunkRow{ChunkRow: byIndex[m.Index], Similarity: m.Score}
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (db.DocumentRow, error) {
	var (
		d       db.DocumentRow
		created int64
	)
	if err := row.Scan(&d.ID, &d.Title, &d.Filename, &d.Format, &d.Pages, &d.Chunks, &created); err != nil {
		return db.DocumentRow{}, err //nolint:wrapcheck // callers wrap
	}
	d.CreatedAt = time.UnixMicro(created).UTC()
	return d, nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullPage(p int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(p), Valid: p > 0}
}

const dimensionKey = "embedding_dim"

func (s *Store) pinDimension(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO store_meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO NOTHING`,
		dimensionKey, strconv.Itoa(s.dim)); err != nil {
		return &db.Error{Op: db.OpMigrate, Err: fmt.Errorf("pin dimension: %w", err)}
	}
	var stored string
	if err := s.db.QueryRowContext(ctx, `SELECT value FROM store_meta WHERE key = ?`, dimensionKey).
		Scan(&stored); err != nil {
		return &db.Error{Op: db.OpMigrate, Err: fmt.Errorf("read dimension: %w", err)}
	}
	if stored != strconv.Itoa(s.dim) {
		return &db.Error{Op: db.OpMigrate, Err: fmt.Errorf(
			"store holds %s-dimensional embeddings, configured %d: %w", stored, s.dim, db.ErrDimensionMismatch)}
	}
	return nil
}
