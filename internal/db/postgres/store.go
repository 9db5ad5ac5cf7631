// Package postgres implements db.ChunkStore on PostgreSQL with pgvector.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/kailas-cloud/docqa/internal/db"
	"github.com/kailas-cloud/docqa/internal/domain/similarity"
)

var _ db.ChunkStore = (*Store)(nil)

const uniqueViolation = "23505"

// Config holds connection parameters.
type Config struct {
	DSN              string
	MaxConns         int32
	Dimension        int
	ReadinessTimeout time.Duration
}

// Store is a pgx pool over the documents and chunks tables.
type Store struct {
	pool *pgxpool.Pool
	dim  int
}

// NewStore waits for the server, applies migrations, pins the embedding
// dimension and opens the pool.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive")
	}
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}

	conn, err := waitForConn(ctx, pcfg.ConnConfig, cfg.ReadinessTimeout)
	if err != nil {
		return nil, err
	}
	err = migrate(ctx, conn, cfg.Dimension)
	_ = conn.Close(ctx)
	if err != nil {
		return nil, err
	}

	// The vector type exists only after migration.
	pcfg.AfterConnect = func(ctx context.Context, c *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, c) //nolint:wrapcheck // reported by pool
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, dim: cfg.Dimension}, nil
}

// waitForConn retries the initial connection until it succeeds or timeout expires.
func waitForConn(ctx context.Context, cc *pgx.ConnConfig, timeout time.Duration) (*pgx.Conn, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		conn, err := pgx.ConnectConfig(ctx, cc)
		if err == nil {
			return conn, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("timeout waiting for postgres: %w (last error: %v)", ctx.Err(), err)
		case <-ticker.C:
		}
	}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the pool.
func (s *Store) Close() { s.pool.Close() }

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

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &db.Error{Op: db.OpInsert, Err: fmt.Errorf("begin tx: %w", err)}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
INSERT INTO documents (id, title, filename, format, total_pages, total_chunks, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		doc.ID, doc.Title, doc.Filename, doc.Format, doc.Pages, doc.Chunks, doc.CreatedAt)
	if err != nil {
		return writeErr(db.OpInsert, err)
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(`
INSERT INTO chunks (document_id, chunk_index, page_number, content, embedding)
VALUES ($1, $2, $3, $4, $5)`,
			doc.ID, c.Index, nullPage(c.Page), c.Text, pgvector.NewVector(c.Embedding))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return writeErr(db.OpInsert, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return writeErr(db.OpInsert, err)
	}
	return nil
}

// GetDocument returns one document row.
func (s *Store) GetDocument(ctx context.Context, id string) (db.DocumentRow, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, title, filename, format, total_pages, total_chunks, created_at
FROM documents WHERE id = $1`, id)
	d, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return db.DocumentRow{}, db.ErrRowNotFound
		}
		return db.DocumentRow{}, &db.Error{Op: db.OpSelect, Err: err}
	}
	return d, nil
}

// DocumentExists reports whether a document row exists.
func (s *Store) DocumentExists(ctx context.Context, id string) (bool, error) {
	var ok bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, id).Scan(&ok); err != nil {
		return false, &db.Error{Op: db.OpSelect, Err: err}
	}
	return ok, nil
}

// ListDocuments returns every document, newest first.
func (s *Store) ListDocuments(ctx context.Context) ([]db.DocumentRow, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, title, filename, format, total_pages, total_chunks, created_at
FROM documents
ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, &db.Error{Op: db.OpList, Err: err}
	}
	defer rows.Close()

	out := make([]db.DocumentRow, 0, 16)
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

// DeleteDocument locks the document, counts and deletes its chunks, then deletes it.
func (s *Store) DeleteDocument(ctx context.Context, id string) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, &db.Error{Op: db.OpDelete, Err: fmt.Errorf("begin tx: %w", err)}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var locked string
	if err := tx.QueryRow(ctx, `SELECT id FROM documents WHERE id = $1 FOR UPDATE`, id).Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, db.ErrRowNotFound
		}
		return 0, &db.Error{Op: db.OpDelete, Err: err}
	}

	var count int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM chunks WHERE document_id = $1`, id).Scan(&count); err != nil {
		return 0, &db.Error{Op: db.OpDelete, Err: err}
	}
	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, id); err != nil {
		return 0, &db.Error{Op: db.OpDelete, Err: err}
	}
	if _, err := tx.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id); err != nil {
		return 0, &db.Error{Op: db.OpDelete, Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, &db.Error{Op: db.OpDelete, Err: err}
	}
	return count, nil
}

// NearestChunks ranks a document's chunks by cosine distance with an exact scan.
// The existence check and the ranking read one snapshot.
func (s *Store) NearestChunks(
	ctx context.Context, documentID string, query []float32, k int,
) ([]db.ScoredChunkRow, error) {
	if len(query) != s.dim {
		return nil, &db.Error{Op: db.OpNearest, Err: fmt.Errorf(
			"query has %d dimensions, store has %d: %w", len(query), s.dim, db.ErrDimensionMismatch)}
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, &db.Error{Op: db.OpNearest, Err: fmt.Errorf("begin tx: %w", err)}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, documentID).
		Scan(&exists); err != nil {
		return nil, &db.Error{Op: db.OpNearest, Err: err}
	}
	if !exists {
		return nil, db.ErrRowNotFound
	}

	rows, err := tx.Query(ctx, `
SELECT chunk_index, COALESCE(page_number, 0), content, 1 - (embedding <=> $2) AS similarity
FROM chunks
WHERE document_id = $1
ORDER BY embedding <=> $2, chunk_index
LIMIT $3`, documentID, pgvector.NewVector(query), k)
	if err != nil {
		return nil, &db.Error{Op: db.OpNearest, Err: err}
	}
	defer rows.Close()

	out := make([]db.ScoredChunkRow, 0, k)
	for rows.Next() {
		var r db.ScoredChunkRow
		if err := rows.Scan(&r.Index, &r.Page, &r.Text, &r.Similarity); err != nil {
			return nil, &db.Error{Op: db.OpNearest, Err: err}
		}
		r.Similarity = similarity.Clamp(r.Similarity)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpNearest, Err: err}
	}
	if len(out) == 0 {
		return nil, db.ErrRowNotFound
	}
	return out, nil
}

func scanDocument(row pgx.Row) (db.DocumentRow, error) {
	var d db.DocumentRow
	err := row.Scan(&d.ID, &d.Title, &d.Filename, &d.Format, &d.Pages, &d.Chunks, &d.CreatedAt)
	return d, err //nolint:wrapcheck // callers wrap
}

// writeErr maps a unique violation on the documents table to db.ErrDuplicate.
func writeErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.TableName == "documents" {
		return &db.Error{Op: op, Err: fmt.Errorf("%s: %w", pgErr.ConstraintName, db.ErrDuplicate)}
	}
	return &db.Error{Op: op, Err: err}
}

func nullPage(p int) *int32 {
	if p <= 0 {
		return nil
	}
	v := int32(p)
	return &v
}
