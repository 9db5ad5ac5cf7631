package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/docqa/internal/db"
	"github.com/kailas-cloud/docqa/internal/domain"
	"github.com/kailas-cloud/docqa/internal/domain/chunk"
	domdoc "github.com/kailas-cloud/docqa/internal/domain/document"
)

// store is the consumer interface for documents (ISP).
type store interface {
	InsertDocument(ctx context.Context, doc db.DocumentRow, chunks []db.ChunkRow) error
	GetDocument(ctx context.Context, id string) (db.DocumentRow, error)
	DocumentExists(ctx context.Context, id string) (bool, error)
	ListDocuments(ctx context.Context) ([]db.DocumentRow, error)
	DeleteDocument(ctx context.Context, id string) (int, error)
	NearestChunks(ctx context.Context, documentID string, query []float32, k int) ([]db.ScoredChunkRow, error)
}

// Repo maps stored rows to domain records and storage errors to domain kinds.
type Repo struct {
	store store
}

// New creates a document repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Create stores the document and its chunks atomically.
func (r *Repo) Create(ctx context.Context, doc *domdoc.Document, chunks []chunk.Chunk) error {
	if err := r.store.InsertDocument(ctx, toDocumentRow(doc), toChunkRows(chunks)); err != nil {
		return fmt.Errorf("insert %s: %w", doc.ID(), mapErr(err))
	}
	return nil
}

// Exists reports whether a document with id is stored.
func (r *Repo) Exists(ctx context.Context, id string) (bool, error) {
	ok, err := r.store.DocumentExists(ctx, id)
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", id, err)
	}
	return ok, nil
}

// Get returns a document by ID.
func (r *Repo) Get(ctx context.Context, id string) (domdoc.Document, error) {
	row, err := r.store.GetDocument(ctx, id)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("get %s: %w", id, mapErr(err))
	}
	return fromDocumentRow(row), nil
}

// List returns every document, newest first.
func (r *Repo) List(ctx context.Context) ([]domdoc.Document, error) {
	rows, err := r.store.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	docs := make([]domdoc.Document, len(rows))
	for i, row := range rows {
		docs[i] = fromDocumentRow(row)
	}
	return docs, nil
}

// Delete removes a document with all its chunks and returns the chunk count.
func (r *Repo) Delete(ctx context.Context, id string) (int, error) {
	n, err := r.store.DeleteDocument(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", id, mapErr(err))
	}
	return n, nil
}

// Nearest returns the k chunks of documentID most similar to query.
func (r *Repo) Nearest(ctx context.Context, documentID string, query []float32, k int) ([]chunk.Scored, error) {
	rows, err := r.store.NearestChunks(ctx, documentID, query, k)
	if err != nil {
		return nil, fmt.Errorf("nearest %s: %w", documentID, mapErr(err))
	}
	out := make([]chunk.Scored, len(rows))
	for i, row := range rows {
		out[i] = chunk.Scored{
			Chunk:      chunk.Reconstruct(documentID, row.Index, row.Page, row.Text, nil),
			Similarity: row.Similarity,
		}
	}
	return out, nil
}

// mapErr translates storage sentinels into domain error kinds.
func mapErr(err error) error {
	switch {
	case errors.Is(err, db.ErrRowNotFound):
		return domain.ErrDocumentNotFound
	case errors.Is(err, db.ErrDuplicate):
		return domain.ErrDocumentExists
	case errors.Is(err, db.ErrDimensionMismatch):
		return fmt.Errorf("%w: %w", domain.ErrVectorDimMismatch, err)
	default:
		return err
	}
}
