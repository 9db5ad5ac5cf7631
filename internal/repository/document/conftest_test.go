package document

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/docqa/internal/db"
	"github.com/kailas-cloud/docqa/internal/domain/chunk"
	domdoc "github.com/kailas-cloud/docqa/internal/domain/document"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	insertFn  func(ctx context.Context, doc db.DocumentRow, chunks []db.ChunkRow) error
	getFn     func(ctx context.Context, id string) (db.DocumentRow, error)
	existsFn  func(ctx context.Context, id string) (bool, error)
	listFn    func(ctx context.Context) ([]db.DocumentRow, error)
	deleteFn  func(ctx context.Context, id string) (int, error)
	nearestFn func(ctx context.Context, documentID string, query []float32, k int) ([]db.ScoredChunkRow, error)
}

func (m *mockStore) InsertDocument(ctx context.Context, doc db.DocumentRow, chunks []db.ChunkRow) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, doc, chunks)
	}
	return nil
}

func (m *mockStore) GetDocument(ctx context.Context, id string) (db.DocumentRow, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return db.DocumentRow{}, db.ErrRowNotFound
}

func (m *mockStore) DocumentExists(ctx context.Context, id string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, id)
	}
	return false, nil
}

func (m *mockStore) ListDocuments(ctx context.Context) ([]db.DocumentRow, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockStore) DeleteDocument(ctx context.Context, id string) (int, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return 0, db.ErrRowNotFound
}

func (m *mockStore) NearestChunks(
	ctx context.Context, documentID string, query []float32, k int,
) ([]db.ScoredChunkRow, error) {
	if m.nearestFn != nil {
		return m.nearestFn(ctx, documentID, query, k)
	}
	return nil, db.ErrRowNotFound
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms), ms
}

func testDocument(t *testing.T) (domdoc.Document, []chunk.Chunk) {
	t.Helper()
	doc, err := domdoc.New("moby-dick", "Moby Dick", "moby-dick.pdf", "pdf", 2, 2,
		time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	if err != nil {
		t.Fatalf("document: %v", err)
	}
	c0, err := chunk.New("moby-dick", 0, 1, "Call me Ishmael.", []float32{1, 0})
	if err != nil {
		t.Fatalf("chunk 0: %v", err)
	}
	c1, err := chunk.New("moby-dick", 1, 0, "Some years ago.", []float32{0, 1})
	if err != nil {
		t.Fatalf("chunk 1: %v", err)
	}
	return doc, []chunk.Chunk{c0, c1}
}
