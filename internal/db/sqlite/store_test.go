package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/docqa/internal/db"
)

const testDim = 3

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(context.Background(), Config{
		Path:      filepath.Join(t.TempDir(), "data", "docqa.db"),
		Dimension: testDim,
	})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func insertDoc(t *testing.T, s *Store, id string, created time.Time, vecs ...[]float32) {
	t.Helper()
	chunks := make([]db.ChunkRow, len(vecs))
	for i, v := range vecs {
		chunks[i] = db.ChunkRow{Index: i, Text: fmt.Sprintf("%s chunk %d", id, i), Embedding: v}
	}
	doc := db.DocumentRow{
		ID: id, Title: "Title " + id, Filename: id + ".txt", Format: "txt",
		Pages: 1, Chunks: len(vecs), CreatedAt: created,
	}
	if err := s.InsertDocument(context.Background(), doc, chunks); err != nil {
		t.Fatalf("InsertDocument(%s): %v", id, err)
	}
}

func TestNewStore_MigratesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docqa.db")
	ctx := context.Background()

	s, err := NewStore(ctx, Config{Path: path, Dimension: testDim})
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if s.Path() != path {
		t.Errorf("Path() = %q, want %q", s.Path(), path)
	}
	insertDoc(t, s, "kept", time.Now(), []float32{1, 0, 0})
	s.Close()

	s2, err := NewStore(ctx, Config{Path: path, Dimension: testDim})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if ok, _ := s2.DocumentExists(ctx, "kept"); !ok {
		t.Error("data lost on reopen")
	}
	if err := s2.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestNewStore_DimensionPinned(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docqa.db")
	ctx := context.Background()

	s, err := NewStore(ctx, Config{Path: path, Dimension: testDim})
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	s.Close()

	_, err = NewStore(ctx, Config{Path: path, Dimension: 768})
	if !errors.Is(err, db.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestInsertAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	created := time.Date(2024, 3, 1, 10, 0, 0, 123456000, time.UTC)

	insertDoc(t, s, "moby", created, []float32{1, 0, 0}, []float32{0, 1, 0})

	got, err := s.GetDocument(ctx, "moby")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got.Title != "Title moby" || got.Chunks != 2 || got.Format != "txt" {
		t.Errorf("unexpected row %+v", got)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}

	if _, err := s.GetDocument(ctx, "missing"); !errors.Is(err, db.ErrRowNotFound) {
		t.Errorf("expected ErrRowNotFound, got %v", err)
	}
}

func TestInsert_Duplicate(t *testing.T) {
	s := setupTestStore(t)
	insertDoc(t, s, "dup", time.Now(), []float32{1, 0, 0})

	err := s.InsertDocument(context.Background(),
		db.DocumentRow{ID: "dup", Title: "again", Pages: 1, Chunks: 1, CreatedAt: time.Now()},
		[]db.ChunkRow{{Index: 0, Text: "x", Embedding: []float32{0, 1, 0}}})
	if !errors.Is(err, db.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestInsert_ConcurrentSameIDOneWinner(t *testing.T) {
	s := setupTestStore(t)

	var (
		wg              sync.WaitGroup
		mu              sync.Mutex
		successes, dups int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.InsertDocument(context.Background(),
				db.DocumentRow{ID: "race", Title: "race", Pages: 1, Chunks: 1, CreatedAt: time.Now()},
				[]db.ChunkRow{{Index: 0, Text: fmt.Sprintf("writer %d", i), Embedding: []float32{1, 1, 1}}})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, db.ErrDuplicate):
				dups++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if successes != 1 || dups != 4 {
		t.Fatalf("successes=%d dups=%d, want 1 and 4", successes, dups)
	}
}

func TestInsert_FailureRollsBack(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	// Second chunk reuses index 0 and fails after the document row was written.
	err := s.InsertDocument(ctx,
		db.DocumentRow{ID: "partial", Title: "p", Pages: 1, Chunks: 2, CreatedAt: time.Now()},
		[]db.ChunkRow{
			{Index: 0, Text: "a", Embedding: []float32{1, 0, 0}},
			{Index: 0, Text: "b", Embedding: []float32{0, 1, 0}},
		})
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, db.ErrDuplicate) {
		t.Error("chunk key collision must not read as a duplicate document")
	}

	if ok, _ := s.DocumentExists(ctx, "partial"); ok {
		t.Fatal("document row visible after failed insert")
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE document_id = ?`, "partial").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("%d chunks persisted after failed insert", n)
	}
}

func TestInsert_DimensionMismatch(t *testing.T) {
	s := setupTestStore(t)
	err := s.InsertDocument(context.Background(),
		db.DocumentRow{ID: "bad", Title: "b", Pages: 1, Chunks: 1, CreatedAt: time.Now()},
		[]db.ChunkRow{{Index: 0, Text: "a", Embedding: []float32{1, 0}}})
	if !errors.Is(err, db.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestListDocuments_NewestFirst(t *testing.T) {
	s := setupTestStore(t)
	base := time.Now().UTC()

	insertDoc(t, s, "old", base.Add(-time.Hour), []float32{1, 0, 0})
	insertDoc(t, s, "new", base, []float32{1, 0, 0})
	insertDoc(t, s, "mid", base.Add(-time.Minute), []float32{1, 0, 0})

	list, err := s.ListDocuments(context.Background())
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(list) != 3 || list[0].ID != "new" || list[1].ID != "mid" || list[2].ID != "old" {
		t.Errorf("unexpected order: %+v", list)
	}
}

func TestNearestChunks_ScopedOrderedAndTieBroken(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	insertDoc(t, s, "a", time.Now(),
		[]float32{0, 1, 0}, []float32{1, 1, 0}, []float32{1, 1, 0}, []float32{1, 0, 0})
	insertDoc(t, s, "b", time.Now(), []float32{1, 0, 0}, []float32{1, 0, 0})

	got, err := s.NearestChunks(ctx, "a", []float32{1, 0, 0}, 10)
	if err != nil {
		t.Fatalf("NearestChunks: %v", err)
	}
	want := []int{3, 1, 2, 0}
	if len(got) != len(want) {
		t.Fatalf("got %d rows, want %d", len(got), len(want))
	}
	for i, r := range got {
		if r.Index != want[i] {
			t.Errorf("position %d: index %d, want %d", i, r.Index, want[i])
		}
		if r.Text != fmt.Sprintf("a chunk %d", r.Index) {
			t.Errorf("row from another document: %+v", r)
		}
		if i > 0 && r.Similarity > got[i-1].Similarity {
			t.Errorf("scores increase at %d", i)
		}
	}

	top2, err := s.NearestChunks(ctx, "a", []float32{1, 0, 0}, 2)
	if err != nil || len(top2) != 2 || top2[0].Index != 3 {
		t.Fatalf("top2 = %+v, %v", top2, err)
	}
}

func TestNearestChunks_Errors(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if _, err := s.NearestChunks(ctx, "ghost", []float32{1, 0, 0}, 3); !errors.Is(err, db.ErrRowNotFound) {
		t.Errorf("unknown document: got %v", err)
	}
	if _, err := s.NearestChunks(ctx, "ghost", []float32{1, 0}, 3); !errors.Is(err, db.ErrDimensionMismatch) {
		t.Errorf("wrong dimension: got %v", err)
	}
}

func TestNearestChunks_NotBlockedByOpenWrite(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	insertDoc(t, s, "a", time.Now(), []float32{1, 0, 0}, []float32{0, 1, 0})

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin write: %v", err)
	}
	defer tx.Rollback() //nolint:errcheck
	if _, err := tx.ExecContext(ctx, `INSERT INTO store_meta (key, value) VALUES ('pending', 'x')`); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO documents (id, title, total_pages, total_chunks, created_at)
		VALUES ('pending', 'Pending', 1, 1, 0)`); err != nil {
		t.Fatalf("write: %v", err)
	}

	rctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	start := time.Now()
	got, err := s.NearestChunks(rctx, "a", []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("NearestChunks during write: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("retrieval waited %s on the writer", elapsed)
	}
	if len(got) != 2 || got[0].Index != 0 {
		t.Errorf("unexpected rows: %+v", got)
	}

	if _, err := s.NearestChunks(rctx, "pending", []float32{1, 0, 0}, 1); !errors.Is(err, db.ErrRowNotFound) {
		t.Errorf("uncommitted document visible: %v", err)
	}
}

func TestNearestChunks_ParallelReaders(t *testing.T) {
	s := setupTestStore(t)
	insertDoc(t, s, "a", time.Now(), []float32{1, 0, 0}, []float32{0, 1, 0}, []float32{0, 0, 1})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	const readers = 16
	var wg sync.WaitGroup
	errs := make(chan error, readers)
	for range readers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := s.NearestChunks(ctx, "a", []float32{0, 1, 0}, 1)
			if err == nil && (len(got) != 1 || got[0].Index != 1) {
				err = fmt.Errorf("unexpected rows %+v", got)
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("parallel retrieval: %v", err)
		}
	}
}

func TestDeleteDocument(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	insertDoc(t, s, "gone", time.Now(), []float32{1, 0, 0}, []float32{0, 1, 0}, []float32{0, 0, 1})
	insertDoc(t, s, "stays", time.Now(), []float32{1, 0, 0})

	n, err := s.DeleteDocument(ctx, "gone")
	if err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if n != 3 {
		t.Errorf("deleted %d chunks, want 3", n)
	}
	if _, err := s.NearestChunks(ctx, "gone", []float32{1, 0, 0}, 3); !errors.Is(err, db.ErrRowNotFound) {
		t.Errorf("retrieval after delete: got %v", err)
	}
	if _, err := s.DeleteDocument(ctx, "gone"); !errors.Is(err, db.ErrRowNotFound) {
		t.Errorf("second delete: got %v", err)
	}
	if ok, _ := s.DocumentExists(ctx, "stays"); !ok {
		t.Error("delete removed another document")
	}
}

func TestVectorRoundTrip(t *testing.T) {
	in := []float32{0.25, -1.5, 3e-7}
	out, err := decodeVector(encodeVector(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("got %v, want %v", out, in)
		}
	}
	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated blob")
	}
}
