package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docqa/internal/domain"
	"github.com/kailas-cloud/docqa/internal/domain/chunk"
	"github.com/kailas-cloud/docqa/internal/domain/chunker"
	domdoc "github.com/kailas-cloud/docqa/internal/domain/document"
	"github.com/kailas-cloud/docqa/internal/extract"
	"github.com/kailas-cloud/docqa/internal/segment"
)

// --- Mocks ---

type mockRepo struct {
	exists    bool
	existsErr error
	createErr error
	created   *domdoc.Document
	chunks    []chunk.Chunk
}

func (m *mockRepo) Exists(_ context.Context, _ string) (bool, error) {
	return m.exists, m.existsErr
}

func (m *mockRepo) Create(_ context.Context, doc *domdoc.Document, chunks []chunk.Chunk) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = doc
	m.chunks = chunks
	return nil
}

type mockEmbedder struct {
	batchFn func(texts []string) (domain.BatchEmbeddingResult, error)
	calls   int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, errors.New("batch path expected")
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.calls++
	if m.batchFn != nil {
		return m.batchFn(texts)
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, float32(i)}
	}
	return domain.BatchEmbeddingResult{Embeddings: out, TotalTokens: len(texts)}, nil
}

type countingExtractor struct {
	inner Extractor
	calls int
}

func (c *countingExtractor) Extract(filename string, content []byte) (extract.Result, error) {
	c.calls++
	return c.inner.Extract(filename, content)
}

func newTestService(t *testing.T, repo *mockRepo, emb *mockEmbedder, maxWords int) (*Service, *countingExtractor) {
	t.Helper()
	ch, err := chunker.New(segment.New(), maxWords)
	if err != nil {
		t.Fatalf("chunker: %v", err)
	}
	ex := &countingExtractor{inner: extract.NewRegistry(500)}
	svc := New(ex, ch, emb, repo, 2, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }
	return svc, ex
}

const story = "A cat sat. It was happy. The dog barked loudly outside.\n\nSecond paragraph here."

// --- Tests ---

func TestIngest_Success(t *testing.T) {
	repo := &mockRepo{}
	emb := &mockEmbedder{}
	svc, _ := newTestService(t, repo, emb, 5)

	report, err := svc.Ingest(context.Background(), Upload{Filename: "Pets Story.txt", Content: []byte(story)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.DocumentID != "Pets-Story" {
		t.Errorf("expected derived id Pets-Story, got %q", report.DocumentID)
	}
	if report.ChunksCreated != 3 || report.PagesProcessed != 1 || report.Format != "txt" {
		t.Errorf("unexpected report %+v", report)
	}
	if emb.calls != 1 {
		t.Errorf("expected one batch embedding call, got %d", emb.calls)
	}

	if repo.created == nil || repo.created.Chunks() != 3 {
		t.Fatalf("document not stored with chunk count: %+v", repo.created)
	}
	want := []string{"A cat sat. It was happy.", "The dog barked loudly outside.", "Second paragraph here."}
	for i, c := range repo.chunks {
		if c.Index() != i {
			t.Errorf("chunk %d has index %d", i, c.Index())
		}
		if c.Text() != want[i] {
			t.Errorf("chunk %d text %q, want %q", i, c.Text(), want[i])
		}
		if c.DocumentID() != "Pets-Story" {
			t.Errorf("chunk %d document %q", i, c.DocumentID())
		}
		if _, ok := c.Page(); ok {
			t.Errorf("text chunks carry no page")
		}
	}
}

func TestIngest_ExplicitID(t *testing.T) {
	repo := &mockRepo{}
	svc, _ := newTestService(t, repo, &mockEmbedder{}, 100)

	report, err := svc.Ingest(context.Background(), Upload{Filename: "a.txt", DocumentID: "custom-1", Content: []byte(story)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.DocumentID != "custom-1" || repo.created.ID() != "custom-1" {
		t.Errorf("explicit id not used: %+v", report)
	}
}

func TestIngest_InvalidExplicitID(t *testing.T) {
	svc, ex := newTestService(t, &mockRepo{}, &mockEmbedder{}, 100)

	_, err := svc.Ingest(context.Background(), Upload{Filename: "a.txt", DocumentID: "no spaces", Content: []byte(story)})
	if !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Errorf("expected invalid configuration, got %v", err)
	}
	if ex.calls != 0 {
		t.Error("extraction must not run")
	}
}

func TestIngest_ConflictBeforeWork(t *testing.T) {
	emb := &mockEmbedder{}
	svc, ex := newTestService(t, &mockRepo{exists: true}, emb, 100)

	_, err := svc.Ingest(context.Background(), Upload{Filename: "dup.txt", Content: []byte(story)})
	if !errors.Is(err, domain.ErrDocumentExists) {
		t.Fatalf("expected ErrDocumentExists, got %v", err)
	}
	if domain.KindOf(err) != domain.KindConflict {
		t.Errorf("expected conflict kind, got %q", domain.KindOf(err))
	}
	if ex.calls != 0 || emb.calls != 0 {
		t.Errorf("no work expected before conflict, extract=%d embed=%d", ex.calls, emb.calls)
	}
}

func TestIngest_DuplicateRaceAtStorage(t *testing.T) {
	repo := &mockRepo{createErr: fmt.Errorf("insert: %w", domain.ErrDocumentExists)}
	svc, _ := newTestService(t, repo, &mockEmbedder{}, 100)

	_, err := svc.Ingest(context.Background(), Upload{Filename: "race.txt", Content: []byte(story)})
	if !errors.Is(err, domain.ErrDocumentExists) {
		t.Fatalf("expected ErrDocumentExists, got %v", err)
	}
	if stage, id, _ := domain.StageOf(err); stage != domain.StageStorage || id != "race" {
		t.Errorf("unexpected context %q %q", stage, id)
	}
}

func TestIngest_EmptyDocumentRejected(t *testing.T) {
	repo := &mockRepo{}
	emb := &mockEmbedder{}
	svc, _ := newTestService(t, repo, emb, 100)

	_, err := svc.Ingest(context.Background(), Upload{Filename: "blank.txt", Content: []byte("  \n\n\t \n")})
	if !errors.Is(err, domain.ErrEmptyDocument) {
		t.Fatalf("expected ErrEmptyDocument, got %v", err)
	}
	if domain.KindOf(err) != domain.KindInvalidConfiguration {
		t.Errorf("expected invalid configuration kind, got %q", domain.KindOf(err))
	}
	if stage, _, _ := domain.StageOf(err); stage != domain.StageChunking {
		t.Errorf("expected chunking stage, got %q", stage)
	}
	if repo.created != nil || emb.calls != 0 {
		t.Error("nothing may be embedded or stored for an empty document")
	}
}

func TestIngest_UnsupportedFormat(t *testing.T) {
	svc, _ := newTestService(t, &mockRepo{}, &mockEmbedder{}, 100)

	_, err := svc.Ingest(context.Background(), Upload{Filename: "slides.pptx", Content: []byte("x")})
	if !errors.Is(err, domain.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if stage, _, _ := domain.StageOf(err); stage != domain.StageExtraction {
		t.Errorf("expected extraction stage, got %q", stage)
	}
}

func TestIngest_CorruptPDF(t *testing.T) {
	svc, _ := newTestService(t, &mockRepo{}, &mockEmbedder{}, 100)

	_, err := svc.Ingest(context.Background(), Upload{Filename: "broken.pdf", Content: []byte("not a pdf")})
	if !errors.Is(err, domain.ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}
	if !domain.IsRetryable(err) {
		t.Error("extraction failure is an upstream failure")
	}
}

func TestIngest_EmbeddingFailureStoresNothing(t *testing.T) {
	repo := &mockRepo{}
	emb := &mockEmbedder{batchFn: func([]string) (domain.BatchEmbeddingResult, error) {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("503: %w", domain.ErrEmbeddingProviderError)
	}}
	svc, _ := newTestService(t, repo, emb, 100)

	_, err := svc.Ingest(context.Background(), Upload{Filename: "doc.txt", Content: []byte(story)})
	if !domain.IsRetryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
	if stage, id, _ := domain.StageOf(err); stage != domain.StageEmbedding || id != "doc" {
		t.Errorf("unexpected context %q %q", stage, id)
	}
	if repo.created != nil {
		t.Error("nothing may be stored")
	}
}

func TestIngest_EmbeddingValidation(t *testing.T) {
	tests := []struct {
		name string
		fn   func(texts []string) (domain.BatchEmbeddingResult, error)
		want error
	}{
		{"count mismatch", func([]string) (domain.BatchEmbeddingResult, error) {
			return domain.BatchEmbeddingResult{Embeddings: [][]float32{{1, 0}}}, nil
		}, domain.ErrEmbeddingProviderError},
		{"wrong dimension", func(texts []string) (domain.BatchEmbeddingResult, error) {
			out := make([][]float32, len(texts))
			for i := range out {
				out[i] = []float32{1, 0, 0}
			}
			return domain.BatchEmbeddingResult{Embeddings: out}, nil
		}, domain.ErrVectorDimMismatch},
		{"zero vector", func(texts []string) (domain.BatchEmbeddingResult, error) {
			out := make([][]float32, len(texts))
			for i := range out {
				out[i] = []float32{0, 0}
			}
			return domain.BatchEmbeddingResult{Embeddings: out}, nil
		}, domain.ErrEmbeddingProviderError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := &mockRepo{}
			svc, _ := newTestService(t, repo, &mockEmbedder{batchFn: tc.fn}, 5)

			_, err := svc.Ingest(context.Background(), Upload{Filename: "doc.txt", Content: []byte(story)})
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
			if repo.created != nil {
				t.Error("nothing may be stored")
			}
		})
	}
}

func TestPreview(t *testing.T) {
	svc, _ := newTestService(t, nil, nil, 5)

	drafts, pages, err := svc.Preview("story.md", []byte(story))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(drafts) != 3 || pages != 1 {
		t.Errorf("unexpected preview: %d drafts, %d pages", len(drafts), pages)
	}
	total := 0
	for _, d := range drafts {
		total += d.Words()
	}
	if total != len(strings.Fields(story)) {
		t.Errorf("preview lost words: %d vs %d", total, len(strings.Fields(story)))
	}
}
