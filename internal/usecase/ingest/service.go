package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docqa/internal/domain"
	"github.com/kailas-cloud/docqa/internal/domain/chunk"
	domdoc "github.com/kailas-cloud/docqa/internal/domain/document"
	"github.com/kailas-cloud/docqa/internal/domain/similarity"
	"github.com/kailas-cloud/docqa/internal/extract"
	"github.com/kailas-cloud/docqa/internal/metrics"
)

// Upload is one file submitted for ingestion. An empty DocumentID is derived from the filename.
type Upload struct {
	Filename   string
	DocumentID string
	Content    []byte
}

// Report summarizes a successful ingestion.
type Report struct {
	DocumentID     string
	Title          string
	Format         string
	ChunksCreated  int
	PagesProcessed int
}

// Service runs extraction, chunking, embedding and storage for one upload.
type Service struct {
	extractor Extractor
	chunker   Chunker
	embedder  domain.Embedder
	repo      Repository
	dimension int
	now       func() time.Time
	logger    *zap.Logger
}

// New creates an ingestion service. dimension is the store's embedding size, zero to skip the check.
func New(
	extractor Extractor, ch Chunker, embedder domain.Embedder,
	repo Repository, dimension int, logger *zap.Logger,
) *Service {
	return &Service{
		extractor: extractor,
		chunker:   ch,
		embedder:  embedder,
		repo:      repo,
		dimension: dimension,
		now:       time.Now,
		logger:    logger,
	}
}

// Ingest stores the upload as a document. Nothing is stored unless every stage succeeds.
func (s *Service) Ingest(ctx context.Context, up Upload) (Report, error) {
	format := extract.FormatOf(up.Filename)

	report, err := s.ingest(ctx, up)
	if err != nil {
		metrics.IngestTotal.WithLabelValues(format, string(domain.KindOf(err))).Inc()
		stage, id, _ := domain.StageOf(err)
		s.logger.Warn("Ingestion failed",
			zap.String("document_id", id),
			zap.String("stage", string(stage)),
			zap.String("filename", up.Filename),
			zap.Error(err),
		)
		return Report{}, err
	}

	metrics.IngestTotal.WithLabelValues(format, "success").Inc()
	metrics.ChunksIngestedTotal.Add(float64(report.ChunksCreated))
	s.logger.Info("Document ingested",
		zap.String("document_id", report.DocumentID),
		zap.String("format", report.Format),
		zap.Int("chunks", report.ChunksCreated),
		zap.Int("pages", report.PagesProcessed),
	)
	return report, nil
}

func (s *Service) ingest(ctx context.Context, up Upload) (Report, error) {
	id, err := resolveID(up)
	if err != nil {
		return Report{}, domain.NewPipelineError(domain.StageStorage, up.DocumentID, err)
	}

	// Conflicts surface before any extraction or embedding work.
	exists, err := s.repo.Exists(ctx, id)
	if err != nil {
		return Report{}, domain.NewPipelineError(domain.StageStorage, id, err)
	}
	if exists {
		return Report{}, domain.NewPipelineError(domain.StageStorage, id, domain.ErrDocumentExists)
	}

	res, drafts, err := s.extractAndChunk(id, up.Filename, up.Content)
	if err != nil {
		return Report{}, err
	}

	chunks, err := s.embed(ctx, id, drafts)
	if err != nil {
		return Report{}, err
	}

	doc, err := domdoc.New(id, res.Title, up.Filename, res.Format, res.Pages, len(chunks), s.now())
	if err != nil {
		return Report{}, domain.NewPipelineError(domain.StageStorage, id, err)
	}

	done := stageTimer(domain.StageStorage)
	err = s.repo.Create(ctx, &doc, chunks)
	done()
	if err != nil {
		return Report{}, domain.NewPipelineError(domain.StageStorage, id, err)
	}

	return Report{
		DocumentID:     id,
		Title:          doc.Title(),
		Format:         doc.Format(),
		ChunksCreated:  len(chunks),
		PagesProcessed: doc.Pages(),
	}, nil
}

// Preview runs extraction and chunking only and returns the drafts with the page count.
func (s *Service) Preview(filename string, content []byte) ([]chunk.Draft, int, error) {
	res, drafts, err := s.extractAndChunk(domdoc.DeriveID(filename), filename, content)
	if err != nil {
		return nil, 0, err
	}
	return drafts, res.Pages, nil
}

func (s *Service) extractAndChunk(id, filename string, content []byte) (extract.Result, []chunk.Draft, error) {
	done := stageTimer(domain.StageExtraction)
	res, err := s.extractor.Extract(filename, content)
	done()
	if err != nil {
		return extract.Result{}, nil, domain.NewPipelineError(domain.StageExtraction, id, err)
	}

	done = stageTimer(domain.StageChunking)
	drafts := s.chunker.ChunkUnits(res.Units)
	done()
	if len(drafts) == 0 {
		return extract.Result{}, nil, domain.NewPipelineError(domain.StageChunking, id, domain.ErrEmptyDocument)
	}

	s.logger.Debug("Document chunked",
		zap.String("document_id", id),
		zap.String("stage", string(domain.StageChunking)),
		zap.Int("units", len(res.Units)),
		zap.Int("chunks", len(drafts)),
	)
	return res, drafts, nil
}

// embed vectorizes all drafts in one batch and validates the vectors before anything is stored.
func (s *Service) embed(ctx context.Context, id string, drafts []chunk.Draft) ([]chunk.Chunk, error) {
	texts := make([]string, len(drafts))
	for i, d := range drafts {
		texts[i] = d.Text
	}

	done := stageTimer(domain.StageEmbedding)
	res, err := domain.EmbedAll(ctx, s.embedder, texts)
	done()
	if err != nil {
		return nil, domain.NewPipelineError(domain.StageEmbedding, id, err)
	}
	if len(res.Embeddings) != len(drafts) {
		return nil, domain.NewPipelineError(domain.StageEmbedding, id, fmt.Errorf(
			"got %d embeddings for %d chunks: %w", len(res.Embeddings), len(drafts), domain.ErrEmbeddingProviderError))
	}

	chunks := make([]chunk.Chunk, len(drafts))
	for i, d := range drafts {
		vec := res.Embeddings[i]
		if s.dimension > 0 && len(vec) != s.dimension {
			return nil, domain.NewPipelineError(domain.StageEmbedding, id, fmt.Errorf(
				"chunk %d has %d dimensions, store has %d: %w", d.Index, len(vec), s.dimension, domain.ErrVectorDimMismatch))
		}
		if similarity.Norm(vec) == 0 {
			return nil, domain.NewPipelineError(domain.StageEmbedding, id, fmt.Errorf(
				"chunk %d has a zero embedding: %w", d.Index, domain.ErrEmbeddingProviderError))
		}
		c, err := chunk.FromDraft(id, d, vec)
		if err != nil {
			return nil, domain.NewPipelineError(domain.StageEmbedding, id, err)
		}
		chunks[i] = c
	}
	return chunks, nil
}

func resolveID(up Upload) (string, error) {
	if up.DocumentID == "" {
		return domdoc.DeriveID(up.Filename), nil
	}
	if err := domdoc.ValidateID(up.DocumentID); err != nil {
		return "", err
	}
	return up.DocumentID, nil
}

func stageTimer(stage domain.Stage) func() {
	start := time.Now()
	return func() {
		metrics.IngestStageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
	}
}
