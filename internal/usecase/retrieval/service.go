package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/docqa/internal/domain"
	"github.com/kailas-cloud/docqa/internal/domain/chunk"
	domdoc "github.com/kailas-cloud/docqa/internal/domain/document"
	"github.com/kailas-cloud/docqa/internal/domain/similarity"
	"github.com/kailas-cloud/docqa/internal/metrics"
)

// Service ranks a document's chunks against a query.
type Service struct {
	repo        Repository
	embed       Embedder
	dimension   int
	defaultTopK int
	maxTopK     int
}

// New creates a retrieval service. dimension is the store's fixed embedding size, zero to skip the check.
func New(repo Repository, embed Embedder, dimension int) *Service {
	return &Service{
		repo:        repo,
		embed:       embed,
		dimension:   dimension,
		defaultTopK: domain.DefaultTopK,
		maxTopK:     domain.DefaultMaxTopK,
	}
}

// WithTopK configures the default and maximum result counts.
func (s *Service) WithTopK(defaultTopK, maxTopK int) *Service {
	if maxTopK > 0 {
		s.maxTopK = maxTopK
	}
	if defaultTopK > 0 {
		s.defaultTopK = min(defaultTopK, s.maxTopK)
	}
	return s
}

// DefaultTopK returns the result count used when a caller leaves it unset.
func (s *Service) DefaultTopK() int { return s.defaultTopK }

// Retrieve returns at most topK chunks of documentID, most similar first, ties by ascending index.
// A document without chunks is reported as not found, never as an empty result.
func (s *Service) Retrieve(
	ctx context.Context, documentID string, query []float32, topK int,
) ([]chunk.Scored, error) {
	if err := s.validate(documentID, query, topK); err != nil {
		return nil, domain.NewPipelineError(domain.StageRetrieval, documentID, err)
	}

	start := time.Now()
	results, err := s.repo.Nearest(ctx, documentID, query, topK)
	metrics.RetrievalDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, domain.NewPipelineError(domain.StageRetrieval, documentID, err)
	}
	if len(results) == 0 {
		return nil, domain.NewPipelineError(domain.StageRetrieval, documentID, domain.ErrDocumentNotFound)
	}

	for i := range results {
		results[i].Similarity = similarity.Clamp(results[i].Similarity)
	}
	return results, nil
}

// Search embeds the question and retrieves against documentID. A zero topK uses the default.
func (s *Service) Search(
	ctx context.Context, documentID, question string, topK int,
) ([]chunk.Scored, error) {
	if topK == 0 {
		topK = s.defaultTopK
	}
	if strings.TrimSpace(question) == "" {
		return nil, domain.NewPipelineError(domain.StageRetrieval, documentID,
			fmt.Errorf("query is required: %w", domain.ErrInvalidConfiguration))
	}
	if err := s.validate(documentID, nil, topK); err != nil {
		return nil, domain.NewPipelineError(domain.StageRetrieval, documentID, err)
	}

	res, err := s.embed.Embed(ctx, question)
	if err != nil {
		return nil, domain.NewPipelineError(domain.StageEmbedding, documentID, fmt.Errorf("vectorize query: %w", err))
	}

	return s.Retrieve(ctx, documentID, res.Embedding, topK)
}

// validate checks everything that can be rejected without touching the store. A nil query skips the vector checks.
func (s *Service) validate(documentID string, query []float32, topK int) error {
	if topK <= 0 || topK > s.maxTopK {
		return fmt.Errorf("top_k %d not in 1..%d: %w", topK, s.maxTopK, domain.ErrInvalidTopK)
	}
	if err := domdoc.ValidateID(documentID); err != nil {
		return err
	}
	if query == nil {
		return nil
	}
	if s.dimension > 0 && len(query) != s.dimension {
		return fmt.Errorf("query has %d dimensions, store has %d: %w", len(query), s.dimension, domain.ErrVectorDimMismatch)
	}
	if similarity.Norm(query) == 0 {
		return fmt.Errorf("query embedding has zero norm: %w", domain.ErrInvalidConfiguration)
	}
	return nil
}
