package ask

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docqa/internal/domain"
	"github.com/kailas-cloud/docqa/internal/metrics"
)

// NoAnswer replaces an empty model response.
const NoAnswer = "No answer received."

// DefaultTimeout bounds one generation call.
const DefaultTimeout = 180 * time.Second

// Question is a natural-language question about one document. A zero TopK uses the retriever default.
type Question struct {
	Text       string
	DocumentID string
	TopK       int
}

// Source identifies a chunk that went into the prompt.
type Source struct {
	ChunkIndex int
	Page       int // zero when the source has no pages
	Similarity float64
}

// Answer is the generated answer with its provenance.
type Answer struct {
	Question          string
	Answer            string
	DocumentID        string
	ContextChunksUsed int
	Sources           []Source
}

// Service answers questions by retrieval plus one generation call.
type Service struct {
	retriever Retriever
	generator domain.Generator
	provider  string
	model     string
	timeout   time.Duration
	logger    *zap.Logger
}

// New creates a question answering service. provider and model label metrics and logs.
func New(
	retriever Retriever, generator domain.Generator,
	provider, model string, timeout time.Duration, logger *zap.Logger,
) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{
		retriever: retriever,
		generator: generator,
		provider:  provider,
		model:     model,
		timeout:   timeout,
		logger:    logger,
	}
}

// Ask retrieves context for q and generates an answer under the configured timeout.
func (s *Service) Ask(ctx context.Context, q Question) (Answer, error) {
	if strings.TrimSpace(q.Text) == "" {
		return Answer{}, domain.NewPipelineError(domain.StageRetrieval, q.DocumentID,
			fmt.Errorf("question is required: %w", domain.ErrInvalidConfiguration))
	}

	results, err := s.retriever.Search(ctx, q.DocumentID, q.Text, q.TopK)
	if err != nil {
		return Answer{}, err
	}

	prompt := BuildPrompt(q.DocumentID, q.Text, results)
	text, err := s.generate(ctx, q.DocumentID, prompt)
	if err != nil {
		return Answer{}, domain.NewPipelineError(domain.StageGeneration, q.DocumentID, err)
	}

	sources := make([]Source, len(results))
	for i := range results {
		page, _ := results[i].Chunk.Page()
		sources[i] = Source{
			ChunkIndex: results[i].Chunk.Index(),
			Page:       page,
			Similarity: results[i].Similarity,
		}
	}

	return Answer{
		Question:          q.Text,
		Answer:            text,
		DocumentID:        q.DocumentID,
		ContextChunksUsed: len(results),
		Sources:           sources,
	}, nil
}

func (s *Service) generate(ctx context.Context, documentID, prompt string) (string, error) {
	gctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	text, err := s.generator.Generate(gctx, prompt)
	duration := time.Since(start)
	metrics.GenerationDuration.WithLabelValues(s.provider, s.model).Observe(duration.Seconds())

	if err != nil {
		status := "error"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(gctx.Err(), context.DeadlineExceeded) {
			status = "timeout"
			err = fmt.Errorf("after %s: %w", s.timeout, domain.ErrGenerationTimeout)
		} else if !errors.Is(err, domain.ErrUpstreamUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
		}
		metrics.GenerationRequestsTotal.WithLabelValues(s.provider, s.model, status).Inc()
		s.logger.Error("Generation failed",
			zap.String("document_id", documentID),
			zap.String("stage", string(domain.StageGeneration)),
			zap.String("model", s.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return "", err
	}

	metrics.GenerationRequestsTotal.WithLabelValues(s.provider, s.model, "success").Inc()
	s.logger.Debug("Generation completed",
		zap.String("document_id", documentID),
		zap.String("model", s.model),
		zap.Duration("duration", duration),
		zap.Int("prompt_chars", len(prompt)),
	)

	if strings.TrimSpace(text) == "" {
		return NoAnswer, nil
	}
	return strings.TrimSpace(text), nil
}
