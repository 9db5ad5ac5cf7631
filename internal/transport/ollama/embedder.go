package ollama

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docqa/internal/domain"
	"github.com/kailas-cloud/docqa/internal/metrics"
)

// DefaultEmbeddingModel is used when no model is configured.
const DefaultEmbeddingModel = "nomic-embed-text"

const providerName = "ollama"

// EmbedderConfig holds configuration for the Ollama embedder.
type EmbedderConfig struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Embedder vectorizes text through the Ollama /api/embed endpoint.
type Embedder struct {
	client *client
	model  string
	logger *zap.Logger
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Model           string      `json:"model"`
	Embeddings      [][]float64 `json:"embeddings"`
	PromptEvalCount int         `json:"prompt_eval_count"`
}

// NewEmbedder creates an Ollama embedder.
func NewEmbedder(cfg *EmbedderConfig) *Embedder {
	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{
		client: newClient(cfg.BaseURL, cfg.HTTPClient, cfg.Timeout),
		model:  model,
		logger: logger,
	}
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := e.BatchEmbed(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{
		Embedding:    res.Embeddings[0],
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// BatchEmbed implements domain.BatchEmbedder. /api/embed accepts the whole batch in one request.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	start := time.Now()
	var resp embedResponse
	err := e.client.postJSON(ctx, "/api/embed", embedRequest{Model: e.model, Input: texts}, &resp)
	duration := time.Since(start)
	if err != nil {
		e.countError(errorType(err))
		e.logger.Debug("ollama embed failed", zap.Error(err), zap.Duration("duration", duration))
		return domain.BatchEmbeddingResult{}, fmt.Errorf("ollama embed: %w: %w", domain.ErrEmbeddingProviderError, err)
	}
	if len(resp.Embeddings) != len(texts) {
		e.countError("invalid_response")
		return domain.BatchEmbeddingResult{}, fmt.Errorf(
			"ollama returned %d embeddings for %d inputs: %w",
			len(resp.Embeddings), len(texts), domain.ErrEmbeddingProviderError,
		)
	}

	metrics.ObserveEmbedding(providerName, e.model, len(texts), duration, resp.PromptEvalCount, resp.PromptEvalCount)

	embeddings := make([][]float32, len(resp.Embeddings))
	for i, v := range resp.Embeddings {
		embeddings[i] = toFloat32(v)
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: resp.PromptEvalCount,
		TotalTokens:  resp.PromptEvalCount,
	}, nil
}

// HealthCheck verifies the Ollama server is reachable.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if err := e.client.ping(ctx); err != nil {
		return fmt.Errorf("ollama ping: %w", err)
	}
	return nil
}

func (e *Embedder) countError(errorType string) {
	metrics.CountEmbeddingError(providerName, e.model, errorType)
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
