package ollama

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kailas-cloud/docqa/internal/domain"
)

// DefaultGenerationModel is used when no model is configured.
const DefaultGenerationModel = "llama3.1:8b"

// GeneratorConfig holds configuration for the Ollama generator.
type GeneratorConfig struct {
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// Generator produces answers through the non-streaming /api/generate endpoint.
type Generator struct {
	client  *client
	model   string
	options *options
}

type generateRequest struct {
	Model   string   `json:"model"`
	Prompt  string   `json:"prompt"`
	Stream  bool     `json:"stream"`
	Options *options `json:"options,omitempty"`
}

type options struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewGenerator creates an Ollama generator.
func NewGenerator(cfg *GeneratorConfig) *Generator {
	model := cfg.Model
	if model == "" {
		model = DefaultGenerationModel
	}
	g := &Generator{
		client: newClient(cfg.BaseURL, cfg.HTTPClient, cfg.Timeout),
		model:  model,
	}
	if cfg.MaxTokens > 0 || cfg.Temperature > 0 {
		g.options = &options{NumPredict: cfg.MaxTokens, Temperature: cfg.Temperature}
	}
	return g
}

// Generate implements domain.Generator.
// A timeout matches context.DeadlineExceeded, any other failure ErrGenerationFailed.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	var resp generateResponse
	err := g.client.postJSON(ctx, "/api/generate", generateRequest{
		Model:   g.model,
		Prompt:  prompt,
		Stream:  false,
		Options: g.options,
	}, &resp)
	if err != nil {
		if isDeadline(err) {
			return "", fmt.Errorf("ollama generate: %w: %w", context.DeadlineExceeded, err)
		}
		return "", fmt.Errorf("ollama generate: %w: %w", domain.ErrGenerationFailed, err)
	}
	return resp.Response, nil
}

// HealthCheck verifies the Ollama server is reachable.
func (g *Generator) HealthCheck(ctx context.Context) error {
	if err := g.client.ping(ctx); err != nil {
		return fmt.Errorf("ollama ping: %w", err)
	}
	return nil
}
