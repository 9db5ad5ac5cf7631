package retrieval

import (
	"context"

	"github.com/kailas-cloud/docqa/internal/domain"
	"github.com/kailas-cloud/docqa/internal/domain/chunk"
)

// Repository ranks the stored chunks of one document against a query vector.
type Repository interface {
	Nearest(ctx context.Context, documentID string, query []float32, k int) ([]chunk.Scored, error)
}

// Embedder vectorizes question text with the query instruction.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
