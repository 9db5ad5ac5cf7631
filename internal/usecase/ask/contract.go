package ask

import (
	"context"

	"github.com/kailas-cloud/docqa/internal/domain/chunk"
)

// Retriever embeds a question and returns the most similar chunks of one document.
type Retriever interface {
	Search(ctx context.Context, documentID, question string, topK int) ([]chunk.Scored, error)
}
