package document

import (
	"context"

	domdoc "github.com/kailas-cloud/docqa/internal/domain/document"
)

// Repository defines the storage contract for document management.
type Repository interface {
	Get(ctx context.Context, id string) (domdoc.Document, error)
	List(ctx context.Context) ([]domdoc.Document, error)
	Delete(ctx context.Context, id string) (int, error)
}
