package ingest

import (
	"context"

	"github.com/kailas-cloud/docqa/internal/domain/chunk"
	"github.com/kailas-cloud/docqa/internal/domain/chunker"
	domdoc "github.com/kailas-cloud/docqa/internal/domain/document"
	"github.com/kailas-cloud/docqa/internal/extract"
)

// Extractor turns an uploaded file into text units.
type Extractor interface {
	Extract(filename string, content []byte) (extract.Result, error)
}

// Chunker splits text units into indexed drafts.
type Chunker interface {
	ChunkUnits(units []chunker.Unit) []chunk.Draft
}

// Repository stores a document with its chunks atomically.
type Repository interface {
	Exists(ctx context.Context, id string) (bool, error)
	Create(ctx context.Context, doc *domdoc.Document, chunks []chunk.Chunk) error
}
