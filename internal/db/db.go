package db

import (
	"context"
	"time"
)

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DocumentRow is a stored document.
type DocumentRow struct {
	ID        string
	Title     string
	Filename  string
	Format    string
	Pages     int
	Chunks    int
	CreatedAt time.Time
}

// ChunkRow is a stored chunk. Page zero means no page.
type ChunkRow struct {
	Index     int
	Page      int
	Text      string
	Embedding []float32
}

// ScoredChunkRow is a chunk ranked against a query. Embedding is not loaded.
type ScoredChunkRow struct {
	ChunkRow
	Similarity float64
}

// DocumentStore persists documents together with their chunks.
//
// InsertDocument commits the document and every chunk in one transaction or nothing.
// DeleteDocument removes the chunks and the document in one transaction and returns the chunk count.
// NearestChunks ranks one document's chunks by cosine similarity, best first and ties by
// ascending index; a missing document or one without chunks yields ErrRowNotFound.
type DocumentStore interface {
	InsertDocument(ctx context.Context, doc DocumentRow, chunks []ChunkRow) error
	GetDocument(ctx context.Context, id string) (DocumentRow, error)
	DocumentExists(ctx context.Context, id string) (bool, error)
	ListDocuments(ctx context.Context) ([]DocumentRow, error)
	DeleteDocument(ctx context.Context, id string) (int, error)
	NearestChunks(ctx context.Context, documentID string, query []float32, k int) ([]ScoredChunkRow, error)
}

// ChunkStore is the primary store: a DocumentStore with a fixed embedding dimension.
type ChunkStore interface {
	Pinger
	DocumentStore
	Dimension() int
	Close()
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	MGet(ctx context.Context, keys []string) ([][]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}
