package chunk

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/docqa/internal/domain"
)

// Draft is a chunk produced by the chunker before it has an embedding.
// Page is 1-based; zero means the source has no page concept.
type Draft struct {
	Index int
	Page  int
	Text  string
}

// Words returns the whitespace-delimited word count of the draft text.
func (d Draft) Words() int { return len(strings.Fields(d.Text)) }

// Chunk is a sentence-aligned passage of one document with its embedding (immutable value object).
type Chunk struct {
	documentID string
	index      int
	page       int
	text       string
	embedding  []float32
}

// New validates and creates a Chunk.
// Text must be non-empty after trimming, index and page non-negative, embedding present.
func New(documentID string, index, page int, text string, embedding []float32) (Chunk, error) {
	if documentID == "" {
		return Chunk{}, fmt.Errorf("chunk document ID is required: %w", domain.ErrInvalidDocument)
	}
	if index < 0 {
		return Chunk{}, fmt.Errorf("chunk index %d is negative: %w", index, domain.ErrInvalidDocument)
	}
	if page < 0 {
		return Chunk{}, fmt.Errorf("chunk %d page %d is negative: %w", index, page, domain.ErrInvalidDocument)
	}
	if strings.TrimSpace(text) == "" {
		return Chunk{}, fmt.Errorf("chunk %d text is empty: %w", index, domain.ErrInvalidDocument)
	}
	if len(embedding) == 0 {
		return Chunk{}, fmt.Errorf("chunk %d has no embedding: %w", index, domain.ErrInvalidDocument)
	}
	return Chunk{
		documentID: documentID,
		index:      index,
		page:       page,
		text:       text,
		embedding:  embedding,
	}, nil
}

// FromDraft attaches an embedding to a draft.
func FromDraft(documentID string, d Draft, embedding []float32) (Chunk, error) {
	return New(documentID, d.Index, d.Page, d.Text, embedding)
}

// Reconstruct creates a Chunk without validation (storage hydration).
func Reconstruct(documentID string, index, page int, text string, embedding []float32) Chunk {
	return Chunk{documentID: documentID, index: index, page: page, text: text, embedding: embedding}
}

// DocumentID returns the owning document identifier.
func (c *Chunk) DocumentID() string { return c.documentID }

// Index returns the zero-based position within the document.
func (c *Chunk) Index() int { return c.index }

// Page returns the 1-based source page and whether the source had pages.
func (c *Chunk) Page() (int, bool) { return c.page, c.page > 0 }

// Text returns the passage text.
func (c *Chunk) Text() string { return c.text }

// Embedding returns the embedding vector. May be nil for rows read without vectors.
func (c *Chunk) Embedding() []float32 { return c.embedding }

// Scored is a retrieved chunk with its cosine similarity to the query.
type Scored struct {
	Chunk      Chunk
	Similarity float64
}
