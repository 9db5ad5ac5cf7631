package document

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/docqa/internal/domain"
)

// MaxIDLength is the longest accepted document identifier.
const MaxIDLength = 256

var (
	idRegex      = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
	invalidChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)
)

// Document is an ingested source file (immutable value object).
// Pages is the real page count for paginated formats and an estimate otherwise.
type Document struct {
	id        string
	title     string
	filename  string
	format    string
	pages     int
	chunks    int
	createdAt time.Time
}

// New validates and creates a Document.
// ID: ^[a-zA-Z0-9._-]+$, 1-256 chars. Title falls back to the ID.
func New(id, title, filename, format string, pages, chunks int, createdAt time.Time) (Document, error) {
	if err := ValidateID(id); err != nil {
		return Document{}, err
	}
	if chunks <= 0 {
		return Document{}, fmt.Errorf("document %q: %w", id, domain.ErrEmptyDocument)
	}
	if pages < 0 {
		return Document{}, fmt.Errorf("page count must be non-negative: %w", domain.ErrInvalidDocument)
	}
	if strings.TrimSpace(title) == "" {
		title = id
	}
	return Document{
		id:        id,
		title:     strings.TrimSpace(title),
		filename:  filename,
		format:    format,
		pages:     pages,
		chunks:    chunks,
		createdAt: createdAt.UTC(),
	}, nil
}

// Reconstruct creates a Document without validation (storage hydration).
func Reconstruct(id, title, filename, format string, pages, chunks int, createdAt time.Time) Document {
	return Document{
		id: id, title: title, filename: filename, format: format,
		pages: pages, chunks: chunks, createdAt: createdAt,
	}
}

// ValidateID checks a caller-supplied identifier.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("document ID is required: %w", domain.ErrInvalidDocument)
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("document ID too long (max %d): %w", MaxIDLength, domain.ErrInvalidDocument)
	}
	if !idRegex.MatchString(id) {
		return fmt.Errorf("document ID must contain only letters, digits, dots, underscores and hyphens: %w",
			domain.ErrInvalidDocument)
	}
	return nil
}

// DeriveID builds an identifier from an upload filename.
// "Moby Dick (1851).pdf" becomes "Moby-Dick-1851". A name with nothing usable gets a UUID.
func DeriveID(filename string) string {
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	id := strings.Trim(invalidChars.ReplaceAllString(stem, "-"), "-.")
	if len(id) > MaxIDLength {
		id = strings.TrimRight(id[:MaxIDLength], "-.")
	}
	if id == "" || id == "." {
		return uuid.NewString()
	}
	return id
}

// ID returns the document identifier.
func (d *Document) ID() string { return d.id }

// Title returns the display title.
func (d *Document) Title() string { return d.title }

// Filename returns the original upload filename.
func (d *Document) Filename() string { return d.filename }

// Format returns the source format (pdf, docx, txt, md).
func (d *Document) Format() string { return d.format }

// Pages returns the page count.
func (d *Document) Pages() int { return d.pages }

// Chunks returns the number of stored chunks.
func (d *Document) Chunks() int { return d.chunks }

// CreatedAt returns the ingestion time.
func (d *Document) CreatedAt() time.Time { return d.createdAt }
