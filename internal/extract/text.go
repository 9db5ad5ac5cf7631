package extract

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/docqa/internal/domain"
	"github.com/kailas-cloud/docqa/internal/domain/chunker"
)

// Text extracts paragraphs from UTF-8 plain text and Markdown, split on blank lines.
type Text struct {
	wordsPerPage int
}

// Extract returns one unit per non-empty paragraph.
func (t *Text) Extract(_ string, content []byte) (Result, error) {
	if !utf8.Valid(content) {
		return Result{}, fmt.Errorf("text is not valid UTF-8: %w", domain.ErrExtractionFailed)
	}
	normalized := strings.ReplaceAll(string(content), "\r\n", "\n")

	var units []chunker.Unit
	for _, para := range strings.Split(normalized, "\n\n") {
		if para = strings.TrimSpace(para); para != "" {
			units = append(units, chunker.Unit{Text: para})
		}
	}
	return Result{Units: units, Pages: EstimatePages(units, t.wordsPerPage)}, nil
}
