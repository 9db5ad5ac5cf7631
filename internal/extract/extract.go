// Package extract turns uploaded files into text units for chunking.
package extract

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kailas-cloud/docqa/internal/domain"
	"github.com/kailas-cloud/docqa/internal/domain/chunker"
)

// Supported formats.
const (
	FormatPDF  = "pdf"
	FormatDOCX = "docx"
	FormatTXT  = "txt"
	FormatMD   = "md"
)

// Result is the extracted content of one file.
// Pages is the real page count for PDFs and an estimate from word count otherwise.
type Result struct {
	Format string
	Title  string
	Units  []chunker.Unit
	Pages  int
}

// Extractor reads one file format.
type Extractor interface {
	Extract(filename string, content []byte) (Result, error)
}

// Registry selects an extractor by file extension.
type Registry struct {
	extractors   map[string]Extractor
	wordsPerPage int
}

// NewRegistry creates a registry with the PDF, DOCX and plain text extractors.
// wordsPerPage drives page estimation for unpaginated formats.
func NewRegistry(wordsPerPage int) *Registry {
	if wordsPerPage <= 0 {
		wordsPerPage = domain.DefaultWordsPerPage
	}
	text := &Text{wordsPerPage: wordsPerPage}
	return &Registry{
		extractors: map[string]Extractor{
			FormatPDF:  &PDF{},
			FormatDOCX: &DOCX{wordsPerPage: wordsPerPage},
			FormatTXT:  text,
			FormatMD:   text,
		},
		wordsPerPage: wordsPerPage,
	}
}

// FormatOf returns the normalized extension of filename without the dot.
func FormatOf(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// Supported reports whether filename has an extractor.
func (r *Registry) Supported(filename string) bool {
	_, ok := r.extractors[FormatOf(filename)]
	return ok
}

// Extract dispatches on the file extension.
func (r *Registry) Extract(filename string, content []byte) (Result, error) {
	format := FormatOf(filename)
	ex, ok := r.extractors[format]
	if !ok {
		return Result{}, fmt.Errorf("%q: %w", filepath.Ext(filename), domain.ErrUnsupportedFormat)
	}
	res, err := ex.Extract(filename, content)
	if err != nil {
		return Result{}, err
	}
	res.Format = format
	if res.Title == "" {
		res.Title = titleFromFilename(filename)
	}
	return res, nil
}

// EstimatePages returns max(1, words/wordsPerPage).
func EstimatePages(units []chunker.Unit, wordsPerPage int) int {
	words := 0
	for _, u := range units {
		words += len(strings.Fields(u.Text))
	}
	return max(1, words/wordsPerPage)
}

func titleFromFilename(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
