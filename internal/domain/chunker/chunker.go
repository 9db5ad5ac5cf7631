// Package chunker groups sentences into word-bounded passages.
//
// Boundaries always fall between sentences. A group is closed as soon as the
// next sentence would push it past the word limit; a sentence that alone
// exceeds the limit becomes its own chunk and is never split or truncated.
package chunker

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/docqa/internal/domain"
	"github.com/kailas-cloud/docqa/internal/domain/chunk"
)

// Segmenter splits text into ordered, non-empty sentences.
type Segmenter interface {
	Sentences(text string) []string
}

// Unit is an independent segmentation scope: one PDF page or one paragraph.
// Page is 1-based; zero means the source has no pages.
type Unit struct {
	Text string
	Page int
}

// Group packs sentences greedily into chunk texts of at most maxWords words.
// Empty input yields an empty result.
func Group(sentences []string, maxWords int) ([]string, error) {
	if maxWords <= 0 {
		return nil, fmt.Errorf("max words %d must be positive: %w", maxWords, domain.ErrInvalidConfiguration)
	}

	var (
		chunks  []string
		current []string
		words   int
	)
	for _, s := range sentences {
		n := len(strings.Fields(s))
		if len(current) > 0 && words+n > maxWords {
			chunks = append(chunks, strings.Join(current, " "))
			current, words = nil, 0
		}
		current = append(current, s)
		words += n
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks, nil
}

// Chunker runs segmentation and grouping per unit and assigns document-wide indices.
type Chunker struct {
	segmenter Segmenter
	maxWords  int
}

// New creates a Chunker. Non-positive maxWords is rejected here, before any text is seen.
func New(seg Segmenter, maxWords int) (*Chunker, error) {
	if seg == nil {
		return nil, fmt.Errorf("segmenter is required: %w", domain.ErrInvalidConfiguration)
	}
	if maxWords <= 0 {
		return nil, fmt.Errorf("max words %d must be positive: %w", maxWords, domain.ErrInvalidConfiguration)
	}
	return &Chunker{segmenter: seg, maxWords: maxWords}, nil
}

// MaxWords returns the configured chunk size.
func (c *Chunker) MaxWords() int { return c.maxWords }

// ChunkUnits chunks every unit independently. Indices run 0..N-1 across the whole
// document in unit order; units without text contribute nothing.
func (c *Chunker) ChunkUnits(units []Unit) []chunk.Draft {
	var drafts []chunk.Draft
	for _, u := range units {
		if strings.TrimSpace(u.Text) == "" {
			continue
		}
		// maxWords was validated in New.
		texts, _ := Group(c.segmenter.Sentences(u.Text), c.maxWords)
		for _, text := range texts {
			drafts = append(drafts, chunk.Draft{Index: len(drafts), Page: u.Page, Text: text})
		}
	}
	return drafts
}
