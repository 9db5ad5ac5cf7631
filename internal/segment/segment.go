// Package segment splits text into sentences using Unicode sentence boundaries (UAX #29).
package segment

import (
	"strings"

	"github.com/rivo/uniseg"
)

// Segmenter is a stateless sentence splitter.
type Segmenter struct{}

// New creates a Segmenter.
func New() Segmenter { return Segmenter{} }

// Sentences returns the non-empty sentences of text in order.
// Line breaks are not boundaries; whitespace runs collapse to single spaces first.
func (Segmenter) Sentences(text string) []string {
	text = strings.Join(strings.Fields(text), " ")

	var (
		out      []string
		sentence string
		state    = -1
	)
	for len(text) > 0 {
		sentence, text, state = uniseg.FirstSentenceInString(text, state)
		if s := strings.TrimSpace(sentence); s != "" {
			out = append(out, s)
		}
	}
	return out
}
