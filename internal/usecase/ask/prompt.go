package ask

import (
	"strings"

	"github.com/kailas-cloud/docqa/internal/domain/chunk"
)

const instruction = "You are a helpful document assistant. Answer the question using only the context from the document.\n" +
	"If the answer is not in the context, say so honestly."

// BuildPrompt assembles the single prompt sent to the generative model.
// Chunk texts keep retrieval order and are separated by blank lines.
func BuildPrompt(documentID, question string, chunks []chunk.Scored) string {
	var b strings.Builder
	b.WriteString(instruction)
	b.WriteString("\n\nContext from document \"")
	b.WriteString(documentID)
	b.WriteString("\":\n")
	for i := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(chunks[i].Chunk.Text())
	}
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer:")
	return b.String()
}
