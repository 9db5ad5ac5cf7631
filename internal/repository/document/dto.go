package document

import (
	"github.com/kailas-cloud/docqa/internal/db"
	"github.com/kailas-cloud/docqa/internal/domain/chunk"
	domdoc "github.com/kailas-cloud/docqa/internal/domain/document"
)

func toDocumentRow(d *domdoc.Document) db.DocumentRow {
	return db.DocumentRow{
		ID:        d.ID(),
		Title:     d.Title(),
		Filename:  d.Filename(),
		Format:    d.Format(),
		Pages:     d.Pages(),
		Chunks:    d.Chunks(),
		CreatedAt: d.CreatedAt(),
	}
}

func fromDocumentRow(r db.DocumentRow) domdoc.Document {
	return domdoc.Reconstruct(r.ID, r.Title, r.Filename, r.Format, r.Pages, r.Chunks, r.CreatedAt)
}

func toChunkRows(chunks []chunk.Chunk) []db.ChunkRow {
	rows := make([]db.ChunkRow, len(chunks))
	for i := range chunks {
		c := &chunks[i]
		page, _ := c.Page()
		rows[i] = db.ChunkRow{Index: c.Index(), Page: page, Text: c.Text(), Embedding: c.Embedding()}
	}
	return rows
}
