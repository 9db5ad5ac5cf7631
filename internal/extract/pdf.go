package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kailas-cloud/docqa/internal/domain"
	"github.com/kailas-cloud/docqa/internal/domain/chunker"
)

// PDF extracts plain text page by page.
type PDF struct{}

// Extract returns one unit per page, numbered from 1.
func (PDF) Extract(_ string, content []byte) (res Result, err error) {
	// The parser panics on some malformed streams.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf: %v: %w", r, domain.ErrExtractionFailed)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return Result{}, fmt.Errorf("open pdf: %v: %w", err, domain.ErrExtractionFailed)
	}

	n := r.NumPage()
	units := make([]chunker.Unit, 0, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return Result{}, fmt.Errorf("pdf page %d: %v: %w", i, err, domain.ErrExtractionFailed)
		}
		units = append(units, chunker.Unit{Text: text, Page: i})
	}

	return Result{Title: pdfTitle(r), Units: units, Pages: n}, nil
}

func pdfTitle(r *pdf.Reader) string {
	return strings.TrimSpace(r.Trailer().Key("Info").Key("Title").Text())
}
