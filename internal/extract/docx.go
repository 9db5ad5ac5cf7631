package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/kailas-cloud/docqa/internal/domain"
	"github.com/kailas-cloud/docqa/internal/domain/chunker"
)

// DOCX extracts paragraphs from word/document.xml.
type DOCX struct {
	wordsPerPage int
}

type docxBody struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
	} `xml:"body"`
}

type docxParagraph struct {
	Runs []struct {
		Text []struct {
			Content string `xml:",chardata"`
		} `xml:"t"`
	} `xml:"r"`
}

type docxCore struct {
	Title string `xml:"title"`
}

// Extract returns one unit per non-empty paragraph. Word files carry no pages.
func (d DOCX) Extract(_ string, content []byte) (Result, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return Result{}, fmt.Errorf("open docx: %v: %w", err, domain.ErrExtractionFailed)
	}

	raw, err := readZipFile(zr, "word/document.xml")
	if err != nil {
		return Result{}, fmt.Errorf("read docx body: %v: %w", err, domain.ErrExtractionFailed)
	}
	var body docxBody
	if err := xml.Unmarshal(raw, &body); err != nil {
		return Result{}, fmt.Errorf("parse docx body: %v: %w", err, domain.ErrExtractionFailed)
	}

	var units []chunker.Unit
	for _, p := range body.Body.Paragraphs {
		var sb strings.Builder
		for _, r := range p.Runs {
			for _, t := range r.Text {
				sb.WriteString(t.Content)
			}
		}
		if text := strings.TrimSpace(sb.String()); text != "" {
			units = append(units, chunker.Unit{Text: text})
		}
	}

	res := Result{Units: units, Pages: EstimatePages(units, d.wordsPerPage)}
	if core, err := readZipFile(zr, "docProps/core.xml"); err == nil {
		var c docxCore
		if xml.Unmarshal(core, &c) == nil {
			res.Title = strings.TrimSpace(c.Title)
		}
	}
	return res, nil
}

func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	f, err := zr.Open(name)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context
	}
	defer f.Close()
	return io.ReadAll(f) //nolint:wrapcheck // callers wrap with context
}
