package sdk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"time"

	chitransport "github.com/kailas-cloud/docqa/internal/transport/chi"
)

// DocumentService manages stored documents.
type DocumentService struct {
	client *Client
}

// Upload ingests one document file. The body is streamed, not buffered.
func (c *Client) Upload(ctx context.Context, r UploadRequest) (_ *IngestResult, err error) {
	defer func(start time.Time) { c.obs.observe("upload", start, err) }(time.Now())

	if r.Filename == "" {
		return nil, errors.New("docqa: upload filename is required")
	}
	if r.Content == nil {
		return nil, errors.New("docqa: upload content is required")
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUploadForm(mw, r))
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/documents", pr, mw.FormDataContentType())
	if err != nil {
		pr.Close()
		return nil, err
	}

	var resp chitransport.IngestResponse
	hdr, err := c.do(req, &resp)
	// Unblocks the writer if the server answered before reading the whole body.
	pr.Close()
	if err != nil {
		return nil, err
	}

	tokens, _ := strconv.Atoi(hdr.Get("X-Embedding-Tokens"))
	return &IngestResult{
		DocumentID:      resp.DocumentID,
		Title:           resp.Title,
		Format:          resp.Format,
		ChunksCreated:   resp.ChunksCreated,
		PagesProcessed:  resp.PagesProcessed,
		EmbeddingTokens: tokens,
	}, nil
}

func writeUploadForm(mw *multipart.Writer, r UploadRequest) error {
	if r.DocumentID != "" {
		if err := mw.WriteField("document_id", r.DocumentID); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile("file", filepath.Base(r.Filename))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, r.Content); err != nil {
		return fmt.Errorf("copy %s: %w", r.Filename, err)
	}
	return mw.Close()
}

// List returns every stored document, newest first.
func (s *DocumentService) List(ctx context.Context) (_ []Document, err error) {
	defer func(start time.Time) { s.client.obs.observe("document.list", start, err) }(time.Now())

	var resp chitransport.DocumentListResponse
	if _, err := s.client.doJSON(ctx, http.MethodGet, "/documents", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]Document, len(resp.Items))
	for i := range resp.Items {
		out[i] = documentFromResponse(&resp.Items[i])
	}
	return out, nil
}

// Get returns one document.
func (s *DocumentService) Get(ctx context.Context, id string) (_ *Document, err error) {
	defer func(start time.Time) { s.client.obs.observe("document.get", start, err) }(time.Now())

	var resp chitransport.DocumentResponse
	if _, err := s.client.doJSON(ctx, http.MethodGet, "/documents/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	d := documentFromResponse(&resp)
	return &d, nil
}

// Delete removes a document with all its chunks and returns how many chunks were removed.
func (s *DocumentService) Delete(ctx context.Context, id string) (_ int, err error) {
	defer func(start time.Time) { s.client.obs.observe("document.delete", start, err) }(time.Now())

	var resp chitransport.DeleteResponse
	if _, err := s.client.doJSON(ctx, http.MethodDelete, "/documents/"+url.PathEscape(id), nil, &resp); err != nil {
		return 0, err
	}
	return resp.ChunksDeleted, nil
}

func documentFromResponse(r *chitransport.DocumentResponse) Document {
	return Document{
		ID:        r.DocumentID,
		Title:     r.Title,
		Filename:  r.Filename,
		Format:    r.Format,
		Pages:     r.Pages,
		Chunks:    r.Chunks,
		CreatedAt: r.CreatedAt,
	}
}
