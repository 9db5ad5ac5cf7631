package document

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docqa/internal/domain"
	domdoc "github.com/kailas-cloud/docqa/internal/domain/document"
)

// Service lists, reads and deletes ingested documents.
type Service struct {
	repo   Repository
	logger *zap.Logger
}

// New creates a document service.
func New(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// List returns every document, newest first then by id.
func (s *Service) List(ctx context.Context) ([]domdoc.Document, error) {
	docs, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", domain.NewPipelineError(domain.StageStorage, "", err))
	}
	return docs, nil
}

// Get returns the metadata of one document.
func (s *Service) Get(ctx context.Context, id string) (domdoc.Document, error) {
	if err := domdoc.ValidateID(id); err != nil {
		return domdoc.Document{}, err
	}
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return domdoc.Document{}, domain.NewPipelineError(domain.StageStorage, id, err)
	}
	return doc, nil
}

// Delete removes a document and all its chunks atomically and returns the number of chunks removed.
func (s *Service) Delete(ctx context.Context, id string) (int, error) {
	if err := domdoc.ValidateID(id); err != nil {
		return 0, err
	}
	n, err := s.repo.Delete(ctx, id)
	if err != nil {
		return 0, domain.NewPipelineError(domain.StageStorage, id, err)
	}

	s.logger.Info("Document deleted",
		zap.String("document_id", id),
		zap.Int("chunks_deleted", n),
	)
	return n, nil
}
