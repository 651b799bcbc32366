package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/garyjia/contract-approvals/internal/application/port"
	"github.com/garyjia/contract-approvals/internal/domain/entity"
)

// DocumentService registers contract documents that already sit in storage and
// keeps their text for the assistant
type DocumentService interface {
	Register(ctx context.Context, doc *entity.Document) error
	Get(ctx context.Context, id int64) (*entity.Document, error)
	List(ctx context.Context, contractID int64) ([]*entity.Document, error)

	// Delete removes the record; the file itself stays in storage
	Delete(ctx context.Context, id int64) error
}

type documentServiceImpl struct {
	documents port.DocumentRepository
	contracts port.ContractRepository
	storage   port.FileStorage
	extractor port.TextExtractor
	logger    Logger
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(
	documents port.DocumentRepository,
	contracts port.ContractRepository,
	storage port.FileStorage,
	extractor port.TextExtractor,
	logger Logger,
) DocumentService {
	return &documentServiceImpl{
		documents: documents,
		contracts: contracts,
		storage:   storage,
		extractor: extractor,
		logger:    logger,
	}
}

func (s *documentServiceImpl) Register(ctx context.Context, doc *entity.Document) error {
	doc.Path = strings.TrimSpace(doc.Path)
	if doc.Path == "" {
		return fmt.Errorf("%w: path is required", entity.ErrValidation)
	}
	if _, err := s.contracts.GetByID(ctx, doc.ContractID); err != nil {
		return err
	}

	abs, err := s.storage.Resolve(doc.Path)
	if err != nil {
		return fmt.Errorf("%w: %v", entity.ErrValidation, err)
	}
	if !s.storage.Exists(ctx, doc.Path) {
		return fmt.Errorf("%w: file %s does not exist", entity.ErrValidation, doc.Path)
	}
	if doc.Name == "" {
		doc.Name = filepath.Base(doc.Path)
	}

	extracted, err := s.extractor.Extract(ctx, abs)
	if err != nil {
		// the document stays usable without text
		s.logger.Error("Text extraction failed", "error", err, "path", doc.Path)
	} else {
		doc.ExtractedText = extracted.Text
		if doc.MimeType == "" {
			doc.MimeType = extracted.MimeType
		}
	}

	if err := s.documents.Create(ctx, doc); err != nil {
		return err
	}
	s.logger.Info("Document registered",
		"id", doc.ID,
		"contract_id", doc.ContractID,
		"mime_type", doc.MimeType,
		"text_length", len(doc.ExtractedText),
	)
	return nil
}

func (s *documentServiceImpl) Get(ctx context.Context, id int64) (*entity.Document, error) {
	return s.documents.GetByID(ctx, id)
}

func (s *documentServiceImpl) List(ctx context.Context, contractID int64) ([]*entity.Document, error) {
	if contractID == 0 {
		return nil, fmt.Errorf("%w: contractId is required", entity.ErrValidation)
	}
	return s.documents.List(ctx, contractID)
}

func (s *documentServiceImpl) Delete(ctx context.Context, id int64) error {
	return s.documents.Delete(ctx, id)
}
