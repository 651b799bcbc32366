package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/contract-approvals/internal/application/port"
	"github.com/garyjia/contract-approvals/internal/domain/entity"
	"github.com/garyjia/contract-approvals/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// DocumentRepository implements port.DocumentRepository
type DocumentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *sql.DB, logger *zap.Logger) port.DocumentRepository {
	return &DocumentRepository{db: db, logger: logger}
}

func (r *DocumentRepository) Create(ctx context.Context, d *entity.Document) error {
	d.CreatedAt = time.Now().UTC()
	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO documents (contract_id, name, path, mime_type, extracted_text, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		d.ContractID, d.Name, d.Path, d.MimeType, d.ExtractedText, d.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to create document",
			zap.Int64("contract_id", d.ContractID),
			zap.String("path", d.Path),
			zap.Error(err))
		return fmt.Errorf("failed to create document: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	d.ID = id
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id int64) (*entity.Document, error) {
	var d entity.Document
	err := sqlite.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT id, contract_id, name, path, mime_type, extracted_text, created_at FROM documents WHERE id = ?`, id).
		Scan(&d.ID, &d.ContractID, &d.Name, &d.Path, &d.MimeType, &d.ExtractedText, &d.CreatedAt)
	if err != nil {
		return nil, wrapNotFound(err, "document", id)
	}
	return &d, nil
}

// List returns documents, optionally restricted to one contract
func (r *DocumentRepository) List(ctx context.Context, contractID int64) ([]*entity.Document, error) {
	var w where
	if contractID > 0 {
		w.add("contract_id = ?", contractID)
	}
	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT id, contract_id, name, path, mime_type, extracted_text, created_at
		FROM documents`+w.String()+` ORDER BY id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var out []*entity.Document
	for rows.Next() {
		var d entity.Document
		if err := rows.Scan(&d.ID, &d.ContractID, &d.Name, &d.Path, &d.MimeType, &d.ExtractedText, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

func (r *DocumentRepository) Delete(ctx context.Context, id int64) error {
	res, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return requireAffected(res, "document", id)
}

var _ port.DocumentRepository = (*DocumentRepository)(nil)
