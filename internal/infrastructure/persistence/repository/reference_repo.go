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

const referenceColumns = `id, kind, code, name, value, description, active, created_at, updated_at`

// ReferenceRepository implements port.ReferenceRepository
type ReferenceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReferenceRepository creates a new reference repository
func NewReferenceRepository(db *sql.DB, logger *zap.Logger) port.ReferenceRepository {
	return &ReferenceRepository{db: db, logger: logger}
}

func (r *ReferenceRepository) Create(ctx context.Context, ref *entity.Reference) error {
	now := time.Now().UTC()
	ref.CreatedAt, ref.UpdatedAt = now, now

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO reference_items (kind, code, name, value, description, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ref.Kind, ref.Code, ref.Name, ref.Value, ref.Description, ref.Active, ref.CreatedAt, ref.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: code %q already exists for kind %s", entity.ErrValidation, ref.Code, ref.Kind)
		}
		r.logger.Error("Failed to create reference", zap.String("kind", ref.Kind), zap.Error(err))
		return fmt.Errorf("failed to create reference: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	ref.ID = id
	return nil
}

func (r *ReferenceRepository) GetByID(ctx context.Context, id int64) (*entity.Reference, error) {
	row := sqlite.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+referenceColumns+` FROM reference_items WHERE id = ?`, id)
	ref, err := scanReference(row)
	if err != nil {
		return nil, wrapNotFound(err, "reference", id)
	}
	return ref, nil
}

func (r *ReferenceRepository) GetByCode(ctx context.Context, kind, code string) (*entity.Reference, error) {
	row := sqlite.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+referenceColumns+` FROM reference_items WHERE kind = ? AND code = ?`, kind, code)
	ref, err := scanReference(row)
	if err != nil {
		return nil, wrapNotFound(err, "reference", kind+"/"+code)
	}
	return ref, nil
}

func (r *ReferenceRepository) List(ctx context.Context, filter entity.ReferenceFilter) ([]*entity.Reference, error) {
	var w where
	if filter.Kind != "" {
		w.add("kind = ?", filter.Kind)
	}
	if filter.ActiveOnly {
		w.add("active = 1")
	}

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx,
		`SELECT `+referenceColumns+` FROM reference_items`+w.String()+` ORDER BY kind, name, id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query references: %w", err)
	}
	defer rows.Close()

	var out []*entity.Reference
	for rows.Next() {
		ref, err := scanReference(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reference: %w", err)
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

func (r *ReferenceRepository) Update(ctx context.Context, ref *entity.Reference) error {
	ref.UpdatedAt = time.Now().UTC()
	res, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE reference_items SET kind = ?, code = ?, name = ?, value = ?, description = ?, active = ?, updated_at = ?
		WHERE id = ?`,
		ref.Kind, ref.Code, ref.Name, ref.Value, ref.Description, ref.Active, ref.UpdatedAt, ref.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: code %q already exists for kind %s", entity.ErrValidation, ref.Code, ref.Kind)
		}
		return fmt.Errorf("failed to update reference: %w", err)
	}
	return requireAffected(res, "reference", ref.ID)
}

func (r *ReferenceRepository) Delete(ctx context.Context, id int64) error {
	res, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM reference_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete reference: %w", err)
	}
	return requireAffected(res, "reference", id)
}

func scanReference(s rowScanner) (*entity.Reference, error) {
	var ref entity.Reference
	if err := s.Scan(&ref.ID, &ref.Kind, &ref.Code, &ref.Name, &ref.Value, &ref.Description,
		&ref.Active, &ref.CreatedAt, &ref.UpdatedAt); err != nil {
		return nil, err
	}
	return &ref, nil
}

var _ port.ReferenceRepository = (*ReferenceRepository)(nil)
