package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/garyjia/contract-approvals/internal/application/port"
	"github.com/garyjia/contract-approvals/internal/domain/entity"
)

// ReferenceService manages generic lookup records
type ReferenceService interface {
	List(ctx context.Context, filter entity.ReferenceFilter) ([]*entity.Reference, error)
	Get(ctx context.Context, id int64) (*entity.Reference, error)
	Create(ctx context.Context, ref *entity.Reference) error
	Update(ctx context.Context, ref *entity.Reference) error
	Delete(ctx context.Context, id int64) error
}

type referenceServiceImpl struct {
	repo   port.ReferenceRepository
	logger Logger
}

// NewReferenceService creates a new ReferenceService
func NewReferenceService(repo port.ReferenceRepository, logger Logger) ReferenceService {
	return &referenceServiceImpl{repo: repo, logger: logger}
}

func (s *referenceServiceImpl) List(ctx context.Context, filter entity.ReferenceFilter) ([]*entity.Reference, error) {
	filter.Kind = strings.ToUpper(strings.TrimSpace(filter.Kind))
	return s.repo.List(ctx, filter)
}

func (s *referenceServiceImpl) Get(ctx context.Context, id int64) (*entity.Reference, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *referenceServiceImpl) Create(ctx context.Context, ref *entity.Reference) error {
	if err := normalizeReference(ref); err != nil {
		return err
	}
	if err := s.checkCodeFree(ctx, ref); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, ref); err != nil {
		s.logger.Error("Failed to create reference", "error", err, "kind", ref.Kind)
		return err
	}
	s.logger.Info("Reference created", "id", ref.ID, "kind", ref.Kind, "code", ref.Code)
	return nil
}

func (s *referenceServiceImpl) Update(ctx context.Context, ref *entity.Reference) error {
	if err := normalizeReference(ref); err != nil {
		return err
	}
	if _, err := s.repo.GetByID(ctx, ref.ID); err != nil {
		return err
	}
	if err := s.checkCodeFree(ctx, ref); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, ref); err != nil {
		s.logger.Error("Failed to update reference", "error", err, "id", ref.ID)
		return err
	}
	return nil
}

func (s *referenceServiceImpl) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Reference deleted", "id", id)
	return nil
}

// checkCodeFree rejects a code already used by another record of the same kind
func (s *referenceServiceImpl) checkCodeFree(ctx context.Context, ref *entity.Reference) error {
	if ref.Code == "" {
		return nil
	}
	existing, err := s.repo.GetByCode(ctx, ref.Kind, ref.Code)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil
		}
		return err
	}
	if existing.ID != ref.ID {
		return fmt.Errorf("%w: code %q already exists for kind %s", entity.ErrValidation, ref.Code, ref.Kind)
	}
	return nil
}

func normalizeReference(ref *entity.Reference) error {
	ref.Kind = strings.ToUpper(strings.TrimSpace(ref.Kind))
	ref.Name = strings.TrimSpace(ref.Name)
	ref.Code = strings.TrimSpace(ref.Code)
	if ref.Kind == "" {
		return fmt.Errorf("%w: kind is required", entity.ErrValidation)
	}
	if ref.Name == "" {
		return fmt.Errorf("%w: name is required", entity.ErrValidation)
	}
	return nil
}
