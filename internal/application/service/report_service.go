package service

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/garyjia/contract-approvals/internal/application/port"
	"github.com/garyjia/contract-approvals/internal/domain/entity"
)

const reportsDir = "reports"

// ReportService renders the contract registry workbook
type ReportService interface {
	// GenerateRegistry writes an .xlsx registry and returns its absolute path
	GenerateRegistry(ctx context.Context, filter entity.ContractFilter) (string, error)
}

type reportServiceImpl struct {
	contracts port.ContractRepository
	approvals port.ApprovalRepository
	storage   port.FileStorage
	writer    port.RegistryWriter
	logger    Logger
	opts      options
}

// NewReportService creates a new ReportService
func NewReportService(
	contracts port.ContractRepository,
	approvals port.ApprovalRepository,
	storage port.FileStorage,
	writer port.RegistryWriter,
	logger Logger,
	opts ...Option,
) ReportService {
	return &reportServiceImpl{
		contracts: contracts,
		approvals: approvals,
		storage:   storage,
		writer:    writer,
		logger:    logger,
		opts:      buildOptions(opts),
	}
}

func (s *reportServiceImpl) GenerateRegistry(ctx context.Context, filter entity.ContractFilter) (string, error) {
	contracts, err := s.contracts.List(ctx, filter)
	if err != nil {
		return "", fmt.Errorf("list contracts: %w", err)
	}

	var approvals []*entity.Approval
	for _, c := range contracts {
		rows, err := s.approvals.List(ctx, entity.ApprovalFilter{ContractID: c.ID})
		if err != nil {
			return "", fmt.Errorf("list approvals of contract %d: %w", c.ID, err)
		}
		approvals = append(approvals, rows...)
	}

	dir, err := s.storage.EnsureDir(ctx, reportsDir)
	if err != nil {
		return "", fmt.Errorf("prepare reports directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("contract_registry_%s.xlsx", s.opts.now().Format("20060102_150405")))

	if err := s.writer.Write(ctx, path, contracts, approvals); err != nil {
		s.logger.Error("Failed to write registry", "error", err, "path", path)
		return "", err
	}

	s.logger.Info("Contract registry generated",
		"path", path,
		"contracts", len(contracts),
		"approvals", len(approvals),
	)
	return path, nil
}
