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

const contractColumns = `id, number, title, counterparty_id, counterparty, amount, currency,
	contract_type, status, due_date, initiator_id, department_id, workflow_id, created_at, updated_at`

// ContractRepository implements port.ContractRepository
type ContractRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewContractRepository creates a new contract repository
func NewContractRepository(db *sql.DB, logger *zap.Logger) port.ContractRepository {
	return &ContractRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new contract
func (r *ContractRepository) Create(ctx context.Context, c *entity.Contract) error {
	query := `
		INSERT INTO contracts (
			number, title, counterparty_id, counterparty, amount, currency,
			contract_type, status, due_date, initiator_id, department_id, workflow_id,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		c.Number, c.Title, nullInt64(c.CounterpartyID), c.Counterparty, c.Amount, c.Currency,
		c.Type, c.Status, nullTime(c.DueDate), c.InitiatorID, nullInt64(c.DepartmentID), nullInt64(c.WorkflowID),
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: contract number %q already exists", entity.ErrValidation, c.Number)
		}
		r.logger.Error("Failed to create contract", zap.String("number", c.Number), zap.Error(err))
		return fmt.Errorf("failed to create contract: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	c.ID = id
	return nil
}

// GetByID retrieves a contract by ID
func (r *ContractRepository) GetByID(ctx context.Context, id int64) (*entity.Contract, error) {
	row := sqlite.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+contractColumns+` FROM contracts WHERE id = ?`, id)
	c, err := scanContract(row)
	if err != nil {
		return nil, wrapNotFound(err, "contract", id)
	}
	return c, nil
}

// List returns contracts matching the filter, newest first
func (r *ContractRepository) List(ctx context.Context, filter entity.ContractFilter) ([]*entity.Contract, error) {
	var w where
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}
	if filter.InitiatorID > 0 {
		w.add("initiator_id = ?", filter.InitiatorID)
	}
	if filter.CounterpartyID > 0 {
		w.add("counterparty_id = ?", filter.CounterpartyID)
	}

	query := `SELECT ` + contractColumns + ` FROM contracts` + w.String() + ` ORDER BY created_at DESC, id DESC`
	args := w.args
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}
	return r.query(ctx, query, args...)
}

// ListUnrouted returns DRAFT contracts without approval rows, oldest first
func (r *ContractRepository) ListUnrouted(ctx context.Context) ([]*entity.Contract, error) {
	return r.query(ctx, `
		SELECT `+contractColumns+` FROM contracts c
		WHERE c.status = ?
		  AND NOT EXISTS (SELECT 1 FROM approvals a WHERE a.contract_id = c.id AND a.status != ? AND a.retired_at IS NULL)
		ORDER BY c.id`,
		entity.ContractStatusDraft, entity.ApprovalStatusSuperseded)
}

func (r *ContractRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.Contract, error) {
	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query contracts", zap.Error(err))
		return nil, fmt.Errorf("failed to query contracts: %w", err)
	}
	defer rows.Close()

	var out []*entity.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contract: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Update writes the editable fields of a contract
func (r *ContractRepository) Update(ctx context.Context, c *entity.Contract) error {
	c.UpdatedAt = time.Now().UTC()
	res, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE contracts SET
			title = ?, counterparty_id = ?, counterparty = ?, amount = ?, currency = ?,
			contract_type = ?, due_date = ?, department_id = ?, workflow_id = ?, updated_at = ?
		WHERE id = ?`,
		c.Title, nullInt64(c.CounterpartyID), c.Counterparty, c.Amount, c.Currency,
		c.Type, nullTime(c.DueDate), nullInt64(c.DepartmentID), nullInt64(c.WorkflowID), c.UpdatedAt,
		c.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update contract", zap.Int64("id", c.ID), zap.Error(err))
		return fmt.Errorf("failed to update contract: %w", err)
	}
	return requireAffected(res, "contract", c.ID)
}

// UpdateStatus sets the contract status
func (r *ContractRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	res, err := sqlite.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE contracts SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to update contract status",
			zap.Int64("id", id),
			zap.String("status", status),
			zap.Error(err))
		return fmt.Errorf("failed to update contract status: %w", err)
	}
	return requireAffected(res, "contract", id)
}

// SetWorkflow records the workflow a contract was routed through
func (r *ContractRepository) SetWorkflow(ctx context.Context, id int64, workflowID int64) error {
	res, err := sqlite.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE contracts SET workflow_id = ?, updated_at = ? WHERE id = ?`,
		workflowID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set contract workflow: %w", err)
	}
	return requireAffected(res, "contract", id)
}

// Delete removes a contract and, by cascade, its approvals and history
func (r *ContractRepository) Delete(ctx context.Context, id int64) error {
	res, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM contracts WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete contract", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete contract: %w", err)
	}
	return requireAffected(res, "contract", id)
}

// MaxNumberWithPrefix returns the lexically greatest number with the prefix
func (r *ContractRepository) MaxNumberWithPrefix(ctx context.Context, prefix string) (string, error) {
	var maxNumber sql.NullString
	err := sqlite.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT MAX(number) FROM contracts WHERE substr(number, 1, ?) = ?`,
		len(prefix), prefix).Scan(&maxNumber)
	if err != nil {
		return "", fmt.Errorf("failed to query contract numbers: %w", err)
	}
	return maxNumber.String, nil
}

func scanContract(s rowScanner) (*entity.Contract, error) {
	var (
		c              entity.Contract
		counterpartyID sql.NullInt64
		departmentID   sql.NullInt64
		workflowID     sql.NullInt64
		dueDate        sql.NullTime
	)
	if err := s.Scan(
		&c.ID, &c.Number, &c.Title, &counterpartyID, &c.Counterparty, &c.Amount, &c.Currency,
		&c.Type, &c.Status, &dueDate, &c.InitiatorID, &departmentID, &workflowID,
		&c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.CounterpartyID = int64Ptr(counterpartyID)
	c.DepartmentID = int64Ptr(departmentID)
	c.WorkflowID = int64Ptr(workflowID)
	c.DueDate = timePtr(dueDate)
	return &c, nil
}

var _ port.ContractRepository = (*ContractRepository)(nil)
