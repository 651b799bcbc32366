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

const approvalColumns = `id, contract_id, workflow_id, approver_id, original_approver_id, step_number,
	status, due_date, comment, escalated, decided_at, retired_at, created_at, updated_at`

// ApprovalRepository implements port.ApprovalRepository
type ApprovalRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewApprovalRepository creates a new approval repository
func NewApprovalRepository(db *sql.DB, logger *zap.Logger) port.ApprovalRepository {
	return &ApprovalRepository{db: db, logger: logger}
}

// CreateIfAbsent relies on ux_approvals_active; a conflicting row leaves the table untouched
func (r *ApprovalRepository) CreateIfAbsent(ctx context.Context, a *entity.Approval) (bool, error) {
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = a.CreatedAt
	if a.Status == "" {
		a.Status = entity.ApprovalStatusPending
	}

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO approvals (
			contract_id, workflow_id, approver_id, original_approver_id, step_number,
			status, due_date, comment, escalated, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		a.ContractID, a.WorkflowID, a.ApproverID, nullInt64(a.OriginalApproverID), a.StepNumber,
		a.Status, nullTime(a.DueDate), a.Comment, a.Escalated, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create approval",
			zap.Int64("contract_id", a.ContractID),
			zap.Int64("approver_id", a.ApproverID),
			zap.Int("step", a.StepNumber),
			zap.Error(err))
		return false, fmt.Errorf("failed to create approval: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	if a.ID, err = result.LastInsertId(); err != nil {
		return false, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return true, nil
}

func (r *ApprovalRepository) GetByID(ctx context.Context, id int64) (*entity.Approval, error) {
	row := sqlite.Conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+approvalColumns+` FROM approvals WHERE id = ?`, id)
	a, err := scanApproval(row)
	if err != nil {
		return nil, wrapNotFound(err, "approval", id)
	}
	return a, nil
}

func (r *ApprovalRepository) List(ctx context.Context, filter entity.ApprovalFilter) ([]*entity.Approval, error) {
	var w where
	if filter.ContractID > 0 {
		w.add("contract_id = ?", filter.ContractID)
	}
	if filter.ApproverID > 0 {
		w.add("approver_id = ?", filter.ApproverID)
	}
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}
	return r.query(ctx, `SELECT `+approvalColumns+` FROM approvals`+w.String()+` ORDER BY contract_id, step_number, id`, w.args...)
}

func (r *ApprovalRepository) ListActiveByContract(ctx context.Context, contractID int64) ([]*entity.Approval, error) {
	return r.query(ctx, `SELECT `+approvalColumns+` FROM approvals
		WHERE contract_id = ? AND status != ? AND retired_at IS NULL ORDER BY step_number, id`,
		contractID, entity.ApprovalStatusSuperseded)
}

func (r *ApprovalRepository) ListPendingDue(ctx context.Context) ([]*entity.Approval, error) {
	return r.query(ctx, `SELECT `+approvalColumns+` FROM approvals
		WHERE status = ? AND due_date IS NOT NULL ORDER BY id`,
		entity.ApprovalStatusPending)
}

// Decide only touches PENDING rows, so a second decision can never overwrite the first
func (r *ApprovalRepository) Decide(ctx context.Context, id int64, status, comment string, at time.Time) error {
	res, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE approvals SET status = ?, comment = ?, decided_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		status, comment, at.UTC(), at.UTC(), id, entity.ApprovalStatusPending)
	if err != nil {
		r.logger.Error("Failed to record approval decision",
			zap.Int64("id", id),
			zap.String("status", status),
			zap.Error(err))
		return fmt.Errorf("failed to record decision: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("approval %d is no longer pending: %w", id, entity.ErrConflict)
	}
	return nil
}

func (r *ApprovalRepository) SupersedePending(ctx context.Context, contractID int64, step int) (int64, error) {
	query := `UPDATE approvals SET status = ?, updated_at = ? WHERE contract_id = ? AND status = ?`
	args := []interface{}{entity.ApprovalStatusSuperseded, time.Now().UTC(), contractID, entity.ApprovalStatusPending}
	if step > 0 {
		query += ` AND step_number = ?`
		args = append(args, step)
	}
	return r.exec(ctx, "supersede pending approvals", query, args...)
}

// RetireAll closes the contract's current round. PENDING rows become SUPERSEDED;
// decided rows keep their status.
func (r *ApprovalRepository) RetireAll(ctx context.Context, contractID int64, at time.Time) (int64, error) {
	at = at.UTC()
	if _, err := r.exec(ctx, "supersede pending approvals",
		`UPDATE approvals SET status = ?, updated_at = ? WHERE contract_id = ? AND status = ? AND retired_at IS NULL`,
		entity.ApprovalStatusSuperseded, at, contractID, entity.ApprovalStatusPending); err != nil {
		return 0, err
	}
	return r.exec(ctx, "retire approvals",
		`UPDATE approvals SET retired_at = ?, updated_at = ? WHERE contract_id = ? AND retired_at IS NULL`,
		at, at, contractID)
}

func (r *ApprovalRepository) Escalate(ctx context.Context, id int64, due time.Time) error {
	res, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE approvals SET due_date = ?, escalated = 1, updated_at = ? WHERE id = ? AND status = ?`,
		due.UTC(), time.Now().UTC(), id, entity.ApprovalStatusPending)
	if err != nil {
		return fmt.Errorf("failed to escalate approval: %w", err)
	}
	return requireAffected(res, "pending approval", id)
}

func (r *ApprovalRepository) exec(ctx context.Context, what, query string, args ...interface{}) (int64, error) {
	res, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to "+what, zap.Error(err))
		return 0, fmt.Errorf("failed to %s: %w", what, err)
	}
	return res.RowsAffected()
}

func (r *ApprovalRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.Approval, error) {
	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query approvals: %w", err)
	}
	defer rows.Close()

	var out []*entity.Approval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanApproval(s rowScanner) (*entity.Approval, error) {
	var (
		a         entity.Approval
		original  sql.NullInt64
		dueDate   sql.NullTime
		decidedAt sql.NullTime
		retiredAt sql.NullTime
	)
	if err := s.Scan(&a.ID, &a.ContractID, &a.WorkflowID, &a.ApproverID, &original, &a.StepNumber,
		&a.Status, &dueDate, &a.Comment, &a.Escalated, &decidedAt, &retiredAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.OriginalApproverID = int64Ptr(original)
	a.DueDate = timePtr(dueDate)
	a.DecidedAt = timePtr(decidedAt)
	a.RetiredAt = timePtr(retiredAt)
	return &a, nil
}

var _ port.ApprovalRepository = (*ApprovalRepository)(nil)
