package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/garyjia/contract-approvals/internal/application/port"
	"github.com/garyjia/contract-approvals/internal/domain/entity"
	"github.com/garyjia/contract-approvals/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// WorkflowRepository implements port.WorkflowRepository. Steps live in their own
// table and are always written together with the definition.
type WorkflowRepository struct {
	db     *sql.DB
	tx     *sqlite.DB
	logger *zap.Logger
}

// NewWorkflowRepository creates a new workflow repository
func NewWorkflowRepository(db *sql.DB, logger *zap.Logger) port.WorkflowRepository {
	return &WorkflowRepository{db: db, tx: sqlite.NewDB(db, logger), logger: logger}
}

func (r *WorkflowRepository) Create(ctx context.Context, wf *entity.WorkflowDefinition) error {
	now := time.Now().UTC()
	wf.CreatedAt, wf.UpdatedAt = now, now

	return r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
			INSERT INTO workflow_definitions (name, description, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)`,
			wf.Name, wf.Description, wf.Status, wf.CreatedAt, wf.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: workflow %q already exists", entity.ErrValidation, wf.Name)
			}
			r.logger.Error("Failed to create workflow", zap.String("name", wf.Name), zap.Error(err))
			return fmt.Errorf("failed to create workflow: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		wf.ID = id
		return r.insertSteps(ctx, wf)
	})
}

func (r *WorkflowRepository) insertSteps(ctx context.Context, wf *entity.WorkflowDefinition) error {
	for i := range wf.Steps {
		s := &wf.Steps[i]
		roles, err := json.Marshal(s.ParallelRoleIDs)
		if err != nil {
			return fmt.Errorf("failed to encode parallel roles: %w", err)
		}
		var cond interface{}
		if s.Condition != nil {
			b, err := json.Marshal(s.Condition)
			if err != nil {
				return fmt.Errorf("failed to encode step condition: %w", err)
			}
			cond = string(b)
		}
		if s.ParallelRoleIDs == nil {
			roles = []byte("[]")
		}

		result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
			INSERT INTO workflow_steps (
				workflow_id, step_order, name, step_type, role_id, approver_id, required,
				due_days, is_parallel, parallel_role_ids, parallel_mode, condition_json
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			wf.ID, s.Order, s.Name, s.Type, nullInt64(s.RoleID), nullInt64(s.ApproverID), s.Required,
			s.EffectiveDueDays(), s.IsParallel, string(roles), s.ParallelMode, cond,
		)
		if err != nil {
			return fmt.Errorf("failed to insert workflow step %d: %w", s.Order, err)
		}
		if s.ID, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
	}
	return nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id int64) (*entity.WorkflowDefinition, error) {
	return r.getOne(ctx, `WHERE id = ?`, id)
}

func (r *WorkflowRepository) GetByName(ctx context.Context, name string) (*entity.WorkflowDefinition, error) {
	return r.getOne(ctx, `WHERE name = ?`, name)
}

func (r *WorkflowRepository) getOne(ctx context.Context, clause string, arg interface{}) (*entity.WorkflowDefinition, error) {
	var wf entity.WorkflowDefinition
	err := sqlite.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT id, name, description, status, created_at, updated_at FROM workflow_definitions `+clause, arg).
		Scan(&wf.ID, &wf.Name, &wf.Description, &wf.Status, &wf.CreatedAt, &wf.UpdatedAt)
	if err != nil {
		return nil, wrapNotFound(err, "workflow", arg)
	}
	steps, err := r.loadSteps(ctx, wf.ID)
	if err != nil {
		return nil, err
	}
	wf.Steps = steps
	return &wf, nil
}

func (r *WorkflowRepository) List(ctx context.Context) ([]*entity.WorkflowDefinition, error) {
	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx,
		`SELECT id, name, description, status, created_at, updated_at FROM workflow_definitions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	var out []*entity.WorkflowDefinition
	for rows.Next() {
		var wf entity.WorkflowDefinition
		if err := rows.Scan(&wf.ID, &wf.Name, &wf.Description, &wf.Status, &wf.CreatedAt, &wf.UpdatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		out = append(out, &wf)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// steps are loaded after the cursor is closed; a transaction holds a single connection
	for _, wf := range out {
		if wf.Steps, err = r.loadSteps(ctx, wf.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *WorkflowRepository) loadSteps(ctx context.Context, workflowID int64) ([]entity.WorkflowStep, error) {
	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT id, step_order, name, step_type, role_id, approver_id, required, due_days,
			is_parallel, parallel_role_ids, parallel_mode, condition_json
		FROM workflow_steps WHERE workflow_id = ? ORDER BY step_order`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow steps: %w", err)
	}
	defer rows.Close()

	steps := []entity.WorkflowStep{}
	for rows.Next() {
		var (
			s            entity.WorkflowStep
			roleID       sql.NullInt64
			approverID   sql.NullInt64
			dueDays      int
			roles        string
			conditionRaw sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Order, &s.Name, &s.Type, &roleID, &approverID, &s.Required, &dueDays,
			&s.IsParallel, &roles, &s.ParallelMode, &conditionRaw); err != nil {
			return nil, fmt.Errorf("failed to scan workflow step: %w", err)
		}
		s.RoleID = int64Ptr(roleID)
		s.ApproverID = int64Ptr(approverID)
		s.DueDays = &dueDays
		if err := json.Unmarshal([]byte(roles), &s.ParallelRoleIDs); err != nil {
			return nil, fmt.Errorf("failed to decode parallel roles of step %d: %w", s.Order, err)
		}
		if len(s.ParallelRoleIDs) == 0 {
			s.ParallelRoleIDs = nil
		}
		if conditionRaw.Valid && conditionRaw.String != "" {
			var c entity.StepCondition
			if err := json.Unmarshal([]byte(conditionRaw.String), &c); err != nil {
				return nil, fmt.Errorf("failed to decode condition of step %d: %w", s.Order, err)
			}
			s.Condition = &c
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

// Update rewrites the definition and replaces all of its steps
func (r *WorkflowRepository) Update(ctx context.Context, wf *entity.WorkflowDefinition) error {
	wf.UpdatedAt = time.Now().UTC()
	return r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		res, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
			UPDATE workflow_definitions SET name = ?, description = ?, status = ?, updated_at = ? WHERE id = ?`,
			wf.Name, wf.Description, wf.Status, wf.UpdatedAt, wf.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: workflow %q already exists", entity.ErrValidation, wf.Name)
			}
			return fmt.Errorf("failed to update workflow: %w", err)
		}
		if err := requireAffected(res, "workflow", wf.ID); err != nil {
			return err
		}
		if _, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM workflow_steps WHERE workflow_id = ?`, wf.ID); err != nil {
			return fmt.Errorf("failed to clear workflow steps: %w", err)
		}
		return r.insertSteps(ctx, wf)
	})
}

func (r *WorkflowRepository) Delete(ctx context.Context, id int64) error {
	res, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM workflow_definitions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}
	return requireAffected(res, "workflow", id)
}

// WorkflowRuleRepository implements port.WorkflowRuleRepository
type WorkflowRuleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewWorkflowRuleRepository creates a new workflow rule repository
func NewWorkflowRuleRepository(db *sql.DB, logger *zap.Logger) port.WorkflowRuleRepository {
	return &WorkflowRuleRepository{db: db, logger: logger}
}

func (r *WorkflowRuleRepository) Create(ctx context.Context, rule *entity.WorkflowRule) error {
	rule.CreatedAt = time.Now().UTC()
	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO workflow_rules (name, workflow_id, contract_type, min_amount, max_amount, priority, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.Name, rule.WorkflowID, rule.ContractType, nullFloat(rule.MinAmount), nullFloat(rule.MaxAmount),
		rule.Priority, rule.Active, rule.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create workflow rule: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	rule.ID = id
	return nil
}

func (r *WorkflowRuleRepository) List(ctx context.Context, activeOnly bool) ([]*entity.WorkflowRule, error) {
	var w where
	if activeOnly {
		w.add("active = 1")
	}
	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT id, name, workflow_id, contract_type, min_amount, max_amount, priority, active, created_at
		FROM workflow_rules`+w.String()+` ORDER BY priority DESC, id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow rules: %w", err)
	}
	defer rows.Close()

	var out []*entity.WorkflowRule
	for rows.Next() {
		var rule entity.WorkflowRule
		var minAmount, maxAmount sql.NullFloat64
		if err := rows.Scan(&rule.ID, &rule.Name, &rule.WorkflowID, &rule.ContractType, &minAmount, &maxAmount,
			&rule.Priority, &rule.Active, &rule.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan workflow rule: %w", err)
		}
		rule.MinAmount = floatPtr(minAmount)
		rule.MaxAmount = floatPtr(maxAmount)
		out = append(out, &rule)
	}
	return out, rows.Err()
}

func (r *WorkflowRuleRepository) Delete(ctx context.Context, id int64) error {
	res, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM workflow_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow rule: %w", err)
	}
	return requireAffected(res, "workflow rule", id)
}

var (
	_ port.WorkflowRepository     = (*WorkflowRepository)(nil)
	_ port.WorkflowRuleRepository = (*WorkflowRuleRepository)(nil)
)
