package port

import (
	"context"
	"time"

	"github.com/garyjia/contract-approvals/internal/domain/entity"
)

// Repositories return entity.ErrNotFound for missing rows.

// ContractRepository defines persistence operations for Contract
type ContractRepository interface {
	Create(ctx context.Context, contract *entity.Contract) error
	GetByID(ctx context.Context, id int64) (*entity.Contract, error)
	List(ctx context.Context, filter entity.ContractFilter) ([]*entity.Contract, error)
	Update(ctx context.Context, contract *entity.Contract) error
	UpdateStatus(ctx context.Context, id int64, status string) error
	SetWorkflow(ctx context.Context, id int64, workflowID int64) error
	Delete(ctx context.Context, id int64) error

	// MaxNumberWithPrefix returns the greatest contract number starting with prefix, or ""
	MaxNumberWithPrefix(ctx context.Context, prefix string) (string, error)

	// ListUnrouted returns DRAFT contracts that have no approval rows
	ListUnrouted(ctx context.Context) ([]*entity.Contract, error)
}

// ContractHistoryRepository defines persistence operations for ContractHistory
type ContractHistoryRepository interface {
	Create(ctx context.Context, h *entity.ContractHistory) error
	ListByContract(ctx context.Context, contractID int64) ([]*entity.ContractHistory, error)
}

// ReferenceRepository defines persistence operations for Reference
type ReferenceRepository interface {
	Create(ctx context.Context, ref *entity.Reference) error
	GetByID(ctx context.Context, id int64) (*entity.Reference, error)
	GetByCode(ctx context.Context, kind, code string) (*entity.Reference, error)
	List(ctx context.Context, filter entity.ReferenceFilter) ([]*entity.Reference, error)
	Update(ctx context.Context, ref *entity.Reference) error
	Delete(ctx context.Context, id int64) error
}

// RoleRepository defines persistence operations for Role
type RoleRepository interface {
	Create(ctx context.Context, role *entity.Role) error
	GetByID(ctx context.Context, id int64) (*entity.Role, error)
	List(ctx context.Context) ([]*entity.Role, error)
}

// UserRepository defines persistence operations for User
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	List(ctx context.Context, filter entity.UserFilter) ([]*entity.User, error)
	Update(ctx context.Context, user *entity.User) error
	SetActive(ctx context.Context, id int64, active bool) error
}

// DepartmentRepository defines persistence operations for Department
type DepartmentRepository interface {
	Create(ctx context.Context, dept *entity.Department) error
	GetByID(ctx context.Context, id int64) (*entity.Department, error)
	List(ctx context.Context) ([]*entity.Department, error)
	Update(ctx context.Context, dept *entity.Department) error
	Delete(ctx context.Context, id int64) error
}

// DelegationRepository defines persistence operations for DelegationRule
type DelegationRepository interface {
	Create(ctx context.Context, rule *entity.DelegationRule) error
	GetByID(ctx context.Context, id int64) (*entity.DelegationRule, error)
	List(ctx context.Context, activeOnly bool) ([]*entity.DelegationRule, error)
	Deactivate(ctx context.Context, id int64) error

	// FindActive returns the earliest-created active rule for fromUserID covering at
	FindActive(ctx context.Context, fromUserID int64, at time.Time) (*entity.DelegationRule, error)
}

// WorkflowRepository defines persistence operations for WorkflowDefinition and its steps
type WorkflowRepository interface {
	Create(ctx context.Context, wf *entity.WorkflowDefinition) error
	GetByID(ctx context.Context, id int64) (*entity.WorkflowDefinition, error)
	GetByName(ctx context.Context, name string) (*entity.WorkflowDefinition, error)
	List(ctx context.Context) ([]*entity.WorkflowDefinition, error)

	// Update replaces the definition fields and its full step list
	Update(ctx context.Context, wf *entity.WorkflowDefinition) error
	Delete(ctx context.Context, id int64) error
}

// WorkflowRuleRepository defines persistence operations for WorkflowRule
type WorkflowRuleRepository interface {
	Create(ctx context.Context, rule *entity.WorkflowRule) error
	List(ctx context.Context, activeOnly bool) ([]*entity.WorkflowRule, error)
	Delete(ctx context.Context, id int64) error
}

// ApprovalRepository defines persistence operations for Approval
type ApprovalRepository interface {
	// CreateIfAbsent inserts the approval unless a non-superseded row already exists
	// for (contract, approver, step). Returns false when the insert was ignored.
	CreateIfAbsent(ctx context.Context, approval *entity.Approval) (bool, error)

	GetByID(ctx context.Context, id int64) (*entity.Approval, error)
	List(ctx context.Context, filter entity.ApprovalFilter) ([]*entity.Approval, error)

	// ListActiveByContract returns non-superseded approvals of the current round
	// ordered by step then id
	ListActiveByContract(ctx context.Context, contractID int64) ([]*entity.Approval, error)

	// ListPendingDue returns PENDING approvals that carry a due date
	ListPendingDue(ctx context.Context) ([]*entity.Approval, error)

	// Decide moves a PENDING approval to status. Returns entity.ErrConflict if it
	// is no longer PENDING.
	Decide(ctx context.Context, id int64, status, comment string, at time.Time) error

	// SupersedePending marks PENDING approvals of the contract as SUPERSEDED.
	// A step of 0 means every step.
	SupersedePending(ctx context.Context, contractID int64, step int) (int64, error)

	// RetireAll closes the contract's current approval round: PENDING rows are
	// superseded and every row is stamped retired. Decisions are preserved.
	RetireAll(ctx context.Context, contractID int64, at time.Time) (int64, error)

	// Escalate sets the new due date and the escalated flag on a PENDING approval
	Escalate(ctx context.Context, id int64, due time.Time) error
}

// NotificationRepository defines persistence operations for Notification, which
// also serves as the delivery outbox
type NotificationRepository interface {
	// Create inserts the notification. A non-empty DedupKey that already exists
	// makes this a no-op returning false.
	Create(ctx context.Context, n *entity.Notification) (bool, error)

	GetByID(ctx context.Context, id int64) (*entity.Notification, error)
	List(ctx context.Context, filter entity.NotificationFilter) ([]*entity.Notification, error)
	CountUnread(ctx context.Context, userID int64) (int, error)
	MarkRead(ctx context.Context, id int64) error
	MarkAllRead(ctx context.Context, userID int64) (int64, error)

	// ListUndelivered returns PENDING or FAILED rows below maxAttempts, oldest first
	ListUndelivered(ctx context.Context, maxAttempts, limit int) ([]*entity.Notification, error)
	MarkDelivered(ctx context.Context, id int64, at time.Time) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
	MarkSkipped(ctx context.Context, id int64, reason string) error
}

// DocumentRepository defines persistence operations for Document
type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) error
	GetByID(ctx context.Context, id int64) (*entity.Document, error)
	List(ctx context.Context, contractID int64) ([]*entity.Document, error)
	Delete(ctx context.Context, id int64) error
}

// ChatHistoryRepository defines persistence operations for assistant conversations
type ChatHistoryRepository interface {
	Create(ctx context.Context, entry *entity.ChatHistoryEntry) error
	List(ctx context.Context, filter entity.ChatHistoryFilter) ([]*entity.ChatHistoryEntry, error)
	Delete(ctx context.Context, filter entity.ChatHistoryFilter) (int64, error)
}

// AISettingsRepository stores the single assistant settings row
type AISettingsRepository interface {
	Get(ctx context.Context) (*entity.AISettings, error)
	Save(ctx context.Context, settings *entity.AISettings) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
