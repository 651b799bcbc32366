package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/contract-approvals/internal/application/port"
	"github.com/garyjia/contract-approvals/internal/application/workflow"
	"github.com/garyjia/contract-approvals/internal/domain/entity"
	"github.com/garyjia/contract-approvals/internal/domain/event"
	"github.com/garyjia/contract-approvals/internal/infrastructure/persistence/repository"
	"github.com/garyjia/contract-approvals/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/contract-approvals/pkg/database/dbtest"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, events ...*event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
}

func (p *recordingPublisher) types() []event.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]event.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// fixture wires the routing services against a migrated temp-file database
type fixture struct {
	t   *testing.T
	ctx context.Context
	now time.Time

	tx            *sqlite.DB
	contracts     port.ContractRepository
	history       port.ContractHistoryRepository
	approvals     port.ApprovalRepository
	workflows     port.WorkflowRepository
	rules         port.WorkflowRuleRepository
	roles         port.RoleRepository
	users         port.UserRepository
	delegations   port.DelegationRepository
	notifications port.NotificationRepository
	references    port.ReferenceRepository
	documents     port.DocumentRepository
	aiSettings    port.AISettingsRepository
	chats         port.ChatHistoryRepository

	publisher  *recordingPublisher
	directory  DirectoryService
	router     ApprovalRouter
	contractsS ContractService
	escalation EscalationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := dbtest.Open(t)
	logger := zap.NewNop()
	f := &fixture{
		t:             t,
		ctx:           context.Background(),
		now:           time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		tx:            sqlite.NewDB(db.DB, logger),
		contracts:     repository.NewContractRepository(db.DB, logger),
		history:       repository.NewContractHistoryRepository(db.DB, logger),
		approvals:     repository.NewApprovalRepository(db.DB, logger),
		workflows:     repository.NewWorkflowRepository(db.DB, logger),
		rules:         repository.NewWorkflowRuleRepository(db.DB, logger),
		roles:         repository.NewRoleRepository(db.DB, logger),
		users:         repository.NewUserRepository(db.DB, logger),
		delegations:   repository.NewDelegationRepository(db.DB, logger),
		notifications: repository.NewNotificationRepository(db.DB, logger),
		references:    repository.NewReferenceRepository(db.DB, logger),
		documents:     repository.NewDocumentRepository(db.DB, logger),
		aiSettings:    repository.NewAISettingsRepository(db.DB, logger),
		chats:         repository.NewChatHistoryRepository(db.DB, logger),
		publisher:     &recordingPublisher{},
	}

	clock := func() time.Time { return f.now }
	engine := workflow.NewEngine(f.contracts, f.history, f.tx, nopLogger{},
		workflow.WithClock(clock), workflow.WithApprovals(f.approvals))

	f.directory = NewDirectoryService(f.users, f.roles, repository.NewDepartmentRepository(db.DB, logger), f.delegations, nopLogger{})
	f.router = NewApprovalRouter(
		f.contracts, f.approvals, f.workflows, f.rules, f.users, f.notifications,
		f.directory, engine, f.tx, f.publisher, nopLogger{}, WithClock(clock),
	)
	f.contractsS = NewContractService(
		f.contracts, f.history, f.approvals, f.references, engine, f.tx, f.publisher, nopLogger{}, WithClock(clock),
	)
	f.escalation = NewEscalationService(
		f.approvals, f.contracts, f.notifications, f.tx, f.publisher, nopLogger{}, WithClock(clock),
	)
	return f
}

func (f *fixture) role(name string) int64 {
	f.t.Helper()
	r := &entity.Role{Name: name}
	require.NoError(f.t, f.roles.Create(f.ctx, r))
	return r.ID
}

func (f *fixture) user(name string, roleID int64) int64 {
	f.t.Helper()
	u := &entity.User{Name: name, Active: true}
	if roleID != 0 {
		u.RoleID = &roleID
	}
	require.NoError(f.t, f.users.Create(f.ctx, u))
	return u.ID
}

func (f *fixture) workflow(name string, steps ...entity.WorkflowStep) int64 {
	f.t.Helper()
	wf := &entity.WorkflowDefinition{Name: name, Status: entity.WorkflowStatusActive, Steps: steps}
	require.NoError(f.t, wf.Validate())
	require.NoError(f.t, f.workflows.Create(f.ctx, wf))
	return wf.ID
}

func (f *fixture) contract(initiatorID int64, amount float64, kind string) *entity.Contract {
	f.t.Helper()
	c := &entity.Contract{
		Title:       "Поставка оборудования",
		Amount:      amount,
		Currency:    "RUB",
		Type:        kind,
		InitiatorID: initiatorID,
	}
	require.NoError(f.t, f.contractsS.Create(f.ctx, c, &initiatorID))
	return c
}

func (f *fixture) activeApprovals(contractID int64) []*entity.Approval {
	f.t.Helper()
	list, err := f.approvals.ListActiveByContract(f.ctx, contractID)
	require.NoError(f.t, err)
	return list
}

func (f *fixture) pendingAt(contractID int64, step int) []*entity.Approval {
	f.t.Helper()
	var out []*entity.Approval
	for _, a := range f.activeApprovals(contractID) {
		if a.StepNumber == step && a.Status == entity.ApprovalStatusPending {
			out = append(out, a)
		}
	}
	return out
}

func (f *fixture) status(contractID int64) string {
	f.t.Helper()
	c, err := f.contracts.GetByID(f.ctx, contractID)
	require.NoError(f.t, err)
	return c.Status
}

func (f *fixture) notificationsOf(userID int64, kind string) []*entity.Notification {
	f.t.Helper()
	list, err := f.notifications.List(f.ctx, entity.NotificationFilter{UserID: userID})
	require.NoError(f.t, err)
	var out []*entity.Notification
	for _, n := range list {
		if kind == "" || n.Type == kind {
			out = append(out, n)
		}
	}
	return out
}

func (f *fixture) approve(approvalID int64) *RoutingResult {
	f.t.Helper()
	res, err := f.router.RecordDecision(f.ctx, DecisionRequest{
		ApprovalID: approvalID,
		Status:     entity.ApprovalStatusApproved,
		Comment:    "ok",
	})
	require.NoError(f.t, err)
	return res
}

func roleStep(order int, name string, roleID int64) entity.WorkflowStep {
	return entity.WorkflowStep{
		Order:    order,
		Name:     name,
		Type:     entity.StepTypeApproval,
		RoleID:   &roleID,
		Required: true,
		DueDays:  entity.IntPtr(3),
	}
}
