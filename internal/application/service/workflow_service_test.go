package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/contract-approvals/internal/domain/entity"
)

const seedYAML = `
roles: [MANAGER, FINANCE, CEO, LEGAL]
workflows:
  - name: Стандартный маршрут
    description: Default three-step approval
    steps:
      - {order: 1, name: Руководитель, role: MANAGER, due_days: 3}
      - {order: 2, name: Финансы, role: FINANCE, due_days: 3}
      - {order: 3, name: Генеральный директор, role: CEO, due_days: 3}
    rules:
      - {name: default, priority: 1}
  - name: Крупные сделки
    steps:
      - order: 1
        name: Finance and legal
        parallel_roles: [FINANCE, LEGAL]
        parallel_mode: any
      - order: 2
        name: Large only
        type: condition
        condition: {min_amount: 5000000}
      - {order: 3, name: CEO, role: CEO, required: false}
    rules:
      - {name: large, min_amount: 1000000, priority: 10}
`

func newWorkflowService(f *fixture) WorkflowDefinitionService {
	return NewWorkflowDefinitionService(f.workflows, f.rules, f.roles, f.users, f.tx, nopLogger{})
}

func TestWorkflowDefinitionService_Seed(t *testing.T) {
	f := newFixture(t)
	f.role("MANAGER")
	svc := newWorkflowService(f)

	result, err := svc.Seed(f.ctx, strings.NewReader(seedYAML))
	require.NoError(t, err)
	assert.Equal(t, &SeedResult{RolesCreated: 3, WorkflowsCreated: 2, RulesCreated: 2}, result)

	workflows, err := svc.List(f.ctx)
	require.NoError(t, err)
	require.Len(t, workflows, 2)

	standard := workflows[0]
	assert.Equal(t, "Стандартный маршрут", standard.Name)
	assert.Equal(t, entity.WorkflowStatusActive, standard.Status)
	require.Len(t, standard.Steps, 3)
	assert.True(t, standard.Steps[0].Required)
	assert.Equal(t, entity.StepTypeApproval, standard.Steps[0].Type)

	large := workflows[1]
	require.Len(t, large.Steps, 3)
	assert.True(t, large.Steps[0].IsParallel)
	assert.Len(t, large.Steps[0].ParallelRoleIDs, 2)
	assert.Equal(t, entity.ParallelModeAny, large.Steps[0].ParallelMode)
	assert.Equal(t, entity.StepTypeCondition, large.Steps[1].Type)
	assert.False(t, large.Steps[2].Required)

	again, err := svc.Seed(f.ctx, strings.NewReader(seedYAML))
	require.NoError(t, err)
	assert.Equal(t, &SeedResult{WorkflowsSkipped: 2}, again)
}

func TestWorkflowDefinitionService_SeedRoutesContracts(t *testing.T) {
	f := newFixture(t)
	svc := newWorkflowService(f)
	_, err := svc.Seed(f.ctx, strings.NewReader(seedYAML))
	require.NoError(t, err)

	roles, err := f.roles.List(f.ctx)
	require.NoError(t, err)
	for _, r := range roles {
		f.user(r.Name+" user", r.ID)
	}
	initiator := f.user("Initiator", 0)

	c := f.contract(initiator, 500000, "SUPPLY")
	report, err := f.router.AutoAssignApprovers(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Routed)

	pending := f.pendingAt(c.ID, 1)
	require.Len(t, pending, 1)
	assert.True(t, f.now.AddDate(0, 0, 3).Equal(*pending[0].DueDate))

	f.approve(pending[0].ID)
	report, err = f.router.AutoAssignApprovers(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Created)
	assert.Len(t, f.pendingAt(c.ID, 2), 1)
}

func TestWorkflowDefinitionService_SeedRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	svc := newWorkflowService(f)

	_, err := svc.Seed(f.ctx, strings.NewReader("workflows: [oops"))
	assert.ErrorIs(t, err, entity.ErrValidation)

	// a gap in step orders rolls back the whole seed, roles included
	_, err = svc.Seed(f.ctx, strings.NewReader(`
workflows:
  - name: broken
    steps:
      - {order: 1, name: a, role: MANAGER}
      - {order: 3, name: b, role: MANAGER}
`))
	assert.ErrorIs(t, err, entity.ErrValidation)
	roles, err := f.roles.List(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, roles)

	result, err := svc.Seed(f.ctx, strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, &SeedResult{}, result)
}

func TestWorkflowDefinitionService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	svc := newWorkflowService(f)
	manager := f.role("MANAGER")
	missing := int64(999)

	tests := []struct {
		name string
		wf   entity.WorkflowDefinition
	}{
		{"missing name", entity.WorkflowDefinition{Steps: []entity.WorkflowStep{roleStep(1, "a", manager)}}},
		{"unknown role", entity.WorkflowDefinition{Name: "x", Steps: []entity.WorkflowStep{roleStep(1, "a", missing)}}},
		{"unknown approver", entity.WorkflowDefinition{Name: "x", Steps: []entity.WorkflowStep{
			{Order: 1, Name: "a", Type: entity.StepTypeApproval, ApproverID: &missing},
		}}},
		{"bad type", entity.WorkflowDefinition{Name: "x", Steps: []entity.WorkflowStep{{Order: 1, Name: "a", Type: "VOTE"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf := tt.wf
			assert.ErrorIs(t, svc.Create(f.ctx, &wf), entity.ErrValidation)
		})
	}

	wf := &entity.WorkflowDefinition{Name: "draft", Steps: []entity.WorkflowStep{
		{Order: 1, Name: "Manager", Type: "approval", RoleID: &manager, Required: true},
	}}
	require.NoError(t, svc.Create(f.ctx, wf))
	assert.Equal(t, entity.WorkflowStatusDraft, wf.Status)
	require.NotNil(t, wf.Steps[0].DueDays)
	assert.Equal(t, entity.DefaultStepDueDays, *wf.Steps[0].DueDays)

	sameDay := &entity.WorkflowDefinition{Name: "same day", Steps: []entity.WorkflowStep{
		{Order: 1, Name: "Manager", Type: "approval", RoleID: &manager, Required: true, DueDays: entity.IntPtr(0)},
	}}
	require.NoError(t, svc.Create(f.ctx, sameDay))
	stored, err := svc.Get(f.ctx, sameDay.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Steps[0].DueDays)
	assert.Equal(t, 0, *stored.Steps[0].DueDays)

	assert.ErrorIs(t, svc.CreateRule(f.ctx, &entity.WorkflowRule{Name: "r", WorkflowID: missing}), entity.ErrValidation)
	assert.ErrorIs(t, svc.CreateRule(f.ctx, &entity.WorkflowRule{
		Name: "r", WorkflowID: wf.ID, MinAmount: entity.Float64Ptr(10), MaxAmount: entity.Float64Ptr(1),
	}), entity.ErrValidation)
}
