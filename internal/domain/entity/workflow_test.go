package entity

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func standardRoute() *WorkflowDefinition {
	return &WorkflowDefinition{
		ID:     1,
		Name:   "Стандартный маршрут",
		Status: WorkflowStatusActive,
		Steps: []WorkflowStep{
			{Order: 1, Name: "Legal", Type: StepTypeApproval, RoleID: Int64Ptr(10), Required: true, DueDays: IntPtr(3)},
			{Order: 2, Name: "Finance", Type: StepTypeReview, RoleID: Int64Ptr(20), Required: true, DueDays: IntPtr(2)},
			{Order: 3, Name: "CEO", Type: StepTypeApproval, RoleID: Int64Ptr(30), Required: true, DueDays: IntPtr(1)},
		},
	}
}

func TestWorkflowDefinition_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(w *WorkflowDefinition)
		wantErr string
	}{
		{name: "valid", mutate: func(w *WorkflowDefinition) {}},
		{name: "missing name", mutate: func(w *WorkflowDefinition) { w.Name = "" }, wantErr: "name is required"},
		{name: "bad status", mutate: func(w *WorkflowDefinition) { w.Status = "PAUSED" }, wantErr: "invalid workflow status"},
		{name: "gap in orders", mutate: func(w *WorkflowDefinition) { w.Steps[2].Order = 5 }, wantErr: "contiguous"},
		{name: "no approver", mutate: func(w *WorkflowDefinition) { w.Steps[0].RoleID = nil }, wantErr: "needs a role or an approver"},
		{
			name: "parallel without roles",
			mutate: func(w *WorkflowDefinition) {
				w.Steps[1].IsParallel = true
			},
			wantErr: "needs at least one role",
		},
		{name: "unknown type", mutate: func(w *WorkflowDefinition) { w.Steps[0].Type = "VOTE" }, wantErr: "unknown type"},
		{name: "negative due days", mutate: func(w *WorkflowDefinition) { w.Steps[0].DueDays = IntPtr(-1) }, wantErr: "negative due days"},
		{name: "condition without rule", mutate: func(w *WorkflowDefinition) { w.Steps[1] = WorkflowStep{Order: 2, Type: StepTypeCondition} }, wantErr: "has no condition"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := standardRoute()
			tt.mutate(w)
			err := w.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWorkflowDefinition_NextActionable(t *testing.T) {
	contract := &Contract{Amount: 500000, Type: "SUPPLY"}

	w := standardRoute()
	next, passed := w.NextActionable(0, contract)
	require.NotNil(t, next)
	assert.Equal(t, 1, next.Order)
	assert.Empty(t, passed)

	next, _ = w.NextActionable(1, contract)
	require.NotNil(t, next)
	assert.Equal(t, 2, next.Order)

	next, _ = w.NextActionable(3, contract)
	assert.Nil(t, next)
}

func TestWorkflowDefinition_NextActionable_NotificationAndConditions(t *testing.T) {
	w := &WorkflowDefinition{
		Name:   "Large deals",
		Status: WorkflowStatusActive,
		Steps: []WorkflowStep{
			{Order: 1, Type: StepTypeNotification, Name: "Heads up"},
			{Order: 2, Type: StepTypeApproval, RoleID: Int64Ptr(1), Required: true},
			{Order: 3, Type: StepTypeCondition, Condition: &StepCondition{MinAmount: Float64Ptr(1000000)}},
			{Order: 4, Type: StepTypeApproval, RoleID: Int64Ptr(2), Required: true},
			{Order: 5, Type: StepTypeCondition, Condition: &StepCondition{}},
			{Order: 6, Type: StepTypeApproval, RoleID: Int64Ptr(3), Required: true,
				Condition: &StepCondition{ContractTypes: []string{"LEASE"}}},
			{Order: 7, Type: StepTypeReview, RoleID: Int64Ptr(4)},
		},
	}
	require.NoError(t, w.Validate())

	small := &Contract{Amount: 500000, Type: "SUPPLY"}
	next, passed := w.NextActionable(0, small)
	require.NotNil(t, next)
	assert.Equal(t, 2, next.Order)
	require.Len(t, passed, 1)
	assert.Equal(t, 1, passed[0].Order)

	// step 4 is gated off, step 6 does not match the type
	next, _ = w.NextActionable(2, small)
	require.NotNil(t, next)
	assert.Equal(t, 7, next.Order)

	large := &Contract{Amount: 2000000, Type: "LEASE"}
	next, _ = w.NextActionable(2, large)
	require.NotNil(t, next)
	assert.Equal(t, 4, next.Order)
	next, _ = w.NextActionable(4, large)
	require.NotNil(t, next)
	assert.Equal(t, 6, next.Order)
}

func TestWorkflowStep_Outcome(t *testing.T) {
	a := func(status string) *Approval { return &Approval{Status: status} }

	tests := []struct {
		name      string
		step      WorkflowStep
		approvals []*Approval
		want      StepOutcome
	}{
		{"all pending", WorkflowStep{Required: true}, []*Approval{a(ApprovalStatusPending)}, StepOutcomePending},
		{"all approved", WorkflowStep{Required: true}, []*Approval{a(ApprovalStatusApproved), a(ApprovalStatusApproved)}, StepOutcomeApproved},
		{"all mode one left", WorkflowStep{Required: true}, []*Approval{a(ApprovalStatusApproved), a(ApprovalStatusPending)}, StepOutcomePending},
		{"required rejected", WorkflowStep{Required: true}, []*Approval{a(ApprovalStatusRejected), a(ApprovalStatusPending)}, StepOutcomeRejected},
		{"optional rejected resolves", WorkflowStep{Required: false}, []*Approval{a(ApprovalStatusRejected), a(ApprovalStatusApproved)}, StepOutcomeApproved},
		{"superseded ignored", WorkflowStep{Required: true}, []*Approval{a(ApprovalStatusSuperseded), a(ApprovalStatusApproved)}, StepOutcomeApproved},
		{"any mode first approval", WorkflowStep{Required: true, ParallelMode: ParallelModeAny}, []*Approval{a(ApprovalStatusApproved), a(ApprovalStatusPending)}, StepOutcomeApproved},
		{"any mode rejection waits", WorkflowStep{Required: true, ParallelMode: ParallelModeAny}, []*Approval{a(ApprovalStatusRejected), a(ApprovalStatusPending)}, StepOutcomePending},
		{"any mode all rejected", WorkflowStep{Required: true, ParallelMode: ParallelModeAny}, []*Approval{a(ApprovalStatusRejected), a(ApprovalStatusRejected)}, StepOutcomeRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.step.Outcome(tt.approvals))
		})
	}
}

func TestSelectRule(t *testing.T) {
	rules := []*WorkflowRule{
		{ID: 1, WorkflowID: 100, Active: true, Priority: 1},
		{ID: 2, WorkflowID: 200, Active: true, Priority: 5, MinAmount: Float64Ptr(1000000)},
		{ID: 3, WorkflowID: 300, Active: true, Priority: 5, ContractType: "LEASE"},
		{ID: 4, WorkflowID: 400, Active: false, Priority: 99},
	}

	assert.Equal(t, int64(1), SelectRule(rules, &Contract{Amount: 500, Type: "SUPPLY"}).ID)
	assert.Equal(t, int64(2), SelectRule(rules, &Contract{Amount: 2000000, Type: "LEASE"}).ID)
	assert.Equal(t, int64(3), SelectRule(rules, &Contract{Amount: 10, Type: "LEASE"}).ID)
	assert.Nil(t, SelectRule(rules[3:], &Contract{}))
}

func TestDaysUntil(t *testing.T) {
	now := time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, 1, DaysUntil(now, time.Date(2026, 3, 11, 0, 10, 0, 0, time.UTC)))
	assert.Equal(t, 0, DaysUntil(now, time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)))
	assert.Equal(t, -2, DaysUntil(now, time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC)))
}

func TestDelegationRule_Covers(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rule := DelegationRule{Active: true, StartsAt: start, EndsAt: start.Add(48 * time.Hour)}
	assert.True(t, rule.Covers(start))
	assert.True(t, rule.Covers(start.Add(47*time.Hour)))
	assert.False(t, rule.Covers(start.Add(48*time.Hour)))
	assert.False(t, rule.Covers(start.Add(-time.Second)))
	rule.Active = false
	assert.False(t, rule.Covers(start))
}
