package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/contract-approvals/internal/domain/entity"
	"github.com/garyjia/contract-approvals/internal/domain/event"
)

func startSingleStep(t *testing.T, f *fixture) (contract *entity.Contract, approval *entity.Approval, initiator, approver int64) {
	t.Helper()
	manager := f.role("MANAGER")
	initiator = f.user("Initiator", 0)
	approver = f.user("Manager", manager)
	wfID := f.workflow("single", roleStep(1, "Manager", manager))

	contract = f.contract(initiator, 1000, "SERVICES")
	_, err := f.router.StartApprovalProcess(f.ctx, contract.ID, wfID, nil)
	require.NoError(t, err)
	pending := f.pendingAt(contract.ID, 1)
	require.Len(t, pending, 1)
	return contract, pending[0], initiator, approver
}

func TestEscalationService_NothingDue(t *testing.T) {
	f := newFixture(t)
	startSingleStep(t, f)

	report, err := f.escalation.Scan(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, &EscalationReport{Checked: 1}, report)
}

func TestEscalationService_DeadlineReminderOncePerDay(t *testing.T) {
	f := newFixture(t)
	_, approval, _, approver := startSingleStep(t, f)
	start := f.now

	f.now = start.Add(48 * time.Hour)
	report, err := f.escalation.Scan(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Reminded)

	f.now = start.Add(50 * time.Hour)
	report, err = f.escalation.Scan(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Reminded)

	reminders := f.notificationsOf(approver, entity.NotificationTypeDeadlineSoon)
	require.Len(t, reminders, 1)
	require.NotNil(t, reminders[0].ApprovalID)
	assert.Equal(t, approval.ID, *reminders[0].ApprovalID)
}

func TestEscalationService_OverdueExtendsByOneDay(t *testing.T) {
	f := newFixture(t)
	_, approval, initiator, approver := startSingleStep(t, f)
	start := f.now

	f.now = start.AddDate(0, 0, 4)
	report, err := f.escalation.Scan(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Escalated)

	stored, err := f.approvals.GetByID(f.ctx, approval.ID)
	require.NoError(t, err)
	assert.True(t, stored.Escalated)
	assert.Equal(t, entity.ApprovalStatusPending, stored.Status)
	require.NotNil(t, stored.DueDate)
	assert.True(t, start.AddDate(0, 0, 4).Equal(*stored.DueDate))

	assert.Len(t, f.notificationsOf(approver, entity.NotificationTypeEscalated), 1)
	assert.Len(t, f.notificationsOf(initiator, entity.NotificationTypeEscalated), 1)
	assert.Contains(t, f.publisher.types(), event.TypeApprovalEscalated)

	// the extended deadline is today, so nothing fires again
	report, err = f.escalation.Scan(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Escalated)
	assert.Len(t, f.notificationsOf(approver, entity.NotificationTypeEscalated), 1)
}

func TestEscalationService_LongOverdueRestartsFromNow(t *testing.T) {
	f := newFixture(t)
	_, approval, _, _ := startSingleStep(t, f)

	f.now = f.now.AddDate(0, 0, 10)
	report, err := f.escalation.Scan(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Escalated)

	stored, err := f.approvals.GetByID(f.ctx, approval.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.DueDate)
	assert.True(t, f.now.AddDate(0, 0, 1).Equal(*stored.DueDate))
}

func TestEscalationService_SkipsDecidedApprovals(t *testing.T) {
	f := newFixture(t)
	_, approval, _, _ := startSingleStep(t, f)
	f.approve(approval.ID)

	f.now = f.now.AddDate(0, 0, 10)
	report, err := f.escalation.Scan(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, &EscalationReport{}, report)
}
