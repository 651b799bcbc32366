package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/contract-approvals/internal/application/port"
	"github.com/garyjia/contract-approvals/internal/domain/entity"
	"github.com/garyjia/contract-approvals/internal/domain/event"
)

// EscalationService watches pending approvals for approaching and missed deadlines
type EscalationService interface {
	// Scan runs one pass over PENDING approvals with a due date
	Scan(ctx context.Context) (*EscalationReport, error)
}

// EscalationReport summarises one scan
type EscalationReport struct {
	Checked   int `json:"checked"`
	Reminded  int `json:"reminded"`
	Escalated int `json:"escalated"`
}

type escalationServiceImpl struct {
	approvals port.ApprovalRepository
	contracts port.ContractRepository
	notes     *notifier
	txManager port.TransactionManager
	publisher EventPublisher
	logger    Logger
	opts      options
}

// NewEscalationService creates a new EscalationService
func NewEscalationService(
	approvals port.ApprovalRepository,
	contracts port.ContractRepository,
	notifications port.NotificationRepository,
	txManager port.TransactionManager,
	publisher EventPublisher,
	logger Logger,
	opts ...Option,
) EscalationService {
	return &escalationServiceImpl{
		approvals: approvals,
		contracts: contracts,
		notes:     &notifier{repo: notifications},
		txManager: txManager,
		publisher: publisher,
		logger:    logger,
		opts:      buildOptions(opts),
	}
}

func (s *escalationServiceImpl) Scan(ctx context.Context) (*EscalationReport, error) {
	pending, err := s.approvals.ListPendingDue(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending approvals: %w", err)
	}

	now := s.opts.now().UTC()
	report := &EscalationReport{Checked: len(pending)}

	for _, approval := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		switch days := entity.DaysUntil(now, *approval.DueDate); {
		case days == 1:
			reminded, err := s.remind(ctx, approval, now)
			if err != nil {
				return report, err
			}
			if reminded {
				report.Reminded++
			}
		case days < 0:
			escalated, err := s.escalate(ctx, approval, now)
			if err != nil {
				return report, err
			}
			if escalated {
				report.Escalated++
			}
		}
	}

	if report.Reminded > 0 || report.Escalated > 0 {
		s.logger.Info("Escalation scan completed",
			"checked", report.Checked,
			"reminded", report.Reminded,
			"escalated", report.Escalated,
		)
	}
	return report, nil
}

// remind sends at most one deadline notice per approval per calendar day
func (s *escalationServiceImpl) remind(ctx context.Context, approval *entity.Approval, now time.Time) (bool, error) {
	contract, err := s.contracts.GetByID(ctx, approval.ContractID)
	if err != nil {
		return false, err
	}
	approvalID, contractID := approval.ID, contract.ID
	return s.notes.push(ctx, &entity.Notification{
		UserID:     approval.ApproverID,
		ContractID: &contractID,
		ApprovalID: &approvalID,
		Type:       entity.NotificationTypeDeadlineSoon,
		Title:      fmt.Sprintf("Deadline tomorrow: %s", contract.Number),
		Message: fmt.Sprintf("Your decision on %q (step %d) is due %s.",
			contract.Title, approval.StepNumber, dayKey(*approval.DueDate)),
		DedupKey: fmt.Sprintf("approval:%d:deadline:%s", approval.ID, dayKey(now)),
	})
}

// escalate pushes the due date out by a day and notifies approver and initiator.
// A due date still in the past after the extension restarts from now.
func (s *escalationServiceImpl) escalate(ctx context.Context, approval *entity.Approval, now time.Time) (bool, error) {
	due := approval.DueDate.AddDate(0, 0, 1)
	if entity.DaysUntil(now, due) < 0 {
		due = now.AddDate(0, 0, 1)
	}

	var evt *event.Event
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.approvals.Escalate(txCtx, approval.ID, due); err != nil {
			return err
		}
		contract, err := s.contracts.GetByID(txCtx, approval.ContractID)
		if err != nil {
			return err
		}

		approvalID, contractID := approval.ID, contract.ID
		recipients := []int64{approval.ApproverID}
		if contract.InitiatorID != approval.ApproverID {
			recipients = append(recipients, contract.InitiatorID)
		}
		for _, userID := range recipients {
			if _, err := s.notes.push(txCtx, &entity.Notification{
				UserID:     userID,
				ContractID: &contractID,
				ApprovalID: &approvalID,
				Type:       entity.NotificationTypeEscalated,
				Title:      fmt.Sprintf("Approval overdue: %s", contract.Number),
				Message: fmt.Sprintf("Step %d of %q was not decided in time. The deadline moved to %s.",
					approval.StepNumber, contract.Title, dayKey(due)),
				DedupKey: fmt.Sprintf("approval:%d:escalated:%d:%s", approval.ID, userID, dayKey(due)),
			}); err != nil {
				return err
			}
		}

		evt = event.NewEvent(event.TypeApprovalEscalated, contract.ID, map[string]interface{}{
			"approval_id": approval.ID,
			"approver_id": approval.ApproverID,
			"new_due":     due.Format(time.RFC3339),
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) || errors.Is(err, entity.ErrConflict) {
			// decided between listing and escalating
			return false, nil
		}
		s.logger.Error("Failed to escalate approval", "error", err, "approval_id", approval.ID)
		return false, err
	}

	s.publisher.Publish(ctx, evt)
	s.logger.Info("Approval escalated", "approval_id", approval.ID, "new_due", due)
	return true, nil
}
