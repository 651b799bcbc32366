package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/contract-approvals/internal/application/port"
	"github.com/garyjia/contract-approvals/internal/application/workflow"
	"github.com/garyjia/contract-approvals/internal/domain/entity"
	"github.com/garyjia/contract-approvals/internal/domain/event"
	domainwf "github.com/garyjia/contract-approvals/internal/domain/workflow"
)

// ApprovalRouter turns a workflow definition into approval rows and advances
// contracts through their steps as decisions arrive
type ApprovalRouter interface {
	// StartApprovalProcess submits a DRAFT contract to an ACTIVE workflow and
	// creates the approvals of its first actionable step
	StartApprovalProcess(ctx context.Context, contractID, workflowID int64, actorID *int64) (*RoutingResult, error)

	// RecordDecision resolves a PENDING approval and activates the next step
	// once the current one is complete
	RecordDecision(ctx context.Context, req DecisionRequest) (*RoutingResult, error)

	// AutoAssignApprovers routes unassigned DRAFT contracts by workflow rules and
	// repairs IN_REVIEW contracts whose next step was never activated
	AutoAssignApprovers(ctx context.Context) (*AutoAssignReport, error)

	GetApproval(ctx context.Context, id int64) (*entity.Approval, error)
	ListApprovals(ctx context.Context, filter entity.ApprovalFilter) ([]*entity.Approval, error)
}

// DelegateResolver substitutes an approver according to delegation rules
type DelegateResolver interface {
	ResolveDelegate(ctx context.Context, userID int64, at time.Time) (int64, error)
}

// DecisionRequest is an approver's verdict
type DecisionRequest struct {
	ApprovalID int64
	Status     string
	Comment    string
	ActorID    *int64
}

// RoutingResult describes the effect of a routing operation
type RoutingResult struct {
	Contract      *entity.Contract   `json:"contract"`
	Approval      *entity.Approval   `json:"approval,omitempty"`
	ActiveStep    int                `json:"active_step,omitempty"`
	Created       []*entity.Approval `json:"created,omitempty"`
	StepCompleted bool               `json:"step_completed"`
}

// AutoAssignReport summarises an auto-assignment pass
type AutoAssignReport struct {
	Routed   int      `json:"routed"`
	Repaired int      `json:"repaired"`
	Created  int      `json:"created"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

type approvalRouterImpl struct {
	contracts port.ContractRepository
	approvals port.ApprovalRepository
	workflows port.WorkflowRepository
	rules     port.WorkflowRuleRepository
	users     port.UserRepository
	delegates DelegateResolver
	notes     *notifier
	engine    workflow.Engine
	txManager port.TransactionManager
	publisher EventPublisher
	logger    Logger
	opts      options
}

// NewApprovalRouter creates a new ApprovalRouter
func NewApprovalRouter(
	contracts port.ContractRepository,
	approvals port.ApprovalRepository,
	workflows port.WorkflowRepository,
	rules port.WorkflowRuleRepository,
	users port.UserRepository,
	notifications port.NotificationRepository,
	delegates DelegateResolver,
	engine workflow.Engine,
	txManager port.TransactionManager,
	publisher EventPublisher,
	logger Logger,
	opts ...Option,
) ApprovalRouter {
	return &approvalRouterImpl{
		contracts: contracts,
		approvals: approvals,
		workflows: workflows,
		rules:     rules,
		users:     users,
		delegates: delegates,
		notes:     &notifier{repo: notifications},
		engine:    engine,
		txManager: txManager,
		publisher: publisher,
		logger:    logger,
		opts:      buildOptions(opts),
	}
}

// routing accumulates the side effects of one transaction
type routing struct {
	result *RoutingResult
	events []*event.Event
}

func (r *routing) emit(evt *event.Event) {
	if evt != nil {
		r.events = append(r.events, evt)
	}
}

func (s *approvalRouterImpl) StartApprovalProcess(ctx context.Context, contractID, workflowID int64, actorID *int64) (*RoutingResult, error) {
	var run *routing
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		run = &routing{result: &RoutingResult{}}
		return s.start(txCtx, run, contractID, workflowID, actorID)
	})
	if err != nil {
		s.logger.Error("Failed to start approval process",
			"error", err,
			"contract_id", contractID,
			"workflow_id", workflowID,
		)
		return nil, err
	}

	s.publisher.Publish(ctx, run.events...)
	s.logger.Info("Approval process started",
		"contract_id", contractID,
		"workflow_id", workflowID,
		"active_step", run.result.ActiveStep,
		"approvals_created", len(run.result.Created),
	)
	return run.result, nil
}

func (s *approvalRouterImpl) start(ctx context.Context, run *routing, contractID, workflowID int64, actorID *int64) error {
	wf, err := s.workflows.GetByID(ctx, workflowID)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return fmt.Errorf("%w: workflow %d does not exist", entity.ErrValidation, workflowID)
		}
		return err
	}
	if wf.Status != entity.WorkflowStatusActive {
		return fmt.Errorf("%w: workflow %q is %s", entity.ErrValidation, wf.Name, wf.Status)
	}

	contract, submitted, err := s.engine.Apply(ctx, workflow.Transition{
		ContractID: contractID,
		Trigger:    domainwf.TriggerSubmit,
		ActorID:    actorID,
		Comment:    fmt.Sprintf("Routed to workflow %q", wf.Name),
	})
	if err != nil {
		return err
	}
	if err := s.contracts.SetWorkflow(ctx, contractID, wf.ID); err != nil {
		return fmt.Errorf("attach workflow: %w", err)
	}
	contract.WorkflowID = &wf.ID
	run.result.Contract = contract
	run.emit(submitted.WithPayload("workflow_id", wf.ID))

	return s.advance(ctx, run, submitted, contract, wf, 0)
}

// advance activates the first actionable step after `after`, skipping steps that
// resolve to no approvers. With nothing left the contract is approved.
func (s *approvalRouterImpl) advance(ctx context.Context, run *routing, cause *event.Event, contract *entity.Contract, wf *entity.WorkflowDefinition, after int) error {
	now := s.opts.now().UTC()

	for {
		next, passed := wf.NextActionable(after, contract)
		for _, step := range passed {
			if err := s.notifyInitiator(ctx, contract, nil, entity.NotificationTypeStepInfo,
				fmt.Sprintf("%s: %s", contract.Number, step.Name),
				fmt.Sprintf("Contract %q reached step %d (%s).", contract.Title, step.Order, step.Name),
			); err != nil {
				return err
			}
		}

		if next == nil {
			return s.complete(ctx, run, cause, contract)
		}

		approvers, err := s.resolveApprovers(ctx, next, now)
		if err != nil {
			return err
		}
		if len(approvers) == 0 {
			s.logger.Info("Step has no approvers, skipping",
				"contract_id", contract.ID,
				"step", next.Order,
			)
			if err := s.notifyInitiator(ctx, contract, nil, entity.NotificationTypeStepSkipped,
				fmt.Sprintf("%s: step skipped", contract.Number),
				fmt.Sprintf("Step %d (%s) has no active approvers and was skipped.", next.Order, next.Name),
			); err != nil {
				return err
			}
			run.emit(cause.Follow(event.TypeStepSkipped, map[string]interface{}{"step": next.Order}))
			after = next.Order
			continue
		}

		return s.activate(ctx, run, cause, contract, wf, next, approvers, now)
	}
}

type assignee struct {
	userID   int64
	original *int64
}

// resolveApprovers expands a step into approvers with delegation applied once.
// Duplicates after substitution collapse to one assignee.
func (s *approvalRouterImpl) resolveApprovers(ctx context.Context, step *entity.WorkflowStep, at time.Time) ([]assignee, error) {
	var candidates []int64
	switch {
	case step.ApproverID != nil:
		candidates = []int64{*step.ApproverID}
	case step.IsParallel:
		for _, roleID := range step.ParallelRoleIDs {
			ids, err := s.roleMembers(ctx, roleID)
			if err != nil {
				return nil, err
			}
			candidates = append(candidates, ids...)
		}
	case step.RoleID != nil:
		ids, err := s.roleMembers(ctx, *step.RoleID)
		if err != nil {
			return nil, err
		}
		candidates = ids
	}

	seen := make(map[int64]bool, len(candidates))
	out := make([]assignee, 0, len(candidates))
	for _, id := range candidates {
		delegate, err := s.delegates.ResolveDelegate(ctx, id, at)
		if err != nil {
			return nil, err
		}
		if seen[delegate] {
			continue
		}
		seen[delegate] = true

		a := assignee{userID: delegate}
		if delegate != id {
			original := id
			a.original = &original
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *approvalRouterImpl) roleMembers(ctx context.Context, roleID int64) ([]int64, error) {
	users, err := s.users.List(ctx, entity.UserFilter{RoleID: roleID, ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list members of role %d: %w", roleID, err)
	}
	ids := make([]int64, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids, nil
}

func (s *approvalRouterImpl) activate(ctx context.Context, run *routing, cause *event.Event, contract *entity.Contract, wf *entity.WorkflowDefinition, step *entity.WorkflowStep, approvers []assignee, now time.Time) error {
	due := now.AddDate(0, 0, step.EffectiveDueDays())

	for _, who := range approvers {
		approval := &entity.Approval{
			ContractID:         contract.ID,
			WorkflowID:         wf.ID,
			ApproverID:         who.userID,
			OriginalApproverID: who.original,
			StepNumber:         step.Order,
			Status:             entity.ApprovalStatusPending,
			DueDate:            &due,
			CreatedAt:          now,
		}
		created, err := s.approvals.CreateIfAbsent(ctx, approval)
		if err != nil {
			return err
		}
		if !created {
			continue
		}
		run.result.Created = append(run.result.Created, approval)

		approvalID := approval.ID
		contractID := contract.ID
		if _, err := s.notes.push(ctx, &entity.Notification{
			UserID:     who.userID,
			ContractID: &contractID,
			ApprovalID: &approvalID,
			Type:       entity.NotificationTypeApprovalRequested,
			Title:      fmt.Sprintf("Approval requested: %s", contract.Number),
			Message: fmt.Sprintf("Contract %q (%.2f %s) awaits your decision at step %d (%s). Due %s.",
				contract.Title, contract.Amount, contract.Currency, step.Order, step.Name, dayKey(due)),
			DedupKey: fmt.Sprintf("approval:%d:requested", approval.ID),
		}); err != nil {
			return err
		}
	}

	run.result.ActiveStep = step.Order
	run.emit(cause.Follow(event.TypeStepActivated, map[string]interface{}{
		"step":      step.Order,
		"step_name": step.Name,
		"approvals": len(run.result.Created),
	}))
	return nil
}

// complete approves the contract once no actionable step remains
func (s *approvalRouterImpl) complete(ctx context.Context, run *routing, cause *event.Event, contract *entity.Contract) error {
	updated, evt, err := s.engine.Apply(ctx, workflow.Transition{
		ContractID: contract.ID,
		Trigger:    domainwf.TriggerApprove,
		Comment:    "All workflow steps approved",
	})
	if err != nil {
		return err
	}
	*contract = *updated
	if evt != nil && cause != nil {
		evt.CorrelationID = cause.CorrelationID
	}
	run.emit(evt)

	return s.notifyInitiator(ctx, contract, nil, entity.NotificationTypeContractApproved,
		fmt.Sprintf("Contract approved: %s", contract.Number),
		fmt.Sprintf("Contract %q passed every approval step and is ready for signing.", contract.Title),
	)
}

func (s *approvalRouterImpl) RecordDecision(ctx context.Context, req DecisionRequest) (*RoutingResult, error) {
	if req.Status != entity.ApprovalStatusApproved && req.Status != entity.ApprovalStatusRejected {
		return nil, fmt.Errorf("%w: decision must be APPROVED or REJECTED, got %q", entity.ErrValidation, req.Status)
	}

	var run *routing
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		run = &routing{result: &RoutingResult{}}
		return s.decide(txCtx, run, req)
	})
	if err != nil {
		s.logger.Error("Failed to record decision",
			"error", err,
			"approval_id", req.ApprovalID,
			"status", req.Status,
		)
		return nil, err
	}

	s.publisher.Publish(ctx, run.events...)
	s.logger.Info("Decision recorded",
		"approval_id", req.ApprovalID,
		"status", req.Status,
		"contract_status", run.result.Contract.Status,
		"step_completed", run.result.StepCompleted,
	)
	return run.result, nil
}

func (s *approvalRouterImpl) decide(ctx context.Context, run *routing, req DecisionRequest) error {
	approval, err := s.approvals.GetByID(ctx, req.ApprovalID)
	if err != nil {
		return err
	}
	if req.ActorID != nil && *req.ActorID != approval.ApproverID {
		return fmt.Errorf("%w: approval %d is assigned to user %d", entity.ErrValidation, approval.ID, approval.ApproverID)
	}
	if err := domainwf.NewApprovalMachine(domainwf.State(approval.Status)).Fire(ctx, approvalTrigger(req.Status)); err != nil {
		return fmt.Errorf("%w: approval %d is already %s", entity.ErrConflict, approval.ID, approval.Status)
	}

	contract, err := s.contracts.GetByID(ctx, approval.ContractID)
	if err != nil {
		return err
	}
	if contract.Status != entity.ContractStatusInReview {
		return fmt.Errorf("%w: contract %d is %s", entity.ErrConflict, contract.ID, contract.Status)
	}

	now := s.opts.now().UTC()
	if err := s.approvals.Decide(ctx, approval.ID, req.Status, req.Comment, now); err != nil {
		return err
	}
	approval.Status = req.Status
	approval.Comment = req.Comment
	approval.DecidedAt = &now
	run.result.Approval = approval
	run.result.Contract = contract

	decided := event.NewEvent(event.TypeApprovalDecided, contract.ID, map[string]interface{}{
		"approval_id": approval.ID,
		"step":        approval.StepNumber,
		"status":      req.Status,
		"comment":     req.Comment,
	}).WithActor(approval.ApproverID)
	run.emit(decided)

	wf, err := s.workflows.GetByID(ctx, approval.WorkflowID)
	if err != nil {
		return fmt.Errorf("load workflow %d: %w", approval.WorkflowID, err)
	}
	step, ok := wf.Step(approval.StepNumber)
	if !ok {
		return fmt.Errorf("workflow %d has no step %d", wf.ID, approval.StepNumber)
	}

	return s.evaluateStep(ctx, run, decided, contract, wf, step)
}

// evaluateStep applies the outcome of the step's approvals to the contract
func (s *approvalRouterImpl) evaluateStep(ctx context.Context, run *routing, cause *event.Event, contract *entity.Contract, wf *entity.WorkflowDefinition, step *entity.WorkflowStep) error {
	active, err := s.approvals.ListActiveByContract(ctx, contract.ID)
	if err != nil {
		return err
	}
	var stepApprovals []*entity.Approval
	for _, a := range active {
		if a.StepNumber == step.Order {
			stepApprovals = append(stepApprovals, a)
		}
	}

	switch step.Outcome(stepApprovals) {
	case entity.StepOutcomePending:
		return nil

	case entity.StepOutcomeRejected:
		run.result.StepCompleted = true
		if _, err := s.approvals.SupersedePending(ctx, contract.ID, 0); err != nil {
			return err
		}
		updated, evt, err := s.engine.Apply(ctx, workflow.Transition{
			ContractID: contract.ID,
			Trigger:    domainwf.TriggerReject,
			Comment:    fmt.Sprintf("Rejected at step %d (%s)", step.Order, step.Name),
		})
		if err != nil {
			return err
		}
		evt.CorrelationID = cause.CorrelationID
		run.emit(evt)
		*contract = *updated
		return s.notifyInitiator(ctx, contract, nil, entity.NotificationTypeContractRejected,
			fmt.Sprintf("Contract rejected: %s", contract.Number),
			fmt.Sprintf("Contract %q was rejected at step %d (%s).", contract.Title, step.Order, step.Name),
		)

	default:
		run.result.StepCompleted = true
		if step.Mode() == entity.ParallelModeAny {
			if _, err := s.approvals.SupersedePending(ctx, contract.ID, step.Order); err != nil {
				return err
			}
		}
		return s.advance(ctx, run, cause, contract, wf, step.Order)
	}
}

func (s *approvalRouterImpl) AutoAssignApprovers(ctx context.Context) (*AutoAssignReport, error) {
	report := &AutoAssignReport{}

	unrouted, err := s.contracts.ListUnrouted(ctx)
	if err != nil {
		return nil, fmt.Errorf("list unrouted contracts: %w", err)
	}
	var rules []*entity.WorkflowRule
	if len(unrouted) > 0 {
		if rules, err = s.rules.List(ctx, true); err != nil {
			return nil, fmt.Errorf("list workflow rules: %w", err)
		}
	}

	for _, contract := range unrouted {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		rule := entity.SelectRule(rules, contract)
		if rule == nil {
			report.Skipped++
			continue
		}
		result, err := s.StartApprovalProcess(ctx, contract.ID, rule.WorkflowID, nil)
		if err != nil {
			if errors.Is(err, entity.ErrInvalidTransition) {
				// routed concurrently
				report.Skipped++
				continue
			}
			report.Errors = append(report.Errors, fmt.Sprintf("contract %d: %v", contract.ID, err))
			continue
		}
		report.Routed++
		report.Created += len(result.Created)
	}

	inReview, err := s.contracts.List(ctx, entity.ContractFilter{Status: entity.ContractStatusInReview})
	if err != nil {
		return report, fmt.Errorf("list contracts in review: %w", err)
	}
	for _, contract := range inReview {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		created, repaired, err := s.repair(ctx, contract.ID)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("contract %d: %v", contract.ID, err))
			continue
		}
		if repaired {
			report.Repaired++
			report.Created += created
		}
	}

	s.logger.Info("Auto-assignment completed",
		"routed", report.Routed,
		"repaired", report.Repaired,
		"created", report.Created,
		"skipped", report.Skipped,
		"errors", len(report.Errors),
	)
	return report, nil
}

// repair re-runs step activation for an IN_REVIEW contract whose latest step is
// complete but whose successor was never created
func (s *approvalRouterImpl) repair(ctx context.Context, contractID int64) (int, bool, error) {
	var run *routing
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		contract, err := s.contracts.GetByID(txCtx, contractID)
		if err != nil {
			return err
		}
		if contract.Status != entity.ContractStatusInReview || contract.WorkflowID == nil {
			return nil
		}
		wf, err := s.workflows.GetByID(txCtx, *contract.WorkflowID)
		if err != nil {
			return err
		}
		active, err := s.approvals.ListActiveByContract(txCtx, contract.ID)
		if err != nil {
			return err
		}

		cause := event.NewEvent(event.TypeStepActivated, contract.ID, map[string]interface{}{"repair": true})
		latest := 0
		for _, a := range active {
			if a.StepNumber > latest {
				latest = a.StepNumber
			}
		}
		if latest == 0 {
			run = &routing{result: &RoutingResult{Contract: contract}}
			return s.advance(txCtx, run, cause, contract, wf, 0)
		}

		step, ok := wf.Step(latest)
		if !ok {
			return fmt.Errorf("workflow %d has no step %d", wf.ID, latest)
		}
		var stepApprovals []*entity.Approval
		for _, a := range active {
			if a.StepNumber == latest {
				stepApprovals = append(stepApprovals, a)
			}
		}
		if step.Outcome(stepApprovals) == entity.StepOutcomePending {
			return nil
		}
		run = &routing{result: &RoutingResult{Contract: contract}}
		return s.evaluateStep(txCtx, run, cause, contract, wf, step)
	})
	if err != nil || run == nil {
		return 0, false, err
	}

	s.publisher.Publish(ctx, run.events...)
	s.logger.Info("Stalled contract advanced", "contract_id", contractID, "created", len(run.result.Created))
	return len(run.result.Created), true, nil
}

func (s *approvalRouterImpl) GetApproval(ctx context.Context, id int64) (*entity.Approval, error) {
	return s.approvals.GetByID(ctx, id)
}

func (s *approvalRouterImpl) ListApprovals(ctx context.Context, filter entity.ApprovalFilter) ([]*entity.Approval, error) {
	return s.approvals.List(ctx, filter)
}

func (s *approvalRouterImpl) notifyInitiator(ctx context.Context, contract *entity.Contract, approvalID *int64, kind, title, message string) error {
	contractID := contract.ID
	_, err := s.notes.push(ctx, &entity.Notification{
		UserID:     contract.InitiatorID,
		ContractID: &contractID,
		ApprovalID: approvalID,
		Type:       kind,
		Title:      title,
		Message:    message,
	})
	return err
}

func approvalTrigger(status string) domainwf.Trigger {
	if status == entity.ApprovalStatusRejected {
		return domainwf.TriggerReject
	}
	return domainwf.TriggerApprove
}
