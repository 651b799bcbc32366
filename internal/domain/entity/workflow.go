package entity

import (
	"fmt"
	"sort"
	"time"
)

// WorkflowDefinition is an ordered template of steps applied to a contract
type WorkflowDefinition struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Status      string         `json:"status"`
	Steps       []WorkflowStep `json:"steps"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// WorkflowStep is one stage of a workflow
type WorkflowStep struct {
	ID              int64          `json:"id,omitempty"`
	Order           int            `json:"order"`
	Name            string         `json:"name"`
	Type            string         `json:"type"`
	RoleID          *int64         `json:"role_id,omitempty"`
	ApproverID      *int64         `json:"approver_id,omitempty"`
	Required        bool           `json:"required"`
	DueDays         *int           `json:"due_days,omitempty"`
	IsParallel      bool           `json:"is_parallel"`
	ParallelRoleIDs []int64        `json:"parallel_role_ids,omitempty"`
	ParallelMode    string         `json:"parallel_mode,omitempty"`
	Condition       *StepCondition `json:"condition,omitempty"`
}

// StepCondition restricts a step (or, for CONDITION steps, the block that follows it)
// to contracts within an amount range and of the listed types.
type StepCondition struct {
	MinAmount     *float64 `json:"min_amount,omitempty"`
	MaxAmount     *float64 `json:"max_amount,omitempty"`
	ContractTypes []string `json:"contract_types,omitempty"`
}

// Matches reports whether the contract satisfies the condition. Bounds are inclusive.
func (c *StepCondition) Matches(contract *Contract) bool {
	if c == nil {
		return true
	}
	if c.MinAmount != nil && contract.Amount < *c.MinAmount {
		return false
	}
	if c.MaxAmount != nil && contract.Amount > *c.MaxAmount {
		return false
	}
	if len(c.ContractTypes) > 0 {
		for _, t := range c.ContractTypes {
			if t == contract.Type {
				return true
			}
		}
		return false
	}
	return true
}

// NeedsApprovers reports whether the step produces approval rows
func (s *WorkflowStep) NeedsApprovers() bool {
	return s.Type == StepTypeApproval || s.Type == StepTypeReview
}

// Mode returns the effective parallel mode
func (s *WorkflowStep) Mode() string {
	if s.ParallelMode == ParallelModeAny {
		return ParallelModeAny
	}
	return ParallelModeAll
}

// EffectiveDueDays returns DueDays as given, or the default when the step omits it.
// Zero means due on the day of assignment.
func (s *WorkflowStep) EffectiveDueDays() int {
	if s.DueDays == nil {
		return DefaultStepDueDays
	}
	return *s.DueDays
}

// StepOutcome is the aggregate result of a step's approvals
type StepOutcome int

const (
	StepOutcomePending StepOutcome = iota
	StepOutcomeApproved
	StepOutcomeRejected
)

// Outcome evaluates the step's approvals. Superseded rows are ignored.
//
// In ALL mode every approver must decide; a rejection on a required step rejects it.
// In ANY mode the first approval completes the step; a required step is rejected
// only once every approver has rejected.
func (s *WorkflowStep) Outcome(approvals []*Approval) StepOutcome {
	var pending, approved, rejected int
	for _, a := range approvals {
		switch a.Status {
		case ApprovalStatusPending:
			pending++
		case ApprovalStatusApproved:
			approved++
		case ApprovalStatusRejected:
			rejected++
		}
	}

	if s.Mode() == ParallelModeAny {
		if approved > 0 {
			return StepOutcomeApproved
		}
		if pending > 0 {
			return StepOutcomePending
		}
		if rejected > 0 && s.Required {
			return StepOutcomeRejected
		}
		return StepOutcomeApproved
	}

	if rejected > 0 && s.Required {
		return StepOutcomeRejected
	}
	if pending > 0 {
		return StepOutcomePending
	}
	return StepOutcomeApproved
}

// Validate checks the definition's structural rules
func (w *WorkflowDefinition) Validate() error {
	if w.Name == "" {
		return fmt.Errorf("%w: workflow name is required", ErrValidation)
	}
	switch w.Status {
	case WorkflowStatusActive, WorkflowStatusInactive, WorkflowStatusDraft:
	default:
		return fmt.Errorf("%w: invalid workflow status %q", ErrValidation, w.Status)
	}

	steps := w.SortedSteps()
	for i, step := range steps {
		if step.Order != i+1 {
			return fmt.Errorf("%w: step orders must be contiguous from 1, got %d at position %d", ErrValidation, step.Order, i+1)
		}
		if step.DueDays != nil && *step.DueDays < 0 {
			return fmt.Errorf("%w: step %d has negative due days", ErrValidation, step.Order)
		}
		switch step.Type {
		case StepTypeApproval, StepTypeReview:
			if step.IsParallel {
				if len(step.ParallelRoleIDs) == 0 {
					return fmt.Errorf("%w: parallel step %d needs at least one role", ErrValidation, step.Order)
				}
			} else if step.RoleID == nil && step.ApproverID == nil {
				return fmt.Errorf("%w: step %d needs a role or an approver", ErrValidation, step.Order)
			}
		case StepTypeNotification:
		case StepTypeCondition:
			if step.Condition == nil {
				return fmt.Errorf("%w: condition step %d has no condition", ErrValidation, step.Order)
			}
		default:
			return fmt.Errorf("%w: step %d has unknown type %q", ErrValidation, step.Order, step.Type)
		}
		if step.ParallelMode != "" && step.ParallelMode != ParallelModeAll && step.ParallelMode != ParallelModeAny {
			return fmt.Errorf("%w: step %d has unknown parallel mode %q", ErrValidation, step.Order, step.ParallelMode)
		}
	}
	return nil
}

// SortedSteps returns a copy of the steps ordered by Order
func (w *WorkflowDefinition) SortedSteps() []WorkflowStep {
	steps := make([]WorkflowStep, len(w.Steps))
	copy(steps, w.Steps)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Order < steps[j].Order })
	return steps
}

// Step returns the step with the given order
func (w *WorkflowDefinition) Step(order int) (*WorkflowStep, bool) {
	for i := range w.Steps {
		if w.Steps[i].Order == order {
			return &w.Steps[i], true
		}
	}
	return nil, false
}

// NextActionable returns the first step after `after` that needs approvers for this
// contract, together with the NOTIFICATION steps passed on the way. A CONDITION
// step opens or closes the block of steps up to the next CONDITION step; a step's
// own condition is checked independently. next is nil when the workflow is done.
func (w *WorkflowDefinition) NextActionable(after int, contract *Contract) (next *WorkflowStep, passed []WorkflowStep) {
	gateOpen := true
	for _, step := range w.SortedSteps() {
		if step.Type == StepTypeCondition {
			gateOpen = step.Condition.Matches(contract)
			continue
		}
		if step.Order <= after || !gateOpen {
			continue
		}
		if !step.Condition.Matches(contract) {
			continue
		}
		if step.Type == StepTypeNotification {
			passed = append(passed, step)
			continue
		}
		s := step
		return &s, passed
	}
	return nil, passed
}

// WorkflowRule routes contracts to a workflow during auto-assignment
type WorkflowRule struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	WorkflowID   int64     `json:"workflow_id"`
	ContractType string    `json:"contract_type,omitempty"`
	MinAmount    *float64  `json:"min_amount,omitempty"`
	MaxAmount    *float64  `json:"max_amount,omitempty"`
	Priority     int       `json:"priority"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Matches reports whether the rule applies to the contract
func (r *WorkflowRule) Matches(contract *Contract) bool {
	if !r.Active {
		return false
	}
	if r.ContractType != "" && r.ContractType != contract.Type {
		return false
	}
	cond := StepCondition{MinAmount: r.MinAmount, MaxAmount: r.MaxAmount}
	return cond.Matches(contract)
}

// SelectRule returns the highest-priority matching rule, ties broken by lowest ID
func SelectRule(rules []*WorkflowRule, contract *Contract) *WorkflowRule {
	var best *WorkflowRule
	for _, r := range rules {
		if !r.Matches(contract) {
			continue
		}
		if best == nil || r.Priority > best.Priority || (r.Priority == best.Priority && r.ID < best.ID) {
			best = r
		}
	}
	return best
}
