package workflow

import "github.com/garyjia/contract-approvals/internal/domain/entity"

// State is a lifecycle state of a contract or of a single approval
type State string

// Contract states
const (
	StateDraft    State = entity.ContractStatusDraft
	StateInReview State = entity.ContractStatusInReview
	StateApproved State = entity.ContractStatusApproved
	StateSigned   State = entity.ContractStatusSigned
	StateArchived State = entity.ContractStatusArchived
	StateRejected State = entity.ContractStatusRejected
)

// Approval states. APPROVED and REJECTED are shared with the contract lifecycle.
const (
	StatePending    State = entity.ApprovalStatusPending
	StateSuperseded State = entity.ApprovalStatusSuperseded
)

// IsTerminal returns true if no contract transition leaves the state
func (s State) IsTerminal() bool {
	return s == StateArchived
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is known
func (s State) IsValid() bool {
	switch s {
	case StateDraft, StateInReview, StateApproved, StateSigned, StateArchived, StateRejected,
		StatePending, StateSuperseded:
		return true
	}
	return false
}
