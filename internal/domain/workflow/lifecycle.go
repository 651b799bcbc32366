package workflow

var (
	contractBuilder = buildContractLifecycle()
	approvalBuilder = buildApprovalLifecycle()
)

// buildContractLifecycle wires DRAFT → IN_REVIEW → APPROVED → SIGNED → ARCHIVED,
// with rejection from review and resubmission of rejected drafts. Approval out
// of review is guarded on no approval being left PENDING.
func buildContractLifecycle() StateMachineBuilder {
	b := NewBuilder()

	b.Configure(StateDraft).
		Permit(TriggerSubmit, StateInReview)

	b.Configure(StateInReview).
		PermitIf(TriggerApprove, StateApproved, approvalsSettled).
		Permit(TriggerReject, StateRejected)

	b.Configure(StateApproved).
		Permit(TriggerSign, StateSigned)

	b.Configure(StateSigned).
		Permit(TriggerArchive, StateArchived)

	b.Configure(StateRejected).
		Permit(TriggerResubmit, StateDraft).
		Permit(TriggerArchive, StateArchived)

	return b
}

// buildApprovalLifecycle allows only PENDING → APPROVED | REJECTED | SUPERSEDED
func buildApprovalLifecycle() StateMachineBuilder {
	b := NewBuilder()

	b.Configure(StatePending).
		Permit(TriggerApprove, StateApproved).
		Permit(TriggerReject, StateRejected).
		Permit(TriggerSupersede, StateSuperseded)

	return b
}

// NewContractMachine returns a contract lifecycle machine positioned at the given state
func NewContractMachine(current State) StateMachine {
	return contractBuilder.Build(current)
}

// NewApprovalMachine returns an approval machine positioned at the given state
func NewApprovalMachine(current State) StateMachine {
	return approvalBuilder.Build(current)
}
