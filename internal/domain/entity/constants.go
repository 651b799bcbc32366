package entity

// Contract status constants
const (
	ContractStatusDraft    = "DRAFT"
	ContractStatusInReview = "IN_REVIEW"
	ContractStatusApproved = "APPROVED"
	ContractStatusSigned   = "SIGNED"
	ContractStatusArchived = "ARCHIVED"
	ContractStatusRejected = "REJECTED"
)

// Approval status constants
const (
	ApprovalStatusPending    = "PENDING"
	ApprovalStatusApproved   = "APPROVED"
	ApprovalStatusRejected   = "REJECTED"
	ApprovalStatusSuperseded = "SUPERSEDED"
)

// Workflow definition status constants
const (
	WorkflowStatusActive   = "ACTIVE"
	WorkflowStatusInactive = "INACTIVE"
	WorkflowStatusDraft    = "DRAFT"
)

// Workflow step type constants
const (
	StepTypeApproval     = "APPROVAL"
	StepTypeReview       = "REVIEW"
	StepTypeNotification = "NOTIFICATION"
	StepTypeCondition    = "CONDITION"
)

// Parallel mode constants decide when a fanned-out step is complete
const (
	ParallelModeAll = "ALL"
	ParallelModeAny = "ANY"
)

// Reference kind constants. Kinds are free-form; these are the ones the UI ships with.
const (
	ReferenceKindCounterparty   = "COUNTERPARTY"
	ReferenceKindApprovalReason = "APPROVAL_REASON"
	ReferenceKindContractType   = "CONTRACT_TYPE"
)

// Notification type constants
const (
	NotificationTypeApprovalRequested = "APPROVAL_REQUESTED"
	NotificationTypeDeadlineSoon      = "DEADLINE_APPROACHING"
	NotificationTypeEscalated         = "APPROVAL_ESCALATED"
	NotificationTypeContractApproved  = "CONTRACT_APPROVED"
	NotificationTypeContractRejected  = "CONTRACT_REJECTED"
	NotificationTypeStepInfo          = "STEP_NOTIFICATION"
	NotificationTypeStepSkipped       = "STEP_SKIPPED"
)

// Notification delivery status constants
const (
	DeliveryStatusPending = "PENDING"
	DeliveryStatusSent    = "SENT"
	DeliveryStatusFailed  = "FAILED"
	DeliveryStatusSkipped = "SKIPPED"
)

// Contract history action constants
const (
	ActionCreate   = "CREATE"
	ActionUpdate   = "UPDATE"
	ActionSubmit   = "SUBMIT"
	ActionApprove  = "APPROVE"
	ActionReject   = "REJECT"
	ActionSign     = "SIGN"
	ActionArchive  = "ARCHIVE"
	ActionResubmit = "RESUBMIT"
)

// DefaultStepDueDays is used when a step does not declare a duration
const DefaultStepDueDays = 3
