package event

// Type identifies the type of domain event
type Type string

const (
	TypeContractSubmitted  Type = "contract.submitted"
	TypeContractApproved   Type = "contract.approved"
	TypeContractRejected   Type = "contract.rejected"
	TypeContractSigned     Type = "contract.signed"
	TypeContractArchived   Type = "contract.archived"
	TypeContractResubmit   Type = "contract.resubmitted"
	TypeApprovalDecided    Type = "approval.decided"
	TypeApprovalEscalated  Type = "approval.escalated"
	TypeStepActivated      Type = "step.activated"
	TypeStepSkipped        Type = "step.skipped"
	TypeNotificationQueued Type = "notification.queued"
)

var knownTypes = map[Type]bool{
	TypeContractSubmitted:  true,
	TypeContractApproved:   true,
	TypeContractRejected:   true,
	TypeContractSigned:     true,
	TypeContractArchived:   true,
	TypeContractResubmit:   true,
	TypeApprovalDecided:    true,
	TypeApprovalEscalated:  true,
	TypeStepActivated:      true,
	TypeStepSkipped:        true,
	TypeNotificationQueued: true,
}

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	return knownTypes[t]
}

// All returns every known event type
func All() []Type {
	out := make([]Type, 0, len(knownTypes))
	for t := range knownTypes {
		out = append(out, t)
	}
	return out
}
