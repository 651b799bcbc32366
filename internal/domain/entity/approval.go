package entity

import "time"

// Approval is a single approver's decision for one workflow step of a contract.
// At most one non-superseded row exists per (contract, approver, step).
type Approval struct {
	ID                 int64      `json:"id"`
	ContractID         int64      `json:"contract_id"`
	WorkflowID         int64      `json:"workflow_id"`
	ApproverID         int64      `json:"approver_id"`
	OriginalApproverID *int64     `json:"original_approver_id,omitempty"`
	StepNumber         int        `json:"step_number"`
	Status             string     `json:"status"`
	DueDate            *time.Time `json:"due_date,omitempty"`
	Comment            string     `json:"comment,omitempty"`
	Escalated          bool       `json:"escalated"`
	DecidedAt          *time.Time `json:"decided_at,omitempty"`
	RetiredAt          *time.Time `json:"retired_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// IsResolved reports whether a decision has been recorded
func (a *Approval) IsResolved() bool {
	return a.Status == ApprovalStatusApproved || a.Status == ApprovalStatusRejected
}

// ApprovalFilter narrows approval listings
type ApprovalFilter struct {
	ContractID int64
	ApproverID int64
	Status     string
}

// DaysUntil returns the number of whole calendar days (UTC) from now until due.
// Negative values mean the due date has passed.
func DaysUntil(now, due time.Time) int {
	y1, m1, d1 := now.UTC().Date()
	y2, m2, d2 := due.UTC().Date()
	a := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	b := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
