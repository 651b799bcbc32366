package entity

import "time"

// Contract represents a contract moving through the approval lifecycle
type Contract struct {
	ID             int64      `json:"id"`
	Number         string     `json:"number"`
	Title          string     `json:"title"`
	CounterpartyID *int64     `json:"counterparty_id,omitempty"`
	Counterparty   string     `json:"counterparty"`
	Amount         float64    `json:"amount"`
	Currency       string     `json:"currency"`
	Type           string     `json:"type"`
	Status         string     `json:"status"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	InitiatorID    int64      `json:"initiator_id"`
	DepartmentID   *int64     `json:"department_id,omitempty"`
	WorkflowID     *int64     `json:"workflow_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// IsEditable reports whether contract fields may still be changed
func (c *Contract) IsEditable() bool {
	return c.Status == ContractStatusDraft
}

// ContractHistory is the audit trail of a contract's status changes
type ContractHistory struct {
	ID             int64     `json:"id"`
	ContractID     int64     `json:"contract_id"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	ActorID        *int64    `json:"actor_id,omitempty"`
	Action         string    `json:"action"`
	Comment        string    `json:"comment,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// ContractFilter narrows contract listings
type ContractFilter struct {
	Status         string
	InitiatorID    int64
	CounterpartyID int64
	Limit          int
	Offset         int
}
