package entity

import "time"

// Notification is an in-app message. Rows double as the outbox for external delivery.
type Notification struct {
	ID             int64      `json:"id"`
	UserID         int64      `json:"user_id"`
	ContractID     *int64     `json:"contract_id,omitempty"`
	ApprovalID     *int64     `json:"approval_id,omitempty"`
	Type           string     `json:"type"`
	Title          string     `json:"title"`
	Message        string     `json:"message"`
	DedupKey       string     `json:"-"`
	Read           bool       `json:"read"`
	DeliveryStatus string     `json:"delivery_status"`
	Attempts       int        `json:"attempts"`
	LastError      string     `json:"last_error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
}

// NotificationFilter narrows notification listings
type NotificationFilter struct {
	UserID     int64
	UnreadOnly bool
	Limit      int
}
