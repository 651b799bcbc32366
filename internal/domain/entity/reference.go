package entity

import "time"

// Reference is a generic lookup record (counterparty, approval reason, contract type, ...)
type Reference struct {
	ID          int64     `json:"id"`
	Kind        string    `json:"kind"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Value       string    `json:"value,omitempty"`
	Description string    `json:"description,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ReferenceFilter narrows reference listings
type ReferenceFilter struct {
	Kind       string
	ActiveOnly bool
}
