package entity

import "time"

// Role groups users that can be targeted by workflow steps
type Role struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// User is a person who initiates contracts or decides approvals
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	RoleID       *int64    `json:"role_id,omitempty"`
	DepartmentID *int64    `json:"department_id,omitempty"`
	LarkOpenID   string    `json:"lark_open_id,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserFilter narrows user listings
type UserFilter struct {
	RoleID       int64
	DepartmentID int64
	ActiveOnly   bool
}

// Department is an organisational unit
type Department struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Code       string    `json:"code,omitempty"`
	ParentID   *int64    `json:"parent_id,omitempty"`
	HeadUserID *int64    `json:"head_user_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DelegationRule substitutes FromUserID with ToUserID for approvals assigned
// while the rule is active. It is evaluated only at assignment time.
type DelegationRule struct {
	ID         int64     `json:"id"`
	FromUserID int64     `json:"from_user_id"`
	ToUserID   int64     `json:"to_user_id"`
	StartsAt   time.Time `json:"starts_at"`
	EndsAt     time.Time `json:"ends_at"`
	Active     bool      `json:"active"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Covers reports whether the rule applies at the given instant
func (d *DelegationRule) Covers(at time.Time) bool {
	if !d.Active {
		return false
	}
	return !at.Before(d.StartsAt) && at.Before(d.EndsAt)
}
