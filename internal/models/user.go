package models

import (
	"time"
)

const (
	UserStatusActive    = "active"
	UserStatusSuspended = "suspended"
	UserStatusDisabled  = "disabled"
)

// User is an administrator account of the tournament admin panel
type User struct {
	ID                string
	Email             string
	PasswordHash      string
	Name              string
	Role              string // e.g., "organizer", "admin"
	Status            string // "active", "suspended", "disabled"
	PasswordChangedAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsActive reports whether the account may recover its password
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}
