// Package models defines the core entities of TaskHive.
package models

import (
	"time"
)

// GlobalRole represents a user's platform-wide permission level.
type GlobalRole string

const (
	GlobalRoleUser       GlobalRole = "user"
	GlobalRoleAdmin      GlobalRole = "admin"
	GlobalRoleSuperAdmin GlobalRole = "super_admin"
)

// User represents an account on the platform.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"` // Never expose in JSON
	Role         GlobalRole `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewUser creates a new User with initialized timestamps.
func NewUser(username, email string, role GlobalRole) *User {
	now := time.Now()
	return &User{
		Username:  username,
		Email:     email,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsSuperAdmin returns true if the user holds the platform super_admin role.
func (u *User) IsSuperAdmin() bool {
	return u.Role == GlobalRoleSuperAdmin
}

// IsElevated returns true if the user's global role overrides workspace
// membership (admin or super_admin).
func (u *User) IsElevated() bool {
	return u.Role == GlobalRoleAdmin || u.Role == GlobalRoleSuperAdmin
}

// ParseGlobalRole converts a string to GlobalRole.
func ParseGlobalRole(s string) GlobalRole {
	switch s {
	case "super_admin":
		return GlobalRoleSuperAdmin
	case "admin":
		return GlobalRoleAdmin
	default:
		return GlobalRoleUser
	}
}
