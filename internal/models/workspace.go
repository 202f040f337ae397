package models

import (
	"time"
)

// WorkspaceRole represents a member's permission level inside a workspace.
type WorkspaceRole string

const (
	RoleOwner  WorkspaceRole = "owner"
	RoleAdmin  WorkspaceRole = "admin"
	RoleLead   WorkspaceRole = "lead"
	RoleMember WorkspaceRole = "member"
	RoleViewer WorkspaceRole = "viewer"

	// RoleNone is the fail-closed resolution for users with no membership.
	// It is distinct from viewer: it grants nothing.
	RoleNone WorkspaceRole = ""
)

// roleRank defines the total order over workspace roles.
var roleRank = map[WorkspaceRole]int{
	RoleNone:   0,
	RoleViewer: 1,
	RoleMember: 2,
	RoleLead:   3,
	RoleAdmin:  4,
	RoleOwner:  5,
}

// AtLeast returns true if r grants at least the capabilities of other.
func (r WorkspaceRole) AtLeast(other WorkspaceRole) bool {
	return roleRank[r] >= roleRank[other]
}

// IsValid returns true for a role that can be stored on a membership.
func (r WorkspaceRole) IsValid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleLead, RoleMember, RoleViewer:
		return true
	}
	return false
}

// ParseWorkspaceRole converts a string to a WorkspaceRole.
// Returns RoleNone for unknown input.
func ParseWorkspaceRole(s string) WorkspaceRole {
	switch s {
	case "owner":
		return RoleOwner
	case "admin":
		return RoleAdmin
	case "lead":
		return RoleLead
	case "member":
		return RoleMember
	case "viewer":
		return RoleViewer
	default:
		return RoleNone
	}
}

// ArchiveGracePeriod is how long an archived workspace is retained before
// it becomes eligible for purging.
const ArchiveGracePeriod = 7 * 24 * time.Hour

// Workspace is the top-level tenant container.
type Workspace struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedBy   string `json:"created_by"`

	// Soft-delete state. DeleteScheduledAt is ArchivedAt + ArchiveGracePeriod.
	IsArchived        bool       `json:"is_archived"`
	ArchivedAt        *time.Time `json:"archived_at,omitempty"`
	ArchivedBy        string     `json:"archived_by,omitempty"`
	DeleteScheduledAt *time.Time `json:"delete_scheduled_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewWorkspace creates a workspace owned by creatorID. The owner membership
// row is created alongside it by the storage layer.
func NewWorkspace(name, description, creatorID string) *Workspace {
	now := time.Now()
	return &Workspace{
		Name:        name,
		Description: description,
		CreatedBy:   creatorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Archive marks the workspace archived and starts the deletion clock.
func (w *Workspace) Archive(byUserID string) {
	now := time.Now()
	purgeAt := now.Add(ArchiveGracePeriod)
	w.IsArchived = true
	w.ArchivedAt = &now
	w.ArchivedBy = byUserID
	w.DeleteScheduledAt = &purgeAt
	w.UpdatedAt = now
}

// Restore clears all archive state. It must run before DeleteScheduledAt
// passes or the purge sweep will have removed the workspace.
func (w *Workspace) Restore() {
	w.IsArchived = false
	w.ArchivedAt = nil
	w.ArchivedBy = ""
	w.DeleteScheduledAt = nil
	w.UpdatedAt = time.Now()
}

// Member is a user's membership in a workspace. Membership rows are the
// single source of truth; user-side and workspace-side listings are both
// derived from them.
type Member struct {
	WorkspaceID string        `json:"workspace_id"`
	UserID      string        `json:"user_id"`
	Role        WorkspaceRole `json:"role"`
	JoinedAt    time.Time     `json:"joined_at"`
}

// MemberInfo is a membership joined with user identity, for listings.
type MemberInfo struct {
	UserID   string        `json:"user_id"`
	Username string        `json:"username"`
	Email    string        `json:"email"`
	Role     WorkspaceRole `json:"role"`
	JoinedAt time.Time     `json:"joined_at"`
}

// WorkspaceMembership is a workspace joined with the caller's role in it.
type WorkspaceMembership struct {
	Workspace *Workspace    `json:"workspace"`
	Role      WorkspaceRole `json:"role"`
	JoinedAt  time.Time     `json:"joined_at"`
}
