// Package workspaces provides workspace, membership, and invite endpoints.
package workspaces

import (
	"strings"

	"github.com/task-hive/taskhive/internal/models"
)

// ValidationError contains validation error details.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ValidateName validates a workspace name.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if len(name) > 100 {
		return &ValidationError{Field: "name", Message: "name must be at most 100 characters"}
	}
	return nil
}

// ValidateDescription validates a workspace description.
func ValidateDescription(desc string) error {
	if len(desc) > 1000 {
		return &ValidationError{Field: "description", Message: "description must be at most 1000 characters"}
	}
	return nil
}

// ValidateMemberRole parses a role string for membership changes.
// Ownership is granted only via transfer, never by role assignment.
func ValidateMemberRole(role string) (models.WorkspaceRole, error) {
	parsed := models.ParseWorkspaceRole(strings.TrimSpace(strings.ToLower(role)))
	if parsed == models.RoleNone {
		return models.RoleNone, &ValidationError{Field: "role", Message: "role must be one of: admin, lead, member, viewer"}
	}
	if parsed == models.RoleOwner {
		return models.RoleNone, &ValidationError{Field: "role", Message: "ownership is granted only via transfer"}
	}
	return parsed, nil
}

// ValidateInviteRole parses a role string for invites.
func ValidateInviteRole(role string) (models.WorkspaceRole, error) {
	parsed := models.ParseWorkspaceRole(strings.TrimSpace(strings.ToLower(role)))
	if !models.IsInvitableRole(parsed) {
		return models.RoleNone, &ValidationError{Field: "role", Message: "role must be one of: admin, lead, member, viewer"}
	}
	return parsed, nil
}

// ValidateEmail performs a light sanity check on an invite email.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return &ValidationError{Field: "email", Message: "email is required"}
	}
	at := strings.Index(email, "@")
	if at < 1 || at == len(email)-1 {
		return &ValidationError{Field: "email", Message: "invalid email format"}
	}
	if len(email) > 255 {
		return &ValidationError{Field: "email", Message: "email must be at most 255 characters"}
	}
	return nil
}
