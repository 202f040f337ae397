// Package projects provides project and category management endpoints.
package projects

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

// ValidateName validates a project name.
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

// ValidateStatus parses a project lifecycle status.
func ValidateStatus(s string) (models.ProjectStatus, error) {
	status := models.ParseProjectStatus(strings.TrimSpace(s))
	if status == "" {
		return "", &ValidationError{Field: "status", Message: "status must be one of: Planning, In Progress, On Hold, Completed, Cancelled"}
	}
	return status, nil
}

// ValidateCategoryName validates a category name.
func ValidateCategoryName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &ValidationError{Field: "name", Message: "category name is required"}
	}
	if len(name) > 100 {
		return &ValidationError{Field: "name", Message: "category name must be at most 100 characters"}
	}
	return nil
}

// ValidateCategoryStatus parses a category status.
func ValidateCategoryStatus(s string) (models.CategoryStatus, error) {
	status := models.ParseCategoryStatus(strings.TrimSpace(s))
	if status == "" {
		return "", &ValidationError{Field: "status", Message: "status must be one of: Not Started, In Progress, Completed"}
	}
	return status, nil
}

// ValidateCategoryRole parses a role string for category membership.
func ValidateCategoryRole(role string) (models.WorkspaceRole, error) {
	parsed := models.ParseWorkspaceRole(strings.TrimSpace(strings.ToLower(role)))
	if parsed == models.RoleNone || parsed == models.RoleOwner {
		return models.RoleNone, &ValidationError{Field: "role", Message: "role must be one of: admin, lead, member, viewer"}
	}
	return parsed, nil
}
