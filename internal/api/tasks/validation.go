// Package tasks provides task management endpoints.
package tasks

import (
	"strings"
	"time"

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

// ValidateTitle validates a task title.
func ValidateTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	if len(title) > 200 {
		return &ValidationError{Field: "title", Message: "title must be at most 200 characters"}
	}
	return nil
}

// ValidateStatus parses a task workflow status.
func ValidateStatus(s string) (models.TaskStatus, error) {
	status := models.ParseTaskStatus(strings.TrimSpace(s))
	if status == "" {
		return "", &ValidationError{Field: "status", Message: "status must be one of: to-do, in-progress, done"}
	}
	return status, nil
}

// ValidatePriority parses a task priority. Empty input defaults to medium.
func ValidatePriority(s string) (models.TaskPriority, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.PriorityMedium, nil
	}
	priority := models.ParseTaskPriority(s)
	if priority == "" {
		return "", &ValidationError{Field: "priority", Message: "priority must be one of: low, medium, high, urgent"}
	}
	return priority, nil
}

// ValidateDates checks that both dates are present and ordered.
func ValidateDates(start, due time.Time) error {
	if start.IsZero() {
		return &ValidationError{Field: "start_date", Message: "start_date is required"}
	}
	if due.IsZero() {
		return &ValidationError{Field: "due_date", Message: "due_date is required"}
	}
	if start.After(due) {
		return &ValidationError{Field: "start_date", Message: "start_date must not be after due_date"}
	}
	return nil
}
