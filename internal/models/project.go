package models

import (
	"time"
)

// ProjectStatus is the lifecycle status of a project.
type ProjectStatus string

const (
	ProjectPlanning   ProjectStatus = "Planning"
	ProjectInProgress ProjectStatus = "In Progress"
	ProjectOnHold     ProjectStatus = "On Hold"
	ProjectCompleted  ProjectStatus = "Completed"
	ProjectCancelled  ProjectStatus = "Cancelled"
)

// progressByStatus is the fixed status -> progress mapping. Progress is
// derived state: it is recomputed on every status change and never
// independently settable.
var progressByStatus = map[ProjectStatus]int{
	ProjectPlanning:   10,
	ProjectInProgress: 50,
	ProjectOnHold:     30,
	ProjectCompleted:  100,
	ProjectCancelled:  0,
}

// ProgressFor returns the progress value for a project status.
func ProgressFor(status ProjectStatus) int {
	return progressByStatus[status]
}

// ParseProjectStatus converts a string to ProjectStatus.
// Returns "" for unknown input.
func ParseProjectStatus(s string) ProjectStatus {
	switch ProjectStatus(s) {
	case ProjectPlanning, ProjectInProgress, ProjectOnHold, ProjectCompleted, ProjectCancelled:
		return ProjectStatus(s)
	}
	return ""
}

// Project belongs to exactly one workspace and owns its categories.
type Project struct {
	ID          string        `json:"id"`
	WorkspaceID string        `json:"workspace_id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Status      ProjectStatus `json:"status"`
	Progress    int           `json:"progress"`
	CreatedBy   string        `json:"created_by"`
	IsActive    bool          `json:"is_active"`

	// Rollup counters over the live task set. Maintained incrementally in
	// the same transaction as every task write; always equal to a recount.
	TotalTasks     int `json:"total_tasks"`
	CompletedTasks int `json:"completed_tasks"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewProject creates an active project in Planning state.
func NewProject(workspaceID, name, description, creatorID string) *Project {
	now := time.Now()
	return &Project{
		WorkspaceID: workspaceID,
		Name:        name,
		Description: description,
		Status:      ProjectPlanning,
		Progress:    ProgressFor(ProjectPlanning),
		CreatedBy:   creatorID,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// SetStatus changes the lifecycle status and recomputes progress.
func (p *Project) SetStatus(status ProjectStatus) {
	p.Status = status
	p.Progress = ProgressFor(status)
	p.UpdatedAt = time.Now()
}

// CategoryStatus is the status of a category within a project.
type CategoryStatus string

const (
	CategoryNotStarted CategoryStatus = "Not Started"
	CategoryInProgress CategoryStatus = "In Progress"
	CategoryCompleted  CategoryStatus = "Completed"
)

// ParseCategoryStatus converts a string to CategoryStatus.
// Returns "" for unknown input.
func ParseCategoryStatus(s string) CategoryStatus {
	switch CategoryStatus(s) {
	case CategoryNotStarted, CategoryInProgress, CategoryCompleted:
		return CategoryStatus(s)
	}
	return ""
}

// Category is a named sub-grouping within a project with its own status
// and member roster. Categories are identified by (project_id, name).
type Category struct {
	ProjectID   string         `json:"project_id"`
	Name        string         `json:"name"`
	Status      CategoryStatus `json:"status"`
	Position    int            `json:"position"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// SetStatus changes the category status. CompletedAt is set exactly when
// the status transitions to Completed and cleared on any regression.
func (c *Category) SetStatus(status CategoryStatus) {
	if status == CategoryCompleted && c.Status != CategoryCompleted {
		now := time.Now()
		c.CompletedAt = &now
	}
	if status != CategoryCompleted {
		c.CompletedAt = nil
	}
	c.Status = status
}

// CategoryMember is a user's role inside one category of a project.
// A category role may exceed the user's workspace role; the elevated
// capability applies only to operations scoped to that category.
type CategoryMember struct {
	ProjectID    string        `json:"project_id"`
	CategoryName string        `json:"category_name"`
	UserID       string        `json:"user_id"`
	Role         WorkspaceRole `json:"role"`
}
