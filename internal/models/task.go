package models

import (
	"time"
)

// TaskStatus is the workflow state of a task.
type TaskStatus string

const (
	TaskTodo       TaskStatus = "to-do"
	TaskInProgress TaskStatus = "in-progress"
	TaskDone       TaskStatus = "done"
)

// ParseTaskStatus converts a string to TaskStatus.
// Returns "" for unknown input.
func ParseTaskStatus(s string) TaskStatus {
	switch TaskStatus(s) {
	case TaskTodo, TaskInProgress, TaskDone:
		return TaskStatus(s)
	}
	return ""
}

// TaskPriority is the urgency level of a task.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

// ParseTaskPriority converts a string to TaskPriority.
// Returns "" for unknown input.
func ParseTaskPriority(s string) TaskPriority {
	switch TaskPriority(s) {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return TaskPriority(s)
	}
	return ""
}

// Task belongs to exactly one project and one named category of that
// project.
type Task struct {
	ID           string       `json:"id"`
	ProjectID    string       `json:"project_id"`
	CategoryName string       `json:"category_name"`
	Title        string       `json:"title"`
	Description  string       `json:"description,omitempty"`
	AssigneeID   string       `json:"assignee_id"`
	CreatedBy    string       `json:"created_by"`
	Status       TaskStatus   `json:"status"`
	Priority     TaskPriority `json:"priority"`

	// StartDate must not be after DueDate; DurationDays is derived and
	// never below 1.
	StartDate    time.Time `json:"start_date"`
	DueDate      time.Time `json:"due_date"`
	DurationDays int       `json:"duration_days"`

	// CompletedAt is set exactly when status transitions to done and
	// cleared if status regresses.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	HandoverNote string    `json:"handover_note,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DurationDays computes the inclusive day span between start and due.
// The minimum duration is one day.
func DurationDays(start, due time.Time) int {
	days := int(due.Sub(start).Hours()/24) + 1
	if days < 1 {
		days = 1
	}
	return days
}

// NewTask creates a to-do task with derived duration.
func NewTask(projectID, category, title, assigneeID, creatorID string, priority TaskPriority, start, due time.Time) *Task {
	now := time.Now()
	return &Task{
		ProjectID:    projectID,
		CategoryName: category,
		Title:        title,
		AssigneeID:   assigneeID,
		CreatedBy:    creatorID,
		Status:       TaskTodo,
		Priority:     priority,
		StartDate:    start,
		DueDate:      due,
		DurationDays: DurationDays(start, due),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// SetStatus changes the workflow state, coupling CompletedAt to done.
func (t *Task) SetStatus(status TaskStatus) {
	if status == TaskDone && t.Status != TaskDone {
		now := time.Now()
		t.CompletedAt = &now
	}
	if status != TaskDone {
		t.CompletedAt = nil
	}
	t.Status = status
	t.UpdatedAt = time.Now()
}

// SetDates updates the schedule and recomputes duration.
func (t *Task) SetDates(start, due time.Time) {
	t.StartDate = start
	t.DueDate = due
	t.DurationDays = DurationDays(start, due)
	t.UpdatedAt = time.Now()
}

// Attachment is collaborator-provided file metadata attached to a task.
// The file itself lives in external storage; only the reference is kept.
type Attachment struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"task_id"`
	Filename   string    `json:"filename"`
	URL        string    `json:"url"`
	Type       string    `json:"type,omitempty"`
	Size       int64     `json:"size"`
	MimeType   string    `json:"mime_type,omitempty"`
	UploadedBy string    `json:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at"`
}
