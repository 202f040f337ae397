package models

import (
	"time"
)

// NotificationType is the closed set of event types that produce
// notification records.
type NotificationType string

const (
	NotifyInviteReceived    NotificationType = "invite_received"
	NotifyInviteAccepted    NotificationType = "invite_accepted"
	NotifyMemberJoined      NotificationType = "member_joined"
	NotifyMemberLeft        NotificationType = "member_left"
	NotifyRoleChanged       NotificationType = "role_changed"
	NotifyTaskAssigned      NotificationType = "task_assigned"
	NotifyTaskCompleted     NotificationType = "task_completed"
	NotifyWorkspaceArchived NotificationType = "workspace_archived"
)

// NotificationData references at most one of workspace, project, task, or
// invite.
type NotificationData struct {
	WorkspaceID string `json:"workspace_id,omitempty"`
	ProjectID   string `json:"project_id,omitempty"`
	TaskID      string `json:"task_id,omitempty"`
	InviteID    string `json:"invite_id,omitempty"`
}

// Notification is a durable per-recipient event record. It is immutable
// once created except for the read state.
type Notification struct {
	ID          string           `json:"id"`
	RecipientID string           `json:"recipient_id"`
	SenderID    string           `json:"sender_id,omitempty"`
	Type        NotificationType `json:"type"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Data        NotificationData `json:"data"`
	IsRead      bool             `json:"is_read"`
	ReadAt      *time.Time       `json:"read_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// NewNotification creates an unread notification.
func NewNotification(recipientID, senderID string, typ NotificationType, title, message string, data NotificationData) *Notification {
	return &Notification{
		RecipientID: recipientID,
		SenderID:    senderID,
		Type:        typ,
		Title:       title,
		Message:     message,
		Data:        data,
		CreatedAt:   time.Now(),
	}
}
