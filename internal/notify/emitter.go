// Package notify creates durable notification records and delivers invite
// email. Both are best-effort: a failure is logged and never blocks the
// operation that triggered it.
package notify

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/task-hive/taskhive/internal/models"
	"github.com/task-hive/taskhive/internal/storage"
)

// Emitter writes per-recipient notification records.
type Emitter struct {
	store storage.Storage
}

// NewEmitter creates a notification emitter.
func NewEmitter(store storage.Storage) *Emitter {
	return &Emitter{store: store}
}

func (e *Emitter) emit(ctx context.Context, n *models.Notification) {
	n.ID = uuid.New().String()
	if err := e.store.Notifications().Create(ctx, n); err != nil {
		log.Printf("notify: emit %s to %s: %v", n.Type, n.RecipientID, err)
	}
}

// InviteReceived notifies a registered user that an invite was issued to
// their email address.
func (e *Emitter) InviteReceived(ctx context.Context, recipientID, senderID string, workspaceName, workspaceID, inviteID string) {
	e.emit(ctx, models.NewNotification(recipientID, senderID, models.NotifyInviteReceived,
		"Workspace invitation",
		fmt.Sprintf("You have been invited to join %s", workspaceName),
		models.NotificationData{InviteID: inviteID},
	))
}

// InviteAccepted notifies the inviter that their invite was accepted.
func (e *Emitter) InviteAccepted(ctx context.Context, inviterID, accepterID, accepterName, workspaceName, workspaceID string) {
	e.emit(ctx, models.NewNotification(inviterID, accepterID, models.NotifyInviteAccepted,
		"Invitation accepted",
		fmt.Sprintf("%s accepted your invitation to %s", accepterName, workspaceName),
		models.NotificationData{WorkspaceID: workspaceID},
	))
}

// MemberJoined notifies workspace admins about a new member. The joining
// user is excluded if they appear in the admin list.
func (e *Emitter) MemberJoined(ctx context.Context, adminIDs []string, joinedID, joinedName, workspaceName, workspaceID string) {
	for _, adminID := range adminIDs {
		if adminID == joinedID {
			continue
		}
		e.emit(ctx, models.NewNotification(adminID, joinedID, models.NotifyMemberJoined,
			"New member",
			fmt.Sprintf("%s joined %s", joinedName, workspaceName),
			models.NotificationData{WorkspaceID: workspaceID},
		))
	}
}

// MemberLeft notifies workspace admins that a member left or was removed.
func (e *Emitter) MemberLeft(ctx context.Context, adminIDs []string, leftID, leftName, workspaceName, workspaceID string) {
	for _, adminID := range adminIDs {
		if adminID == leftID {
			continue
		}
		e.emit(ctx, models.NewNotification(adminID, leftID, models.NotifyMemberLeft,
			"Member left",
			fmt.Sprintf("%s left %s", leftName, workspaceName),
			models.NotificationData{WorkspaceID: workspaceID},
		))
	}
}

// RoleChanged notifies a member that their workspace role changed.
func (e *Emitter) RoleChanged(ctx context.Context, memberID, changedBy string, newRole models.WorkspaceRole, workspaceName, workspaceID string) {
	e.emit(ctx, models.NewNotification(memberID, changedBy, models.NotifyRoleChanged,
		"Role changed",
		fmt.Sprintf("Your role in %s is now %s", workspaceName, newRole),
		models.NotificationData{WorkspaceID: workspaceID},
	))
}

// TaskAssigned notifies the assignee of a task. Self-assignment produces
// no record.
func (e *Emitter) TaskAssigned(ctx context.Context, assigneeID, assignerID, taskTitle, taskID string) {
	if assigneeID == assignerID {
		return
	}
	e.emit(ctx, models.NewNotification(assigneeID, assignerID, models.NotifyTaskAssigned,
		"Task assigned",
		fmt.Sprintf("You have been assigned: %s", taskTitle),
		models.NotificationData{TaskID: taskID},
	))
}

// TaskCompleted notifies the task creator that their task was completed
// by someone else.
func (e *Emitter) TaskCompleted(ctx context.Context, creatorID, completerID, taskTitle, taskID string) {
	if creatorID == completerID {
		return
	}
	e.emit(ctx, models.NewNotification(creatorID, completerID, models.NotifyTaskCompleted,
		"Task completed",
		fmt.Sprintf("Task completed: %s", taskTitle),
		models.NotificationData{TaskID: taskID},
	))
}

// WorkspaceArchived notifies every member that the workspace was archived.
func (e *Emitter) WorkspaceArchived(ctx context.Context, memberIDs []string, archivedBy, workspaceName, workspaceID string) {
	for _, memberID := range memberIDs {
		if memberID == archivedBy {
			continue
		}
		e.emit(ctx, models.NewNotification(memberID, archivedBy, models.NotifyWorkspaceArchived,
			"Workspace archived",
			fmt.Sprintf("%s has been archived", workspaceName),
			models.NotificationData{WorkspaceID: workspaceID},
		))
	}
}
