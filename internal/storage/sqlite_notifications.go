package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/task-hive/taskhive/internal/models"
)

type sqliteNotificationRepo struct {
	db *sql.DB
}

const notificationColumns = `id, recipient_id, sender_id, type, title, message,
	workspace_id, project_id, task_id, invite_id, is_read, read_at, created_at`

func scanNotification(row interface{ Scan(...any) error }) (*models.Notification, error) {
	n := &models.Notification{}
	var senderID, workspaceID, projectID, taskID, inviteID sql.NullString
	var isRead int
	var readAt sql.NullTime
	err := row.Scan(
		&n.ID, &n.RecipientID, &senderID, &n.Type, &n.Title, &n.Message,
		&workspaceID, &projectID, &taskID, &inviteID, &isRead, &readAt, &n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	n.SenderID = senderID.String
	n.Data = models.NotificationData{
		WorkspaceID: workspaceID.String,
		ProjectID:   projectID.String,
		TaskID:      taskID.String,
		InviteID:    inviteID.String,
	}
	n.IsRead = isRead != 0
	if readAt.Valid {
		n.ReadAt = &readAt.Time
	}
	return n, nil
}

func (r *sqliteNotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (id, recipient_id, sender_id, type, title, message,
			workspace_id, project_id, task_id, invite_id, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
	`, n.ID, n.RecipientID, nullString(n.SenderID), n.Type, n.Title, n.Message,
		nullString(n.Data.WorkspaceID), nullString(n.Data.ProjectID),
		nullString(n.Data.TaskID), nullString(n.Data.InviteID), n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *sqliteNotificationRepo) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+notificationColumns+" FROM notifications WHERE id = ?", id)
	n, err := scanNotification(row)
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get notification by id: %w", err)
	}
	return n, nil
}

func (r *sqliteNotificationRepo) ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]*models.Notification, error) {
	query := "SELECT " + notificationColumns + " FROM notifications WHERE recipient_id = ?"
	args := []any{recipientID}
	if unreadOnly {
		query += " AND is_read = 0"
	}
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (r *sqliteNotificationRepo) MarkRead(ctx context.Context, id string, readAt time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = 1, read_at = ?
		WHERE id = ? AND is_read = 0
	`, readAt, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	// Marking an already-read notification is a no-op, not an error.
	_, _ = result.RowsAffected()
	return nil
}

func (r *sqliteNotificationRepo) MarkAllRead(ctx context.Context, recipientID string, readAt time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = 1, read_at = ?
		WHERE recipient_id = ? AND is_read = 0
	`, readAt, recipientID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return result.RowsAffected()
}

func (r *sqliteNotificationRepo) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications WHERE recipient_id = ? AND is_read = 0
	`, recipientID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}
