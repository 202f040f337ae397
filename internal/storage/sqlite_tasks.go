package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/task-hive/taskhive/internal/models"
)

// sqliteTaskRepo adjusts the project rollup counters in the same
// transaction as every task write, so the counters always equal a full
// recount.
type sqliteTaskRepo struct {
	db *sql.DB
}

const taskColumns = `id, project_id, category_name, title, description,
	assignee_id, created_by, status, priority, start_date, due_date,
	duration_days, completed_at, handover_note, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (*models.Task, error) {
	t := &models.Task{}
	var description, handoverNote sql.NullString
	var completedAt sql.NullTime
	err := row.Scan(
		&t.ID, &t.ProjectID, &t.CategoryName, &t.Title, &description,
		&t.AssigneeID, &t.CreatedBy, &t.Status, &t.Priority,
		&t.StartDate, &t.DueDate, &t.DurationDays,
		&completedAt, &handoverNote, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Description = description.String
	t.HandoverNote = handoverNote.String
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return t, nil
}

func completedDelta(status models.TaskStatus) int {
	if status == models.TaskDone {
		return 1
	}
	return 0
}

func (r *sqliteTaskRepo) Create(ctx context.Context, task *models.Task) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create task: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (id, project_id, category_name, title, description,
			assignee_id, created_by, status, priority, start_date, due_date,
			duration_days, completed_at, handover_note, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, task.ID, task.ProjectID, task.CategoryName, task.Title, task.Description,
		task.AssigneeID, task.CreatedBy, task.Status, task.Priority,
		task.StartDate, task.DueDate, task.DurationDays,
		task.CompletedAt, task.HandoverNote, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE projects
		SET total_tasks = total_tasks + 1, completed_tasks = completed_tasks + ?
		WHERE id = ?
	`, completedDelta(task.Status), task.ProjectID)
	if err != nil {
		return fmt.Errorf("bump task rollup: %w", err)
	}

	return tx.Commit()
}

func (r *sqliteTaskRepo) GetByID(ctx context.Context, id string) (*models.Task, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task by id: %w", err)
	}
	return t, nil
}

// Update persists field changes that leave the workflow status alone.
// Status changes go through UpdateStatus so the rollup delta is applied.
func (r *sqliteTaskRepo) Update(ctx context.Context, task *models.Task) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE tasks
		SET category_name = ?, title = ?, description = ?, assignee_id = ?,
		    priority = ?, start_date = ?, due_date = ?, duration_days = ?,
		    handover_note = ?, updated_at = ?
		WHERE id = ?
	`, task.CategoryName, task.Title, task.Description, task.AssigneeID,
		task.Priority, task.StartDate, task.DueDate, task.DurationDays,
		task.HandoverNote, task.UpdatedAt, task.ID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("task not found: %s", task.ID)
	}
	return nil
}

func (r *sqliteTaskRepo) UpdateStatus(ctx context.Context, task *models.Task, previous models.TaskStatus) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin task status update: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE tasks SET status = ?, completed_at = ?, handover_note = ?, updated_at = ?
		WHERE id = ?
	`, task.Status, task.CompletedAt, task.HandoverNote, task.UpdatedAt, task.ID)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("task not found: %s", task.ID)
	}

	delta := completedDelta(task.Status) - completedDelta(previous)
	if delta != 0 {
		_, err = tx.ExecContext(ctx, `
			UPDATE projects SET completed_tasks = completed_tasks + ? WHERE id = ?
		`, delta, task.ProjectID)
		if err != nil {
			return fmt.Errorf("bump completed rollup: %w", err)
		}
	}

	return tx.Commit()
}

func (r *sqliteTaskRepo) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete task: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		"SELECT project_id, status FROM tasks WHERE id = ?", id)
	var projectID string
	var status models.TaskStatus
	if err := row.Scan(&projectID, &status); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("task not found: %s", id)
		}
		return fmt.Errorf("load task for delete: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE projects
		SET total_tasks = total_tasks - 1, completed_tasks = completed_tasks - ?
		WHERE id = ?
	`, completedDelta(status), projectID)
	if err != nil {
		return fmt.Errorf("drop task rollup: %w", err)
	}

	return tx.Commit()
}

func (r *sqliteTaskRepo) ListByProject(ctx context.Context, projectID string) ([]*models.Task, error) {
	return r.list(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE project_id = ?
		ORDER BY created_at
	`, projectID)
}

func (r *sqliteTaskRepo) ListByCategory(ctx context.Context, projectID, category string) ([]*models.Task, error) {
	return r.list(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE project_id = ? AND category_name = ?
		ORDER BY created_at
	`, projectID, category)
}

func (r *sqliteTaskRepo) list(ctx context.Context, query string, args ...any) ([]*models.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *sqliteTaskRepo) Recount(ctx context.Context, projectID string) (int64, int64, error) {
	var total, completed int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN status = 'done' THEN 1 ELSE 0 END), 0)
		FROM tasks WHERE project_id = ?
	`, projectID).Scan(&total, &completed)
	if err != nil {
		return 0, 0, fmt.Errorf("recount tasks: %w", err)
	}
	return total, completed, nil
}

func (r *sqliteTaskRepo) AddAttachment(ctx context.Context, a *models.Attachment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO task_attachments (id, task_id, filename, url, type, size, mime_type, uploaded_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.TaskID, a.Filename, a.URL, a.Type, a.Size, a.MimeType, a.UploadedBy, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert attachment: %w", err)
	}
	return nil
}

func (r *sqliteTaskRepo) ListAttachments(ctx context.Context, taskID string) ([]*models.Attachment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, task_id, filename, url, type, size, mime_type, uploaded_by, created_at
		FROM task_attachments WHERE task_id = ?
		ORDER BY created_at
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	var attachments []*models.Attachment
	for rows.Next() {
		a := &models.Attachment{}
		var typ, mimeType sql.NullString
		err := rows.Scan(&a.ID, &a.TaskID, &a.Filename, &a.URL, &typ, &a.Size,
			&mimeType, &a.UploadedBy, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		a.Type = typ.String
		a.MimeType = mimeType.String
		attachments = append(attachments, a)
	}
	return attachments, rows.Err()
}
