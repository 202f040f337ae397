package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/task-hive/taskhive/internal/models"
)

type sqliteWorkspaceRepo struct {
	db *sql.DB
}

func (r *sqliteWorkspaceRepo) Create(ctx context.Context, ws *models.Workspace, ownerID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create workspace: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workspaces (id, name, description, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ws.ID, ws.Name, ws.Description, ws.CreatedBy, ws.CreatedAt, ws.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert workspace: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workspace_members (workspace_id, user_id, role, joined_at)
		VALUES (?, ?, ?, ?)
	`, ws.ID, ownerID, models.RoleOwner, ws.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert owner membership: %w", err)
	}

	return tx.Commit()
}

func (r *sqliteWorkspaceRepo) GetByID(ctx context.Context, id string) (*models.Workspace, error) {
	query := `
		SELECT id, name, description, created_by, is_archived, archived_at,
		       archived_by, delete_scheduled_at, created_at, updated_at
		FROM workspaces WHERE id = ?
	`
	ws := &models.Workspace{}
	var description, archivedBy sql.NullString
	var archived int
	var archivedAt, deleteAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&ws.ID, &ws.Name, &description, &ws.CreatedBy, &archived, &archivedAt,
		&archivedBy, &deleteAt, &ws.CreatedAt, &ws.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get workspace by id: %w", err)
	}
	ws.Description = description.String
	ws.IsArchived = archived != 0
	ws.ArchivedBy = archivedBy.String
	if archivedAt.Valid {
		ws.ArchivedAt = &archivedAt.Time
	}
	if deleteAt.Valid {
		ws.DeleteScheduledAt = &deleteAt.Time
	}
	return ws, nil
}

func (r *sqliteWorkspaceRepo) Update(ctx context.Context, ws *models.Workspace) error {
	query := `
		UPDATE workspaces
		SET name = ?, description = ?, is_archived = ?, archived_at = ?,
		    archived_by = ?, delete_scheduled_at = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		ws.Name, ws.Description, boolToInt(ws.IsArchived), ws.ArchivedAt,
		nullString(ws.ArchivedBy), ws.DeleteScheduledAt, ws.UpdatedAt,
		ws.ID,
	)
	if err != nil {
		return fmt.Errorf("update workspace: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("workspace not found: %s", ws.ID)
	}
	return nil
}

func (r *sqliteWorkspaceRepo) ListForUser(ctx context.Context, userID string) ([]*models.WorkspaceMembership, error) {
	query := `
		SELECT w.id, w.name, w.description, w.created_by, w.is_archived, w.archived_at,
		       w.archived_by, w.delete_scheduled_at, w.created_at, w.updated_at,
		       m.role, m.joined_at
		FROM workspaces w
		INNER JOIN workspace_members m ON w.id = m.workspace_id
		WHERE m.user_id = ?
		ORDER BY w.name
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list workspaces for user: %w", err)
	}
	defer rows.Close()

	var memberships []*models.WorkspaceMembership
	for rows.Next() {
		ws := &models.Workspace{}
		wm := &models.WorkspaceMembership{Workspace: ws}
		var description, archivedBy sql.NullString
		var archived int
		var archivedAt, deleteAt sql.NullTime
		err := rows.Scan(
			&ws.ID, &ws.Name, &description, &ws.CreatedBy, &archived, &archivedAt,
			&archivedBy, &deleteAt, &ws.CreatedAt, &ws.UpdatedAt,
			&wm.Role, &wm.JoinedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan workspace membership: %w", err)
		}
		ws.Description = description.String
		ws.IsArchived = archived != 0
		ws.ArchivedBy = archivedBy.String
		if archivedAt.Valid {
			ws.ArchivedAt = &archivedAt.Time
		}
		if deleteAt.Valid {
			ws.DeleteScheduledAt = &deleteAt.Time
		}
		memberships = append(memberships, wm)
	}
	return memberships, rows.Err()
}

func (r *sqliteWorkspaceRepo) GetMember(ctx context.Context, workspaceID, userID string) (*models.Member, error) {
	query := `
		SELECT workspace_id, user_id, role, joined_at
		FROM workspace_members WHERE workspace_id = ? AND user_id = ?
	`
	m := &models.Member{}
	err := r.db.QueryRowContext(ctx, query, workspaceID, userID).Scan(
		&m.WorkspaceID, &m.UserID, &m.Role, &m.JoinedAt,
	)
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (r *sqliteWorkspaceRepo) ListMembers(ctx context.Context, workspaceID string) ([]*models.MemberInfo, error) {
	query := `
		SELECT u.id, u.username, u.email, m.role, m.joined_at
		FROM users u
		INNER JOIN workspace_members m ON u.id = m.user_id
		WHERE m.workspace_id = ?
		ORDER BY u.username
	`
	rows, err := r.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []*models.MemberInfo
	for rows.Next() {
		m := &models.MemberInfo{}
		if err := rows.Scan(&m.UserID, &m.Username, &m.Email, &m.Role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *sqliteWorkspaceRepo) AddMember(ctx context.Context, m *models.Member) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO workspace_members (workspace_id, user_id, role, joined_at)
		VALUES (?, ?, ?, ?)
	`, m.WorkspaceID, m.UserID, m.Role, m.JoinedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateMember
		}
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

// UpdateMemberRole changes a member's role. The statement carries the
// owner-count guard, so two concurrent demotions of the last owner cannot
// both pass: the invariant lives in the write, not in a prior read.
// Promotions to owner must go through TransferOwnership.
func (r *sqliteWorkspaceRepo) UpdateMemberRole(ctx context.Context, workspaceID, userID string, role models.WorkspaceRole) error {
	if role == models.RoleOwner {
		return fmt.Errorf("ownership is granted only via transfer")
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE workspace_members SET role = ?
		WHERE workspace_id = ? AND user_id = ?
		  AND (role != 'owner'
		       OR (SELECT COUNT(*) FROM workspace_members
		           WHERE workspace_id = ? AND role = 'owner') > 1)
	`, role, workspaceID, userID, workspaceID)
	if err != nil {
		return fmt.Errorf("update member role: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		m, err := r.GetMember(ctx, workspaceID, userID)
		if err != nil {
			return err
		}
		if m == nil {
			return ErrNotMember
		}
		return ErrLastOwner
	}
	return nil
}

// RemoveMember deletes a membership with the same owner-count guard as
// UpdateMemberRole.
func (r *sqliteWorkspaceRepo) RemoveMember(ctx context.Context, workspaceID, userID string) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM workspace_members
		WHERE workspace_id = ? AND user_id = ?
		  AND (role != 'owner'
		       OR (SELECT COUNT(*) FROM workspace_members
		           WHERE workspace_id = ? AND role = 'owner') > 1)
	`, workspaceID, userID, workspaceID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		m, err := r.GetMember(ctx, workspaceID, userID)
		if err != nil {
			return err
		}
		if m == nil {
			return ErrNotMember
		}
		return ErrLastOwner
	}
	return nil
}

// TransferOwnership demotes the current owner to admin and promotes the
// target in one transaction. Either both writes land or neither does, so
// the workspace always has exactly one owner.
func (r *sqliteWorkspaceRepo) TransferOwnership(ctx context.Context, workspaceID, fromUserID, toUserID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ownership transfer: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE workspace_members SET role = 'admin'
		WHERE workspace_id = ? AND user_id = ? AND role = 'owner'
	`, workspaceID, fromUserID)
	if err != nil {
		return fmt.Errorf("demote owner: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotMember
	}

	result, err = tx.ExecContext(ctx, `
		UPDATE workspace_members SET role = 'owner'
		WHERE workspace_id = ? AND user_id = ?
	`, workspaceID, toUserID)
	if err != nil {
		return fmt.Errorf("promote new owner: %w", err)
	}
	rows, _ = result.RowsAffected()
	if rows == 0 {
		return ErrNotMember
	}

	return tx.Commit()
}

func (r *sqliteWorkspaceRepo) CountOwnerships(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM workspace_members WHERE user_id = ? AND role = 'owner'
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count ownerships: %w", err)
	}
	return count, nil
}

func (r *sqliteWorkspaceRepo) AdminIDs(ctx context.Context, workspaceID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id FROM workspace_members
		WHERE workspace_id = ? AND role IN ('owner', 'admin')
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list workspace admins: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan admin id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *sqliteWorkspaceRepo) PurgeExpiredArchived(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM workspaces
		WHERE is_archived = 1 AND delete_scheduled_at IS NOT NULL AND delete_scheduled_at < ?
	`, now)
	if err != nil {
		return 0, fmt.Errorf("purge archived workspaces: %w", err)
	}
	return result.RowsAffected()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
