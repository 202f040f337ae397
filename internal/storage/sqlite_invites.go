package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/task-hive/taskhive/internal/models"
)

type sqliteInviteRepo struct {
	db *sql.DB
}

const inviteColumns = `id, workspace_id, email, role, token, status, invited_by,
	expires_at, accepted_at, created_at`

func scanInvite(row interface{ Scan(...any) error }) (*models.Invite, error) {
	inv := &models.Invite{}
	var acceptedAt sql.NullTime
	err := row.Scan(
		&inv.ID, &inv.WorkspaceID, &inv.Email, &inv.Role, &inv.Token, &inv.Status,
		&inv.InvitedBy, &inv.ExpiresAt, &acceptedAt, &inv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if acceptedAt.Valid {
		inv.AcceptedAt = &acceptedAt.Time
	}
	return inv, nil
}

func (r *sqliteInviteRepo) Create(ctx context.Context, invite *models.Invite) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO invites (id, workspace_id, email, role, token, status, invited_by, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, invite.ID, invite.WorkspaceID, invite.Email, invite.Role, invite.Token,
		invite.Status, invite.InvitedBy, invite.ExpiresAt, invite.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert invite: %w", err)
	}
	return nil
}

func (r *sqliteInviteRepo) GetByToken(ctx context.Context, token string) (*models.Invite, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+inviteColumns+" FROM invites WHERE token = ?", token)
	inv, err := scanInvite(row)
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get invite by token: %w", err)
	}
	return inv, nil
}

func (r *sqliteInviteRepo) GetPending(ctx context.Context, workspaceID, email string) (*models.Invite, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+inviteColumns+` FROM invites
		WHERE workspace_id = ? AND email = ? AND status = 'pending'
		ORDER BY created_at DESC LIMIT 1
	`, workspaceID, email)
	inv, err := scanInvite(row)
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pending invite: %w", err)
	}
	return inv, nil
}

func (r *sqliteInviteRepo) Refresh(ctx context.Context, id, token string, role models.WorkspaceRole, expiresAt time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE invites SET token = ?, role = ?, expires_at = ?
		WHERE id = ? AND status = 'pending'
	`, token, role, expiresAt, id)
	if err != nil {
		return fmt.Errorf("refresh invite: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrInviteConsumed
	}
	return nil
}

func (r *sqliteInviteRepo) ListPending(ctx context.Context, workspaceID string) ([]*models.Invite, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+inviteColumns+` FROM invites
		WHERE workspace_id = ? AND status = 'pending'
		ORDER BY created_at DESC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list pending invites: %w", err)
	}
	defer rows.Close()

	var invites []*models.Invite
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invite: %w", err)
		}
		invites = append(invites, inv)
	}
	return invites, rows.Err()
}

// Accept consumes the invite and creates the membership in one transaction.
// The pending->accepted flip is a conditional update guarded by stored
// status and expiry, so of two concurrent acceptors exactly one wins; the
// loser observes zero rows and gets ErrInviteConsumed. An invite past its
// expiry is marked expired here even if the sweep has not reached it yet.
func (r *sqliteInviteRepo) Accept(ctx context.Context, token, userID string, now time.Time) (*models.Invite, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin accept invite: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE invites SET status = 'accepted', accepted_at = ?
		WHERE token = ? AND status = 'pending' AND expires_at > ?
	`, now, token, now)
	if err != nil {
		return nil, fmt.Errorf("consume invite: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		err := r.rejectAccept(ctx, tx, token, now)
		if err == sql.ErrNoRows {
			//nolint:nilnil
			return nil, nil
		}
		return nil, err
	}

	row := tx.QueryRowContext(ctx,
		"SELECT "+inviteColumns+" FROM invites WHERE token = ?", token)
	inv, err := scanInvite(row)
	if err != nil {
		return nil, fmt.Errorf("reload invite: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workspace_members (workspace_id, user_id, role, joined_at)
		VALUES (?, ?, ?, ?)
	`, inv.WorkspaceID, userID, inv.Role, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateMember
		}
		return nil, fmt.Errorf("insert invited membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit accept invite: %w", err)
	}
	return inv, nil
}

// rejectAccept classifies a failed conditional accept: unknown token,
// expired (marking it so), or already consumed.
func (r *sqliteInviteRepo) rejectAccept(ctx context.Context, tx *sql.Tx, token string, now time.Time) error {
	row := tx.QueryRowContext(ctx,
		"SELECT "+inviteColumns+" FROM invites WHERE token = ?", token)
	inv, err := scanInvite(row)
	if err == sql.ErrNoRows {
		return sql.ErrNoRows
	}
	if err != nil {
		return fmt.Errorf("inspect invite: %w", err)
	}

	if inv.Status == models.InviteStatusPending && !inv.ExpiresAt.After(now) {
		// Lazy expiry: the invite outlived its TTL before any sweep ran.
		if _, err := tx.ExecContext(ctx,
			"UPDATE invites SET status = 'expired' WHERE token = ? AND status = 'pending'",
			token); err != nil {
			return fmt.Errorf("mark invite expired: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit invite expiry: %w", err)
		}
		return ErrInviteExpired
	}
	if inv.Status == models.InviteStatusExpired {
		return ErrInviteExpired
	}
	return ErrInviteConsumed
}

func (r *sqliteInviteRepo) Decline(ctx context.Context, token string, now time.Time) (*models.Invite, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin decline invite: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE invites SET status = 'declined'
		WHERE token = ? AND status = 'pending' AND expires_at > ?
	`, token, now)
	if err != nil {
		return nil, fmt.Errorf("decline invite: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		err := r.rejectAccept(ctx, tx, token, now)
		if err == sql.ErrNoRows {
			//nolint:nilnil
			return nil, nil
		}
		return nil, err
	}

	row := tx.QueryRowContext(ctx,
		"SELECT "+inviteColumns+" FROM invites WHERE token = ?", token)
	inv, err := scanInvite(row)
	if err != nil {
		return nil, fmt.Errorf("reload invite: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit decline invite: %w", err)
	}
	return inv, nil
}

func (r *sqliteInviteRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM invites
		WHERE expires_at < ? AND status IN ('pending', 'expired')
	`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired invites: %w", err)
	}
	return result.RowsAffected()
}
