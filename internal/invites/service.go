// Package invites implements the workspace invitation lifecycle: issue,
// accept, decline, and expiry.
package invites

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/task-hive/taskhive/internal/models"
	"github.com/task-hive/taskhive/internal/notify"
	"github.com/task-hive/taskhive/internal/storage"
)

var (
	// ErrAlreadyMember is returned when the invitee already belongs to the
	// workspace.
	ErrAlreadyMember = errors.New("user is already a member of the workspace")

	// ErrRoleNotInvitable is returned for roles an invite cannot carry.
	ErrRoleNotInvitable = errors.New("role cannot be granted by invitation")

	// ErrEmailMismatch is returned when the accepting account's email does
	// not match the address the invite was issued to.
	ErrEmailMismatch = errors.New("invite was issued to a different email address")
)

// Service orchestrates invites across storage, notifications, and mail.
type Service struct {
	store   storage.Storage
	emitter *notify.Emitter
	mailer  *notify.Mailer
}

// NewService creates an invite service. mailer may be nil when mail
// delivery is disabled.
func NewService(store storage.Storage, emitter *notify.Emitter, mailer *notify.Mailer) *Service {
	return &Service{store: store, emitter: emitter, mailer: mailer}
}

// Issue creates a pending invite for the email address, or refreshes the
// existing pending one: re-inviting the same address rotates the token,
// updates the role, and restarts the expiry clock instead of stacking a
// second invite.
func (s *Service) Issue(ctx context.Context, workspaceID, email string, role models.WorkspaceRole, inviter *models.User) (*models.Invite, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !models.IsInvitableRole(role) {
		return nil, ErrRoleNotInvitable
	}

	ws, err := s.store.Workspaces().GetByID(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if ws == nil {
		return nil, fmt.Errorf("workspace not found: %s", workspaceID)
	}

	// An invitee who already has an account and a membership needs no
	// invite.
	invitee, err := s.store.Users().GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if invitee != nil {
		m, err := s.store.Workspaces().GetMember(ctx, workspaceID, invitee.ID)
		if err != nil {
			return nil, err
		}
		if m != nil {
			return nil, ErrAlreadyMember
		}
	}

	invite, err := s.issueOrRefresh(ctx, workspaceID, email, role, inviter.ID)
	if err != nil {
		return nil, err
	}

	if invitee != nil {
		s.emitter.InviteReceived(ctx, invitee.ID, inviter.ID, ws.Name, ws.ID, invite.ID)
	}
	s.sendMail(invite, ws.Name)

	return invite, nil
}

func (s *Service) issueOrRefresh(ctx context.Context, workspaceID, email string, role models.WorkspaceRole, inviterID string) (*models.Invite, error) {
	existing, err := s.store.Invites().GetPending(ctx, workspaceID, email)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		token, err := models.NewInviteToken()
		if err != nil {
			return nil, err
		}
		expiresAt := time.Now().Add(models.InviteTTL)
		if err := s.store.Invites().Refresh(ctx, existing.ID, token, role, expiresAt); err != nil {
			return nil, err
		}
		existing.Token = token
		existing.Role = role
		existing.ExpiresAt = expiresAt
		return existing, nil
	}

	invite, err := models.NewInvite(workspaceID, email, role, inviterID)
	if err != nil {
		return nil, err
	}
	invite.ID = uuid.New().String()
	if err := s.store.Invites().Create(ctx, invite); err != nil {
		return nil, err
	}
	return invite, nil
}

// sendMail delivers the invite link without blocking the request. A
// failed or throttled send only loses the email; the invite itself is
// already durable and listable.
func (s *Service) sendMail(invite *models.Invite, workspaceName string) {
	if s.mailer == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := s.mailer.SendInvite(ctx, invite.Email, workspaceName, invite.Token, invite.ExpiresAt); err != nil {
			log.Printf("invites: send mail to %s: %v", invite.Email, err)
		}
	}()
}

// Accept consumes the invite for the given user and grants the
// membership. The invite must have been issued to the user's email
// address. Returns nil, nil for an unknown token.
func (s *Service) Accept(ctx context.Context, token string, user *models.User) (*models.Invite, error) {
	invite, err := s.store.Invites().GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if invite == nil {
		//nolint:nilnil
		return nil, nil
	}
	if !strings.EqualFold(invite.Email, user.Email) {
		return nil, ErrEmailMismatch
	}

	accepted, err := s.store.Invites().Accept(ctx, token, user.ID, time.Now())
	if err != nil {
		return nil, err
	}
	if accepted == nil {
		//nolint:nilnil
		return nil, nil
	}

	ws, err := s.store.Workspaces().GetByID(ctx, accepted.WorkspaceID)
	if err != nil || ws == nil {
		return accepted, nil
	}

	s.emitter.InviteAccepted(ctx, accepted.InvitedBy, user.ID, user.Username, ws.Name, ws.ID)
	adminIDs, err := s.store.Workspaces().AdminIDs(ctx, ws.ID)
	if err == nil {
		s.emitter.MemberJoined(ctx, adminIDs, user.ID, user.Username, ws.Name, ws.ID)
	}

	return accepted, nil
}

// Decline marks the invite declined. The invite must have been issued to
// the user's email address. Returns nil, nil for an unknown token.
func (s *Service) Decline(ctx context.Context, token string, user *models.User) (*models.Invite, error) {
	invite, err := s.store.Invites().GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if invite == nil {
		//nolint:nilnil
		return nil, nil
	}
	if !strings.EqualFold(invite.Email, user.Email) {
		return nil, ErrEmailMismatch
	}

	return s.store.Invites().Decline(ctx, token, time.Now())
}

// ListPending returns the open invites of a workspace.
func (s *Service) ListPending(ctx context.Context, workspaceID string) ([]*models.Invite, error) {
	return s.store.Invites().ListPending(ctx, workspaceID)
}

// Sweep removes invites past their expiry. Expiry is also enforced
// lazily at accept time, so the sweep only reclaims storage.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	return s.store.Invites().DeleteExpired(ctx, time.Now())
}
