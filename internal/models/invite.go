package models

import (
	"crypto/rand"
	"encoding/base64"
	"time"
)

// InviteStatus represents the state of a workspace invitation.
// Transitions are one-way: pending -> accepted | declined | expired.
type InviteStatus string

const (
	InviteStatusPending  InviteStatus = "pending"
	InviteStatusAccepted InviteStatus = "accepted"
	InviteStatusDeclined InviteStatus = "declined"
	InviteStatusExpired  InviteStatus = "expired"
)

// InviteTTL is how long an invite remains acceptable after issuance.
const InviteTTL = 7 * 24 * time.Hour

// Invite is a single-use credential granting a role in one workspace to
// one email address.
type Invite struct {
	ID          string        `json:"id"`
	WorkspaceID string        `json:"workspace_id"`
	Email       string        `json:"email"`
	Role        WorkspaceRole `json:"role"`
	Token       string        `json:"-"` // Only sent to the invitee, never listed
	Status      InviteStatus  `json:"status"`
	InvitedBy   string        `json:"invited_by"`
	ExpiresAt   time.Time     `json:"expires_at"`
	AcceptedAt  *time.Time    `json:"accepted_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// NewInvite creates a pending invite with a fresh token and expiry.
func NewInvite(workspaceID, email string, role WorkspaceRole, invitedBy string) (*Invite, error) {
	token, err := NewInviteToken()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &Invite{
		WorkspaceID: workspaceID,
		Email:       email,
		Role:        role,
		Token:       token,
		Status:      InviteStatusPending,
		InvitedBy:   invitedBy,
		ExpiresAt:   now.Add(InviteTTL),
		CreatedAt:   now,
	}, nil
}

// NewInviteToken generates a cryptographically unguessable invite token.
func NewInviteToken() (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(tokenBytes), nil
}

// IsExpired returns true if the invite is past its expiry timestamp,
// regardless of stored status.
func (i *Invite) IsExpired() bool {
	return time.Now().After(i.ExpiresAt)
}

// IsAcceptable returns true if the invite is pending and unexpired. The
// storage layer re-checks this condition atomically at consume time; this
// helper is for early rejection only.
func (i *Invite) IsAcceptable() bool {
	return i.Status == InviteStatusPending && !i.IsExpired()
}

// InvitableRoles are the roles an invite may carry. Ownership is never
// granted by invitation.
var InvitableRoles = []WorkspaceRole{RoleViewer, RoleMember, RoleLead, RoleAdmin}

// IsInvitableRole returns true if role may be assigned via invite.
func IsInvitableRole(role WorkspaceRole) bool {
	for _, r := range InvitableRoles {
		if r == role {
			return true
		}
	}
	return false
}
