// Package storage provides database storage interfaces and implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/task-hive/taskhive/internal/models"
)

// Invariant violations surfaced by conditional writes. Handlers map these
// onto the API error taxonomy.
var (
	// ErrLastOwner is returned when a demote or remove would leave a
	// workspace without an owner.
	ErrLastOwner = errors.New("workspace must retain exactly one owner")

	// ErrNotMember is returned when an operation targets a user without a
	// membership row in the workspace.
	ErrNotMember = errors.New("user is not a member of the workspace")

	// ErrDuplicateMember is returned when a membership already exists.
	ErrDuplicateMember = errors.New("user is already a member of the workspace")

	// ErrInviteConsumed is returned when an invite is no longer pending.
	ErrInviteConsumed = errors.New("invite already consumed")

	// ErrInviteExpired is returned when an invite is past its expiry,
	// regardless of its stored status.
	ErrInviteExpired = errors.New("invite expired")

	// ErrCategoryNotEmpty is returned when deleting a category that still
	// holds tasks.
	ErrCategoryNotEmpty = errors.New("category still contains tasks")
)

// Storage is the main interface for database operations.
type Storage interface {
	// Open initializes the database connection.
	Open() error
	// Close closes the database connection.
	Close() error
	// Migrate runs database migrations.
	Migrate() error
	// EnsureSuperAdmin creates the bootstrap super_admin if no users exist.
	EnsureSuperAdmin() error

	// Repository accessors
	Users() UserRepository
	Workspaces() WorkspaceRepository
	Invites() InviteRepository
	Projects() ProjectRepository
	Tasks() TaskRepository
	Notifications() NotificationRepository
	Tokens() TokenRepository
}

// UserRepository defines operations for user accounts.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	// Delete removes the user and its memberships, category memberships,
	// and notifications. Tasks keep the user id as a historical reference.
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.User, error)
	Count(ctx context.Context) (int64, error)
}

// WorkspaceRepository defines operations for workspaces and their member
// roster. Membership rows are the single source of truth for both the
// workspace-side and user-side views.
type WorkspaceRepository interface {
	// Create inserts the workspace and its owner membership in one
	// transaction.
	Create(ctx context.Context, ws *models.Workspace, ownerID string) error
	GetByID(ctx context.Context, id string) (*models.Workspace, error)
	Update(ctx context.Context, ws *models.Workspace) error
	// ListForUser returns the workspaces the user belongs to, with the
	// user's role in each.
	ListForUser(ctx context.Context, userID string) ([]*models.WorkspaceMembership, error)

	GetMember(ctx context.Context, workspaceID, userID string) (*models.Member, error)
	ListMembers(ctx context.Context, workspaceID string) ([]*models.MemberInfo, error)
	AddMember(ctx context.Context, m *models.Member) error
	// UpdateMemberRole changes a member's role. The write carries the
	// owner-count guard: demoting the sole owner fails with ErrLastOwner.
	UpdateMemberRole(ctx context.Context, workspaceID, userID string, role models.WorkspaceRole) error
	// RemoveMember deletes a membership. Removing the sole owner fails
	// with ErrLastOwner.
	RemoveMember(ctx context.Context, workspaceID, userID string) error
	// TransferOwnership demotes the current owner to admin and promotes
	// the target member to owner in a single transaction.
	TransferOwnership(ctx context.Context, workspaceID, fromUserID, toUserID string) error

	// CountOwnerships returns how many workspaces the user owns.
	CountOwnerships(ctx context.Context, userID string) (int64, error)
	// AdminIDs returns the user ids of the workspace's owner and admins.
	AdminIDs(ctx context.Context, workspaceID string) ([]string, error)
	// PurgeExpiredArchived deletes archived workspaces whose deletion
	// schedule has passed.
	PurgeExpiredArchived(ctx context.Context, now time.Time) (int64, error)
}

// InviteRepository defines operations for the invite lifecycle.
type InviteRepository interface {
	Create(ctx context.Context, invite *models.Invite) error
	GetByToken(ctx context.Context, token string) (*models.Invite, error)
	// GetPending returns the pending, unexpired invite for the
	// (workspace, email) pair, if any.
	GetPending(ctx context.Context, workspaceID, email string) (*models.Invite, error)
	// Refresh rotates the token, role, and expiry of an existing pending
	// invite (the issue-time reuse policy).
	Refresh(ctx context.Context, id, token string, role models.WorkspaceRole, expiresAt time.Time) error
	ListPending(ctx context.Context, workspaceID string) ([]*models.Invite, error)

	// Accept atomically consumes the invite and creates the membership.
	// The pending->accepted transition is a conditional update guarded by
	// the stored status and expiry, so concurrent acceptors race safely:
	// exactly one succeeds, the loser gets ErrInviteConsumed. An invite
	// past expiry fails with ErrInviteExpired (and is marked expired as a
	// side effect) no matter what status the sweep has left behind.
	Accept(ctx context.Context, token, userID string, now time.Time) (*models.Invite, error)
	// Decline transitions a pending invite to declined.
	Decline(ctx context.Context, token string, now time.Time) (*models.Invite, error)
	// DeleteExpired removes invites past their expiry (TTL sweep).
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// ProjectRepository defines operations for projects, categories, and
// category membership.
type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	GetByID(ctx context.Context, id string) (*models.Project, error)
	Update(ctx context.Context, project *models.Project) error
	// SoftDelete marks the project inactive; it disappears from listings.
	SoftDelete(ctx context.Context, id string) error
	ListByWorkspace(ctx context.Context, workspaceID string) ([]*models.Project, error)

	CreateCategory(ctx context.Context, c *models.Category) error
	GetCategory(ctx context.Context, projectID, name string) (*models.Category, error)
	ListCategories(ctx context.Context, projectID string) ([]*models.Category, error)
	UpdateCategory(ctx context.Context, c *models.Category) error
	// DeleteCategory fails with ErrCategoryNotEmpty while tasks reference
	// the category.
	DeleteCategory(ctx context.Context, projectID, name string) error

	UpsertCategoryMember(ctx context.Context, m *models.CategoryMember) error
	GetCategoryMember(ctx context.Context, projectID, category, userID string) (*models.CategoryMember, error)
	ListCategoryMembers(ctx context.Context, projectID, category string) ([]*models.CategoryMember, error)
	RemoveCategoryMember(ctx context.Context, projectID, category, userID string) error
}

// TaskRepository defines operations for tasks. Every write that changes
// the live task set adjusts the project rollup counters in the same
// transaction, keeping them equal to a full recount at all times.
type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id string) (*models.Task, error)
	// Update persists field changes that do not affect workflow status.
	Update(ctx context.Context, task *models.Task) error
	// UpdateStatus persists a status transition, adjusting the project's
	// completed counter by the to/from delta.
	UpdateStatus(ctx context.Context, task *models.Task, previous models.TaskStatus) error
	Delete(ctx context.Context, id string) error
	ListByProject(ctx context.Context, projectID string) ([]*models.Task, error)
	ListByCategory(ctx context.Context, projectID, category string) ([]*models.Task, error)
	// Recount returns the live totals for a project, for verifying the
	// incremental rollups.
	Recount(ctx context.Context, projectID string) (total, completed int64, err error)

	AddAttachment(ctx context.Context, a *models.Attachment) error
	ListAttachments(ctx context.Context, taskID string) ([]*models.Attachment, error)
}

// NotificationRepository defines operations for notification records.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	GetByID(ctx context.Context, id string) (*models.Notification, error)
	ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]*models.Notification, error)
	MarkRead(ctx context.Context, id string, readAt time.Time) error
	// MarkAllRead flips every unread notification of the recipient in one
	// statement; there is no partial success.
	MarkAllRead(ctx context.Context, recipientID string, readAt time.Time) (int64, error)
	CountUnread(ctx context.Context, recipientID string) (int64, error)
}

// TokenRepository defines operations for refresh token management.
type TokenRepository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	RevokeByTokenHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context) (int64, error)
}
