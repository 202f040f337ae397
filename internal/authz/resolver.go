// Package authz resolves a user's effective role for a given scope and
// exposes the capability checks handlers gate on.
package authz

import (
	"context"

	"github.com/task-hive/taskhive/internal/models"
	"github.com/task-hive/taskhive/internal/storage"
)

// Resolver computes effective roles from the global role, the workspace
// membership, and the category roster. Resolution fails closed: a user
// with no applicable grant resolves to RoleNone.
type Resolver struct {
	store storage.Storage
}

// NewResolver creates a role resolver backed by the given storage.
func NewResolver(store storage.Storage) *Resolver {
	return &Resolver{store: store}
}

// WorkspaceRole returns the user's effective role in a workspace.
//
// Precedence: super_admin acts as owner everywhere; a global admin is
// treated as workspace admin regardless of membership; otherwise the
// membership row decides, and a missing row resolves to RoleNone.
func (r *Resolver) WorkspaceRole(ctx context.Context, user *models.User, workspaceID string) (models.WorkspaceRole, error) {
	if user.IsSuperAdmin() {
		return models.RoleOwner, nil
	}

	m, err := r.store.Workspaces().GetMember(ctx, workspaceID, user.ID)
	if err != nil {
		return models.RoleNone, err
	}

	membershipRole := models.RoleNone
	if m != nil {
		membershipRole = m.Role
	}

	if user.IsElevated() && !membershipRole.AtLeast(models.RoleAdmin) {
		return models.RoleAdmin, nil
	}
	return membershipRole, nil
}

// CategoryRole returns the user's effective role for operations scoped to
// one category of a project. A category grant can raise the workspace
// role but never lowers it, and the elevation applies only inside that
// category.
func (r *Resolver) CategoryRole(ctx context.Context, user *models.User, workspaceID, projectID, category string) (models.WorkspaceRole, error) {
	base, err := r.WorkspaceRole(ctx, user, workspaceID)
	if err != nil {
		return models.RoleNone, err
	}

	cm, err := r.store.Projects().GetCategoryMember(ctx, projectID, category, user.ID)
	if err != nil {
		return models.RoleNone, err
	}
	if cm != nil && cm.Role.AtLeast(base) {
		return cm.Role, nil
	}
	return base, nil
}

// Capability thresholds. Each returns true if the resolved role grants
// the operation.

// CanView allows reading workspace content.
func CanView(role models.WorkspaceRole) bool {
	return role.AtLeast(models.RoleViewer)
}

// CanCreateTask allows creating tasks and commenting.
func CanCreateTask(role models.WorkspaceRole) bool {
	return role.AtLeast(models.RoleMember)
}

// CanManageProject allows creating and editing projects, categories, and
// category rosters, and assigning tasks.
func CanManageProject(role models.WorkspaceRole) bool {
	return role.AtLeast(models.RoleLead)
}

// CanManageMembers allows inviting, changing member roles, and removing
// members.
func CanManageMembers(role models.WorkspaceRole) bool {
	return role.AtLeast(models.RoleAdmin)
}

// CanAdministerWorkspace allows editing workspace settings and archiving.
func CanAdministerWorkspace(role models.WorkspaceRole) bool {
	return role.AtLeast(models.RoleAdmin)
}

// CanTransferOwnership allows handing the workspace to another member.
// Only the owner holds this.
func CanTransferOwnership(role models.WorkspaceRole) bool {
	return role == models.RoleOwner
}
