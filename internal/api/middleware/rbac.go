package middleware

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/task-hive/taskhive/internal/authz"
	"github.com/task-hive/taskhive/internal/models"
	"github.com/task-hive/taskhive/internal/storage"
)

const (
	workspaceKey     contextKey = "workspace"
	workspaceRoleKey contextKey = "workspace_role"
	projectKey       contextKey = "project"
)

// RequireGlobalRole returns middleware that requires one of the given
// platform roles. super_admin always passes.
func RequireGlobalRole(allowedRoles ...models.GlobalRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userRole := GetGlobalRole(r.Context())
			if userRole == "" {
				jsonForbidden(w)
				return
			}

			if userRole == models.GlobalRoleSuperAdmin {
				next.ServeHTTP(w, r)
				return
			}

			for _, role := range allowedRoles {
				if userRole == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			jsonForbidden(w)
		})
	}
}

// RequireAdminOrSelf allows access if the caller is a platform admin or
// is accessing their own resource. Expects an {id} URL parameter.
func RequireAdminOrSelf(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUser(r.Context())
		if user == nil {
			jsonForbidden(w)
			return
		}

		if user.IsElevated() {
			next.ServeHTTP(w, r)
			return
		}

		resourceID := chi.URLParam(r, "id")
		if resourceID != "" && resourceID == user.ID {
			next.ServeHTTP(w, r)
			return
		}

		jsonForbidden(w)
	})
}

// WorkspaceContext returns middleware that loads the workspace named by
// the {workspaceID} URL parameter and resolves the caller's effective
// role in it. A workspace the caller cannot see at all yields 404, not
// 403, so membership probing reveals nothing.
func WorkspaceContext(store storage.Storage, resolver *authz.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r.Context())
			if user == nil {
				jsonUnauthorized(w)
				return
			}

			workspaceID := chi.URLParam(r, "workspaceID")
			ws, err := store.Workspaces().GetByID(r.Context(), workspaceID)
			if err != nil {
				log.Printf("workspace context: load %s: %v", workspaceID, err)
				jsonNotFound(w)
				return
			}
			if ws == nil {
				jsonNotFound(w)
				return
			}

			role, err := resolver.WorkspaceRole(r.Context(), user, workspaceID)
			if err != nil {
				log.Printf("workspace context: resolve role for %s: %v", user.ID, err)
				jsonNotFound(w)
				return
			}
			if role == models.RoleNone {
				jsonNotFound(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithWorkspace(r.Context(), ws, role)))
		})
	}
}

// ProjectContext returns middleware that loads the project named by the
// {projectID} URL parameter along with its workspace and the caller's
// effective role. Inactive projects and workspaces the caller cannot see
// both yield 404.
func ProjectContext(store storage.Storage, resolver *authz.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r.Context())
			if user == nil {
				jsonUnauthorized(w)
				return
			}

			projectID := chi.URLParam(r, "projectID")
			project, err := store.Projects().GetByID(r.Context(), projectID)
			if err != nil {
				log.Printf("project context: load %s: %v", projectID, err)
				jsonNotFound(w)
				return
			}
			if project == nil || !project.IsActive {
				jsonNotFound(w)
				return
			}

			ws, err := store.Workspaces().GetByID(r.Context(), project.WorkspaceID)
			if err != nil || ws == nil {
				jsonNotFound(w)
				return
			}

			role, err := resolver.WorkspaceRole(r.Context(), user, ws.ID)
			if err != nil {
				log.Printf("project context: resolve role for %s: %v", user.ID, err)
				jsonNotFound(w)
				return
			}
			if role == models.RoleNone {
				jsonNotFound(w)
				return
			}

			ctx := WithWorkspace(r.Context(), ws, role)
			ctx = context.WithValue(ctx, projectKey, project)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithProject stores the project on the context.
func WithProject(ctx context.Context, p *models.Project) context.Context {
	return context.WithValue(ctx, projectKey, p)
}

// GetProject returns the project loaded by ProjectContext.
func GetProject(ctx context.Context) *models.Project {
	if v := ctx.Value(projectKey); v != nil {
		if p, ok := v.(*models.Project); ok {
			return p
		}
	}
	return nil
}

// RequireWorkspaceRole returns middleware requiring at least the given
// workspace role. Must run after WorkspaceContext.
func RequireWorkspaceRole(min models.WorkspaceRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !GetWorkspaceRole(r.Context()).AtLeast(min) {
				jsonForbidden(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithWorkspace stores the workspace and the caller's effective role on
// the context.
func WithWorkspace(ctx context.Context, ws *models.Workspace, role models.WorkspaceRole) context.Context {
	ctx = context.WithValue(ctx, workspaceKey, ws)
	ctx = context.WithValue(ctx, workspaceRoleKey, role)
	return ctx
}

// GetWorkspace returns the workspace loaded by WorkspaceContext.
func GetWorkspace(ctx context.Context) *models.Workspace {
	if v := ctx.Value(workspaceKey); v != nil {
		if ws, ok := v.(*models.Workspace); ok {
			return ws
		}
	}
	return nil
}

// GetWorkspaceRole returns the caller's effective role resolved by
// WorkspaceContext.
func GetWorkspaceRole(ctx context.Context) models.WorkspaceRole {
	if v := ctx.Value(workspaceRoleKey); v != nil {
		if r, ok := v.(models.WorkspaceRole); ok {
			return r
		}
	}
	return models.RoleNone
}
