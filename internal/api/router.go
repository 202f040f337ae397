package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/task-hive/taskhive/internal/api/auth"
	"github.com/task-hive/taskhive/internal/api/middleware"
	"github.com/task-hive/taskhive/internal/api/notifications"
	"github.com/task-hive/taskhive/internal/api/projects"
	"github.com/task-hive/taskhive/internal/api/tasks"
	"github.com/task-hive/taskhive/internal/api/users"
	"github.com/task-hive/taskhive/internal/api/workspaces"
	"github.com/task-hive/taskhive/internal/models"
)

// setupRouter creates and configures the chi router with all routes.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	// Create JWT service
	jwtService := auth.NewJWTService(s.config.JWTSecret, s.config.AccessTokenTTL)

	// Create lockout tracker
	lockoutTracker := auth.NewLockoutTracker(s.config.LockoutThreshold, s.config.LockoutDuration)

	// Create rate limiters
	ipLimiter := middleware.NewRateLimiter(s.config.RateLimitPerIP)
	userLimiter := middleware.NewRateLimiter(s.config.RateLimitPerUser)

	s.authHandler = auth.NewHandler(
		s.storage,
		jwtService,
		lockoutTracker,
		s.config.RefreshTokenTTL,
	)

	// Global middleware
	r.Use(middleware.RequestLogger(s.config.Verbose))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.PrometheusMiddleware)
	r.Use(middleware.Recoverer)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Auth routes (mostly public)
		r.Route("/auth", func(r chi.Router) {
			// Public routes with IP rate limiting
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimitByIP(ipLimiter))
				r.Post("/register", s.authHandler.Register)
				r.Post("/login", s.authHandler.Login)
				r.Post("/refresh", s.authHandler.Refresh)
			})

			// Protected routes
			r.Group(func(r chi.Router) {
				r.Use(middleware.JWTAuth(jwtService, s.storage))
				r.Post("/logout", s.authHandler.Logout)
			})
		})

		// User routes (protected)
		r.Route("/users", func(r chi.Router) {
			r.Use(middleware.JWTAuth(jwtService, s.storage))
			r.Use(middleware.RateLimitByUser(userLimiter))

			userHandler := users.NewHandler(s.storage)

			// Current user endpoints (any authenticated user)
			r.Get("/me", userHandler.GetCurrentUser)
			r.Put("/me/password", userHandler.ChangePassword)

			// Admin-only endpoints
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireGlobalRole(models.GlobalRoleAdmin, models.GlobalRoleSuperAdmin))
				r.Get("/", userHandler.List)
				r.Post("/", userHandler.Create)
			})

			// Per-user endpoints (admin or self)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(middleware.RequireAdminOrSelf)
				r.Get("/", userHandler.GetByID)
				r.Put("/", userHandler.Update)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireGlobalRole(models.GlobalRoleAdmin, models.GlobalRoleSuperAdmin))
					r.Delete("/", userHandler.Delete)
				})
			})
		})

		workspaceHandler := workspaces.NewHandler(s.storage, s.emitter, s.invites)
		projectHandler := projects.NewHandler(s.storage, s.resolver)
		taskHandler := tasks.NewHandler(s.storage, s.resolver, s.emitter)

		// Workspace routes (protected)
		r.Route("/workspaces", func(r chi.Router) {
			r.Use(middleware.JWTAuth(jwtService, s.storage))
			r.Use(middleware.RateLimitByUser(userLimiter))

			r.Post("/", workspaceHandler.Create)
			r.Get("/", workspaceHandler.List)

			r.Route("/{workspaceID}", func(r chi.Router) {
				r.Use(middleware.WorkspaceContext(s.storage, s.resolver))

				r.Get("/", workspaceHandler.Get)

				// Admin-level workspace management
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireWorkspaceRole(models.RoleAdmin))
					r.Put("/", workspaceHandler.Update)
					r.Post("/archive", workspaceHandler.Archive)
					r.Post("/restore", workspaceHandler.Restore)
					r.Put("/members/{userID}", workspaceHandler.UpdateMemberRole)
					r.Post("/invites", workspaceHandler.CreateInvite)
					r.Get("/invites", workspaceHandler.ListInvites)
				})

				// Ownership transfer is owner-only
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireWorkspaceRole(models.RoleOwner))
					r.Post("/transfer-ownership", workspaceHandler.TransferOwnership)
				})

				r.Get("/members", workspaceHandler.ListMembers)
				// Self-leave versus admin removal is decided in the handler.
				r.Delete("/members/{userID}", workspaceHandler.RemoveMember)

				// Projects within a workspace
				r.Get("/projects", projectHandler.List)
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireWorkspaceRole(models.RoleLead))
					r.Post("/projects", projectHandler.Create)
				})
			})
		})

		// Invite acceptance happens before membership, so only JWT auth
		// applies here.
		r.Route("/invites/{token}", func(r chi.Router) {
			r.Use(middleware.JWTAuth(jwtService, s.storage))
			r.Use(middleware.RateLimitByUser(userLimiter))
			r.Post("/accept", workspaceHandler.AcceptInvite)
			r.Post("/decline", workspaceHandler.DeclineInvite)
		})

		// Project routes (protected, project-scoped)
		r.Route("/projects/{projectID}", func(r chi.Router) {
			r.Use(middleware.JWTAuth(jwtService, s.storage))
			r.Use(middleware.RateLimitByUser(userLimiter))
			r.Use(middleware.ProjectContext(s.storage, s.resolver))

			r.Get("/", projectHandler.Get)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireWorkspaceRole(models.RoleLead))
				r.Put("/", projectHandler.Update)
				r.Put("/status", projectHandler.UpdateStatus)
				r.Delete("/", projectHandler.Delete)
				r.Post("/categories", projectHandler.CreateCategory)
			})

			r.Get("/categories", projectHandler.ListCategories)

			// Category management checks category-level elevation in the
			// handler, so no role middleware here.
			r.Route("/categories/{name}", func(r chi.Router) {
				r.Put("/", projectHandler.UpdateCategory)
				r.Delete("/", projectHandler.DeleteCategory)
				r.Get("/members", projectHandler.ListCategoryMembers)
				r.Put("/members/{userID}", projectHandler.UpsertCategoryMember)
				r.Delete("/members/{userID}", projectHandler.RemoveCategoryMember)
			})

			// Tasks within a project
			r.Route("/tasks", func(r chi.Router) {
				r.Post("/", taskHandler.Create)
				r.Get("/", taskHandler.List)

				r.Route("/{taskID}", func(r chi.Router) {
					r.Get("/", taskHandler.Get)
					r.Put("/", taskHandler.Update)
					r.Put("/status", taskHandler.UpdateStatus)
					r.Post("/handover", taskHandler.Handover)
					r.Delete("/", taskHandler.Delete)
					r.Post("/attachments", taskHandler.AddAttachment)
					r.Get("/attachments", taskHandler.ListAttachments)
				})
			})
		})

		// Notification inbox (protected)
		r.Route("/notifications", func(r chi.Router) {
			r.Use(middleware.JWTAuth(jwtService, s.storage))
			r.Use(middleware.RateLimitByUser(userLimiter))

			notificationHandler := notifications.NewHandler(s.storage)

			r.Get("/", notificationHandler.List)
			r.Get("/unread-count", notificationHandler.UnreadCount)
			r.Put("/{id}/read", notificationHandler.MarkRead)
			r.Put("/read-all", notificationHandler.MarkAllRead)
		})
	})

	// Health endpoints (public)
	r.Get("/health", s.healthHandler.Health)
	r.Get("/health/live", s.healthHandler.Live)
	r.Get("/health/ready", s.healthHandler.Ready)

	// Fallback handlers
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		JSONError(w, ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		JSONError(w, &Error{
			Code:    "METHOD_NOT_ALLOWED",
			Message: "method not allowed",
			Status:  http.StatusMethodNotAllowed,
		})
	})

	return r
}
