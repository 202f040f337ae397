package projects

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/task-hive/taskhive/internal/api/middleware"
	"github.com/task-hive/taskhive/internal/authz"
	"github.com/task-hive/taskhive/internal/models"
	"github.com/task-hive/taskhive/internal/storage"
)

// Response helpers (local to avoid import cycle)

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type dataResponse struct {
	Data any `json:"data"`
}

// Error codes
const (
	errCodeBadRequest       = "BAD_REQUEST"
	errCodeValidationFailed = "VALIDATION_FAILED"
	errCodeNotFound         = "NOT_FOUND"
	errCodeConflict         = "CONFLICT"
	errCodeForbidden        = "FORBIDDEN"
	errCodeInternalError    = "INTERNAL_ERROR"
)

func jsonError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: errorBody{Code: code, Message: message}})
}

func jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(dataResponse{Data: data})
}

func jsonCreated(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(dataResponse{Data: data})
}

func jsonNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func jsonInternal(w http.ResponseWriter) {
	jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
}

// Handler handles project and category endpoints.
type Handler struct {
	storage  storage.Storage
	resolver *authz.Resolver
}

// NewHandler creates a new project handler.
func NewHandler(store storage.Storage, resolver *authz.Resolver) *Handler {
	return &Handler{storage: store, resolver: resolver}
}

// CreateRequest is the request body for creating a project.
type CreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// UpdateRequest is the request body for updating project metadata.
type UpdateRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// StatusRequest is the request body for a lifecycle status change.
type StatusRequest struct {
	Status string `json:"status"`
}

// CategoryRequest is the request body for creating a category.
type CategoryRequest struct {
	Name     string `json:"name"`
	Position int    `json:"position"`
}

// CategoryUpdateRequest is the request body for updating a category.
type CategoryUpdateRequest struct {
	Status   *string `json:"status,omitempty"`
	Position *int    `json:"position,omitempty"`
}

// CategoryMemberRequest is the request body for a category role grant.
type CategoryMemberRequest struct {
	Role string `json:"role"`
}

// requireActive rejects mutations when the owning workspace is archived.
func requireActive(w http.ResponseWriter, ws *models.Workspace) bool {
	if ws.IsArchived {
		jsonError(w, http.StatusConflict, errCodeConflict, "workspace is archived")
		return false
	}
	return true
}

// Create creates a project in the workspace (lead+).
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ws := middleware.GetWorkspace(ctx)
	if !requireActive(w, ws) {
		return
	}

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	if err := ValidateName(req.Name); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	userID := middleware.GetUserID(ctx)

	project := models.NewProject(ws.ID, strings.TrimSpace(req.Name), req.Description, userID)
	project.ID = uuid.New().String()

	if err := h.storage.Projects().Create(ctx, project); err != nil {
		log.Printf("create project error: %v", err)
		jsonInternal(w)
		return
	}

	log.Printf("project created: %s (%s) in workspace %s", project.Name, project.ID, ws.ID)

	jsonCreated(w, project)
}

// List returns the workspace's active projects.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ws := middleware.GetWorkspace(ctx)

	projects, err := h.storage.Projects().ListByWorkspace(ctx, ws.ID)
	if err != nil {
		log.Printf("list projects error: %v", err)
		jsonInternal(w)
		return
	}

	jsonOK(w, projects)
}

// Get returns the project loaded by the context middleware.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, middleware.GetProject(r.Context()))
}

// Update updates project metadata (lead+).
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ws := middleware.GetWorkspace(ctx)
	if !requireActive(w, ws) {
		return
	}
	project := middleware.GetProject(ctx)

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	if req.Name != nil {
		if err := ValidateName(*req.Name); err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
			return
		}
		project.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		project.Description = *req.Description
	}
	project.UpdatedAt = time.Now()

	if err := h.storage.Projects().Update(ctx, project); err != nil {
		log.Printf("update project error: %v", err)
		jsonInternal(w)
		return
	}

	jsonOK(w, project)
}

// UpdateStatus changes the project lifecycle status; progress is derived
// from the status, never set directly (lead+).
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ws := middleware.GetWorkspace(ctx)
	if !requireActive(w, ws) {
		return
	}
	project := middleware.GetProject(ctx)

	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	status, err := ValidateStatus(req.Status)
	if err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	project.SetStatus(status)

	if err := h.storage.Projects().Update(ctx, project); err != nil {
		log.Printf("update project status error: %v", err)
		jsonInternal(w)
		return
	}

	jsonOK(w, project)
}

// Delete soft-deletes the project (lead+). Tasks are retained but the
// project disappears from listings.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ws := middleware.GetWorkspace(ctx)
	if !requireActive(w, ws) {
		return
	}
	project := middleware.GetProject(ctx)

	if err := h.storage.Projects().SoftDelete(ctx, project.ID); err != nil {
		log.Printf("delete project error: %v", err)
		jsonInternal(w)
		return
	}

	log.Printf("project deleted: %s (%s)", project.Name, project.ID)

	jsonNoContent(w)
}

// CreateCategory adds a category to the project (lead+).
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ws := middleware.GetWorkspace(ctx)
	if !requireActive(w, ws) {
		return
	}
	project := middleware.GetProject(ctx)

	var req CategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	if err := ValidateCategoryName(req.Name); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	name := strings.TrimSpace(req.Name)

	existing, err := h.storage.Projects().GetCategory(ctx, project.ID, name)
	if err != nil {
		log.Printf("create category error: check existing: %v", err)
		jsonInternal(w)
		return
	}
	if existing != nil {
		jsonError(w, http.StatusConflict, errCodeConflict, "category already exists")
		return
	}

	category := &models.Category{
		ProjectID: project.ID,
		Name:      name,
		Status:    models.CategoryNotStarted,
		Position:  req.Position,
		CreatedAt: time.Now(),
	}

	if err := h.storage.Projects().CreateCategory(ctx, category); err != nil {
		log.Printf("create category error: %v", err)
		jsonInternal(w)
		return
	}

	jsonCreated(w, category)
}

// ListCategories returns the project's categories in position order.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	project := middleware.GetProject(ctx)

	categories, err := h.storage.Projects().ListCategories(ctx, project.ID)
	if err != nil {
		log.Printf("list categories error: %v", err)
		jsonInternal(w)
		return
	}

	jsonOK(w, categories)
}

// UpdateCategory updates a category's status or position. Requires lead
// at the workspace or within the category.
func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ws := middleware.GetWorkspace(ctx)
	if !requireActive(w, ws) {
		return
	}
	project := middleware.GetProject(ctx)
	name := chi.URLParam(r, "name")

	if !h.canManageCategory(ctx, w, ws.ID, project.ID, name) {
		return
	}

	category, err := h.storage.Projects().GetCategory(ctx, project.ID, name)
	if err != nil {
		log.Printf("update category error: get: %v", err)
		jsonInternal(w)
		return
	}
	if category == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "category not found")
		return
	}

	var req CategoryUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	if req.Status != nil {
		status, err := ValidateCategoryStatus(*req.Status)
		if err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
			return
		}
		category.SetStatus(status)
	}
	if req.Position != nil {
		category.Position = *req.Position
	}

	if err := h.storage.Projects().UpdateCategory(ctx, category); err != nil {
		log.Printf("update category error: %v", err)
		jsonInternal(w)
		return
	}

	jsonOK(w, category)
}

// DeleteCategory removes an empty category (lead+). A category that
// still holds tasks is rejected.
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ws := middleware.GetWorkspace(ctx)
	if !requireActive(w, ws) {
		return
	}
	project := middleware.GetProject(ctx)
	name := chi.URLParam(r, "name")

	if !h.canManageCategory(ctx, w, ws.ID, project.ID, name) {
		return
	}

	err := h.storage.Projects().DeleteCategory(ctx, project.ID, name)
	switch {
	case errors.Is(err, storage.ErrCategoryNotEmpty):
		jsonError(w, http.StatusConflict, errCodeConflict, "category still contains tasks")
		return
	case err != nil:
		if strings.Contains(err.Error(), "not found") {
			jsonError(w, http.StatusNotFound, errCodeNotFound, "category not found")
			return
		}
		log.Printf("delete category error: %v", err)
		jsonInternal(w)
		return
	}

	jsonNoContent(w)
}

// UpsertCategoryMember grants or changes a user's role inside a category.
// The target must already be a workspace member.
func (h *Handler) UpsertCategoryMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ws := middleware.GetWorkspace(ctx)
	if !requireActive(w, ws) {
		return
	}
	project := middleware.GetProject(ctx)
	name := chi.URLParam(r, "name")
	userID := chi.URLParam(r, "userID")

	if !h.canManageCategory(ctx, w, ws.ID, project.ID, name) {
		return
	}

	var req CategoryMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	role, err := ValidateCategoryRole(req.Role)
	if err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	category, err := h.storage.Projects().GetCategory(ctx, project.ID, name)
	if err != nil {
		log.Printf("category member error: get category: %v", err)
		jsonInternal(w)
		return
	}
	if category == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "category not found")
		return
	}

	member, err := h.storage.Workspaces().GetMember(ctx, ws.ID, userID)
	if err != nil {
		log.Printf("category member error: get member: %v", err)
		jsonInternal(w)
		return
	}
	if member == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "user is not a member of the workspace")
		return
	}

	cm := &models.CategoryMember{
		ProjectID:    project.ID,
		CategoryName: name,
		UserID:       userID,
		Role:         role,
	}

	if err := h.storage.Projects().UpsertCategoryMember(ctx, cm); err != nil {
		log.Printf("category member error: upsert: %v", err)
		jsonInternal(w)
		return
	}

	jsonOK(w, cm)
}

// ListCategoryMembers returns the category's member roster.
func (h *Handler) ListCategoryMembers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	project := middleware.GetProject(ctx)
	name := chi.URLParam(r, "name")

	members, err := h.storage.Projects().ListCategoryMembers(ctx, project.ID, name)
	if err != nil {
		log.Printf("list category members error: %v", err)
		jsonInternal(w)
		return
	}

	jsonOK(w, members)
}

// RemoveCategoryMember removes a user's category role.
func (h *Handler) RemoveCategoryMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ws := middleware.GetWorkspace(ctx)
	if !requireActive(w, ws) {
		return
	}
	project := middleware.GetProject(ctx)
	name := chi.URLParam(r, "name")
	userID := chi.URLParam(r, "userID")

	if !h.canManageCategory(ctx, w, ws.ID, project.ID, name) {
		return
	}

	err := h.storage.Projects().RemoveCategoryMember(ctx, project.ID, name, userID)
	switch {
	case errors.Is(err, storage.ErrNotMember):
		jsonError(w, http.StatusNotFound, errCodeNotFound, "user has no role in the category")
		return
	case err != nil:
		log.Printf("remove category member error: %v", err)
		jsonInternal(w)
		return
	}

	jsonNoContent(w)
}

// canManageCategory authorizes category-scoped management. A category
// lead qualifies even when the workspace role is lower.
func (h *Handler) canManageCategory(ctx context.Context, w http.ResponseWriter, workspaceID, projectID, category string) bool {
	user := middleware.GetUser(ctx)
	role, err := h.resolver.CategoryRole(ctx, user, workspaceID, projectID, category)
	if err != nil {
		log.Printf("category role resolution error: %v", err)
		jsonInternal(w)
		return false
	}
	if !authz.CanManageProject(role) {
		jsonError(w, http.StatusForbidden, errCodeForbidden, "access denied")
		return false
	}
	return true
}
