package tasks

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/task-hive/taskhive/internal/api/middleware"
	"github.com/task-hive/taskhive/internal/authz"
	"github.com/task-hive/taskhive/internal/metrics"
	"github.com/task-hive/taskhive/internal/models"
	"github.com/task-hive/taskhive/internal/notify"
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

// Handler handles task endpoints.
type Handler struct {
	storage  storage.Storage
	resolver *authz.Resolver
	emitter  *notify.Emitter
}

// NewHandler creates a new task handler.
func NewHandler(store storage.Storage, resolver *authz.Resolver, emitter *notify.Emitter) *Handler {
	return &Handler{storage: store, resolver: resolver, emitter: emitter}
}

// CreateRequest is the request body for creating a task.
type CreateRequest struct {
	Category    string    `json:"category"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	AssigneeID  string    `json:"assignee_id"`
	Priority    string    `json:"priority"`
	StartDate   time.Time `json:"start_date"`
	DueDate     time.Time `json:"due_date"`
}

// UpdateRequest is the request body for updating task fields other than
// workflow status.
type UpdateRequest struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	AssigneeID  *string    `json:"assignee_id,omitempty"`
	Priority    *string    `json:"priority,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// StatusRequest is the request body for a workflow status change.
type StatusRequest struct {
	Status string `json:"status"`
}

// HandoverRequest is the request body for reassigning a task with a note.
type HandoverRequest struct {
	AssigneeID   string `json:"assignee_id"`
	HandoverNote string `json:"handover_note"`
}

// AttachmentRequest is the request body for attaching file metadata.
type AttachmentRequest struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Type     string `json:"type"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

// requireActive rejects mutations when the owning workspace is archived.
func requireActive(w http.ResponseWriter, ws *models.Workspace) bool {
	if ws.IsArchived {
		jsonError(w, http.StatusConflict, errCodeConflict, "workspace is archived")
		return false
	}
	return true
}

// assigneeResolvable reports whether userID can hold tasks in the
// project: a workspace member, a member of the task's category, or a
// platform admin.
func (h *Handler) assigneeResolvable(ctx context.Context, workspaceID, projectID, category, userID string) (bool, error) {
	m, err := h.storage.Workspaces().GetMember(ctx, workspaceID, userID)
	if err != nil {
		return false, err
	}
	if m != nil {
		return true, nil
	}

	cm, err := h.storage.Projects().GetCategoryMember(ctx, projectID, category, userID)
	if err != nil {
		return false, err
	}
	if cm != nil {
		return true, nil
	}

	user, err := h.storage.Users().GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return user != nil && user.IsElevated(), nil
}

// loadTask fetches the task and verifies it belongs to the routed project.
func (h *Handler) loadTask(w http.ResponseWriter, r *http.Request) *models.Task {
	ctx := r.Context()
	project := middleware.GetProject(ctx)
	taskID := chi.URLParam(r, "taskID")

	task, err := h.storage.Tasks().GetByID(ctx, taskID)
	if err != nil {
		log.Printf("get task error: %v", err)
		jsonInternal(w)
		return nil
	}
	if task == nil || task.ProjectID != project.ID {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "task not found")
		return nil
	}
	return task
}

// canTouch reports whether the caller may modify the task: its assignee,
// its creator, or a lead in its category.
func (h *Handler) canTouch(ctx context.Context, task *models.Task) (bool, error) {
	userID := middleware.GetUserID(ctx)
	if userID == task.AssigneeID || userID == task.CreatedBy {
		return true, nil
	}

	ws := middleware.GetWorkspace(ctx)
	role, err := h.resolver.CategoryRole(ctx, middleware.GetUser(ctx), ws.ID, task.ProjectID, task.CategoryName)
	if err != nil {
		return false, err
	}
	return authz.CanManageProject(role), nil
}

// Create creates a task in a category of the routed project.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ws := middleware.GetWorkspace(ctx)
	if !requireActive(w, ws) {
		return
	}
	project := middleware.GetProject(ctx)

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	if err := ValidateTitle(req.Title); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}
	if err := ValidateDates(req.StartDate, req.DueDate); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}
	priority, err := ValidatePriority(req.Priority)
	if err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	category := strings.TrimSpace(req.Category)
	if category == "" {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "category is required")
		return
	}

	user := middleware.GetUser(ctx)
	role, err := h.resolver.CategoryRole(ctx, user, ws.ID, project.ID, category)
	if err != nil {
		log.Printf("create task: resolve role: %v", err)
		jsonInternal(w)
		return
	}
	if !authz.CanCreateTask(role) {
		jsonError(w, http.StatusForbidden, errCodeForbidden, "access denied")
		return
	}

	cat, err := h.storage.Projects().GetCategory(ctx, project.ID, category)
	if err != nil {
		log.Printf("create task: get category: %v", err)
		jsonInternal(w)
		return
	}
	if cat == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "category not found")
		return
	}

	assigneeID := req.AssigneeID
	if assigneeID == "" {
		assigneeID = user.ID
	}
	ok, err := h.assigneeResolvable(ctx, ws.ID, project.ID, category, assigneeID)
	if err != nil {
		log.Printf("create task: resolve assignee: %v", err)
		jsonInternal(w)
		return
	}
	if !ok {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "assignee is not a member of the workspace")
		return
	}

	task := models.NewTask(project.ID, category, strings.TrimSpace(req.Title), assigneeID, user.ID, priority, req.StartDate, req.DueDate)
	task.ID = uuid.New().String()
	task.Description = req.Description

	if err := h.storage.Tasks().Create(ctx, task); err != nil {
		log.Printf("create task error: %v", err)
		jsonInternal(w)
		return
	}

	metrics.TasksCreated.Inc()
	h.emitter.TaskAssigned(ctx, assigneeID, user.ID, task.Title, task.ID)

	log.Printf("task created: %s (%s) in project %s", task.Title, task.ID, project.ID)

	jsonCreated(w, task)
}

// List returns the project's tasks, optionally filtered by category.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	project := middleware.GetProject(ctx)

	var (
		tasks []*models.Task
		err   error
	)
	if category := r.URL.Query().Get("category"); category != "" {
		tasks, err = h.storage.Tasks().ListByCategory(ctx, project.ID, category)
	} else {
		tasks, err = h.storage.Tasks().ListByProject(ctx, project.ID)
	}
	if err != nil {
		log.Printf("list tasks error: %v", err)
		jsonInternal(w)
		return
	}

	jsonOK(w, tasks)
}

// Get returns a single task.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	task := h.loadTask(w, r)
	if task == nil {
		return
	}
	jsonOK(w, task)
}

// Update updates task fields other than workflow status.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ws := middleware.GetWorkspace(ctx)
	if !requireActive(w, ws) {
		return
	}
	task := h.loadTask(w, r)
	if task == nil {
		return
	}

	allowed, err := h.canTouch(ctx, task)
	if err != nil {
		log.Printf("update task: authorize: %v", err)
		jsonInternal(w)
		return
	}
	if !allowed {
		jsonError(w, http.StatusForbidden, errCodeForbidden, "access denied")
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	if req.Title != nil {
		if err := ValidateTitle(*req.Title); err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
			return
		}
		task.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Priority != nil {
		priority, err := ValidatePriority(*req.Priority)
		if err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
			return
		}
		task.Priority = priority
	}
	if req.StartDate != nil || req.DueDate != nil {
		start, due := task.StartDate, task.DueDate
		if req.StartDate != nil {
			start = *req.StartDate
		}
		if req.DueDate != nil {
			due = *req.DueDate
		}
		if err := ValidateDates(start, due); err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
			return
		}
		task.SetDates(start, due)
	}
	if req.AssigneeID != nil {
		ok, err := h.assigneeResolvable(ctx, ws.ID, task.ProjectID, task.CategoryName, *req.AssigneeID)
		if err != nil {
			log.Printf("update task: resolve assignee: %v", err)
			jsonInternal(w)
			return
		}
		if !ok {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "assignee is not a member of the workspace")
			return
		}
		if *req.AssigneeID != task.AssigneeID {
			h.emitter.TaskAssigned(ctx, *req.AssigneeID, middleware.GetUserID(ctx), task.Title, task.ID)
		}
		task.AssigneeID = *req.AssigneeID
	}
	task.UpdatedAt = time.Now()

	if err := h.storage.Tasks().Update(ctx, task); err != nil {
		log.Printf("update task error: %v", err)
		jsonInternal(w)
		return
	}

	jsonOK(w, task)
}

// UpdateStatus transitions the task's workflow status. Project rollup
// counters are adjusted in the same storage transaction.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ws := middleware.GetWorkspace(ctx)
	if !requireActive(w, ws) {
		return
	}
	task := h.loadTask(w, r)
	if task == nil {
		return
	}

	allowed, err := h.canTouch(ctx, task)
	if err != nil {
		log.Printf("update task status: authorize: %v", err)
		jsonInternal(w)
		return
	}
	if !allowed {
		jsonError(w, http.StatusForbidden, errCodeForbidden, "access denied")
		return
	}

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

	previous := task.Status
	if status == previous {
		jsonOK(w, task)
		return
	}

	task.SetStatus(status)

	if err := h.storage.Tasks().UpdateStatus(ctx, task, previous); err != nil {
		log.Printf("update task status error: %v", err)
		jsonInternal(w)
		return
	}

	if status == models.TaskDone {
		metrics.TasksCompleted.Inc()
		h.emitter.TaskCompleted(ctx, task.CreatedBy, middleware.GetUserID(ctx), task.Title, task.ID)
	}

	jsonOK(w, task)
}

// Handover reassigns the task with a note for the new assignee.
func (h *Handler) Handover(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ws := middleware.GetWorkspace(ctx)
	if !requireActive(w, ws) {
		return
	}
	task := h.loadTask(w, r)
	if task == nil {
		return
	}

	allowed, err := h.canTouch(ctx, task)
	if err != nil {
		log.Printf("handover task: authorize: %v", err)
		jsonInternal(w)
		return
	}
	if !allowed {
		jsonError(w, http.StatusForbidden, errCodeForbidden, "access denied")
		return
	}

	var req HandoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}
	if req.AssigneeID == "" {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "assignee_id is required")
		return
	}
	if req.AssigneeID == task.AssigneeID {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "task is already assigned to that user")
		return
	}

	ok, err := h.assigneeResolvable(ctx, ws.ID, task.ProjectID, task.CategoryName, req.AssigneeID)
	if err != nil {
		log.Printf("handover task: resolve assignee: %v", err)
		jsonInternal(w)
		return
	}
	if !ok {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "assignee is not a member of the workspace")
		return
	}

	task.AssigneeID = req.AssigneeID
	task.HandoverNote = req.HandoverNote
	task.UpdatedAt = time.Now()

	if err := h.storage.Tasks().Update(ctx, task); err != nil {
		log.Printf("handover task error: %v", err)
		jsonInternal(w)
		return
	}

	h.emitter.TaskAssigned(ctx, req.AssigneeID, middleware.GetUserID(ctx), task.Title, task.ID)

	jsonOK(w, task)
}

// Delete removes the task; the project rollups shrink in the same
// storage transaction.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ws := middleware.GetWorkspace(ctx)
	if !requireActive(w, ws) {
		return
	}
	task := h.loadTask(w, r)
	if task == nil {
		return
	}

	allowed, err := h.canTouch(ctx, task)
	if err != nil {
		log.Printf("delete task: authorize: %v", err)
		jsonInternal(w)
		return
	}
	if !allowed {
		jsonError(w, http.StatusForbidden, errCodeForbidden, "access denied")
		return
	}

	if err := h.storage.Tasks().Delete(ctx, task.ID); err != nil {
		log.Printf("delete task error: %v", err)
		jsonInternal(w)
		return
	}

	jsonNoContent(w)
}

// AddAttachment records collaborator-provided file metadata on the task.
// Only the reference is stored; the file lives elsewhere.
func (h *Handler) AddAttachment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ws := middleware.GetWorkspace(ctx)
	if !requireActive(w, ws) {
		return
	}
	task := h.loadTask(w, r)
	if task == nil {
		return
	}

	var req AttachmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Filename) == "" {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "filename is required")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "url is required")
		return
	}

	attachment := &models.Attachment{
		ID:         uuid.New().String(),
		TaskID:     task.ID,
		Filename:   strings.TrimSpace(req.Filename),
		URL:        strings.TrimSpace(req.URL),
		Type:       req.Type,
		Size:       req.Size,
		MimeType:   req.MimeType,
		UploadedBy: middleware.GetUserID(ctx),
		CreatedAt:  time.Now(),
	}

	if err := h.storage.Tasks().AddAttachment(ctx, attachment); err != nil {
		log.Printf("add attachment error: %v", err)
		jsonInternal(w)
		return
	}

	jsonCreated(w, attachment)
}

// ListAttachments returns the task's attachment metadata.
func (h *Handler) ListAttachments(w http.ResponseWriter, r *http.Request) {
	task := h.loadTask(w, r)
	if task == nil {
		return
	}

	attachments, err := h.storage.Tasks().ListAttachments(r.Context(), task.ID)
	if err != nil {
		log.Printf("list attachments error: %v", err)
		jsonInternal(w)
		return
	}

	jsonOK(w, attachments)
}
