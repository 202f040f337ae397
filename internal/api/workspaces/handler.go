package workspaces

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/task-hive/taskhive/internal/api/middleware"
	"github.com/task-hive/taskhive/internal/invites"
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
	errCodeExpired          = "EXPIRED"
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

// Handler handles workspace endpoints.
type Handler struct {
	storage storage.Storage
	emitter *notify.Emitter
	invites *invites.Service
}

// NewHandler creates a new workspace handler.
func NewHandler(store storage.Storage, emitter *notify.Emitter, inviteSvc *invites.Service) *Handler {
	return &Handler{
		storage: store,
		emitter: emitter,
		invites: inviteSvc,
	}
}

// CreateRequest is the request body for creating a workspace.
type CreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// UpdateRequest is the request body for updating a workspace.
type UpdateRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// UpdateMemberRequest is the request body for changing a member's role.
type UpdateMemberRequest struct {
	Role string `json:"role"`
}

// TransferRequest is the request body for transferring ownership.
type TransferRequest struct {
	ToUserID string `json:"to_user_id"`
}

// InviteRequest is the request body for issuing an invite.
type InviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// requireActive rejects mutations on an archived workspace.
func requireActive(w http.ResponseWriter, ws *models.Workspace) bool {
	if ws.IsArchived {
		jsonError(w, http.StatusConflict, errCodeConflict, "workspace is archived")
		return false
	}
	return true
}

// Create creates a workspace owned by the caller.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	if err := ValidateName(req.Name); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}
	if err := ValidateDescription(req.Description); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	ws := models.NewWorkspace(strings.TrimSpace(req.Name), req.Description, userID)
	ws.ID = uuid.New().String()

	if err := h.storage.Workspaces().Create(ctx, ws, userID); err != nil {
		log.Printf("create workspace error: %v", err)
		jsonInternal(w)
		return
	}

	log.Printf("workspace created: %s (%s) by %s", ws.Name, ws.ID, userID)

	jsonCreated(w, ws)
}

// List returns the caller's workspaces with their role in each.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	memberships, err := h.storage.Workspaces().ListForUser(ctx, userID)
	if err != nil {
		log.Printf("list workspaces error: %v", err)
		jsonInternal(w)
		return
	}

	jsonOK(w, memberships)
}

// Get returns the workspace loaded by the context middleware.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, middleware.GetWorkspace(r.Context()))
}

// Update updates workspace metadata (admin+).
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ws := middleware.GetWorkspace(ctx)
	if !requireActive(w, ws) {
		return
	}

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
		ws.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		if err := ValidateDescription(*req.Description); err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
			return
		}
		ws.Description = *req.Description
	}
	ws.UpdatedAt = time.Now()

	if err := h.storage.Workspaces().Update(ctx, ws); err != nil {
		log.Printf("update workspace error: %v", err)
		jsonInternal(w)
		return
	}

	jsonOK(w, ws)
}

// Archive soft-deletes the workspace and starts the purge clock (admin+).
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ws := middleware.GetWorkspace(ctx)
	if ws.IsArchived {
		jsonError(w, http.StatusConflict, errCodeConflict, "workspace is already archived")
		return
	}

	userID := middleware.GetUserID(ctx)
	ws.Archive(userID)

	if err := h.storage.Workspaces().Update(ctx, ws); err != nil {
		log.Printf("archive workspace error: %v", err)
		jsonInternal(w)
		return
	}

	members, err := h.storage.Workspaces().ListMembers(ctx, ws.ID)
	if err != nil {
		log.Printf("archive workspace: list members: %v", err)
	} else {
		memberIDs := make([]string, 0, len(members))
		for _, m := range members {
			memberIDs = append(memberIDs, m.UserID)
		}
		h.emitter.WorkspaceArchived(ctx, memberIDs, userID, ws.Name, ws.ID)
	}

	log.Printf("workspace archived: %s (%s) by %s", ws.Name, ws.ID, userID)

	jsonOK(w, ws)
}

// Restore clears archive state before the purge deadline (admin+).
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ws := middleware.GetWorkspace(ctx)
	if !ws.IsArchived {
		jsonError(w, http.StatusConflict, errCodeConflict, "workspace is not archived")
		return
	}

	ws.Restore()

	if err := h.storage.Workspaces().Update(ctx, ws); err != nil {
		log.Printf("restore workspace error: %v", err)
		jsonInternal(w)
		return
	}

	log.Printf("workspace restored: %s (%s)", ws.Name, ws.ID)

	jsonOK(w, ws)
}

// TransferOwnership hands the workspace to another member (owner only).
// The current owner is demoted to admin and the target promoted to owner
// in one transaction.
func (h *Handler) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ws := middleware.GetWorkspace(ctx)
	if !requireActive(w, ws) {
		return
	}

	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}
	if req.ToUserID == "" {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "to_user_id is required")
		return
	}

	userID := middleware.GetUserID(ctx)
	if req.ToUserID == userID {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "cannot transfer ownership to yourself")
		return
	}

	err := h.storage.Workspaces().TransferOwnership(ctx, ws.ID, userID, req.ToUserID)
	if errors.Is(err, storage.ErrNotMember) {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "target user is not a member of the workspace")
		return
	}
	if err != nil {
		log.Printf("transfer ownership error: %v", err)
		jsonInternal(w)
		return
	}

	h.emitter.RoleChanged(ctx, req.ToUserID, userID, models.RoleOwner, ws.Name, ws.ID)

	log.Printf("workspace ownership transferred: %s from %s to %s", ws.ID, userID, req.ToUserID)

	jsonNoContent(w)
}

// ListMembers returns the workspace roster.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ws := middleware.GetWorkspace(ctx)

	members, err := h.storage.Workspaces().ListMembers(ctx, ws.ID)
	if err != nil {
		log.Printf("list members error: %v", err)
		jsonInternal(w)
		return
	}

	jsonOK(w, members)
}

// UpdateMemberRole changes a member's role (admin+). Demoting the sole
// owner is rejected; ownership moves only via transfer.
func (h *Handler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ws := middleware.GetWorkspace(ctx)
	if !requireActive(w, ws) {
		return
	}

	memberID := chi.URLParam(r, "userID")
	if memberID == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "user id required")
		return
	}

	var req UpdateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	role, err := ValidateMemberRole(req.Role)
	if err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	err = h.storage.Workspaces().UpdateMemberRole(ctx, ws.ID, memberID, role)
	switch {
	case errors.Is(err, storage.ErrNotMember):
		jsonError(w, http.StatusNotFound, errCodeNotFound, "user is not a member of the workspace")
		return
	case errors.Is(err, storage.ErrLastOwner):
		jsonError(w, http.StatusConflict, errCodeConflict, "workspace must retain an owner")
		return
	case err != nil:
		log.Printf("update member role error: %v", err)
		jsonInternal(w)
		return
	}

	h.emitter.RoleChanged(ctx, memberID, middleware.GetUserID(ctx), role, ws.Name, ws.ID)

	jsonNoContent(w)
}

// RemoveMember removes a member from the workspace. Admins can remove
// anyone; any member can remove themselves (leave). The sole owner cannot
// be removed.
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ws := middleware.GetWorkspace(ctx)
	if !requireActive(w, ws) {
		return
	}

	memberID := chi.URLParam(r, "userID")
	if memberID == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "user id required")
		return
	}

	userID := middleware.GetUserID(ctx)
	if memberID != userID && !middleware.GetWorkspaceRole(ctx).AtLeast(models.RoleAdmin) {
		jsonError(w, http.StatusForbidden, errCodeForbidden, "access denied")
		return
	}

	removed, err := h.storage.Users().GetByID(ctx, memberID)
	if err != nil {
		log.Printf("remove member: get user: %v", err)
		jsonInternal(w)
		return
	}

	err = h.storage.Workspaces().RemoveMember(ctx, ws.ID, memberID)
	switch {
	case errors.Is(err, storage.ErrNotMember):
		jsonError(w, http.StatusNotFound, errCodeNotFound, "user is not a member of the workspace")
		return
	case errors.Is(err, storage.ErrLastOwner):
		jsonError(w, http.StatusConflict, errCodeConflict, "workspace must retain an owner; transfer ownership first")
		return
	case err != nil:
		log.Printf("remove member error: %v", err)
		jsonInternal(w)
		return
	}

	name := memberID
	if removed != nil {
		name = removed.Username
	}
	adminIDs, err := h.storage.Workspaces().AdminIDs(ctx, ws.ID)
	if err != nil {
		log.Printf("remove member: admin ids: %v", err)
	} else {
		h.emitter.MemberLeft(ctx, adminIDs, memberID, name, ws.Name, ws.ID)
	}

	jsonNoContent(w)
}

// CreateInvite issues or refreshes an invite for an email (admin+).
func (h *Handler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ws := middleware.GetWorkspace(ctx)
	if !requireActive(w, ws) {
		return
	}

	var req InviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	if err := ValidateEmail(req.Email); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}
	role, err := ValidateInviteRole(req.Role)
	if err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	inviter := middleware.GetUser(ctx)

	invite, err := h.invites.Issue(ctx, ws.ID, req.Email, role, inviter)
	switch {
	case errors.Is(err, invites.ErrAlreadyMember):
		jsonError(w, http.StatusConflict, errCodeConflict, "user is already a member of the workspace")
		return
	case errors.Is(err, invites.ErrRoleNotInvitable):
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "role cannot be granted by invite")
		return
	case err != nil:
		log.Printf("create invite error: %v", err)
		jsonInternal(w)
		return
	}

	metrics.InvitesIssued.Inc()

	jsonCreated(w, invite)
}

// ListInvites returns the workspace's pending invites (admin+).
func (h *Handler) ListInvites(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ws := middleware.GetWorkspace(ctx)

	pending, err := h.invites.ListPending(ctx, ws.ID)
	if err != nil {
		log.Printf("list invites error: %v", err)
		jsonInternal(w)
		return
	}

	jsonOK(w, pending)
}

// AcceptInvite consumes an invite token and joins the caller to the
// workspace. Routed outside the workspace context: the caller is not a
// member yet.
func (h *Handler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := chi.URLParam(r, "token")
	user := middleware.GetUser(ctx)

	invite, err := h.invites.Accept(ctx, token, user)
	switch {
	case errors.Is(err, invites.ErrEmailMismatch):
		jsonError(w, http.StatusForbidden, errCodeForbidden, "invite was issued to a different email address")
		return
	case errors.Is(err, storage.ErrInviteExpired):
		jsonError(w, http.StatusGone, errCodeExpired, "invite has expired")
		return
	case errors.Is(err, storage.ErrInviteConsumed):
		jsonError(w, http.StatusConflict, errCodeConflict, "invite has already been used")
		return
	case errors.Is(err, storage.ErrDuplicateMember):
		jsonError(w, http.StatusConflict, errCodeConflict, "user is already a member of the workspace")
		return
	case err != nil:
		log.Printf("accept invite error: %v", err)
		jsonInternal(w)
		return
	}
	if invite == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "invite not found")
		return
	}

	metrics.InvitesAccepted.Inc()

	jsonOK(w, invite)
}

// DeclineInvite declines an invite token.
func (h *Handler) DeclineInvite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := chi.URLParam(r, "token")
	user := middleware.GetUser(ctx)

	invite, err := h.invites.Decline(ctx, token, user)
	switch {
	case errors.Is(err, invites.ErrEmailMismatch):
		jsonError(w, http.StatusForbidden, errCodeForbidden, "invite was issued to a different email address")
		return
	case errors.Is(err, storage.ErrInviteExpired):
		jsonError(w, http.StatusGone, errCodeExpired, "invite has expired")
		return
	case errors.Is(err, storage.ErrInviteConsumed):
		jsonError(w, http.StatusConflict, errCodeConflict, "invite has already been used")
		return
	case err != nil:
		log.Printf("decline invite error: %v", err)
		jsonInternal(w)
		return
	}
	if invite == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "invite not found")
		return
	}

	metrics.InvitesDeclined.Inc()

	jsonNoContent(w)
}
