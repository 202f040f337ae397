// Package notifications provides notification inbox endpoints.
package notifications

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/task-hive/taskhive/internal/api/middleware"
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

const (
	errCodeBadRequest    = "BAD_REQUEST"
	errCodeForbidden     = "FORBIDDEN"
	errCodeNotFound      = "NOT_FOUND"
	errCodeInternalError = "INTERNAL_ERROR"

	defaultLimit = 50
	maxLimit     = 200
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

func jsonInternal(w http.ResponseWriter) {
	jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
}

// Handler handles notification endpoints. Every operation is scoped to
// the authenticated recipient; there is no cross-user access.
type Handler struct {
	storage storage.Storage
}

// NewHandler creates a new notification handler.
func NewHandler(store storage.Storage) *Handler {
	return &Handler{storage: store}
}

// List returns the caller's notifications, newest first. Supports
// unread_only, limit, and offset query parameters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	q := r.URL.Query()
	unreadOnly := q.Get("unread_only") == "true"

	limit := defaultLimit
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid limit")
			return
		}
		if n > maxLimit {
			n = maxLimit
		}
		limit = n
	}

	offset := 0
	if s := q.Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid offset")
			return
		}
		offset = n
	}

	items, err := h.storage.Notifications().ListByRecipient(ctx, userID, unreadOnly, limit, offset)
	if err != nil {
		log.Printf("list notifications error: %v", err)
		jsonInternal(w)
		return
	}

	jsonOK(w, items)
}

// UnreadCount returns the caller's unread notification count.
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	count, err := h.storage.Notifications().CountUnread(ctx, userID)
	if err != nil {
		log.Printf("unread count error: %v", err)
		jsonInternal(w)
		return
	}

	jsonOK(w, map[string]int64{"unread": count})
}

// MarkRead marks one of the caller's notifications as read. Only the
// recipient may flip the flag.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	id := chi.URLParam(r, "id")

	n, err := h.storage.Notifications().GetByID(ctx, id)
	if err != nil {
		log.Printf("mark read error: get: %v", err)
		jsonInternal(w)
		return
	}
	if n == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "notification not found")
		return
	}
	if n.RecipientID != userID {
		jsonError(w, http.StatusForbidden, errCodeForbidden, "not the recipient")
		return
	}

	if err := h.storage.Notifications().MarkRead(ctx, id, time.Now()); err != nil {
		log.Printf("mark read error: %v", err)
		jsonInternal(w)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// MarkAllRead marks every unread notification of the caller as read in
// one statement and returns how many were flipped.
func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	updated, err := h.storage.Notifications().MarkAllRead(ctx, userID, time.Now())
	if err != nil {
		log.Printf("mark all read error: %v", err)
		jsonInternal(w)
		return
	}

	jsonOK(w, map[string]int64{"updated": updated})
}
