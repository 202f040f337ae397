package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/task-hive/taskhive/internal/api/middleware"
	"github.com/task-hive/taskhive/internal/models"
	"github.com/task-hive/taskhive/internal/storage"
)

type mockNotificationRepository struct {
	storage.NotificationRepository
	notifications map[string]*models.Notification
	markedRead    []string
	markAllCount  int64
}

//nolint:nilnil
func (m *mockNotificationRepository) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	return m.notifications[id], nil
}

func (m *mockNotificationRepository) ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]*models.Notification, error) {
	var out []*models.Notification
	for _, n := range m.notifications {
		if n.RecipientID != recipientID {
			continue
		}
		if unreadOnly && n.IsRead {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (m *mockNotificationRepository) MarkRead(ctx context.Context, id string, readAt time.Time) error {
	m.markedRead = append(m.markedRead, id)
	return nil
}

func (m *mockNotificationRepository) MarkAllRead(ctx context.Context, recipientID string, readAt time.Time) (int64, error) {
	return m.markAllCount, nil
}

func (m *mockNotificationRepository) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	var count int64
	for _, n := range m.notifications {
		if n.RecipientID == recipientID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

type mockStorage struct {
	storage.Storage
	notificationRepo *mockNotificationRepository
}

func (m *mockStorage) Notifications() storage.NotificationRepository {
	return m.notificationRepo
}

func newTestHandler() (*Handler, *mockStorage) {
	store := &mockStorage{
		notificationRepo: &mockNotificationRepository{notifications: make(map[string]*models.Notification)},
	}
	return NewHandler(store), store
}

func seedNotification(store *mockStorage, id, recipientID string, read bool) {
	store.notificationRepo.notifications[id] = &models.Notification{
		ID:          id,
		RecipientID: recipientID,
		Type:        models.NotifyTaskAssigned,
		Title:       "Task assigned",
		IsRead:      read,
		CreatedAt:   time.Now(),
	}
}

func requestAs(method, target string, userID string, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	user := &models.User{ID: userID, Username: userID, Role: models.GlobalRoleUser}
	ctx := middleware.WithUser(req.Context(), user)
	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range params {
			rctx.URLParams.Add(k, v)
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	return req.WithContext(ctx)
}

func TestList_OnlyOwnNotifications(t *testing.T) {
	h, store := newTestHandler()
	seedNotification(store, "n-1", "alice", false)
	seedNotification(store, "n-2", "bob", false)

	req := requestAs(http.MethodGet, "/api/v1/notifications", "alice", nil)
	rec := httptest.NewRecorder()

	h.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp struct {
		Data []*models.Notification `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].ID != "n-1" {
		t.Errorf("got %d notifications, want only n-1", len(resp.Data))
	}
}

func TestList_InvalidLimit(t *testing.T) {
	h, _ := newTestHandler()

	req := requestAs(http.MethodGet, "/api/v1/notifications?limit=zero", "alice", nil)
	rec := httptest.NewRecorder()

	h.List(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestMarkRead_OtherRecipientIsForbidden(t *testing.T) {
	h, store := newTestHandler()
	seedNotification(store, "n-1", "bob", false)

	req := requestAs(http.MethodPut, "/api/v1/notifications/n-1/read", "alice", map[string]string{"id": "n-1"})
	rec := httptest.NewRecorder()

	h.MarkRead(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	if len(store.notificationRepo.markedRead) != 0 {
		t.Errorf("markedRead = %v, want none", store.notificationRepo.markedRead)
	}
}

func TestMarkRead_UnknownIs404(t *testing.T) {
	h, _ := newTestHandler()

	req := requestAs(http.MethodPut, "/api/v1/notifications/n-9/read", "alice", map[string]string{"id": "n-9"})
	rec := httptest.NewRecorder()

	h.MarkRead(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestMarkRead_Own(t *testing.T) {
	h, store := newTestHandler()
	seedNotification(store, "n-1", "alice", false)

	req := requestAs(http.MethodPut, "/api/v1/notifications/n-1/read", "alice", map[string]string{"id": "n-1"})
	rec := httptest.NewRecorder()

	h.MarkRead(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if len(store.notificationRepo.markedRead) != 1 {
		t.Errorf("markedRead = %v, want [n-1]", store.notificationRepo.markedRead)
	}
}

func TestUnreadCount(t *testing.T) {
	h, store := newTestHandler()
	seedNotification(store, "n-1", "alice", false)
	seedNotification(store, "n-2", "alice", true)
	seedNotification(store, "n-3", "alice", false)

	req := requestAs(http.MethodGet, "/api/v1/notifications/unread-count", "alice", nil)
	rec := httptest.NewRecorder()

	h.UnreadCount(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp struct {
		Data map[string]int64 `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data["unread"] != 2 {
		t.Errorf("unread = %d, want 2", resp.Data["unread"])
	}
}

func TestMarkAllRead_ReportsCount(t *testing.T) {
	h, store := newTestHandler()
	store.notificationRepo.markAllCount = 5

	req := requestAs(http.MethodPut, "/api/v1/notifications/read-all", "alice", nil)
	rec := httptest.NewRecorder()

	h.MarkAllRead(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp struct {
		Data map[string]int64 `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data["updated"] != 5 {
		t.Errorf("updated = %d, want 5", resp.Data["updated"])
	}
}
