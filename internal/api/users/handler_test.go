package users

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/task-hive/taskhive/internal/api/middleware"
	"github.com/task-hive/taskhive/internal/models"
	"github.com/task-hive/taskhive/internal/storage"
)

type mockUserRepository struct {
	storage.UserRepository
	users   map[string]*models.User
	deleted []string
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: make(map[string]*models.User)}
}

func (m *mockUserRepository) Create(ctx context.Context, user *models.User) error {
	m.users[user.ID] = user
	return nil
}

//nolint:nilnil
func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return m.users[id], nil
}

//nolint:nilnil
func (m *mockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, nil
}

//nolint:nilnil
func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepository) Update(ctx context.Context, user *models.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepository) Delete(ctx context.Context, id string) error {
	delete(m.users, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockUserRepository) List(ctx context.Context) ([]*models.User, error) {
	out := make([]*models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

type mockWorkspaceRepository struct {
	storage.WorkspaceRepository
	ownerships map[string]int64
}

func (m *mockWorkspaceRepository) CountOwnerships(ctx context.Context, userID string) (int64, error) {
	return m.ownerships[userID], nil
}

type mockTokenRepository struct {
	storage.TokenRepository
	revokedUsers []string
}

func (m *mockTokenRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	m.revokedUsers = append(m.revokedUsers, userID)
	return nil
}

type mockStorage struct {
	storage.Storage
	userRepo      *mockUserRepository
	workspaceRepo *mockWorkspaceRepository
	tokenRepo     *mockTokenRepository
}

func (m *mockStorage) Users() storage.UserRepository           { return m.userRepo }
func (m *mockStorage) Workspaces() storage.WorkspaceRepository { return m.workspaceRepo }
func (m *mockStorage) Tokens() storage.TokenRepository         { return m.tokenRepo }

func newTestHandler() (*Handler, *mockStorage) {
	store := &mockStorage{
		userRepo:      newMockUserRepository(),
		workspaceRepo: &mockWorkspaceRepository{ownerships: make(map[string]int64)},
		tokenRepo:     &mockTokenRepository{},
	}
	return NewHandler(store), store
}

func addUser(store *mockStorage, id, username string, role models.GlobalRole) *models.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte("OldPassword1"), bcrypt.MinCost)
	u := &models.User{
		ID:           id,
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	store.userRepo.users[id] = u
	return u
}

func requestAs(method, target string, body any, user *models.User, params map[string]string) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req = req.WithContext(middleware.WithUser(req.Context(), user))

	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range params {
			rctx.URLParams.Add(k, v)
		}
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}
	return req
}

func TestCreate_RejectsDuplicateUsername(t *testing.T) {
	h, store := newTestHandler()
	admin := addUser(store, "admin-1", "admin", models.GlobalRoleAdmin)
	addUser(store, "user-1", "alice", models.GlobalRoleUser)

	req := requestAs(http.MethodPost, "/api/v1/users", CreateRequest{
		Username: "alice",
		Email:    "other@example.com",
		Password: "ValidPass123",
		Role:     "user",
	}, admin, nil)
	rec := httptest.NewRecorder()

	h.Create(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestCreate_SuperAdminRoleNeedsSuperAdmin(t *testing.T) {
	h, store := newTestHandler()
	admin := addUser(store, "admin-1", "admin", models.GlobalRoleAdmin)

	req := requestAs(http.MethodPost, "/api/v1/users", CreateRequest{
		Username: "newroot",
		Email:    "root@example.com",
		Password: "ValidPass123",
		Role:     "super_admin",
	}, admin, nil)
	rec := httptest.NewRecorder()

	h.Create(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestDelete_BlockedWhileOwningWorkspaces(t *testing.T) {
	h, store := newTestHandler()
	admin := addUser(store, "admin-1", "admin", models.GlobalRoleAdmin)
	addUser(store, "user-1", "alice", models.GlobalRoleUser)
	store.workspaceRepo.ownerships["user-1"] = 2

	req := requestAs(http.MethodDelete, "/api/v1/users/user-1", nil, admin, map[string]string{"id": "user-1"})
	rec := httptest.NewRecorder()

	h.Delete(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
	if len(store.userRepo.deleted) != 0 {
		t.Errorf("deleted = %v, want none", store.userRepo.deleted)
	}
}

func TestDelete_RejectsSelf(t *testing.T) {
	h, store := newTestHandler()
	admin := addUser(store, "admin-1", "admin", models.GlobalRoleAdmin)

	req := requestAs(http.MethodDelete, "/api/v1/users/admin-1", nil, admin, map[string]string{"id": "admin-1"})
	rec := httptest.NewRecorder()

	h.Delete(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestDelete_Succeeds(t *testing.T) {
	h, store := newTestHandler()
	admin := addUser(store, "admin-1", "admin", models.GlobalRoleAdmin)
	addUser(store, "user-1", "alice", models.GlobalRoleUser)

	req := requestAs(http.MethodDelete, "/api/v1/users/user-1", nil, admin, map[string]string{"id": "user-1"})
	rec := httptest.NewRecorder()

	h.Delete(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if len(store.userRepo.deleted) != 1 || store.userRepo.deleted[0] != "user-1" {
		t.Errorf("deleted = %v, want [user-1]", store.userRepo.deleted)
	}
}

func TestUpdate_RoleChangeRequiresAdmin(t *testing.T) {
	h, store := newTestHandler()
	alice := addUser(store, "user-1", "alice", models.GlobalRoleUser)
	addUser(store, "user-2", "bob", models.GlobalRoleUser)

	req := requestAs(http.MethodPut, "/api/v1/users/user-2", UpdateRequest{Role: "admin"}, alice, map[string]string{"id": "user-2"})
	rec := httptest.NewRecorder()

	h.Update(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestUpdate_CannotChangeOwnRole(t *testing.T) {
	h, store := newTestHandler()
	admin := addUser(store, "admin-1", "admin", models.GlobalRoleAdmin)

	req := requestAs(http.MethodPut, "/api/v1/users/admin-1", UpdateRequest{Role: "user"}, admin, map[string]string{"id": "admin-1"})
	rec := httptest.NewRecorder()

	h.Update(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestChangePassword_RevokesTokens(t *testing.T) {
	h, store := newTestHandler()
	alice := addUser(store, "user-1", "alice", models.GlobalRoleUser)

	req := requestAs(http.MethodPut, "/api/v1/users/me/password", ChangePasswordRequest{
		CurrentPassword: "OldPassword1",
		NewPassword:     "NewPassword12",
	}, alice, nil)
	rec := httptest.NewRecorder()

	h.ChangePassword(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusNoContent, rec.Body.String())
	}
	if len(store.tokenRepo.revokedUsers) != 1 || store.tokenRepo.revokedUsers[0] != "user-1" {
		t.Errorf("revoked = %v, want [user-1]", store.tokenRepo.revokedUsers)
	}
	if bcrypt.CompareHashAndPassword([]byte(store.userRepo.users["user-1"].PasswordHash), []byte("NewPassword12")) != nil {
		t.Error("stored hash does not match new password")
	}
}

func TestChangePassword_WrongCurrentPassword(t *testing.T) {
	h, store := newTestHandler()
	alice := addUser(store, "user-1", "alice", models.GlobalRoleUser)

	req := requestAs(http.MethodPut, "/api/v1/users/me/password", ChangePasswordRequest{
		CurrentPassword: "WrongPassword1",
		NewPassword:     "NewPassword12",
	}, alice, nil)
	rec := httptest.NewRecorder()

	h.ChangePassword(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if len(store.tokenRepo.revokedUsers) != 0 {
		t.Errorf("revoked = %v, want none", store.tokenRepo.revokedUsers)
	}
}
