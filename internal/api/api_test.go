package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/task-hive/taskhive/internal/models"
	"github.com/task-hive/taskhive/internal/storage"
)

// testServer creates a test server with a temp SQLite database
func testServer(t *testing.T) (*Server, storage.Storage, func()) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "taskhive-test-*.db")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	tmpFile.Close()

	store := storage.NewSQLiteStorage(tmpFile.Name())
	if err := store.Open(); err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("open storage: %v", err)
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		os.Remove(tmpFile.Name())
		t.Fatalf("migrate storage: %v", err)
	}

	cfg := &Config{
		Address:          ":0",
		JWTSecret:        []byte("test-jwt-secret-32-bytes-long!!"),
		AccessTokenTTL:   15 * time.Minute,
		RefreshTokenTTL:  24 * time.Hour,
		RateLimitPerIP:   100,
		RateLimitPerUser: 100,
		LockoutThreshold: 5,
		LockoutDuration:  30 * time.Minute,
		Verbose:          false,
	}

	srv, err := New(cfg, store)
	if err != nil {
		store.Close()
		os.Remove(tmpFile.Name())
		t.Fatalf("create server: %v", err)
	}

	cleanup := func() {
		store.Close()
		os.Remove(tmpFile.Name())
	}

	return srv, store, cleanup
}

// createTestUser creates a user in the database for testing
func createTestUser(t *testing.T, store storage.Storage, username, password string, role models.GlobalRole) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	now := time.Now()
	user := &models.User{
		ID:           "test-" + username,
		Username:     username,
		Email:        username + "@test.com",
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := store.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	return user
}

// handler returns the HTTP handler for the server
func handler(srv *Server) http.Handler {
	return srv.server.Handler
}

// loginAs logs a user in and returns the access token
func loginAs(t *testing.T, srv *Server, username, password string) string {
	t.Helper()

	body := `{"username":"` + username + `","password":"` + password + `"}`
	req := httptest.NewRequest("POST", "/api/v1/auth/login", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(srv).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d; body: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.Data.AccessToken
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, cleanup := testServer(t)
	defer cleanup()

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()

	handler(srv).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestLogin_Success(t *testing.T) {
	srv, store, cleanup := testServer(t)
	defer cleanup()

	createTestUser(t, store, "testuser", "TestPassword123", models.GlobalRoleUser)

	body := `{"username":"testuser","password":"TestPassword123"}`
	req := httptest.NewRequest("POST", "/api/v1/auth/login", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler(srv).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp struct {
		Data struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
			ExpiresIn    int    `json:"expires_in"`
			TokenType    string `json:"token_type"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.Data.AccessToken == "" {
		t.Error("expected non-empty access_token")
	}
	if resp.Data.RefreshToken == "" {
		t.Error("expected non-empty refresh_token")
	}
	if resp.Data.TokenType != "Bearer" {
		t.Errorf("token_type = %q, want Bearer", resp.Data.TokenType)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	srv, store, cleanup := testServer(t)
	defer cleanup()

	createTestUser(t, store, "testuser", "TestPassword123", models.GlobalRoleUser)

	body := `{"username":"testuser","password":"wrongpassword"}`
	req := httptest.NewRequest("POST", "/api/v1/auth/login", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler(srv).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRegister_Success(t *testing.T) {
	srv, _, cleanup := testServer(t)
	defer cleanup()

	body := `{"username":"newuser","email":"new@test.com","password":"GoodPassword1"}`
	req := httptest.NewRequest("POST", "/api/v1/auth/register", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler(srv).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	// New account can log in right away.
	token := loginAs(t, srv, "newuser", "GoodPassword1")
	if token == "" {
		t.Error("expected non-empty access token after registration")
	}
}

func TestRegister_WeakPassword(t *testing.T) {
	srv, _, cleanup := testServer(t)
	defer cleanup()

	body := `{"username":"newuser","email":"new@test.com","password":"short"}`
	req := httptest.NewRequest("POST", "/api/v1/auth/register", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler(srv).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestRefresh_Success(t *testing.T) {
	srv, store, cleanup := testServer(t)
	defer cleanup()

	createTestUser(t, store, "testuser", "TestPassword123", models.GlobalRoleUser)

	loginBody := `{"username":"testuser","password":"TestPassword123"}`
	loginReq := httptest.NewRequest("POST", "/api/v1/auth/login", bytes.NewBufferString(loginBody))
	loginReq.Header.Set("Content-Type", "application/json")
	loginRec := httptest.NewRecorder()
	handler(srv).ServeHTTP(loginRec, loginReq)

	var loginResp struct {
		Data struct {
			RefreshToken string `json:"refresh_token"`
		} `json:"data"`
	}
	json.NewDecoder(loginRec.Body).Decode(&loginResp)

	refreshBody := `{"refresh_token":"` + loginResp.Data.RefreshToken + `"}`
	refreshReq := httptest.NewRequest("POST", "/api/v1/auth/refresh", bytes.NewBufferString(refreshBody))
	refreshReq.Header.Set("Content-Type", "application/json")
	refreshRec := httptest.NewRecorder()
	handler(srv).ServeHTTP(refreshRec, refreshReq)

	if refreshRec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d; body: %s", refreshRec.Code, http.StatusOK, refreshRec.Body.String())
	}
}

func TestProtectedEndpoint_NoToken(t *testing.T) {
	srv, _, cleanup := testServer(t)
	defer cleanup()

	req := httptest.NewRequest("GET", "/api/v1/users/me", nil)
	rec := httptest.NewRecorder()

	handler(srv).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestProtectedEndpoint_WithToken(t *testing.T) {
	srv, store, cleanup := testServer(t)
	defer cleanup()

	createTestUser(t, store, "testuser", "TestPassword123", models.GlobalRoleUser)
	token := loginAs(t, srv, "testuser", "TestPassword123")

	req := httptest.NewRequest("GET", "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler(srv).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d; body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
}

func TestAdminEndpoint_NonAdmin(t *testing.T) {
	srv, store, cleanup := testServer(t)
	defer cleanup()

	createTestUser(t, store, "plain", "TestPassword123", models.GlobalRoleUser)
	token := loginAs(t, srv, "plain", "TestPassword123")

	req := httptest.NewRequest("GET", "/api/v1/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler(srv).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestAdminEndpoint_Admin(t *testing.T) {
	srv, store, cleanup := testServer(t)
	defer cleanup()

	createTestUser(t, store, "admin", "TestPassword123", models.GlobalRoleAdmin)
	token := loginAs(t, srv, "admin", "TestPassword123")

	req := httptest.NewRequest("GET", "/api/v1/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler(srv).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d; body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
}

// TestWorkspaceFlow walks the happy path end to end: create a workspace,
// add a project, a category, and a task, then read back the rollups.
func TestWorkspaceFlow(t *testing.T) {
	srv, store, cleanup := testServer(t)
	defer cleanup()

	createTestUser(t, store, "founder", "TestPassword123", models.GlobalRoleUser)
	token := loginAs(t, srv, "founder", "TestPassword123")

	do := func(method, target, body string) *httptest.ResponseRecorder {
		t.Helper()
		var req *http.Request
		if body != "" {
			req = httptest.NewRequest(method, target, bytes.NewBufferString(body))
			req.Header.Set("Content-Type", "application/json")
		} else {
			req = httptest.NewRequest(method, target, nil)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler(srv).ServeHTTP(rec, req)
		return rec
	}

	// Create workspace
	rec := do("POST", "/api/v1/workspaces", `{"name":"Acme"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create workspace status = %d; body: %s", rec.Code, rec.Body.String())
	}
	var wsResp struct {
		Data models.Workspace `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&wsResp); err != nil {
		t.Fatalf("decode workspace: %v", err)
	}
	wsID := wsResp.Data.ID

	// Create project (creator is owner, so lead threshold is met)
	rec = do("POST", "/api/v1/workspaces/"+wsID+"/projects", `{"name":"Launch"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create project status = %d; body: %s", rec.Code, rec.Body.String())
	}
	var projResp struct {
		Data models.Project `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&projResp); err != nil {
		t.Fatalf("decode project: %v", err)
	}
	projID := projResp.Data.ID

	if projResp.Data.Progress != 10 {
		t.Errorf("new project progress = %d, want 10", projResp.Data.Progress)
	}

	// Create category and a task within it
	rec = do("POST", "/api/v1/projects/"+projID+"/categories", `{"name":"Design"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create category status = %d; body: %s", rec.Code, rec.Body.String())
	}

	rec = do("POST", "/api/v1/projects/"+projID+"/tasks",
		`{"title":"Draft logo","category":"Design","start_date":"2026-09-01T00:00:00Z","due_date":"2026-09-05T00:00:00Z"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create task status = %d; body: %s", rec.Code, rec.Body.String())
	}

	// Task list for the category should have exactly one entry
	rec = do("GET", "/api/v1/projects/"+projID+"/tasks?category=Design", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list tasks status = %d; body: %s", rec.Code, rec.Body.String())
	}
	var taskResp struct {
		Data []models.Task `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&taskResp); err != nil {
		t.Fatalf("decode tasks: %v", err)
	}
	if len(taskResp.Data) != 1 {
		t.Fatalf("got %d tasks, want 1", len(taskResp.Data))
	}
}
