package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/task-hive/taskhive/internal/models"
)

func setupTestDB(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "taskhive-test-*")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}

	store := NewSQLiteStorage(filepath.Join(tmpDir, "test.db"))
	if err := store.Open(); err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("open database: %v", err)
	}

	if err := store.Migrate(); err != nil {
		store.Close()
		os.RemoveAll(tmpDir)
		t.Fatalf("migrate database: %v", err)
	}

	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpDir)
	}

	return store, cleanup
}

func createTestUser(t *testing.T, store *SQLiteStorage, username string) *models.User {
	t.Helper()
	user := &models.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hashed-password",
		Role:         models.GlobalRoleUser,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := store.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

func createTestWorkspace(t *testing.T, store *SQLiteStorage, ownerID string) *models.Workspace {
	t.Helper()
	now := time.Now()
	ws := &models.Workspace{
		ID:        uuid.New().String(),
		Name:      "Test Workspace",
		CreatedBy: ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.Workspaces().Create(context.Background(), ws, ownerID); err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	return ws
}

func TestSQLiteStorage_Migrate(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	tables := []string{
		"users", "workspaces", "workspace_members", "invites", "projects",
		"project_categories", "category_members", "tasks", "task_attachments",
		"notifications", "refresh_tokens", "schema_migrations",
	}
	for _, table := range tables {
		var count int
		err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count)
		if err != nil {
			t.Errorf("table %s should exist: %v", table, err)
		}
	}
}

func TestUserRepository_CRUD(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, store, "alice")

	got, err := store.Users().GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user by id: %v", err)
	}
	if got == nil {
		t.Fatal("user should exist")
	}
	if got.Username != "alice" {
		t.Errorf("username = %v, want alice", got.Username)
	}

	got, err = store.Users().GetByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("get user by email: %v", err)
	}
	if got == nil {
		t.Fatal("user should exist by email")
	}

	got.Username = "alice2"
	got.UpdatedAt = time.Now()
	if err := store.Users().Update(ctx, got); err != nil {
		t.Fatalf("update user: %v", err)
	}

	missing, err := store.Users().GetByID(ctx, "no-such-id")
	if err != nil {
		t.Fatalf("get missing user: %v", err)
	}
	if missing != nil {
		t.Error("missing user should be nil")
	}

	if err := store.Users().Delete(ctx, user.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	got, err = store.Users().GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get deleted user: %v", err)
	}
	if got != nil {
		t.Error("deleted user should be nil")
	}
}

func TestWorkspaceRepository_CreateAddsOwnerMembership(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	owner := createTestUser(t, store, "owner")
	ws := createTestWorkspace(t, store, owner.ID)

	m, err := store.Workspaces().GetMember(ctx, ws.ID, owner.ID)
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if m == nil {
		t.Fatal("creator should be a member")
	}
	if m.Role != models.RoleOwner {
		t.Errorf("creator role = %v, want owner", m.Role)
	}

	memberships, err := store.Workspaces().ListForUser(ctx, owner.ID)
	if err != nil {
		t.Fatalf("list for user: %v", err)
	}
	if len(memberships) != 1 {
		t.Fatalf("memberships = %d, want 1", len(memberships))
	}
	if memberships[0].Role != models.RoleOwner {
		t.Errorf("listed role = %v, want owner", memberships[0].Role)
	}
}

func TestWorkspaceRepository_LastOwnerGuard(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	owner := createTestUser(t, store, "owner")
	ws := createTestWorkspace(t, store, owner.ID)

	// Demoting the sole owner must fail.
	err := store.Workspaces().UpdateMemberRole(ctx, ws.ID, owner.ID, models.RoleAdmin)
	if err != ErrLastOwner {
		t.Errorf("demote sole owner: err = %v, want ErrLastOwner", err)
	}

	// Removing the sole owner must fail.
	err = store.Workspaces().RemoveMember(ctx, ws.ID, owner.ID)
	if err != ErrLastOwner {
		t.Errorf("remove sole owner: err = %v, want ErrLastOwner", err)
	}

	// Operations on a non-member report that, not the owner guard.
	err = store.Workspaces().UpdateMemberRole(ctx, ws.ID, "no-such-user", models.RoleViewer)
	if err != ErrNotMember {
		t.Errorf("demote non-member: err = %v, want ErrNotMember", err)
	}
}

func TestWorkspaceRepository_TransferOwnership(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	owner := createTestUser(t, store, "owner")
	admin := createTestUser(t, store, "admin")
	ws := createTestWorkspace(t, store, owner.ID)

	err := store.Workspaces().AddMember(ctx, &models.Member{
		WorkspaceID: ws.ID, UserID: admin.ID, Role: models.RoleAdmin, JoinedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("add member: %v", err)
	}

	if err := store.Workspaces().TransferOwnership(ctx, ws.ID, owner.ID, admin.ID); err != nil {
		t.Fatalf("transfer ownership: %v", err)
	}

	oldOwner, _ := store.Workspaces().GetMember(ctx, ws.ID, owner.ID)
	newOwner, _ := store.Workspaces().GetMember(ctx, ws.ID, admin.ID)
	if oldOwner.Role != models.RoleAdmin {
		t.Errorf("old owner role = %v, want admin", oldOwner.Role)
	}
	if newOwner.Role != models.RoleOwner {
		t.Errorf("new owner role = %v, want owner", newOwner.Role)
	}

	// A transfer from someone who is not the owner changes nothing.
	err = store.Workspaces().TransferOwnership(ctx, ws.ID, owner.ID, admin.ID)
	if err != ErrNotMember {
		t.Errorf("transfer from non-owner: err = %v, want ErrNotMember", err)
	}

	// After the transfer the old owner is demotable.
	if err := store.Workspaces().UpdateMemberRole(ctx, ws.ID, owner.ID, models.RoleMember); err != nil {
		t.Errorf("demote former owner: %v", err)
	}
}

func TestWorkspaceRepository_DuplicateMember(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	owner := createTestUser(t, store, "owner")
	ws := createTestWorkspace(t, store, owner.ID)

	err := store.Workspaces().AddMember(ctx, &models.Member{
		WorkspaceID: ws.ID, UserID: owner.ID, Role: models.RoleViewer, JoinedAt: time.Now(),
	})
	if err != ErrDuplicateMember {
		t.Errorf("duplicate add: err = %v, want ErrDuplicateMember", err)
	}
}

func createTestInvite(t *testing.T, store *SQLiteStorage, ws *models.Workspace, email string, invitedBy string) *models.Invite {
	t.Helper()
	inv, err := models.NewInvite(ws.ID, email, models.RoleMember, invitedBy)
	if err != nil {
		t.Fatalf("new invite: %v", err)
	}
	inv.ID = uuid.New().String()
	if err := store.Invites().Create(context.Background(), inv); err != nil {
		t.Fatalf("create invite: %v", err)
	}
	return inv
}

func TestInviteRepository_AcceptCreatesMembership(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	owner := createTestUser(t, store, "owner")
	invitee := createTestUser(t, store, "invitee")
	ws := createTestWorkspace(t, store, owner.ID)
	inv := createTestInvite(t, store, ws, invitee.Email, owner.ID)

	accepted, err := store.Invites().Accept(ctx, inv.Token, invitee.ID, time.Now())
	if err != nil {
		t.Fatalf("accept invite: %v", err)
	}
	if accepted.Status != models.InviteStatusAccepted {
		t.Errorf("status = %v, want accepted", accepted.Status)
	}
	if accepted.AcceptedAt == nil {
		t.Error("accepted_at should be set")
	}

	m, err := store.Workspaces().GetMember(ctx, ws.ID, invitee.ID)
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if m == nil {
		t.Fatal("invitee should be a member")
	}
	if m.Role != models.RoleMember {
		t.Errorf("member role = %v, want member", m.Role)
	}
}

func TestInviteRepository_DoubleAccept(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	owner := createTestUser(t, store, "owner")
	first := createTestUser(t, store, "first")
	second := createTestUser(t, store, "second")
	ws := createTestWorkspace(t, store, owner.ID)
	inv := createTestInvite(t, store, ws, "shared@example.com", owner.ID)

	if _, err := store.Invites().Accept(ctx, inv.Token, first.ID, time.Now()); err != nil {
		t.Fatalf("first accept: %v", err)
	}

	// The second accept of a consumed token fails and grants nothing.
	_, err := store.Invites().Accept(ctx, inv.Token, second.ID, time.Now())
	if err != ErrInviteConsumed {
		t.Errorf("second accept: err = %v, want ErrInviteConsumed", err)
	}
	m, _ := store.Workspaces().GetMember(ctx, ws.ID, second.ID)
	if m != nil {
		t.Error("loser of the accept race should not be a member")
	}
}

func TestInviteRepository_AcceptExpired(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	owner := createTestUser(t, store, "owner")
	invitee := createTestUser(t, store, "invitee")
	ws := createTestWorkspace(t, store, owner.ID)
	inv := createTestInvite(t, store, ws, invitee.Email, owner.ID)

	// Accept after the TTL: rejected and marked expired even though the
	// sweep never ran.
	after := time.Now().Add(models.InviteTTL + time.Hour)
	_, err := store.Invites().Accept(ctx, inv.Token, invitee.ID, after)
	if err != ErrInviteExpired {
		t.Fatalf("expired accept: err = %v, want ErrInviteExpired", err)
	}

	got, err := store.Invites().GetByToken(ctx, inv.Token)
	if err != nil {
		t.Fatalf("get invite: %v", err)
	}
	if got.Status != models.InviteStatusExpired {
		t.Errorf("status = %v, want expired", got.Status)
	}

	m, _ := store.Workspaces().GetMember(ctx, ws.ID, invitee.ID)
	if m != nil {
		t.Error("expired invite should not grant membership")
	}
}

func TestInviteRepository_Decline(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	owner := createTestUser(t, store, "owner")
	invitee := createTestUser(t, store, "invitee")
	ws := createTestWorkspace(t, store, owner.ID)
	inv := createTestInvite(t, store, ws, invitee.Email, owner.ID)

	declined, err := store.Invites().Decline(ctx, inv.Token, time.Now())
	if err != nil {
		t.Fatalf("decline invite: %v", err)
	}
	if declined.Status != models.InviteStatusDeclined {
		t.Errorf("status = %v, want declined", declined.Status)
	}

	// A declined invite cannot be accepted afterwards.
	_, err = store.Invites().Accept(ctx, inv.Token, invitee.ID, time.Now())
	if err != ErrInviteConsumed {
		t.Errorf("accept after decline: err = %v, want ErrInviteConsumed", err)
	}
}

func TestInviteRepository_Refresh(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	owner := createTestUser(t, store, "owner")
	ws := createTestWorkspace(t, store, owner.ID)
	inv := createTestInvite(t, store, ws, "pending@example.com", owner.ID)

	newToken, err := models.NewInviteToken()
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	newExpiry := time.Now().Add(models.InviteTTL)
	if err := store.Invites().Refresh(ctx, inv.ID, newToken, models.RoleLead, newExpiry); err != nil {
		t.Fatalf("refresh invite: %v", err)
	}

	// The old token no longer resolves; the new one carries the new role.
	old, err := store.Invites().GetByToken(ctx, inv.Token)
	if err != nil {
		t.Fatalf("get by old token: %v", err)
	}
	if old != nil {
		t.Error("old token should no longer resolve")
	}
	got, err := store.Invites().GetByToken(ctx, newToken)
	if err != nil {
		t.Fatalf("get by new token: %v", err)
	}
	if got == nil {
		t.Fatal("refreshed invite should resolve by new token")
	}
	if got.Role != models.RoleLead {
		t.Errorf("role = %v, want lead", got.Role)
	}
}

func createTestProject(t *testing.T, store *SQLiteStorage, ws *models.Workspace, creatorID string) *models.Project {
	t.Helper()
	p := models.NewProject(ws.ID, "Test Project", "", creatorID)
	p.ID = uuid.New().String()
	if err := store.Projects().Create(context.Background(), p); err != nil {
		t.Fatalf("create project: %v", err)
	}
	c := &models.Category{
		ProjectID: p.ID,
		Name:      "General",
		Status:    models.CategoryNotStarted,
		CreatedAt: time.Now(),
	}
	if err := store.Projects().CreateCategory(context.Background(), c); err != nil {
		t.Fatalf("create category: %v", err)
	}
	return p
}

func createTestTask(t *testing.T, store *SQLiteStorage, p *models.Project, assigneeID string) *models.Task {
	t.Helper()
	now := time.Now()
	task := models.NewTask(p.ID, "General", "Task", assigneeID, assigneeID,
		models.PriorityMedium, now, now.Add(48*time.Hour))
	task.ID = uuid.New().String()
	if err := store.Tasks().Create(context.Background(), task); err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func assertRollupMatchesRecount(t *testing.T, store *SQLiteStorage, projectID string) {
	t.Helper()
	ctx := context.Background()

	p, err := store.Projects().GetByID(ctx, projectID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	total, completed, err := store.Tasks().Recount(ctx, projectID)
	if err != nil {
		t.Fatalf("recount: %v", err)
	}
	if int64(p.TotalTasks) != total || int64(p.CompletedTasks) != completed {
		t.Errorf("rollup (%d, %d) != recount (%d, %d)",
			p.TotalTasks, p.CompletedTasks, total, completed)
	}
}

func TestTaskRepository_RollupMatchesRecount(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	owner := createTestUser(t, store, "owner")
	ws := createTestWorkspace(t, store, owner.ID)
	p := createTestProject(t, store, ws, owner.ID)

	t1 := createTestTask(t, store, p, owner.ID)
	t2 := createTestTask(t, store, p, owner.ID)
	assertRollupMatchesRecount(t, store, p.ID)

	// Complete one task.
	prev := t1.Status
	t1.SetStatus(models.TaskDone)
	if err := store.Tasks().UpdateStatus(ctx, t1, prev); err != nil {
		t.Fatalf("complete task: %v", err)
	}
	assertRollupMatchesRecount(t, store, p.ID)

	// Regress it back to in-progress.
	prev = t1.Status
	t1.SetStatus(models.TaskInProgress)
	if err := store.Tasks().UpdateStatus(ctx, t1, prev); err != nil {
		t.Fatalf("regress task: %v", err)
	}
	assertRollupMatchesRecount(t, store, p.ID)

	// Complete and then delete the other task.
	prev = t2.Status
	t2.SetStatus(models.TaskDone)
	if err := store.Tasks().UpdateStatus(ctx, t2, prev); err != nil {
		t.Fatalf("complete second task: %v", err)
	}
	if err := store.Tasks().Delete(ctx, t2.ID); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	assertRollupMatchesRecount(t, store, p.ID)

	got, err := store.Projects().GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if got.TotalTasks != 1 || got.CompletedTasks != 0 {
		t.Errorf("rollup = (%d, %d), want (1, 0)", got.TotalTasks, got.CompletedTasks)
	}
}

func TestProjectRepository_DeleteCategoryNotEmpty(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	owner := createTestUser(t, store, "owner")
	ws := createTestWorkspace(t, store, owner.ID)
	p := createTestProject(t, store, ws, owner.ID)
	task := createTestTask(t, store, p, owner.ID)

	err := store.Projects().DeleteCategory(ctx, p.ID, "General")
	if err != ErrCategoryNotEmpty {
		t.Errorf("delete non-empty category: err = %v, want ErrCategoryNotEmpty", err)
	}

	if err := store.Tasks().Delete(ctx, task.ID); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	if err := store.Projects().DeleteCategory(ctx, p.ID, "General"); err != nil {
		t.Errorf("delete empty category: %v", err)
	}
}

func TestNotificationRepository_ReadLifecycle(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, store, "reader")
	for i := 0; i < 3; i++ {
		n := models.NewNotification(user.ID, "", models.NotifyMemberJoined,
			"New member", "someone joined", models.NotificationData{})
		n.ID = uuid.New().String()
		if err := store.Notifications().Create(ctx, n); err != nil {
			t.Fatalf("create notification: %v", err)
		}
	}

	unread, err := store.Notifications().CountUnread(ctx, user.ID)
	if err != nil {
		t.Fatalf("count unread: %v", err)
	}
	if unread != 3 {
		t.Errorf("unread = %d, want 3", unread)
	}

	list, err := store.Notifications().ListByRecipient(ctx, user.ID, true, 10, 0)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("listed = %d, want 3", len(list))
	}

	if err := store.Notifications().MarkRead(ctx, list[0].ID, time.Now()); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	// Re-marking is a no-op.
	if err := store.Notifications().MarkRead(ctx, list[0].ID, time.Now()); err != nil {
		t.Fatalf("re-mark read: %v", err)
	}

	flipped, err := store.Notifications().MarkAllRead(ctx, user.ID, time.Now())
	if err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	if flipped != 2 {
		t.Errorf("flipped = %d, want 2", flipped)
	}

	unread, _ = store.Notifications().CountUnread(ctx, user.ID)
	if unread != 0 {
		t.Errorf("unread after mark all = %d, want 0", unread)
	}
}

func TestTokenRepository_RevokeAndExpire(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, store, "tokenuser")

	token, _, err := models.NewRefreshToken(user.ID, time.Hour)
	if err != nil {
		t.Fatalf("new refresh token: %v", err)
	}
	if err := store.Tokens().Create(ctx, token); err != nil {
		t.Fatalf("create token: %v", err)
	}

	got, err := store.Tokens().GetByTokenHash(ctx, token.TokenHash)
	if err != nil {
		t.Fatalf("get token: %v", err)
	}
	if got == nil || !got.IsValid() {
		t.Fatal("token should be valid")
	}

	if err := store.Tokens().RevokeAllForUser(ctx, user.ID); err != nil {
		t.Fatalf("revoke all: %v", err)
	}
	got, _ = store.Tokens().GetByTokenHash(ctx, token.TokenHash)
	if got == nil || !got.Revoked {
		t.Error("token should be revoked")
	}
}
