package invites

import (
	"context"
	"testing"
	"time"

	"github.com/task-hive/taskhive/internal/models"
	"github.com/task-hive/taskhive/internal/notify"
	"github.com/task-hive/taskhive/internal/storage"
)

// Mock repositories covering the service's storage access.
type mockInviteRepository struct {
	storage.InviteRepository
	invites   []*models.Invite
	refreshed bool
}

func (m *mockInviteRepository) Create(ctx context.Context, invite *models.Invite) error {
	m.invites = append(m.invites, invite)
	return nil
}

func (m *mockInviteRepository) GetByToken(ctx context.Context, token string) (*models.Invite, error) {
	for _, inv := range m.invites {
		if inv.Token == token {
			return inv, nil
		}
	}
	return nil, nil
}

func (m *mockInviteRepository) GetPending(ctx context.Context, workspaceID, email string) (*models.Invite, error) {
	for _, inv := range m.invites {
		if inv.WorkspaceID == workspaceID && inv.Email == email && inv.Status == models.InviteStatusPending {
			return inv, nil
		}
	}
	return nil, nil
}

func (m *mockInviteRepository) Refresh(ctx context.Context, id, token string, role models.WorkspaceRole, expiresAt time.Time) error {
	m.refreshed = true
	for _, inv := range m.invites {
		if inv.ID == id {
			inv.Token = token
			inv.Role = role
			inv.ExpiresAt = expiresAt
		}
	}
	return nil
}

func (m *mockInviteRepository) Accept(ctx context.Context, token, userID string, now time.Time) (*models.Invite, error) {
	for _, inv := range m.invites {
		if inv.Token == token {
			if inv.Status != models.InviteStatusPending {
				return nil, storage.ErrInviteConsumed
			}
			if !inv.ExpiresAt.After(now) {
				inv.Status = models.InviteStatusExpired
				return nil, storage.ErrInviteExpired
			}
			inv.Status = models.InviteStatusAccepted
			inv.AcceptedAt = &now
			return inv, nil
		}
	}
	return nil, nil
}

func (m *mockInviteRepository) Decline(ctx context.Context, token string, now time.Time) (*models.Invite, error) {
	for _, inv := range m.invites {
		if inv.Token == token && inv.Status == models.InviteStatusPending {
			inv.Status = models.InviteStatusDeclined
			return inv, nil
		}
	}
	return nil, storage.ErrInviteConsumed
}

type mockUserRepository struct {
	storage.UserRepository
	users []*models.User
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

type mockWorkspaceRepository struct {
	storage.WorkspaceRepository
	workspaces []*models.Workspace
	members    []*models.Member
	adminIDs   []string
}

func (m *mockWorkspaceRepository) GetByID(ctx context.Context, id string) (*models.Workspace, error) {
	for _, ws := range m.workspaces {
		if ws.ID == id {
			return ws, nil
		}
	}
	return nil, nil
}

func (m *mockWorkspaceRepository) GetMember(ctx context.Context, workspaceID, userID string) (*models.Member, error) {
	for _, mem := range m.members {
		if mem.WorkspaceID == workspaceID && mem.UserID == userID {
			return mem, nil
		}
	}
	return nil, nil
}

func (m *mockWorkspaceRepository) AdminIDs(ctx context.Context, workspaceID string) ([]string, error) {
	return m.adminIDs, nil
}

type mockNotificationRepository struct {
	storage.NotificationRepository
	created []*models.Notification
}

func (m *mockNotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	m.created = append(m.created, n)
	return nil
}

type mockStorage struct {
	storage.Storage
	inviteRepo       *mockInviteRepository
	userRepo         *mockUserRepository
	workspaceRepo    *mockWorkspaceRepository
	notificationRepo *mockNotificationRepository
}

func (m *mockStorage) Invites() storage.InviteRepository             { return m.inviteRepo }
func (m *mockStorage) Users() storage.UserRepository                 { return m.userRepo }
func (m *mockStorage) Workspaces() storage.WorkspaceRepository       { return m.workspaceRepo }
func (m *mockStorage) Notifications() storage.NotificationRepository { return m.notificationRepo }

func newTestService() (*Service, *mockStorage) {
	store := &mockStorage{
		inviteRepo:       &mockInviteRepository{},
		userRepo:         &mockUserRepository{},
		workspaceRepo:    &mockWorkspaceRepository{},
		notificationRepo: &mockNotificationRepository{},
	}
	store.workspaceRepo.workspaces = []*models.Workspace{
		{ID: "ws-1", Name: "Acme"},
	}
	return NewService(store, notify.NewEmitter(store), nil), store
}

func TestIssue_CreatesPendingInvite(t *testing.T) {
	svc, store := newTestService()
	inviter := &models.User{ID: "owner-1", Username: "owner", Email: "owner@example.com"}

	inv, err := svc.Issue(context.Background(), "ws-1", "New@Example.com", models.RoleMember, inviter)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if inv.Status != models.InviteStatusPending {
		t.Errorf("status = %v, want pending", inv.Status)
	}
	if inv.Email != "new@example.com" {
		t.Errorf("email = %v, want normalized lowercase", inv.Email)
	}
	if inv.Token == "" {
		t.Error("invite should carry a token")
	}
	if len(store.inviteRepo.invites) != 1 {
		t.Fatalf("stored invites = %d, want 1", len(store.inviteRepo.invites))
	}
}

func TestIssue_RejectsOwnerRole(t *testing.T) {
	svc, _ := newTestService()
	inviter := &models.User{ID: "owner-1", Username: "owner", Email: "owner@example.com"}

	_, err := svc.Issue(context.Background(), "ws-1", "new@example.com", models.RoleOwner, inviter)
	if err != ErrRoleNotInvitable {
		t.Errorf("err = %v, want ErrRoleNotInvitable", err)
	}
}

func TestIssue_RejectsExistingMember(t *testing.T) {
	svc, store := newTestService()
	store.userRepo.users = []*models.User{
		{ID: "member-1", Email: "member@example.com"},
	}
	store.workspaceRepo.members = []*models.Member{
		{WorkspaceID: "ws-1", UserID: "member-1", Role: models.RoleMember},
	}
	inviter := &models.User{ID: "owner-1", Username: "owner", Email: "owner@example.com"}

	_, err := svc.Issue(context.Background(), "ws-1", "member@example.com", models.RoleMember, inviter)
	if err != ErrAlreadyMember {
		t.Errorf("err = %v, want ErrAlreadyMember", err)
	}
}

func TestIssue_RefreshesExistingPending(t *testing.T) {
	svc, store := newTestService()
	inviter := &models.User{ID: "owner-1", Username: "owner", Email: "owner@example.com"}

	first, err := svc.Issue(context.Background(), "ws-1", "new@example.com", models.RoleMember, inviter)
	if err != nil {
		t.Fatalf("first issue: %v", err)
	}
	oldToken := first.Token

	// Re-inviting rotates the token and updates the role in place.
	second, err := svc.Issue(context.Background(), "ws-1", "new@example.com", models.RoleLead, inviter)
	if err != nil {
		t.Fatalf("second issue: %v", err)
	}
	if !store.inviteRepo.refreshed {
		t.Error("second issue should refresh, not create")
	}
	if len(store.inviteRepo.invites) != 1 {
		t.Errorf("stored invites = %d, want 1", len(store.inviteRepo.invites))
	}
	if second.Token == oldToken {
		t.Error("refresh should rotate the token")
	}
	if second.Role != models.RoleLead {
		t.Errorf("role = %v, want lead", second.Role)
	}
}

func TestIssue_NotifiesRegisteredInvitee(t *testing.T) {
	svc, store := newTestService()
	store.userRepo.users = []*models.User{
		{ID: "invitee-1", Email: "new@example.com"},
	}
	inviter := &models.User{ID: "owner-1", Username: "owner", Email: "owner@example.com"}

	if _, err := svc.Issue(context.Background(), "ws-1", "new@example.com", models.RoleMember, inviter); err != nil {
		t.Fatalf("issue: %v", err)
	}

	if len(store.notificationRepo.created) != 1 {
		t.Fatalf("notifications = %d, want 1", len(store.notificationRepo.created))
	}
	n := store.notificationRepo.created[0]
	if n.Type != models.NotifyInviteReceived {
		t.Errorf("type = %v, want invite_received", n.Type)
	}
	if n.RecipientID != "invitee-1" {
		t.Errorf("recipient = %v, want invitee-1", n.RecipientID)
	}
}

func TestAccept_EmailMismatch(t *testing.T) {
	svc, _ := newTestService()
	inviter := &models.User{ID: "owner-1", Username: "owner", Email: "owner@example.com"}

	inv, err := svc.Issue(context.Background(), "ws-1", "right@example.com", models.RoleMember, inviter)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	wrongUser := &models.User{ID: "user-1", Username: "wrong", Email: "wrong@example.com"}
	_, err = svc.Accept(context.Background(), inv.Token, wrongUser)
	if err != ErrEmailMismatch {
		t.Errorf("err = %v, want ErrEmailMismatch", err)
	}
}

func TestAccept_EmitsNotifications(t *testing.T) {
	svc, store := newTestService()
	store.workspaceRepo.adminIDs = []string{"owner-1"}
	inviter := &models.User{ID: "owner-1", Username: "owner", Email: "owner@example.com"}

	inv, err := svc.Issue(context.Background(), "ws-1", "new@example.com", models.RoleMember, inviter)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	invitee := &models.User{ID: "invitee-1", Username: "newbie", Email: "new@example.com"}
	accepted, err := svc.Accept(context.Background(), inv.Token, invitee)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Status != models.InviteStatusAccepted {
		t.Errorf("status = %v, want accepted", accepted.Status)
	}

	var types []models.NotificationType
	for _, n := range store.notificationRepo.created {
		types = append(types, n.Type)
	}
	wantAccepted, wantJoined := false, false
	for _, typ := range types {
		switch typ {
		case models.NotifyInviteAccepted:
			wantAccepted = true
		case models.NotifyMemberJoined:
			wantJoined = true
		}
	}
	if !wantAccepted || !wantJoined {
		t.Errorf("notification types = %v, want invite_accepted and member_joined", types)
	}
}

func TestAccept_UnknownToken(t *testing.T) {
	svc, _ := newTestService()
	user := &models.User{ID: "user-1", Email: "user@example.com"}

	inv, err := svc.Accept(context.Background(), "no-such-token", user)
	if err != nil {
		t.Fatalf("accept unknown token: %v", err)
	}
	if inv != nil {
		t.Error("unknown token should resolve to nil invite")
	}
}

func TestDecline_TransitionsInvite(t *testing.T) {
	svc, _ := newTestService()
	inviter := &models.User{ID: "owner-1", Username: "owner", Email: "owner@example.com"}

	inv, err := svc.Issue(context.Background(), "ws-1", "new@example.com", models.RoleMember, inviter)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	invitee := &models.User{ID: "invitee-1", Email: "new@example.com"}
	declined, err := svc.Decline(context.Background(), inv.Token, invitee)
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if declined.Status != models.InviteStatusDeclined {
		t.Errorf("status = %v, want declined", declined.Status)
	}
}
