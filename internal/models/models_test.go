package models

import (
	"testing"
	"time"
)

func TestWorkspaceRoleOrdering(t *testing.T) {
	tests := []struct {
		name    string
		role    WorkspaceRole
		other   WorkspaceRole
		atLeast bool
	}{
		{"owner over admin", RoleOwner, RoleAdmin, true},
		{"admin over lead", RoleAdmin, RoleLead, true},
		{"lead over member", RoleLead, RoleMember, true},
		{"member over viewer", RoleMember, RoleViewer, true},
		{"viewer over none", RoleViewer, RoleNone, true},
		{"viewer not member", RoleViewer, RoleMember, false},
		{"none grants nothing", RoleNone, RoleViewer, false},
		{"role equals itself", RoleLead, RoleLead, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.role.AtLeast(tt.other); got != tt.atLeast {
				t.Errorf("%s.AtLeast(%s) = %v, want %v", tt.role, tt.other, got, tt.atLeast)
			}
		})
	}
}

func TestRoleNoneDistinctFromViewer(t *testing.T) {
	if RoleNone.IsValid() {
		t.Error("RoleNone must not be a storable membership role")
	}
	if !RoleViewer.IsValid() {
		t.Error("viewer must be a storable membership role")
	}
	if ParseWorkspaceRole("bogus") != RoleNone {
		t.Error("unknown role strings must parse to RoleNone")
	}
}

func TestInviteExpiry(t *testing.T) {
	inv, err := NewInvite("ws1", "alice@example.com", RoleLead, "bob")
	if err != nil {
		t.Fatalf("NewInvite: %v", err)
	}

	if inv.Status != InviteStatusPending {
		t.Errorf("new invite status = %s, want pending", inv.Status)
	}
	if !inv.IsAcceptable() {
		t.Error("fresh invite should be acceptable")
	}
	if inv.Token == "" {
		t.Error("invite must carry a token")
	}

	// A pending invite past expiry must not be acceptable.
	inv.ExpiresAt = time.Now().Add(-time.Minute)
	if !inv.IsExpired() {
		t.Error("invite past expiry should report expired")
	}
	if inv.IsAcceptable() {
		t.Error("expired invite must not be acceptable even while marked pending")
	}
}

func TestInviteTokensUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := NewInviteToken()
		if err != nil {
			t.Fatalf("NewInviteToken: %v", err)
		}
		if seen[token] {
			t.Fatal("duplicate invite token generated")
		}
		seen[token] = true
	}
}

func TestInvitableRoles(t *testing.T) {
	for _, role := range []WorkspaceRole{RoleViewer, RoleMember, RoleLead, RoleAdmin} {
		if !IsInvitableRole(role) {
			t.Errorf("%s should be invitable", role)
		}
	}
	if IsInvitableRole(RoleOwner) {
		t.Error("ownership must never be granted by invitation")
	}
	if IsInvitableRole(RoleNone) {
		t.Error("RoleNone must not be invitable")
	}
}

func TestProjectProgressMapping(t *testing.T) {
	tests := []struct {
		status   ProjectStatus
		progress int
	}{
		{ProjectPlanning, 10},
		{ProjectInProgress, 50},
		{ProjectOnHold, 30},
		{ProjectCompleted, 100},
		{ProjectCancelled, 0},
	}

	p := NewProject("ws1", "Rollout", "", "u1")
	if p.Progress != 10 {
		t.Errorf("new project progress = %d, want 10", p.Progress)
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			p.SetStatus(tt.status)
			if p.Progress != tt.progress {
				t.Errorf("progress for %s = %d, want %d", tt.status, p.Progress, tt.progress)
			}
		})
	}
}

func TestCategoryCompletedAtCoupling(t *testing.T) {
	c := &Category{ProjectID: "p1", Name: "Backend", Status: CategoryNotStarted}

	c.SetStatus(CategoryInProgress)
	if c.CompletedAt != nil {
		t.Error("in-progress category must not have completedAt")
	}

	c.SetStatus(CategoryCompleted)
	if c.CompletedAt == nil {
		t.Fatal("completed category must record completedAt")
	}
	first := *c.CompletedAt

	// Re-completing does not move the timestamp.
	c.SetStatus(CategoryCompleted)
	if !c.CompletedAt.Equal(first) {
		t.Error("repeated completion must not move completedAt")
	}

	c.SetStatus(CategoryInProgress)
	if c.CompletedAt != nil {
		t.Error("regression must clear completedAt")
	}
}

func TestTaskDurationDays(t *testing.T) {
	day := 24 * time.Hour
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		due  time.Time
		want int
	}{
		{"same day", start, 1},
		{"next day", start.Add(day), 2},
		{"one week", start.Add(6 * day), 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DurationDays(start, tt.due); got != tt.want {
				t.Errorf("DurationDays = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestTaskStatusCompletedAtCoupling(t *testing.T) {
	start := time.Now()
	task := NewTask("p1", "Backend", "Ship it", "alice", "bob", PriorityHigh, start, start.Add(48*time.Hour))

	if task.Status != TaskTodo || task.CompletedAt != nil {
		t.Fatal("new task must be to-do with no completedAt")
	}
	if task.DurationDays != 3 {
		t.Errorf("duration = %d, want 3", task.DurationDays)
	}

	task.SetStatus(TaskDone)
	if task.CompletedAt == nil {
		t.Fatal("done task must record completedAt")
	}

	task.SetStatus(TaskInProgress)
	if task.CompletedAt != nil {
		t.Error("status regression must clear completedAt")
	}
}

func TestWorkspaceArchiveClock(t *testing.T) {
	w := NewWorkspace("Acme", "", "u1")

	w.Archive("u1")
	if !w.IsArchived || w.ArchivedAt == nil || w.DeleteScheduledAt == nil {
		t.Fatal("archive must set all archive fields")
	}
	want := w.ArchivedAt.Add(ArchiveGracePeriod)
	if !w.DeleteScheduledAt.Equal(want) {
		t.Errorf("deleteScheduledAt = %v, want archive time + grace period", w.DeleteScheduledAt)
	}

	w.Restore()
	if w.IsArchived || w.ArchivedAt != nil || w.ArchivedBy != "" || w.DeleteScheduledAt != nil {
		t.Error("restore must clear all archive fields")
	}
}
