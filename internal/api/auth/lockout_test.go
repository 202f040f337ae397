package auth

import (
	"testing"
	"time"
)

func TestLockoutTracker_LocksAfterThreshold(t *testing.T) {
	tracker := NewLockoutTracker(3, time.Minute)

	if tracker.RecordFailure("alice") {
		t.Error("locked after 1 failure, want unlocked")
	}
	if tracker.RecordFailure("alice") {
		t.Error("locked after 2 failures, want unlocked")
	}
	if !tracker.RecordFailure("alice") {
		t.Error("not locked after 3 failures, want locked")
	}

	if !tracker.IsLocked("alice") {
		t.Error("IsLocked = false, want true")
	}
	if tracker.IsLocked("bob") {
		t.Error("unrelated account locked")
	}

	if tracker.RemainingLockoutTime("alice") <= 0 {
		t.Error("expected positive remaining lockout time")
	}
}

func TestLockoutTracker_ClearFailures(t *testing.T) {
	tracker := NewLockoutTracker(2, time.Minute)

	tracker.RecordFailure("alice")
	tracker.ClearFailures("alice")

	if tracker.RecordFailure("alice") {
		t.Error("locked after clear + 1 failure, want unlocked")
	}
}

func TestLockoutTracker_ExpiredLockoutResets(t *testing.T) {
	tracker := NewLockoutTracker(2, 10*time.Millisecond)

	tracker.RecordFailure("alice")
	tracker.RecordFailure("alice")
	if !tracker.IsLocked("alice") {
		t.Fatal("expected account locked")
	}

	time.Sleep(20 * time.Millisecond)

	if tracker.IsLocked("alice") {
		t.Error("IsLocked = true after lockout expiry, want false")
	}
	if tracker.RecordFailure("alice") {
		t.Error("locked on first failure after expiry, want fresh count")
	}
}
