package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid", "Correct1Horse", false},
		{"too_short", "Ab1", true},
		{"no_uppercase", "lowercase123only", true},
		{"no_lowercase", "UPPERCASE123ONLY", true},
		{"no_digit", "NoDigitsHereAtAll", true},
		{"too_long", "Aa1" + strings.Repeat("x", 80), true},
		{"empty", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePassword(tc.password)
			if tc.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidatePassword_CollectsAllFailures(t *testing.T) {
	err := ValidatePassword("short")

	if err == nil {
		t.Fatal("expected error")
	}
	var validErr *PasswordValidationError
	if !errors.As(err, &validErr) {
		t.Fatalf("error type = %T, want *PasswordValidationError", err)
	}

	// "short" fails length, uppercase and digit rules.
	if len(validErr.Messages) != 3 {
		t.Errorf("messages = %d (%v), want 3", len(validErr.Messages), validErr.Messages)
	}
}

func TestValidatePasswordOrError_ReturnsFirstMessage(t *testing.T) {
	err := ValidatePasswordOrError("short")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "at least 10 characters") {
		t.Errorf("error = %q, want first rule message", err.Error())
	}
}
