package auth

import (
	"errors"
	"strings"
	"unicode"
)

// PasswordValidationError lists every rule the password failed.
type PasswordValidationError struct {
	Messages []string
}

func (e *PasswordValidationError) Error() string {
	return strings.Join(e.Messages, "; ")
}

// ValidatePassword checks a password against the account policy:
// at least 10 characters with an uppercase letter, a lowercase letter,
// and a digit. Passwords longer than 72 bytes are rejected because
// bcrypt truncates beyond that.
func ValidatePassword(password string) error {
	var messages []string

	if len(password) < 10 {
		messages = append(messages, "password must be at least 10 characters")
	}
	if len(password) > 72 {
		messages = append(messages, "password must be at most 72 characters")
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasUpper {
		messages = append(messages, "password must contain an uppercase letter")
	}
	if !hasLower {
		messages = append(messages, "password must contain a lowercase letter")
	}
	if !hasDigit {
		messages = append(messages, "password must contain a digit")
	}

	if len(messages) > 0 {
		return &PasswordValidationError{Messages: messages}
	}

	return nil
}

// ValidatePasswordOrError returns an error suitable for API responses.
func ValidatePasswordOrError(password string) error {
	if err := ValidatePassword(password); err != nil {
		var validErr *PasswordValidationError
		if errors.As(err, &validErr) {
			return errors.New(validErr.Messages[0])
		}
		return err
	}
	return nil
}
