package validation

import (
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"time"
	"unicode"

	apperrors "github.com/jrsteele09/learnlink-client/internal/errors"
)

// FieldErrors collects per-field messages for a form. It is returned instead
// of sending a request the backend would reject anyway.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, fe[f]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (fe FieldErrors) Unwrap() error {
	return apperrors.ErrValidation
}

// Add records msg against field, keeping the first message per field
func (fe FieldErrors) Add(field, msg string) {
	if _, exists := fe[field]; !exists {
		fe[field] = msg
	}
}

// Err returns nil when no field failed
func (fe FieldErrors) Err() error {
	if len(fe) == 0 {
		return nil
	}
	return fe
}

func (fe FieldErrors) Required(field, value string) {
	if strings.TrimSpace(value) == "" {
		fe.Add(field, "is required")
	}
}

func (fe FieldErrors) Email(field, value string) {
	if strings.TrimSpace(value) == "" {
		fe.Add(field, "is required")
		return
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		fe.Add(field, "must be a valid email address")
	}
}

func (fe FieldErrors) Password(field, value string) {
	if err := ValidatePasswordStrength(value); err != nil {
		fe.Add(field, err.Error())
	}
}

func (fe FieldErrors) Match(field, value, other string) {
	if value != other {
		fe.Add(field, "does not match")
	}
}

func (fe FieldErrors) Positive(field string, value int) {
	if value <= 0 {
		fe.Add(field, "must be greater than zero")
	}
}

func (fe FieldErrors) NonNegative(field string, value int) {
	if value < 0 {
		fe.Add(field, "must not be negative")
	}
}

func (fe FieldErrors) Range(field string, value, min, max int) {
	if value < min || value > max {
		fe.Add(field, fmt.Sprintf("must be between %d and %d", min, max))
	}
}

// After checks that value is set and later than now
func (fe FieldErrors) After(field string, value, now time.Time) {
	if value.IsZero() {
		fe.Add(field, "is required")
		return
	}
	if !value.After(now) {
		fe.Add(field, "must be in the future")
	}
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}
