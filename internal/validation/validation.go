// Package validation holds input validation rules shared by the HTTP layer
// and services.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Content limits enforced on user-authored text.
const (
	MaxPostContentLen    = 5000
	MaxCommentContentLen = 1000
	MaxNameLen           = 50
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail checks basic email format
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}

	if len(email) > 254 {
		return fmt.Errorf("email must not exceed 254 characters")
	}

	return nil
}

// ValidatePassword checks if a password meets security requirements
func ValidatePassword(password string) error {
	if len(password) < 12 {
		return fmt.Errorf("password must be at least 12 characters long")
	}

	if len(password) > 128 {
		return fmt.Errorf("password must not exceed 128 characters")
	}

	hasUpper := false
	hasLower := false
	for _, r := range password {
		if unicode.IsUpper(r) {
			hasUpper = true
		}
		if unicode.IsLower(r) {
			hasLower = true
		}
	}
	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}

	if !regexp.MustCompile(`[0-9]`).MatchString(password) {
		return fmt.Errorf("password must contain at least one digit")
	}

	if !regexp.MustCompile(`[!@#$%^&*()_+\-=\[\]{};':"\\|,.<>\/?]`).MatchString(password) {
		return fmt.Errorf("password must contain at least one special character (!@#$%%^&*)")
	}

	return nil
}

// ValidateName checks a first or last name.
func ValidateName(field, name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("%s is required", field)
	}
	if utf8.RuneCountInString(trimmed) > MaxNameLen {
		return fmt.Errorf("%s must not exceed %d characters", field, MaxNameLen)
	}
	return nil
}

// ValidatePostContent enforces the post body rules. Posts may be empty when
// they carry an image, so only the upper bound applies here.
func ValidatePostContent(content string) error {
	if utf8.RuneCountInString(content) > MaxPostContentLen {
		return fmt.Errorf("post content must not exceed %d characters", MaxPostContentLen)
	}
	return nil
}

// ValidateCommentContent enforces the comment body rules.
func ValidateCommentContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("comment content is required")
	}
	if utf8.RuneCountInString(content) > MaxCommentContentLen {
		return fmt.Errorf("comment content must not exceed %d characters", MaxCommentContentLen)
	}
	return nil
}
