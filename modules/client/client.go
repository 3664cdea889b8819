package client

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

const (
	MinLength = 3
	MaxLength = 50
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9-]+$`)

// ValidationError is a caller input error. It is never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Sanitize trims the input, turns whitespace into hyphens and strips every
// character outside [A-Za-z0-9-]. Case is preserved.
func Sanitize(raw string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '-', r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			return r
		case unicode.IsSpace(r):
			return '-'
		default:
			return -1
		}
	}, strings.TrimSpace(raw))
}

// SanitizeLower is the onboarding variant of Sanitize, which also lowercases.
func SanitizeLower(raw string) string {
	return strings.ToLower(Sanitize(raw))
}

// Validate - 클라이언트 이름 형식/길이 검증
func Validate(id string) error {
	if id == "" {
		return &ValidationError{Field: "client_name", Message: "Missing required field: client_name"}
	}
	if !namePattern.MatchString(id) {
		return &ValidationError{Field: "client_name", Message: "Client name can only contain letters, numbers, and hyphens"}
	}
	if len(id) < MinLength || len(id) > MaxLength {
		return &ValidationError{
			Field:   "client_name",
			Message: fmt.Sprintf("Client name must be between %d and %d characters", MinLength, MaxLength),
		}
	}
	return nil
}
