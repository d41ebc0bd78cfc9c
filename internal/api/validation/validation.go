package validation

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

var (
	// EmailRegex validates email format
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	// UUIDRegex validates UUID format
	uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

	// Link tokens are 32 random bytes, unpadded base64url.
	linkTokenRegex = regexp.MustCompile(`^[A-Za-z0-9_\-]{43}$`)
)

// MaxNameLength bounds free-text names shown back to agents.
const MaxNameLength = 200

// IsValidEmail checks if the string is a valid email format
func IsValidEmail(email string) bool {
	if len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(email)
}

// IsValidUUID checks if the string is a valid UUID format
func IsValidUUID(id string) bool {
	return uuidRegex.MatchString(id)
}

// ParseUUID parses id, rejecting the nil UUID.
func ParseUUID(id string) (uuid.UUID, bool) {
	if !IsValidUUID(id) {
		return uuid.Nil, false
	}
	parsed, err := uuid.Parse(id)
	if err != nil || parsed == uuid.Nil {
		return uuid.Nil, false
	}
	return parsed, true
}

// IsWellFormedLinkToken rejects tokens that could never have been issued,
// before they reach the database.
func IsWellFormedLinkToken(token string) bool {
	return linkTokenRegex.MatchString(token)
}

// ValidateTTLSeconds checks an optional link lifetime. Zero is allowed and
// issues an already expired link.
func ValidateTTLSeconds(seconds *int64, max time.Duration) (bool, string) {
	if seconds == nil {
		return true, ""
	}
	if *seconds < 0 {
		return false, "TTL must not be negative"
	}
	if max > 0 && time.Duration(*seconds)*time.Second > max {
		return false, "TTL exceeds the maximum link lifetime"
	}
	return true, ""
}

// IsValidPassword checks password strength
func IsValidPassword(password string) (bool, string) {
	if len(password) < 8 {
		return false, "Password must be at least 8 characters"
	}
	if len(password) > 128 {
		return false, "Password must be at most 128 characters"
	}

	var (
		hasLetter bool
		hasNumber bool
	)

	for _, char := range password {
		switch {
		case unicode.IsLetter(char):
			hasLetter = true
		case unicode.IsNumber(char):
			hasNumber = true
		}
	}

	if !hasLetter {
		return false, "Password must contain at least one letter"
	}
	if !hasNumber {
		return false, "Password must contain at least one number"
	}

	return true, ""
}

// SanitizeString removes potentially dangerous characters for display
func SanitizeString(s string) string {
	// Remove null bytes
	s = strings.ReplaceAll(s, "\x00", "")

	// Remove control characters except newlines and tabs
	var result strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || !unicode.IsControl(r) {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

// TruncateString truncates a string to maxLen characters
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// CleanName sanitizes and bounds a display name.
func CleanName(s string) string {
	return TruncateString(SanitizeString(s), MaxNameLength)
}
