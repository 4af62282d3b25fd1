package security

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/winniek75/flashinput-sub005/internal/config"
)

// Input length constraints
const (
	MaxDisplayNameLength = 50
	MaxIdentifierLength  = 64
	MinNameLength        = 1
)

var (
	// Application-level ids (teacher and student) are opaque tokens chosen by clients
	identifierRegex = regexp.MustCompile(`^[A-Za-z0-9_\-:.@]+$`)
	// Room codes are upper-case after normalization
	roomCodeRegex = regexp.MustCompile(fmt.Sprintf(`^[A-Z0-9]{%d}$`, config.RoomCodeLength))
	// Name validation regex - Unicode letters, digits, spaces, apostrophes, hyphens, underscores, dots
	nameRegex = regexp.MustCompile(`^[\p{L}\p{N}\s'\-_.]+$`)
	// Dangerous characters that could be used for injection attacks
	dangerousCharsRegex = regexp.MustCompile(`[<>{}[\]\\;|&$()` + "`" + `]`)
)

// ValidateIdentifier validates a client-chosen teacher or student id.
// field names the payload field in the returned error.
func ValidateIdentifier(field, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%s is required", field)
	}
	if len(id) > MaxIdentifierLength {
		return "", fmt.Errorf("%s too long (max %d characters)", field, MaxIdentifierLength)
	}
	if !identifierRegex.MatchString(id) {
		return "", fmt.Errorf("%s contains invalid characters", field)
	}
	return id, nil
}

// NormalizeRoomCode upper-cases a human-typed room code and checks its shape.
func NormalizeRoomCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", fmt.Errorf("roomCode is required")
	}
	if !roomCodeRegex.MatchString(code) {
		return "", fmt.Errorf("invalid room code (expected %d letters or digits)", config.RoomCodeLength)
	}
	return code, nil
}

// ValidateName validates a name string with length and character constraints
// Returns sanitized name (NFC normalized) and error if validation fails
func ValidateName(name string, maxLen int) (string, error) {
	name = norm.NFC.String(strings.TrimSpace(name))

	if name == "" {
		return "", fmt.Errorf("name cannot be empty")
	}

	length := utf8.RuneCountInString(name)
	if length < MinNameLength {
		return "", fmt.Errorf("name too short (min %d characters)", MinNameLength)
	}

	if length > maxLen {
		return "", fmt.Errorf("name too long (max %d characters)", maxLen)
	}

	if !nameRegex.MatchString(name) {
		return "", fmt.Errorf("name contains invalid characters (allowed: letters, numbers, spaces, apostrophes, hyphens, underscores, dots)")
	}

	if dangerousCharsRegex.MatchString(name) {
		return "", fmt.Errorf("name contains potentially dangerous characters")
	}

	for _, r := range name {
		if r < 32 || r == 127 {
			return "", fmt.Errorf("name contains control characters")
		}
	}

	return name, nil
}

// ValidateDisplayName validates a teacher or student display name
func ValidateDisplayName(name string) (string, error) {
	return ValidateName(name, MaxDisplayNameLength)
}

// SanitizeErrorMessage removes internal details from error messages before
// they reach a client. Returns a generic message for anything unexpected.
func SanitizeErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	errStr := strings.ToLower(err.Error())

	sensitivePatterns := []string{
		"json:",
		"unexpected end",
		"invalid character",
		"runtime",
		"nil pointer",
		"websocket",
	}

	for _, pattern := range sensitivePatterns {
		if strings.Contains(errStr, pattern) {
			return "An error occurred while processing your request"
		}
	}

	return err.Error()
}
