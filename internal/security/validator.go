package security

import (
	"net/http"
	"regexp"
	"strings"
)

var (
	uuidRegex   = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
	userIDRegex = regexp.MustCompile(`^[A-Za-z0-9._@-]{1,64}$`)
	segmentRe   = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)
)

// ValidateUUID checks if string is valid UUID format
func ValidateUUID(uuid string) bool {
	if uuid == "" {
		return false
	}
	return uuidRegex.MatchString(strings.ToLower(uuid))
}

func ValidateUserID(id string) bool {
	return userIDRegex.MatchString(id)
}

// ValidateSegment checks a single path segment used as a document id.
func ValidateSegment(s string) bool {
	return segmentRe.MatchString(s)
}

// ValidateRoute accepts absolute application routes like "/dashboard".
func ValidateRoute(route string) bool {
	if route == "" || route[0] != '/' || len(route) > 256 {
		return false
	}
	return ValidatePath(route)
}

// ValidateOrigin checks if request origin is allowed
func ValidateOrigin(r *http.Request, allowedOrigins []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(allowedOrigins) == 0 {
		return true
	}

	for _, allowed := range allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	return false
}

// SanitizeInput removes potentially dangerous characters
func SanitizeInput(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\n' || r == '\t' || r == '\r' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// ValidatePath checks for path traversal attempts
func ValidatePath(path string) bool {
	if strings.Contains(path, "..") {
		return false
	}
	if strings.Contains(path, "\x00") {
		return false
	}
	return true
}

// MaxBodySize middleware limits request body size
func MaxBodySize(maxSize int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxSize)
			next.ServeHTTP(w, r)
		})
	}
}
