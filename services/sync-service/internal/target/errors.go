package target

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// StatusError is returned for any non-2xx response from the marketing API.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.Status, strings.TrimSpace(string(e.Body)))
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

// IsDuplicateEmail reports whether err is the target rejecting a write
// because another contact already owns the email address.
func IsDuplicateEmail(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	if se.Status != http.StatusConflict && se.Status != http.StatusUnprocessableEntity {
		return false
	}
	body := strings.ToLower(string(se.Body))
	if !strings.Contains(body, "email") {
		return false
	}
	return strings.Contains(body, "duplicate") ||
		strings.Contains(body, "unique") ||
		strings.Contains(body, "already")
}
