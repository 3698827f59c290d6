package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNotFound matches an *Error with status 404.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized matches an *Error with status 401.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnavailable wraps transport failures (backend unreachable, timeouts).
	ErrUnavailable = errors.New("backend unavailable")
)

// Error is a non-2xx response from the backend.
type Error struct {
	StatusCode int
	// Message is the server-supplied reason, or "HTTP <status>".
	Message string
	Method  string
	Path    string
}

func (e *Error) Error() string {
	return e.Message
}

// Is reports whether the status code corresponds to target.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	}
	return false
}

// errorFields lists the payload fields consulted for an error message, in
// order.
var errorFields = []string{"detail", "error", "message"}

func newError(method, path string, status int, body []byte) *Error {
	return &Error{
		StatusCode: status,
		Message:    errorMessage(status, body),
		Method:     method,
		Path:       path,
	}
}

func errorMessage(status int, body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, field := range errorFields {
			if msg, ok := payload[field].(string); ok && strings.TrimSpace(msg) != "" {
				return msg
			}
		}
	}
	return fmt.Sprintf("HTTP %d", status)
}
