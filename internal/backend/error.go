package backend

import (
	"fmt"
	"net/http"

	"github.com/myrjola/cdms/internal/errors"
)

var (
	// ErrNotFound matches an [*Error] with status 404.
	ErrNotFound = errors.NewSentinel("not found")
	// ErrUnauthorized matches an [*Error] with status 401.
	ErrUnauthorized = errors.NewSentinel("unauthorized")
	// ErrEmptyBody is returned when a successful response has no body or the body is not syntactically valid JSON.
	ErrEmptyBody = errors.NewSentinel("empty or unparseable response body")
)

// Error is a non-2xx response from the backend.
type Error struct {
	StatusCode int
	// Message is taken from the message field of the JSON error body. It is empty when the backend did not provide one.
	Message string
}

func NewError(statusCode int, message string) *Error {
	return &Error{StatusCode: statusCode, Message: message}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend responded with status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend responded with status %d: %s", e.StatusCode, e.Message)
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	default:
		return false
	}
}

// Message returns the user facing message of a backend error or fallback when err carries none.
func Message(err error, fallback string) string {
	var backendErr *Error
	if errors.As(err, &backendErr) && backendErr.Message != "" {
		return backendErr.Message
	}
	return fallback
}

// StatusCode returns the status code of a backend error or 500 for any other error.
func StatusCode(err error) int {
	var backendErr *Error
	if errors.As(err, &backendErr) {
		return backendErr.StatusCode
	}
	return http.StatusInternalServerError
}
