package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a failed backend request.
type Error struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api %s %s: status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("api %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message)
}

func newError(method, path string, status int, body []byte) *Error {
	e := &Error{Method: method, Path: path, Status: status}
	if msg := embeddedError(body); msg != "" {
		e.Message = msg
	} else if len(body) > 0 && len(body) < 512 && body[0] != '<' {
		e.Message = string(body)
	} else {
		e.Message = http.StatusText(status)
	}
	return e
}

// StatusOf returns the backend status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsUnauthorized reports whether the backend rejected the credentials.
func IsUnauthorized(err error) bool {
	return StatusOf(err) == http.StatusUnauthorized
}
