package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnavailable = errors.New("backend unavailable")
	ErrDecode      = errors.New("unexpected response body")
)

// Error is a non-2xx response from the backend.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// IsStatus reports whether err carries the given HTTP status.
func IsStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == status
}
