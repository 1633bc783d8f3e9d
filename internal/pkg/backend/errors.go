package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection covers transport failures, timeouts and failed discovery. Requests
	// failing with it are retried against a freshly discovered endpoint.
	ErrConnection     = errors.New("backend connection error")
	ErrAuthentication = errors.New("backend authentication failed")
	ErrNotFound       = errors.New("backend resource not found")
	ErrValidation     = errors.New("backend validation error")
)

// APIError is returned for any other non-2xx answer.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Body)
}
