package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Common error types for the Learn Link client
var (
	// Session errors
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrSessionExpired   = errors.New("session expired")
	ErrRefreshFailed    = errors.New("token refresh failed")
	ErrForbidden        = errors.New("forbidden for role")

	// Token errors
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrMissingClaim = errors.New("missing token claim")

	// Transport errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrNoResponse   = errors.New("no response from server")

	// Request errors
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid status transition")

	// Hub errors
	ErrHubClosed    = errors.New("hub connection closed")
	ErrHubHandshake = errors.New("hub handshake failed")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrInternal    = errors.New("internal error")
	ErrUnsupported = errors.New("unsupported operation")
)

// APIError is a non-2xx response from the backend. The backend's only error
// schema is a JSON object with a "message" field.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
	Path       string `json:"-"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %d %s", e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s: %d %s", e.Path, e.StatusCode, e.Message)
}

// Unwrap maps well-known status codes onto the sentinel errors so callers can
// use errors.Is without inspecting the status.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrValidation
	}
	if e.StatusCode >= 500 {
		return ErrInternal
	}
	return nil
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not an APIError
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New is errors.New, re-exported so callers need a single errors import
func New(text string) error {
	return errors.New(text)
}
