package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidBaseURL = errors.New("invalid API base URL")
	ErrMissingToken   = errors.New("login response carried no token")
	ErrMissingID      = errors.New("id cannot be empty")
	ErrTooManyImages  = errors.New("too many product images")
)

// AuthError reports rejected credentials or a rejected registration, and any
// 401/403 response.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (%d): %s", e.Status, e.Message)
}

// NotFoundError reports a 404 for a product, order or user.
type NotFoundError struct {
	Path    string
	Message string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s: %s", e.Path, e.Message)
}

// ValidationError reports a submission the server refused as malformed
// (400/422, or a 2xx envelope with success=false).
type ValidationError struct {
	Status  int
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("request rejected (%d): %s", e.Status, e.Message)
}

// NetworkError reports a call that did not complete: transport failure,
// cancellation, or a response body that could not be decoded.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// StatusError is any other non-2xx response.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Message)
}

func IsAuthError(err error) bool {
	var e *AuthError
	return errors.As(err, &e)
}

func IsNotFoundError(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

func IsValidationError(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func IsNetworkError(err error) bool {
	var e *NetworkError
	return errors.As(err, &e)
}

// Message returns the text to show the user for an error returned by the
// client: the server's message when there is one, fallback otherwise.
func Message(err error, fallback string) string {
	var (
		authErr   *AuthError
		notFound  *NotFoundError
		invalid   *ValidationError
		statusErr *StatusError
	)
	switch {
	case errors.As(err, &authErr) && authErr.Message != "":
		return authErr.Message
	case errors.As(err, &notFound) && notFound.Message != "":
		return notFound.Message
	case errors.As(err, &invalid) && invalid.Message != "":
		return invalid.Message
	case errors.As(err, &statusErr) && statusErr.Message != "":
		return statusErr.Message
	}
	return fallback
}

// classify maps a non-2xx response (or a refused envelope) to the taxonomy.
func classify(status int, path, message string, authPath bool) error {
	if message == "" {
		message = http.StatusText(status)
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden || authPath:
		return &AuthError{Status: status, Message: message}
	case status == http.StatusNotFound:
		return &NotFoundError{Path: path, Message: message}
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity || status < 300:
		return &ValidationError{Status: status, Message: message}
	}
	return &StatusError{Status: status, Message: message}
}
