package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrSessionExpired is returned when the backend rejects the bearer token
	ErrSessionExpired = errors.New("session expired, please log in again")
	// ErrForbidden is returned when the backend refuses an operation
	ErrForbidden = errors.New("operation not allowed by the backend")
	// ErrNotFound is returned when the record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrEmptyResponse is returned when a record was expected but the body was empty
	ErrEmptyResponse = errors.New("empty response body")
)

// APIError is a non-2xx response from the backend
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// Unwrap maps well-known status codes to sentinel errors
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return ErrSessionExpired
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return nil
	}
}

// errorBody covers the error shapes the backend emits
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (b errorBody) text() string {
	if b.Message != "" {
		return b.Message
	}
	return b.Error
}
