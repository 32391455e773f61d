// Package apperr holds the error taxonomy shared by the client components.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidCredentialsResponse is returned when a login response lacks a usable token or profile.
	ErrInvalidCredentialsResponse = errors.New("invalid credentials response")
	// ErrMalformedResponse is returned when a 2xx response body does not have the expected shape.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrNotFound is returned by the secure store for absent keys.
	ErrNotFound = errors.New("not found")
	// ErrBusy is returned when an operation of the same kind is already in flight.
	ErrBusy = errors.New("operation already in progress")
	// ErrSignedOut is returned by a sign-in that was overtaken by a sign-out.
	ErrSignedOut = errors.New("signed out while the request was in flight")
)

// ValidationError reports missing or invalid user input. It is raised before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func Validation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// TransportError is a network failure or a non-2xx API response.
// StatusCode is zero when no response was received.
type TransportError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
	}
	if e.Message == "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StorageError wraps a secure store failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsUnauthorized reports whether err is an API response rejecting the bearer token.
func IsUnauthorized(err error) bool {
	var te *TransportError
	if !errors.As(err, &te) {
		return false
	}
	return te.StatusCode == http.StatusUnauthorized
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
