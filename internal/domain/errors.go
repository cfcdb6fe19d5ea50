package domain

import (
	"errors"
	"fmt"
)

// -----------------------------
// ParameterError
// -----------------------------

// ParameterError reports an invalid argument supplied by the caller.
type ParameterError struct {
	Param   string
	Message string
}

func NewParameterError(param, message string) *ParameterError {
	return &ParameterError{Param: param, Message: message}
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Param, e.Message)
}

func IsParameterError(err error) bool {
	var target *ParameterError
	return errors.As(err, &target)
}

// -----------------------------
// AuthenticationError
// -----------------------------

// AuthenticationError is returned when the API rejects the credentials (401/403).
type AuthenticationError struct {
	StatusCode int
	Message    string
}

func NewAuthenticationError(statusCode int, message string) *AuthenticationError {
	return &AuthenticationError{StatusCode: statusCode, Message: message}
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed (HTTP %d): %s", e.StatusCode, e.Message)
}

func IsAuthenticationError(err error) bool {
	var target *AuthenticationError
	return errors.As(err, &target)
}

// -----------------------------
// NetworkError
// -----------------------------

// NetworkError wraps transport level failures, including timeouts.
type NetworkError struct {
	Op      string
	Timeout bool
	Err     error
}

func NewNetworkError(op string, timeout bool, err error) *NetworkError {
	return &NetworkError{Op: op, Timeout: timeout, Err: err}
}

func (e *NetworkError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: request timed out: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func IsNetworkError(err error) bool {
	var target *NetworkError
	return errors.As(err, &target)
}

// IsTimeout reports whether err is a NetworkError caused by a deadline.
func IsTimeout(err error) bool {
	var target *NetworkError
	return errors.As(err, &target) && target.Timeout
}

// -----------------------------
// APIError
// -----------------------------

// APIError covers non-2xx responses other than auth failures and
// responses whose body cannot be decoded.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func NewAPIError(statusCode int, message string, err error) *APIError {
	return &APIError{StatusCode: statusCode, Message: message, Err: err}
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("api error (HTTP %d): %s: %v", e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("api error (HTTP %d): %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func IsAPIError(err error) bool {
	var target *APIError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is an APIError for a 404 response.
func IsNotFound(err error) bool {
	var target *APIError
	return errors.As(err, &target) && target.StatusCode == 404
}

// -----------------------------
// CircuitOpenError
// -----------------------------

type CircuitOpenError struct {
	Message string
}

func NewCircuitOpenError(message string) *CircuitOpenError {
	return &CircuitOpenError{Message: message}
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit open: %s", e.Message)
}

func IsCircuitOpen(err error) bool {
	var target *CircuitOpenError
	return errors.As(err, &target)
}

// -----------------------------
// ValidationError
// -----------------------------

// ValidationError reports an invalid configuration value.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error [%s]: %s", e.Field, e.Message)
}

func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}
