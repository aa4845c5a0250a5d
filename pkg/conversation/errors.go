package conversation

import (
	"errors"
	"fmt"
)

// Sentinel errors for the conversation package.
var (
	// ErrMissingAPIKey indicates the API key was not provided.
	ErrMissingAPIKey = errors.New("conversation: API key is required")

	// ErrNotConnected indicates the agent socket is not open.
	ErrNotConnected = errors.New("conversation: not connected")

	// ErrAlreadyConnected indicates Connect was called twice.
	ErrAlreadyConnected = errors.New("conversation: already connected")

	// ErrNotConfigured indicates Connect was called before Configure.
	ErrNotConfigured = errors.New("conversation: settings not configured")

	// ErrInvalidMessage indicates a malformed message was received.
	ErrInvalidMessage = errors.New("conversation: invalid message")
)

// APIError is an Error message reported by the agent service.
type APIError struct {
	// Code is the error code from the service.
	Code string

	// Description is the human-readable error message.
	Description string

	// Warning is true for Warning messages, which never end the session.
	Warning bool
}

// Error implements the error interface.
func (e *APIError) Error() string {
	kind := "error"
	if e.Warning {
		kind = "warning"
	}
	if e.Code != "" {
		return fmt.Sprintf("conversation: agent %s [%s]: %s", kind, e.Code, e.Description)
	}
	return fmt.Sprintf("conversation: agent %s: %s", kind, e.Description)
}

// NewAPIError creates a new APIError.
func NewAPIError(code, description string) *APIError {
	return &APIError{Code: code, Description: description}
}

// ConnectionError represents a WebSocket connection error.
type ConnectionError struct {
	// Reason describes why the connection failed.
	Reason string

	// StatusCode is the HTTP status of a failed handshake, if any.
	StatusCode int

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("conversation: connection error: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("conversation: connection error: %s", e.Reason)
}

// Unwrap returns the underlying cause.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// NewConnectionError creates a new ConnectionError.
func NewConnectionError(reason string, cause error) *ConnectionError {
	return &ConnectionError{
		Reason: reason,
		Cause:  cause,
	}
}

// IsNotConnected returns true if the error indicates no usable connection.
func IsNotConnected(err error) bool {
	var connErr *ConnectionError
	return errors.Is(err, ErrNotConnected) || errors.As(err, &connErr)
}
