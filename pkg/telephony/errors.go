package telephony

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingEvent indicates a frame without an event field.
	ErrMissingEvent = errors.New("telephony: frame has no event")

	// ErrStreamNotStarted indicates an outbound frame before the start event.
	ErrStreamNotStarted = errors.New("telephony: stream not started")

	// ErrStreamStopped indicates a frame after the stop event.
	ErrStreamStopped = errors.New("telephony: stream stopped")
)

// PayloadError reports a media payload that is not valid base64.
type PayloadError struct {
	Cause error
}

// Error implements the error interface.
func (e *PayloadError) Error() string {
	return fmt.Sprintf("telephony: bad media payload: %v", e.Cause)
}

// Unwrap returns the underlying cause.
func (e *PayloadError) Unwrap() error {
	return e.Cause
}
