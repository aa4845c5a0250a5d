package backend

import (
	"errors"

	"github.com/teslashibe/go-interview-relay/internal/httpc"
)

var (
	// ErrUnsuccessful is returned when the backend answers with success:false.
	ErrUnsuccessful = errors.New("backend: request unsuccessful")

	// ErrEmptySessionID is returned when a session-scoped call has no id.
	ErrEmptySessionID = errors.New("backend: empty session id")

	// ErrNotifierClosed is returned when work is submitted after Close.
	ErrNotifierClosed = errors.New("backend: notifier closed")

	// ErrQueueFull is returned when a session queue cannot take more work.
	ErrQueueFull = errors.New("backend: notifier queue full")

	// ErrReleased is returned when work is enqueued under a released key.
	ErrReleased = errors.New("backend: notifier key released")
)

// StatusError is a non-2xx response from the backend.
type StatusError = httpc.StatusError

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}
