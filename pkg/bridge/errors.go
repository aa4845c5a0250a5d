package bridge

import "errors"

var (
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("bridge: already started")

	// ErrClosed is returned when the bridge closed before the operation finished.
	ErrClosed = errors.New("bridge: closed")

	// ErrMissingLeg is returned when a bridge is built without a leg.
	ErrMissingLeg = errors.New("bridge: agent and human legs are required")
)
