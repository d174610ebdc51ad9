package chat

import "errors"

var (
	// ErrStoreUnavailable means the store could not be initialized. Fatal at startup.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrWriteFailed is reported to the connection whose write failed.
	ErrWriteFailed = errors.New("write failed")
	// ErrGenerationFailed never reaches users; the assistant falls back to a canned reply.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrInvalidAction is an action received in the wrong session state.
	ErrInvalidAction = errors.New("invalid action")
)
