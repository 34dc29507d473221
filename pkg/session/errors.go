package session

import "errors"

// Sentinel errors returned by the session layer. Callers should match with
// errors.Is; wrapped variants carry the underlying cause.
var (
	// ErrNotFound indicates the session id is unknown (never created,
	// already closed, or reaped).
	ErrNotFound = errors.New("session not found")

	// ErrDuplicateID indicates a store insert collided with an existing id.
	ErrDuplicateID = errors.New("duplicate session id")

	// ErrCapacityExceeded indicates the configured session ceiling is
	// reached; callers may retry after a session is closed.
	ErrCapacityExceeded = errors.New("maximum number of sessions reached")

	// ErrProvisioningFailed indicates the browser failed to start or did
	// not become ready within the startup timeout.
	ErrProvisioningFailed = errors.New("browser provisioning failed")

	// ErrSessionClosed indicates an operation raced with termination of
	// the same session.
	ErrSessionClosed = errors.New("session closed")

	// ErrTimeout indicates a browser operation exceeded its time budget.
	ErrTimeout = errors.New("browser operation timed out")
)
